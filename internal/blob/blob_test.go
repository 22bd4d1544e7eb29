// Copyright (c) 2026 honeybbq
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package blob

import (
	"bytes"
	"testing"

	"github.com/busline/ubus/errdefs"
)

func TestSerializeParseRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		attrID  uint8
		payload []byte
	}{
		{"empty payload", AttrUnspec, nil},
		{"obj id", AttrObjID, EncodeUint32(42)},
		{"obj path", AttrObjPath, EncodeString("foo.bar")},
		{"unaligned payload", AttrData, []byte{1, 2, 3}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := Serialize(tc.attrID, tc.payload)
			if err != nil {
				t.Fatalf("Serialize: %v", err)
			}

			if len(encoded)%4 != 0 {
				t.Fatalf("encoded length %d not 4-byte aligned", len(encoded))
			}

			decoded, consumed, err := Parse(encoded)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}

			if consumed != len(encoded) {
				t.Fatalf("consumed %d, want %d", consumed, len(encoded))
			}

			if decoded.AttrID != tc.attrID {
				t.Errorf("AttrID = %d, want %d", decoded.AttrID, tc.attrID)
			}

			if !bytes.Equal(decoded.Payload, tc.payload) {
				t.Errorf("Payload = %v, want %v", decoded.Payload, tc.payload)
			}
		})
	}
}

func TestIteratorWalksConcatenatedBlobs(t *testing.T) {
	a, err := Serialize(AttrObjID, EncodeUint32(1))
	if err != nil {
		t.Fatalf("Serialize a: %v", err)
	}

	b, err := Serialize(AttrObjPath, EncodeString("x"))
	if err != nil {
		t.Fatalf("Serialize b: %v", err)
	}

	buf := append(append([]byte{}, a...), b...)

	it := NewIterator(buf)

	first, ok, err := it.Next()
	if err != nil || !ok {
		t.Fatalf("first Next: ok=%v err=%v", ok, err)
	}

	if first.AttrID != AttrObjID {
		t.Errorf("first.AttrID = %d, want %d", first.AttrID, AttrObjID)
	}

	second, ok, err := it.Next()
	if err != nil || !ok {
		t.Fatalf("second Next: ok=%v err=%v", ok, err)
	}

	if second.AttrID != AttrObjPath {
		t.Errorf("second.AttrID = %d, want %d", second.AttrID, AttrObjPath)
	}

	_, ok, err = it.Next()
	if err != nil {
		t.Fatalf("third Next: %v", err)
	}

	if ok {
		t.Fatalf("expected iterator exhausted")
	}
}

func TestDecodeUint32WrongSize(t *testing.T) {
	if _, err := DecodeUint32([]byte{1, 2, 3}); !errdefs.IsInvalidData(err) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
}

func TestDecodeStringStripsTerminator(t *testing.T) {
	s, err := DecodeString(EncodeString("héllo"))
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}

	if s != "héllo" {
		t.Errorf("DecodeString = %q, want %q", s, "héllo")
	}
}

func TestDecodeStringRejectsMissingTerminator(t *testing.T) {
	if _, err := DecodeString([]byte("no-nul")); !errdefs.IsInvalidData(err) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
}

func TestDecodeStringRejectsInvalidUTF8(t *testing.T) {
	payload := append([]byte{0xff, 0xfe}, 0)

	if _, err := DecodeString(payload); !errdefs.IsInvalidData(err) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
}

func TestParseRejectsExtendedTag(t *testing.T) {
	// Hand-build a 4-byte tag with the extended bit set to verify Parse
	// refuses it (plain blobs must never be extended).
	buf := []byte{0x80, 0, 0, 4}

	if _, _, err := Parse(buf); !errdefs.IsInvalidData(err) {
		t.Fatalf("expected ErrInvalidData for extended tag, got %v", err)
	}
}

func TestParseTruncatedFrame(t *testing.T) {
	encoded, err := Serialize(AttrData, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	if _, _, err := Parse(encoded[:len(encoded)-2]); !errdefs.IsInvalidData(err) {
		t.Fatalf("expected ErrInvalidData for truncated frame, got %v", err)
	}
}
