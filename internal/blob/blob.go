// Copyright (c) 2026 honeybbq
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// Package blob implements the plain (non-extended) ubus TLV layer: a Tag
// whose Type field is interpreted as an attribute id, followed by a raw
// payload whose shape is dictated by that id.
package blob

import (
	"encoding/binary"
	"strings"
	"unicode/utf8"

	"github.com/busline/ubus/errdefs"
	"github.com/busline/ubus/internal/tag"
)

// Attribute ids for plain blobs (spec.md §6).
const (
	AttrUnspec      = 0
	AttrStatus      = 1
	AttrObjPath     = 2
	AttrObjID       = 3
	AttrMethod      = 4
	AttrObjType     = 5
	AttrSignature   = 6
	AttrData        = 7
	AttrTarget      = 8
	AttrActive      = 9
	AttrNoReply     = 10
	AttrSubscribers = 11
	AttrUser        = 12
	AttrGroup       = 13
)

// Blob is a decoded plain TLV: an attribute id and its raw payload.
type Blob struct {
	AttrID  uint8
	Payload []byte
}

// Serialize encodes a plain blob: tag, payload, and trailing alignment pad.
func Serialize(attrID uint8, payload []byte) ([]byte, error) {
	totalLen := uint32(tag.Size + len(payload))

	t, err := tag.Build(attrID, totalLen, false)
	if err != nil {
		return nil, err
	}

	out := make([]byte, tag.Size, int(t.NextOffset()))
	t.Put(out)
	out = append(out, payload...)
	out = append(out, make([]byte, t.Padding())...)

	return out, nil
}

// Parse reads one plain Blob starting at buf[0] and reports how many bytes
// (including alignment padding) were consumed.
func Parse(buf []byte) (Blob, int, error) {
	t, err := tag.Parse(buf)
	if err != nil {
		return Blob{}, 0, err
	}

	if t.Extended {
		return Blob{}, 0, errdefs.Wrapf(errdefs.ErrInvalidData, "expected plain blob, got extended tag")
	}

	end := int(t.TotalLen)
	if end > len(buf) {
		return Blob{}, 0, errdefs.Wrapf(errdefs.ErrInvalidData, "blob declares %d bytes, have %d", end, len(buf))
	}

	consumed := int(t.NextOffset())
	if consumed > len(buf) {
		consumed = len(buf)
	}

	return Blob{AttrID: t.Type, Payload: buf[tag.Size:end]}, consumed, nil
}

// Iterator lazily yields each Blob from buf until fewer than tag.MinLen
// bytes remain.
type Iterator struct {
	buf []byte
	off int
}

// NewIterator returns an Iterator over buf.
func NewIterator(buf []byte) *Iterator {
	return &Iterator{buf: buf}
}

// Next returns the next Blob, or ok=false once the buffer is exhausted.
func (it *Iterator) Next() (b Blob, ok bool, err error) {
	if len(it.buf)-it.off < tag.MinLen {
		return Blob{}, false, nil
	}

	b, consumed, err := Parse(it.buf[it.off:])
	if err != nil {
		return Blob{}, false, err
	}

	it.off += consumed

	return b, true, nil
}

// DecodeUint32 decodes a big-endian u32 payload. It fails if payload is not
// exactly 4 bytes.
func DecodeUint32(payload []byte) (uint32, error) {
	if len(payload) != 4 {
		return 0, errdefs.Wrapf(errdefs.ErrInvalidData, "wrong size: expected 4 bytes, got %d", len(payload))
	}

	return binary.BigEndian.Uint32(payload), nil
}

// EncodeUint32 encodes v as a 4-byte big-endian payload.
func EncodeUint32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)

	return buf
}

// DecodeString decodes a NUL-terminated UTF-8 payload, stripping the
// terminator. A missing terminator or invalid UTF-8 is ErrInvalidData.
func DecodeString(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", errdefs.Wrapf(errdefs.ErrInvalidData, "string payload missing NUL terminator")
	}

	s, _, found := strings.Cut(string(payload), "\x00")
	if !found {
		return "", errdefs.Wrapf(errdefs.ErrInvalidData, "string payload missing NUL terminator")
	}

	if !utf8.ValidString(s) {
		return "", errdefs.Wrapf(errdefs.ErrInvalidData, "string payload is not valid UTF-8")
	}

	return s, nil
}

// EncodeString encodes s as a NUL-terminated UTF-8 payload.
func EncodeString(s string) []byte {
	out := make([]byte, 0, len(s)+1)
	out = append(out, s...)

	return append(out, 0)
}
