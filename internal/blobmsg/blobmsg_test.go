// Copyright (c) 2026 honeybbq
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package blobmsg

import (
	"testing"

	"github.com/busline/ubus/errdefs"
	"github.com/busline/ubus/internal/value"
)

func TestEncodeParseScalarRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		v    value.Value
	}{
		{"null", value.Null()},
		{"bool true", value.BoolOf(true)},
		{"bool false", value.BoolOf(false)},
		{"int16", value.Int16Of(-5)},
		{"int32", value.Int32Of(70000)},
		{"int64", value.Int64Of(1 << 40)},
		{"double", value.DoubleOf(3.25)},
		{"string", value.StringOf("hello")},
		{"empty string", value.StringOf("")},
		{"unicode string", value.StringOf("héllo")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := Encode("field", tc.v)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			if len(encoded)%4 != 0 {
				t.Fatalf("encoded length %d not 4-byte aligned", len(encoded))
			}

			name, decoded, consumed, err := Parse(encoded)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}

			if name != "field" {
				t.Errorf("name = %q, want %q", name, "field")
			}

			if consumed != len(encoded) {
				t.Errorf("consumed = %d, want %d", consumed, len(encoded))
			}

			if decoded.Kind != tc.v.Kind {
				t.Fatalf("Kind = %v, want %v", decoded.Kind, tc.v.Kind)
			}

			switch tc.v.Kind {
			case value.KindBool:
				if decoded.Bool != tc.v.Bool {
					t.Errorf("Bool = %v, want %v", decoded.Bool, tc.v.Bool)
				}
			case value.KindInt16, value.KindInt32, value.KindInt64:
				if decoded.Int != tc.v.Int {
					t.Errorf("Int = %d, want %d", decoded.Int, tc.v.Int)
				}
			case value.KindDouble:
				if decoded.Double != tc.v.Double {
					t.Errorf("Double = %v, want %v", decoded.Double, tc.v.Double)
				}
			case value.KindString:
				if decoded.Str != tc.v.Str {
					t.Errorf("Str = %q, want %q", decoded.Str, tc.v.Str)
				}
			}
		})
	}
}

func TestBoolAndInt8ShareWireType(t *testing.T) {
	// spec.md §9 Open Question 2: BOOL and INT8 alias value-type id 7. The
	// one-byte payload Encode writes at TypeBool must decode as a bool.
	encoded, err := Encode("flag", value.BoolOf(true))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, decoded, _, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if decoded.Kind != value.KindBool || !decoded.Bool {
		t.Fatalf("got %+v, want BOOL true", decoded)
	}
}

func TestTableRoundTripPreservesOrder(t *testing.T) {
	fields := []value.Field{
		{Name: "z", Value: value.Int16Of(1)},
		{Name: "a", Value: value.StringOf("two")},
		{Name: "m", Value: value.BoolOf(true)},
	}

	encoded, err := EncodeTable(fields)
	if err != nil {
		t.Fatalf("EncodeTable: %v", err)
	}

	decoded, err := DecodeTable(encoded)
	if err != nil {
		t.Fatalf("DecodeTable: %v", err)
	}

	if len(decoded) != len(fields) {
		t.Fatalf("got %d fields, want %d", len(decoded), len(fields))
	}

	for i, f := range fields {
		if decoded[i].Name != f.Name {
			t.Errorf("field %d name = %q, want %q", i, decoded[i].Name, f.Name)
		}
	}
}

func TestNestedTableAndArray(t *testing.T) {
	nested := value.Value{
		Kind: value.KindTable,
		Table: []value.Field{
			{Name: "items", Value: value.ArrayOf(value.Int16Of(1), value.Int16Of(2), value.Int16Of(3))},
			{Name: "name", Value: value.StringOf("x")},
		},
	}

	encoded, err := Encode("root", nested)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, decoded, _, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	items, ok := decoded.Get("items")
	if !ok || len(items.Array) != 3 {
		t.Fatalf("items = %+v, ok=%v", items, ok)
	}

	for i, want := range []int64{1, 2, 3} {
		if items.Array[i].Int != want {
			t.Errorf("items[%d] = %d, want %d", i, items.Array[i].Int, want)
		}
	}
}

func TestParseRejectsNonExtendedTag(t *testing.T) {
	// A plain (non-extended) 4-byte tag is not a valid BlobMsg.
	buf := []byte{0, 0, 0, 4}

	if _, _, _, err := Parse(buf); !errdefs.IsInvalidData(err) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
}

func TestParseRejectsOversizedName(t *testing.T) {
	encoded, err := Encode("field", value.Int16Of(1))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Corrupt the name-length header to claim a name far longer than the
	// buffer actually holds.
	encoded[4] = 0xff
	encoded[5] = 0xff

	if _, _, _, err := Parse(encoded); !errdefs.IsInvalidData(err) {
		t.Fatalf("expected ErrInvalidData for oversized name, got %v", err)
	}
}

func TestWrongSizeIntRejected(t *testing.T) {
	if _, err := decodeValue(TypeInt32, []byte{1, 2}); !errdefs.IsInvalidData(err) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
}

func TestIteratorOverConcatenatedChildren(t *testing.T) {
	a, err := Encode("a", value.Int16Of(1))
	if err != nil {
		t.Fatalf("Encode a: %v", err)
	}

	b, err := Encode("b", value.StringOf("x"))
	if err != nil {
		t.Fatalf("Encode b: %v", err)
	}

	it := NewIterator(append(append([]byte{}, a...), b...))

	name1, _, ok, err := it.Next()
	if err != nil || !ok || name1 != "a" {
		t.Fatalf("first Next: name=%q ok=%v err=%v", name1, ok, err)
	}

	name2, _, ok, err := it.Next()
	if err != nil || !ok || name2 != "b" {
		t.Fatalf("second Next: name=%q ok=%v err=%v", name2, ok, err)
	}

	_, _, ok, err = it.Next()
	if err != nil || ok {
		t.Fatalf("expected exhausted iterator, ok=%v err=%v", ok, err)
	}
}
