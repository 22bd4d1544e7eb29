// Copyright (c) 2026 honeybbq
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// Package value implements the ubus dynamic value model: a recursive tagged
// union isomorphic to JSON, with an ordered table representation (unlike a
// Go map) so that object key order survives a bytes -> Value -> JSON ->
// Value -> bytes round trip, as spec.md invariant 4 requires.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/busline/ubus/errdefs"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt16
	KindInt32
	KindInt64
	KindDouble
	KindString
	KindArray
	KindTable
	// KindOpaque holds an undecodable/unknown blobmsg payload, preserved
	// verbatim so callers can at least inspect its raw bytes.
	KindOpaque
)

// Field is one named entry of an ordered Table.
type Field struct {
	Name  string
	Value Value
}

// Value is the dynamic value model: exactly one of its fields is meaningful,
// selected by Kind.
type Value struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Double float64
	Str    string
	Array  []Value
	Table  []Field
	Opaque []byte
}

// Null returns the null/opaque-zero value.
func Null() Value { return Value{Kind: KindNull} }

// BoolOf constructs a BOOL value.
func BoolOf(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Int16Of constructs a 16-bit signed value.
func Int16Of(v int16) Value { return Value{Kind: KindInt16, Int: int64(v)} }

// Int32Of constructs a 32-bit signed value.
func Int32Of(v int32) Value { return Value{Kind: KindInt32, Int: int64(v)} }

// Int64Of constructs a 64-bit signed value.
func Int64Of(v int64) Value { return Value{Kind: KindInt64, Int: v} }

// DoubleOf constructs a DOUBLE value.
func DoubleOf(v float64) Value { return Value{Kind: KindDouble, Double: v} }

// StringOf constructs a STRING value.
func StringOf(s string) Value { return Value{Kind: KindString, Str: s} }

// ArrayOf constructs an ARRAY value from already-built elements.
func ArrayOf(items ...Value) Value { return Value{Kind: KindArray, Array: items} }

// TableOf constructs a TABLE value from already-built, order-preserved fields.
func TableOf(fields ...Field) Value { return Value{Kind: KindTable, Table: fields} }

// OpaqueOf wraps raw, undecoded bytes.
func OpaqueOf(b []byte) Value { return Value{Kind: KindOpaque, Opaque: b} }

// Get returns the value of the named field in a TABLE, or (zero, false) if
// absent or if v is not a table.
func (v Value) Get(name string) (Value, bool) {
	for _, f := range v.Table {
		if f.Name == name {
			return f.Value, true
		}
	}

	return Value{}, false
}

// Set inserts or replaces the named field of a TABLE, preserving the
// position of an existing field and appending new ones in call order.
func (v *Value) Set(name string, val Value) {
	for i := range v.Table {
		if v.Table[i].Name == name {
			v.Table[i].Value = val
			return
		}
	}

	v.Kind = KindTable
	v.Table = append(v.Table, Field{Name: name, Value: val})
}

// IntFitsInt16 reports whether the smallest signed width needed for n is 16 bits.
func IntFitsInt16(n int64) bool { return n >= math.MinInt16 && n <= math.MaxInt16 }

// IntFitsInt32 reports whether n fits in a signed 32-bit integer.
func IntFitsInt32(n int64) bool { return n >= math.MinInt32 && n <= math.MaxInt32 }

// NarrowestInt builds the Value for n using the smallest of i16/i32/i64 that
// fits, per spec.md §4.D.
func NarrowestInt(n int64) Value {
	switch {
	case IntFitsInt16(n):
		return Int16Of(int16(n))
	case IntFitsInt32(n):
		return Int32Of(int32(n))
	default:
		return Int64Of(n)
	}
}

// FromJSON parses a JSON document into a Value, preserving object key order
// and widening numbers per spec.md §4.D. An empty document parses to an
// empty table (spec.md §8 boundary behavior).
func FromJSON(data []byte) (Value, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Value{Kind: KindTable}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, errdefs.Wrapf(errdefs.ErrParseArguments, "%v", err)
	}

	if _, err := dec.Token(); err == nil {
		return Value{}, errdefs.Wrapf(errdefs.ErrParseArguments, "trailing data after JSON value")
	}

	return v, nil
}

// decodeValue consumes exactly one JSON value from the token stream,
// recursing into arrays/objects so that source key order is preserved —
// this is why FromJSON cannot simply `json.Unmarshal` into a map.
func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			items := []Value{}

			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}

				items = append(items, item)
			}

			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}

			return Value{Kind: KindArray, Array: items}, nil
		case '{':
			fields := []Field{}

			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}

				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("expected string object key, got %v", keyTok)
				}

				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}

				fields = append(fields, Field{Name: key, Value: val})
			}

			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}

			return Value{Kind: KindTable, Table: fields}, nil
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %v", t)
		}
	case nil:
		return Value{Kind: KindNull}, nil
	case bool:
		return Value{Kind: KindBool, Bool: t}, nil
	case string:
		return Value{Kind: KindString, Str: t}, nil
	case json.Number:
		return numberValue(t)
	default:
		return Value{}, fmt.Errorf("unsupported JSON token %T", tok)
	}
}

func numberValue(n json.Number) (Value, error) {
	if i, err := n.Int64(); err == nil {
		return NarrowestInt(i), nil
	}

	f, err := n.Float64()
	if err != nil {
		return Value{}, errdefs.Wrapf(errdefs.ErrParseArguments, "invalid number %q", n.String())
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, errdefs.Wrapf(errdefs.ErrInvalidData, "NaN JSON")
	}

	return Value{Kind: KindDouble, Double: f}, nil
}

// ToJSON renders v as JSON text, writing object fields in Table order since
// encoding/json cannot marshal an ordered map.
func (v Value) ToJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindInt16, KindInt32, KindInt64:
		buf.WriteString(strconv.FormatInt(v.Int, 10))
	case KindDouble:
		if math.IsNaN(v.Double) || math.IsInf(v.Double, 0) {
			return errdefs.Wrapf(errdefs.ErrInvalidData, "NaN JSON")
		}

		buf.WriteString(strconv.FormatFloat(v.Double, 'g', -1, 64))
	case KindString:
		encoded, err := json.Marshal(v.Str)
		if err != nil {
			return err
		}

		buf.Write(encoded)
	case KindArray:
		buf.WriteByte('[')

		for i, item := range v.Array {
			if i > 0 {
				buf.WriteByte(',')
			}

			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}

		buf.WriteByte(']')
	case KindTable:
		buf.WriteByte('{')

		for i, field := range v.Table {
			if i > 0 {
				buf.WriteByte(',')
			}

			key, err := json.Marshal(field.Name)
			if err != nil {
				return err
			}

			buf.Write(key)
			buf.WriteByte(':')

			if err := field.Value.writeJSON(buf); err != nil {
				return err
			}
		}

		buf.WriteByte('}')
	case KindOpaque:
		return errdefs.Wrapf(errdefs.ErrInvalidBlobType, "unknown blob type")
	default:
		return errdefs.Wrapf(errdefs.ErrInvalidBlobType, "unknown blob type")
	}

	return nil
}

// MarshalJSON implements json.Marshaler so a Value nests cleanly inside
// ordinary Go JSON encoding (e.g. as a struct field).
func (v Value) MarshalJSON() ([]byte, error) {
	return v.ToJSON()
}

// UnmarshalJSON implements json.Unmarshaler via FromJSON, preserving key order.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := FromJSON(data)
	if err != nil {
		return err
	}

	*v = parsed

	return nil
}

// Decode projects v onto target via its JSON representation, the way a reply
// Value is turned into a caller-defined Go struct. Fields implementing
// json.Unmarshaler (such as a leniently-parsed bool wrapper) see the BOOL/
// INT8 ambiguity resolved exactly as ToJSON would render it.
func (v Value) Decode(target any) error {
	encoded, err := v.ToJSON()
	if err != nil {
		return err
	}

	if err := json.Unmarshal(encoded, target); err != nil {
		return errdefs.Wrapf(errdefs.ErrParseArguments, "%v", err)
	}

	return nil
}
