// Copyright (c) 2026 honeybbq
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// Package blobmsg implements the extended (named) ubus TLV layer: a Tag with
// Extended=true, followed by a big-endian u16 name length, the name, a NUL
// terminator, alignment padding, and a typed value payload. Arrays and
// tables are concatenations of child BlobMsgs (spec.md §3, §4.C).
package blobmsg

import (
	"encoding/binary"
	"math"

	"github.com/busline/ubus/errdefs"
	"github.com/busline/ubus/internal/tag"
	"github.com/busline/ubus/internal/value"
)

// blobmsg value-type ids (spec.md §6). BOOL and INT8 alias the same id, per
// spec.md §9 Open Question 2; this codec only ever produces/consumes it as a
// one-byte bool.
const (
	TypeUnspec = 0
	TypeArray  = 1
	TypeTable  = 2
	TypeString = 3
	TypeInt64  = 4
	TypeInt32  = 5
	TypeInt16  = 6
	TypeInt8   = 7
	TypeBool   = TypeInt8
	TypeDouble = 8
)

const nameHeaderLen = 2 // u16 name length field

// Encode serializes a named Value into a complete BlobMsg TLV (tag included).
func Encode(name string, v value.Value) ([]byte, error) {
	blobType, payload, err := encodeValue(v)
	if err != nil {
		return nil, err
	}

	if len(name) > math.MaxUint16 {
		return nil, errdefs.Wrapf(errdefs.ErrInvalidData, "name length %d exceeds uint16", len(name))
	}

	nameField := tag.Align4(nameHeaderLen + len(name) + 1)
	totalLen := uint32(tag.Size + nameField + len(payload))

	t, err := tag.Build(blobType, totalLen, true)
	if err != nil {
		return nil, err
	}

	out := make([]byte, tag.Size, int(t.NextOffset()))
	t.Put(out)
	out = binary.BigEndian.AppendUint16(out, uint16(len(name)))
	out = append(out, name...)
	out = append(out, 0)
	out = append(out, make([]byte, nameField-nameHeaderLen-len(name)-1)...)
	out = append(out, payload...)
	out = append(out, make([]byte, t.Padding())...)

	return out, nil
}

// Parse decodes one BlobMsg TLV starting at buf[0], returning its name,
// value, and the number of bytes (including alignment padding) consumed.
//
// The value-payload slice bounds are computed from the header fields, not
// from len(buf) — per spec.md §4.C's "upper-bound discipline" — so that
// parsing a child inside a larger buffer never walks into a sibling blob.
func Parse(buf []byte) (name string, v value.Value, consumed int, err error) {
	t, err := tag.Parse(buf)
	if err != nil {
		return "", value.Value{}, 0, err
	}

	if !t.Extended {
		return "", value.Value{}, 0, errdefs.Wrapf(errdefs.ErrInvalidData, "expected extended tag")
	}

	end := int(t.TotalLen)
	if end > len(buf) {
		return "", value.Value{}, 0, errdefs.Wrapf(errdefs.ErrInvalidData, "blobmsg declares %d bytes, have %d", end, len(buf))
	}

	inner := buf[tag.Size:end]
	if len(inner) < nameHeaderLen {
		return "", value.Value{}, 0, errdefs.Wrapf(errdefs.ErrInvalidData, "blobmsg payload too short for name length")
	}

	nameLen := int(binary.BigEndian.Uint16(inner[:nameHeaderLen]))
	if nameHeaderLen+nameLen+1 > len(inner) {
		return "", value.Value{}, 0, errdefs.Wrapf(errdefs.ErrInvalidData, "name length %d exceeds remaining payload", nameLen)
	}

	name = string(inner[nameHeaderLen : nameHeaderLen+nameLen])

	nameField := tag.Align4(nameHeaderLen + nameLen + 1)
	if nameField > len(inner) {
		return "", value.Value{}, 0, errdefs.Wrapf(errdefs.ErrInvalidData, "padded name field exceeds payload")
	}

	valuePayload := inner[nameField:]

	v, err = decodeValue(t.Type, valuePayload)
	if err != nil {
		return "", value.Value{}, 0, err
	}

	consumed = int(t.NextOffset())
	if consumed > len(buf) {
		consumed = len(buf)
	}

	return name, v, consumed, nil
}

// EncodeTable serializes an ordered table as the concatenation of its
// children's BlobMsgs (no outer tag — callers wrap this as an ARRAY/TABLE
// value payload, or as the top-level contents of a message attribute).
func EncodeTable(fields []value.Field) ([]byte, error) {
	var out []byte

	for _, f := range fields {
		child, err := Encode(f.Name, f.Value)
		if err != nil {
			return nil, err
		}

		out = append(out, child...)
	}

	return out, nil
}

// EncodeArray serializes an ordered array as the concatenation of its
// anonymous (empty-name) children's BlobMsgs.
func EncodeArray(items []value.Value) ([]byte, error) {
	var out []byte

	for _, item := range items {
		child, err := Encode("", item)
		if err != nil {
			return nil, err
		}

		out = append(out, child...)
	}

	return out, nil
}

// DecodeTable parses a concatenation of named BlobMsgs into an ordered table.
func DecodeTable(payload []byte) ([]value.Field, error) {
	var fields []value.Field

	it := NewIterator(payload)

	for {
		name, v, ok, err := it.Next()
		if err != nil {
			return nil, err
		}

		if !ok {
			break
		}

		fields = append(fields, value.Field{Name: name, Value: v})
	}

	return fields, nil
}

// DecodeArray parses a concatenation of anonymous BlobMsgs into an ordered
// array. Every child must be extended; a bare (non-extended) child is a
// decode error. Child names are not checked and are discarded.
func DecodeArray(payload []byte) ([]value.Value, error) {
	var items []value.Value

	it := NewIterator(payload)

	for {
		_, v, ok, err := it.Next()
		if err != nil {
			return nil, err
		}

		if !ok {
			break
		}

		items = append(items, v)
	}

	return items, nil
}

// Iterator lazily walks a concatenation of sibling BlobMsgs.
type Iterator struct {
	buf []byte
	off int
}

// NewIterator returns an Iterator over a buffer of concatenated BlobMsgs.
func NewIterator(buf []byte) *Iterator {
	return &Iterator{buf: buf}
}

// Next returns the next child's name and value, or ok=false once exhausted.
func (it *Iterator) Next() (name string, v value.Value, ok bool, err error) {
	if len(it.buf)-it.off < tag.MinLen {
		return "", value.Value{}, false, nil
	}

	name, v, consumed, err := Parse(it.buf[it.off:])
	if err != nil {
		return "", value.Value{}, false, err
	}

	it.off += consumed

	return name, v, true, nil
}

func encodeValue(v value.Value) (uint8, []byte, error) {
	switch v.Kind {
	case value.KindNull:
		return TypeUnspec, nil, nil
	case value.KindBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}

		return TypeBool, []byte{b}, nil
	case value.KindInt16:
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(int16(v.Int)))

		return TypeInt16, buf, nil
	case value.KindInt32:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(int32(v.Int)))

		return TypeInt32, buf, nil
	case value.KindInt64:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(v.Int))

		return TypeInt64, buf, nil
	case value.KindDouble:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(v.Double))

		return TypeDouble, buf, nil
	case value.KindString:
		return TypeString, append([]byte(v.Str), 0), nil
	case value.KindArray:
		payload, err := EncodeArray(v.Array)
		if err != nil {
			return 0, nil, err
		}

		return TypeArray, payload, nil
	case value.KindTable:
		payload, err := EncodeTable(v.Table)
		if err != nil {
			return 0, nil, err
		}

		return TypeTable, payload, nil
	case value.KindOpaque:
		return TypeUnspec, v.Opaque, nil
	default:
		return 0, nil, errdefs.Wrapf(errdefs.ErrInvalidBlobType, "kind %d", v.Kind)
	}
}

func decodeValue(blobType uint8, payload []byte) (value.Value, error) {
	switch blobType {
	case TypeUnspec:
		if len(payload) == 0 {
			return value.Null(), nil
		}

		return value.OpaqueOf(payload), nil
	case TypeBool: // == TypeInt8
		if len(payload) < 1 {
			return value.Value{}, errdefs.Wrapf(errdefs.ErrInvalidData, "bool payload empty")
		}

		return value.BoolOf(payload[0] != 0), nil
	case TypeInt16:
		if len(payload) < 2 {
			return value.Value{}, errdefs.Wrapf(errdefs.ErrInvalidData, "wrong size for int16")
		}

		return value.Int16Of(int16(binary.BigEndian.Uint16(payload[:2]))), nil
	case TypeInt32:
		if len(payload) < 4 {
			return value.Value{}, errdefs.Wrapf(errdefs.ErrInvalidData, "wrong size for int32")
		}

		return value.Int32Of(int32(binary.BigEndian.Uint32(payload[:4]))), nil
	case TypeInt64:
		if len(payload) < 8 {
			return value.Value{}, errdefs.Wrapf(errdefs.ErrInvalidData, "wrong size for int64")
		}

		return value.Int64Of(int64(binary.BigEndian.Uint64(payload[:8]))), nil
	case TypeDouble:
		if len(payload) < 8 {
			return value.Value{}, errdefs.Wrapf(errdefs.ErrInvalidData, "wrong size for double")
		}

		return value.DoubleOf(math.Float64frombits(binary.BigEndian.Uint64(payload[:8]))), nil
	case TypeString:
		if len(payload) == 0 {
			return value.StringOf(""), nil
		}

		trimmed := payload
		if trimmed[len(trimmed)-1] == 0 {
			trimmed = trimmed[:len(trimmed)-1]
		}

		return value.StringOf(string(trimmed)), nil
	case TypeArray:
		items, err := DecodeArray(payload)
		if err != nil {
			return value.Value{}, err
		}

		return value.Value{Kind: value.KindArray, Array: items}, nil
	case TypeTable:
		fields, err := DecodeTable(payload)
		if err != nil {
			return value.Value{}, err
		}

		return value.Value{Kind: value.KindTable, Table: fields}, nil
	default:
		return value.Value{}, errdefs.Wrapf(errdefs.ErrInvalidBlobType, "type %d", blobType)
	}
}
