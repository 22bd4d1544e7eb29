// Copyright (c) 2026 honeybbq
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// Package tag implements the 4-byte ubus TLV tag: a big-endian u32 packing an
// extended flag, a 7-bit type, and a 24-bit length.
package tag

import (
	"encoding/binary"

	"github.com/busline/ubus/errdefs"
)

const (
	// Align is the wire alignment boundary: every TLV is padded so the next
	// one starts on a 4-byte offset.
	Align = 4

	// Size is the encoded size of a Tag on the wire.
	Size = 4

	// MinLen is the smallest legal total_len (the tag itself).
	MinLen = 4

	// MaxLen is the largest total_len a 24-bit length field can hold.
	MaxLen = 1<<24 - 1

	// MaxType is the largest value a 7-bit type field can hold.
	MaxType = 1<<7 - 1
)

const (
	extendedBit = 0x80000000
	typeMask    = 0x7f000000
	typeShift   = 24
	lengthMask  = 0x00ffffff
)

// Tag is the decoded form of the 4-byte TLV header.
type Tag struct {
	Type     uint8
	TotalLen uint32
	Extended bool
}

// Build validates and constructs a Tag. It fails if typ is out of the 7-bit
// range or totalLen is outside [MinLen, MaxLen].
func Build(typ uint8, totalLen uint32, extended bool) (Tag, error) {
	t := Tag{Type: typ, TotalLen: totalLen, Extended: extended}
	if err := t.Validate(); err != nil {
		return Tag{}, err
	}

	return t, nil
}

// Validate reports whether the tag's fields are within protocol limits.
func (t Tag) Validate() error {
	if t.Type > MaxType {
		return errdefs.Wrapf(errdefs.ErrInvalidData, "tag type %d exceeds 7 bits", t.Type)
	}

	if t.TotalLen < MinLen {
		return errdefs.Wrapf(errdefs.ErrInvalidData, "tag total_len %d below minimum %d", t.TotalLen, MinLen)
	}

	if t.TotalLen > MaxLen {
		return errdefs.Wrapf(errdefs.ErrInvalidData, "tag total_len %d exceeds 24 bits", t.TotalLen)
	}

	return nil
}

// InnerLen returns the payload length, excluding the tag itself.
func (t Tag) InnerLen() uint32 {
	return t.TotalLen - Size
}

// Padding returns the number of zero bytes needed after the TLV so the next
// tag starts on a 4-byte boundary.
func (t Tag) Padding() uint32 {
	return uint32(PadLen(int(t.TotalLen)))
}

// NextOffset returns total_len plus trailing padding: the byte offset, from
// the start of this TLV, at which the next TLV begins.
func (t Tag) NextOffset() uint32 {
	return t.TotalLen + t.Padding()
}

// Encode packs the tag into its 4-byte big-endian wire form.
func (t Tag) Encode() uint32 {
	word := t.TotalLen & lengthMask
	word |= uint32(t.Type&MaxType) << typeShift

	if t.Extended {
		word |= extendedBit
	}

	return word
}

// Put writes the encoded tag into buf[:4]. buf must have length >= 4.
func (t Tag) Put(buf []byte) {
	binary.BigEndian.PutUint32(buf, t.Encode())
}

// Decode unpacks a 4-byte big-endian word into a Tag without validating it.
func Decode(word uint32) Tag {
	return Tag{
		Extended: word&extendedBit != 0,
		Type:     uint8((word & typeMask) >> typeShift),
		TotalLen: word & lengthMask,
	}
}

// Parse reads and validates a Tag from the first 4 bytes of buf.
func Parse(buf []byte) (Tag, error) {
	if len(buf) < Size {
		return Tag{}, errdefs.Wrapf(errdefs.ErrInvalidData, "short tag buffer: %d bytes", len(buf))
	}

	t := Decode(binary.BigEndian.Uint32(buf[:Size]))
	if err := t.Validate(); err != nil {
		return Tag{}, err
	}

	return t, nil
}

// Align4 rounds n up to the next multiple of 4.
func Align4(n int) int {
	return (n + (Align - 1)) &^ (Align - 1)
}

// PadLen returns (-n) mod 4: the number of zero bytes needed to align n.
func PadLen(n int) int {
	return (Align - n%Align) % Align
}
