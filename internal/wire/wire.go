// Copyright (c) 2026 honeybbq
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// Package wire implements the top-level UbusMsg envelope: an 8-byte header
// (version, cmd_type, sequence, peer) followed by a single plain Blob of
// attribute id UNSPEC whose payload is a concatenation of attribute Blobs
// (spec.md §3-4.E).
package wire

import (
	"encoding/binary"

	"github.com/busline/ubus/errdefs"
	"github.com/busline/ubus/internal/blob"
)

// Command types (u8), spec.md §6. The protocol-correct decimal values are
// authoritative; see spec.md §9 Open Question 1 for why this is not 0x10/0x11
// for NOTIFY/MONITOR.
const (
	CmdHello        = 0
	CmdStatus       = 1
	CmdData         = 2
	CmdPing         = 3
	CmdLookup       = 4
	CmdInvoke       = 5
	CmdAddObject    = 6
	CmdRemoveObject = 7
	CmdSubscribe    = 8
	CmdUnsubscribe  = 9
	CmdNotify       = 10
	CmdMonitor      = 11
)

// Version is the single known protocol version byte.
const Version = 0

const headerLen = 8

// Header is the fixed 8-byte prefix of every UbusMsg.
type Header struct {
	Version uint8
	CmdType uint8
	Seq     uint16
	Peer    uint32
}

// Msg is a decoded UbusMsg: a header plus its ordered attribute Blobs.
type Msg struct {
	Header Header
	Attrs  []blob.Blob
}

// Encode serializes a Msg to its wire form: the 8-byte header followed by a
// single plain Blob (attribute id UNSPEC) whose payload is the concatenation
// of attrs, each already aligned and padded.
func Encode(h Header, attrs []blob.Blob) ([]byte, error) {
	var inner []byte

	for _, a := range attrs {
		encoded, err := blob.Serialize(a.AttrID, a.Payload)
		if err != nil {
			return nil, err
		}

		inner = append(inner, encoded...)
	}

	container, err := blob.Serialize(blob.AttrUnspec, inner)
	if err != nil {
		return nil, err
	}

	out := make([]byte, headerLen, headerLen+len(container))
	out[0] = h.Version
	out[1] = h.CmdType
	binary.BigEndian.PutUint16(out[2:4], h.Seq)
	binary.BigEndian.PutUint32(out[4:8], h.Peer)
	out = append(out, container...)

	return out, nil
}

// HeaderLen returns the byte length of an encoded UbusMsg header (exported
// so stream readers know exactly how many bytes to buffer before attempting
// ParseHeader).
func HeaderLen() int { return headerLen }

// ParseHeader decodes the fixed 8-byte header prefix. It does not validate
// the version; callers decide whether a version mismatch is fatal (see
// ValidateVersion).
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < headerLen {
		return Header{}, errdefs.Wrapf(errdefs.ErrInvalidData, "short header: %d bytes", len(buf))
	}

	return Header{
		Version: buf[0],
		CmdType: buf[1],
		Seq:     binary.BigEndian.Uint16(buf[2:4]),
		Peer:    binary.BigEndian.Uint32(buf[4:8]),
	}, nil
}

// ValidateVersion fails unless h.Version is the single known protocol version.
func ValidateVersion(h Header) error {
	if h.Version != Version {
		return errdefs.Wrapf(errdefs.ErrInvalidData, "wrong version: got %d, want %d", h.Version, Version)
	}

	return nil
}

// ParseBody decodes the container Blob (attribute id UNSPEC) starting at
// buf[0] and returns its attribute Blobs in wire order, plus the number of
// body bytes consumed.
func ParseBody(buf []byte) (attrs []blob.Blob, consumed int, err error) {
	container, n, err := blob.Parse(buf)
	if err != nil {
		return nil, 0, err
	}

	if container.AttrID != blob.AttrUnspec {
		return nil, 0, errdefs.Wrapf(errdefs.ErrInvalidData, "expected container attribute UNSPEC, got %d", container.AttrID)
	}

	it := blob.NewIterator(container.Payload)

	for {
		b, ok, err := it.Next()
		if err != nil {
			return nil, 0, err
		}

		if !ok {
			break
		}

		attrs = append(attrs, b)
	}

	return attrs, n, nil
}

// Decode parses a complete UbusMsg (header + container Blob) from buf and
// returns it along with the total number of bytes consumed.
func Decode(buf []byte) (Msg, int, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return Msg{}, 0, err
	}

	attrs, consumed, err := ParseBody(buf[headerLen:])
	if err != nil {
		return Msg{}, 0, err
	}

	return Msg{Header: h, Attrs: attrs}, headerLen + consumed, nil
}

// Find returns the payload of the first attribute with the given id, or
// ok=false if absent.
func Find(attrs []blob.Blob, attrID uint8) (payload []byte, ok bool) {
	for _, a := range attrs {
		if a.AttrID == attrID {
			return a.Payload, true
		}
	}

	return nil, false
}

// FindLast returns the payload of the last attribute with the given id,
// matching spec.md §4.E's "the last Data received wins" rule for invoke replies.
func FindLast(attrs []blob.Blob, attrID uint8) (payload []byte, ok bool) {
	for i := len(attrs) - 1; i >= 0; i-- {
		if attrs[i].AttrID == attrID {
			return attrs[i].Payload, true
		}
	}

	return nil, false
}
