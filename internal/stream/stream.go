// Copyright (c) 2026 honeybbq
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// Package stream adapts a byte-oriented net.Conn into a framed UbusMsg
// reader/writer: it knows exactly how many bytes make up one message (the
// fixed 8-byte header plus however much the container tag's total_len says)
// without needing a length-prefixed transport of its own, since the wire
// format is already self-describing (spec.md §4.E, §5).
package stream

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/busline/ubus/errdefs"
	"github.com/busline/ubus/internal/blob"
	"github.com/busline/ubus/internal/tag"
	"github.com/busline/ubus/internal/wire"
)

// MaxMessageLen is a stricter ceiling than the 24-bit tag length field
// technically allows, matching the daemon's own limit (spec.md §8).
const MaxMessageLen = 64 * 1024

// Conn frames UbusMsg reads and writes over a connected net.Conn. Reads and
// writes are independently locked, so one goroutine can block in ReadMsg
// while another calls WriteMsg without fear of interleaving partial frames.
type Conn struct {
	conn net.Conn

	readMu  sync.Mutex
	writeMu sync.Mutex

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// New wraps conn for framed UbusMsg I/O.
func New(conn net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{conn: conn, readTimeout: readTimeout, writeTimeout: writeTimeout}
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// ReadMsg blocks until one complete UbusMsg has been read, ctx is done, or an
// error occurs. It reads the 8-byte header, then the container blob's 4-byte
// tag to learn the total frame length, then the remainder of the frame.
func (c *Conn) ReadMsg(ctx context.Context) (wire.Msg, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
	} else if c.readTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	} else {
		_ = c.conn.SetReadDeadline(time.Time{})
	}

	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetReadDeadline(time.Now()) })
	defer stop()

	headerBuf := make([]byte, wire.HeaderLen())
	if _, err := io.ReadFull(c.conn, headerBuf); err != nil {
		return wire.Msg{}, errdefs.Wrapf(errdefs.ErrUnexpectedClose, "read message header: %v", err)
	}

	h, err := wire.ParseHeader(headerBuf)
	if err != nil {
		return wire.Msg{}, err
	}

	if err := wire.ValidateVersion(h); err != nil {
		return wire.Msg{}, err
	}

	tagBuf := make([]byte, tag.Size)
	if _, err := io.ReadFull(c.conn, tagBuf); err != nil {
		return wire.Msg{}, errdefs.Wrapf(errdefs.ErrUnexpectedClose, "read container tag: %v", err)
	}

	containerTag, err := tag.Parse(tagBuf)
	if err != nil {
		return wire.Msg{}, err
	}

	if containerTag.TotalLen > MaxMessageLen {
		return wire.Msg{}, errdefs.Wrapf(errdefs.ErrInvalidData, "message body %d exceeds %d byte ceiling", containerTag.TotalLen, MaxMessageLen)
	}

	remaining := int(containerTag.NextOffset()) - tag.Size
	body := make([]byte, tag.Size+remaining)
	copy(body, tagBuf)

	if remaining > 0 {
		if _, err := io.ReadFull(c.conn, body[tag.Size:]); err != nil {
			return wire.Msg{}, errdefs.Wrapf(errdefs.ErrUnexpectedClose, "read message body: %v", err)
		}
	}

	attrs, _, err := wire.ParseBody(body)
	if err != nil {
		return wire.Msg{}, err
	}

	return wire.Msg{Header: h, Attrs: attrs}, nil
}

// WriteMsg serializes and writes one complete UbusMsg.
func (c *Conn) WriteMsg(ctx context.Context, h wire.Header, attrs []blob.Blob) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	encoded, err := wire.Encode(h, attrs)
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}

	if _, err := c.conn.Write(encoded); err != nil {
		return errdefs.Wrapf(errdefs.ErrConnectionFailed, "write message: %v", err)
	}

	return nil
}
