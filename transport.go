// Copyright (c) 2026 honeybbq
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package ubus

import (
	"context"

	"github.com/busline/ubus/errdefs"
	"github.com/busline/ubus/internal/blob"
	"github.com/busline/ubus/internal/blobmsg"
	"github.com/busline/ubus/internal/value"
	"github.com/busline/ubus/internal/wire"
)

// writeFrame serializes and writes one UbusMsg. It is the only place that
// touches the socket's write half directly, serializing outbound frames
// behind writeMu (spec.md §5) — run-loop handlers reach it through
// replyData/replyStatus and never hold the writer lock across a blocking
// call of their own.
func (c *Connection) writeFrame(ctx context.Context, cmdType uint8, seq uint16, attrs []blob.Blob) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	h := wire.Header{Version: wire.Version, CmdType: cmdType, Seq: seq, Peer: c.peer}

	return c.conn.WriteMsg(ctx, h, attrs)
}

func (c *Connection) replyStatus(h wire.Header, code int) {
	payload := blob.EncodeUint32(uint32(code))
	status := blob.Blob{AttrID: blob.AttrStatus, Payload: payload}

	_ = c.writeFrame(context.Background(), wire.CmdStatus, h.Seq, []blob.Blob{status})
}

func (c *Connection) replyData(h wire.Header, objID uint32, result value.Value) {
	dataPayload, err := blobmsg.EncodeTable(result.Table)
	if err != nil {
		c.replyStatus(h, errdefs.StatusSystemError)

		return
	}

	attrs := []blob.Blob{
		{AttrID: blob.AttrObjID, Payload: blob.EncodeUint32(objID)},
		{AttrID: blob.AttrData, Payload: dataPayload},
	}

	if err := c.writeFrame(context.Background(), wire.CmdData, h.Seq, attrs); err != nil {
		c.logger.Warn("ubus: failed to send invoke reply data")

		return
	}

	c.replyStatus(h, errdefs.StatusOK)
}

// requestResult is the accumulated outcome of the client request pattern:
// every DATA frame's attrs, in arrival order, terminated by a STATUS.
type requestResult struct {
	frames []replyFrame
}

// doRequest implements the client request pattern shared by invoke, lookup,
// add_object, subscribe, unsubscribe, remove_object, and ping (spec.md §5):
// allocate a sequence, register a pending entry, write the request, then
// read frames until a terminal STATUS arrives.
func (c *Connection) doRequest(ctx context.Context, cmdType uint8, attrs []blob.Blob) (requestResult, error) {
	seq, err := c.nextSequence()
	if err != nil {
		return requestResult{}, err
	}

	entry, err := c.registerPending(seq)
	if err != nil {
		return requestResult{}, err
	}

	rctx := ctx

	if _, ok := ctx.Deadline(); !ok && c.replyTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, c.replyTimeout)

		defer cancel()
	}

	if err := c.writeFrame(rctx, cmdType, seq, attrs); err != nil {
		c.deregisterPending(seq, err)

		return requestResult{}, err
	}

	var result requestResult

	for {
		select {
		case frame := <-entry.ch:
			result.frames = append(result.frames, frame)

			if frame.cmdType == wire.CmdStatus {
				return result, statusError(frame.attrs)
			}
		case <-entry.done:
			if entry.err != nil {
				return requestResult{}, entry.err
			}

			return requestResult{}, errdefs.ErrUnexpectedClose
		case <-rctx.Done():
			c.deregisterPending(seq, errdefs.ErrReplyTimeout)

			return requestResult{}, errdefs.ErrReplyTimeout
		}
	}
}

// statusError decodes the Status attribute of a terminal STATUS frame into
// an error, or nil for StatusOK.
func statusError(attrs []blob.Blob) error {
	payload, ok := wire.Find(attrs, blob.AttrStatus)
	if !ok {
		return nil
	}

	code, err := blob.DecodeUint32(payload)
	if err != nil {
		return errdefs.Wrapf(errdefs.ErrInvalidData, "decode status: %v", err)
	}

	return errdefs.NewStatus(int(code))
}

// dataAttrs flattens every DATA frame's attrs from a requestResult in
// arrival order.
func (r requestResult) dataAttrs() []blob.Blob {
	var attrs []blob.Blob

	for _, f := range r.frames {
		if f.cmdType == wire.CmdData {
			attrs = append(attrs, f.attrs...)
		}
	}

	return attrs
}
