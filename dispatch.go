// Copyright (c) 2026 honeybbq
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package ubus

import (
	"context"
	"log/slog"

	"github.com/busline/ubus/errdefs"
	"github.com/busline/ubus/internal/blob"
	"github.com/busline/ubus/internal/blobmsg"
	"github.com/busline/ubus/internal/value"
	"github.com/busline/ubus/internal/wire"
)

// Run drives the connection's read loop until ctx is canceled or the socket
// closes, per spec.md §6's `Connection.run()`. It owns the read half for its
// entire lifetime: correlating DATA/STATUS frames to pending client requests
// by sequence, dispatching INVOKE frames to registered server objects,
// routing NOTIFY frames to subscribed objects, and dropping anything else
// with a debug log (spec.md §5). Run must not be called more than once per
// Connection; a second call returns ErrClosed immediately.
func (c *Connection) Run(ctx context.Context) error {
	started := false

	c.runOnce.Do(func() {
		started = true

		c.closedMu.Lock()
		c.started = true
		c.closedMu.Unlock()
	})

	if !started {
		return errdefs.ErrClosed
	}

	defer close(c.runDone)

	for {
		msg, err := c.conn.ReadMsg(ctx)
		if err != nil {
			c.logger.Warn("ubus: run loop read failed, closing", slog.String("error", err.Error()))
			c.flushPending(errdefs.Wrapf(errdefs.ErrUnexpectedClose, "%v", err))

			return err
		}

		c.dispatch(msg)
	}
}

func (c *Connection) dispatch(msg wire.Msg) {
	seq := msg.Header.Seq

	c.pendingMu.Lock()
	entry, isPending := c.pending[seq]
	c.pendingMu.Unlock()

	if isPending {
		c.deliverPending(seq, entry, msg)

		return
	}

	switch msg.Header.CmdType {
	case wire.CmdInvoke:
		c.handleInvoke(msg)
	case wire.CmdNotify:
		c.handleNotify(msg)
	default:
		c.logger.Debug("ubus: dropping unmatched frame", slog.Int("cmd_type", int(msg.Header.CmdType)), slog.Int("seq", int(seq)))
	}
}

// deliverPending enqueues a DATA/STATUS frame on its waiter. On STATUS the
// entry is removed from the pending table once the frame has been delivered;
// the channel itself is left open (spec.md §5).
func (c *Connection) deliverPending(seq uint16, entry *pendingEntry, msg wire.Msg) {
	select {
	case entry.ch <- replyFrame{cmdType: msg.Header.CmdType, attrs: msg.Attrs}:
	case <-entry.done:
		return
	}

	if msg.Header.CmdType == wire.CmdStatus {
		c.pendingMu.Lock()
		delete(c.pending, seq)
		c.pendingMu.Unlock()
	}
}

func (c *Connection) flushPending(err error) {
	c.pendingMu.Lock()
	entries := make([]*pendingEntry, 0, len(c.pending))

	for seq, entry := range c.pending {
		entries = append(entries, entry)
		delete(c.pending, seq)
	}
	c.pendingMu.Unlock()

	for _, entry := range entries {
		if !entry.closed {
			entry.err = err
			entry.closed = true
			close(entry.done)
		}
	}
}

// handleInvoke routes an inbound INVOKE to the matching registered method,
// replying with DATA+STATUS(OK) on success, STATUS(NOT_FOUND) when no such
// object is registered, or STATUS(METHOD_NOT_FOUND) when the object has no
// such method. Handler panics are recovered and answered
// with STATUS(UNKNOWN_ERROR) (spec.md §5, §7).
func (c *Connection) handleInvoke(msg wire.Msg) {
	objIDPayload, ok := wire.Find(msg.Attrs, blob.AttrObjID)
	if !ok {
		return
	}

	objID, err := blob.DecodeUint32(objIDPayload)
	if err != nil {
		return
	}

	c.objectsMu.RLock()
	obj, objOK := c.objects[objID]
	c.objectsMu.RUnlock()

	if !objOK {
		c.replyStatus(msg.Header, errdefs.StatusNotFound)

		return
	}

	methodPayload, ok := wire.Find(msg.Attrs, blob.AttrMethod)
	if !ok {
		c.replyStatus(msg.Header, errdefs.StatusInvalidArgument)

		return
	}

	methodName, err := blob.DecodeString(methodPayload)
	if err != nil {
		c.replyStatus(msg.Header, errdefs.StatusInvalidArgument)

		return
	}

	handler, handlerOK := obj.Methods[methodName]
	if !handlerOK {
		c.replyStatus(msg.Header, errdefs.StatusMethodNotFound)

		return
	}

	args, err := decodeArgs(msg.Attrs)
	if err != nil {
		c.replyStatus(msg.Header, errdefs.StatusInvalidArgument)

		return
	}

	invoke := func() {
		c.runHandler(msg.Header, objID, handler, args, true)
	}

	if handler.Async {
		go invoke()
	} else {
		invoke()
	}
}

// handleNotify routes an inbound NOTIFY to the matching subscribed object's
// handler. No STATUS reply is sent to the publisher (spec.md §9 Open
// Question 3).
func (c *Connection) handleNotify(msg wire.Msg) {
	objIDPayload, ok := wire.Find(msg.Attrs, blob.AttrObjID)
	if !ok {
		return
	}

	objID, err := blob.DecodeUint32(objIDPayload)
	if err != nil {
		return
	}

	c.objectsMu.RLock()
	obj, objOK := c.objects[objID]
	c.objectsMu.RUnlock()

	if !objOK {
		return
	}

	methodPayload, ok := wire.Find(msg.Attrs, blob.AttrMethod)
	if !ok {
		return
	}

	methodName, err := blob.DecodeString(methodPayload)
	if err != nil {
		return
	}

	handler, handlerOK := obj.Methods[methodName]
	if !handlerOK {
		return
	}

	args, err := decodeArgs(msg.Attrs)
	if err != nil {
		return
	}

	invoke := func() {
		c.runHandler(msg.Header, objID, handler, args, false)
	}

	if handler.Async {
		go invoke()
	} else {
		invoke()
	}
}

// runHandler invokes a server-object method and, for INVOKE only, replies
// with DATA+STATUS. Handlers MUST NOT synchronously acquire the writer lock
// themselves; replyData/replyStatus (transport.go) do that on their behalf
// (spec.md §5).
func (c *Connection) runHandler(h wire.Header, objID uint32, handler Handler, args value.Value, reply bool) {
	result, err := c.invokeHandlerSafely(handler, args)

	if !reply {
		return
	}

	if err != nil {
		if status, ok := errdefs.IsStatus(err); ok {
			c.replyStatus(h, status.Code)

			return
		}

		c.replyStatus(h, errdefs.StatusUnknownError)

		return
	}

	c.replyData(h, objID, result)
}

func (c *Connection) invokeHandlerSafely(handler Handler, args value.Value) (result value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("ubus: handler panicked", slog.Any("recover", r))

			err = errdefs.NewStatus(errdefs.StatusUnknownError)
		}
	}()

	return handler.Fn(context.Background(), args)
}

func decodeArgs(attrs []blob.Blob) (value.Value, error) {
	dataPayload, ok := wire.FindLast(attrs, blob.AttrData)
	if !ok {
		return value.Value{Kind: value.KindTable}, nil
	}

	fields, err := blobmsg.DecodeTable(dataPayload)
	if err != nil {
		return value.Value{}, err
	}

	return value.Value{Kind: value.KindTable, Table: fields}, nil
}
