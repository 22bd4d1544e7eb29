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

// Lookup queries the daemon for objects matching path. An empty path means
// "list all" (spec.md §8 boundary behavior). Order follows whatever the
// daemon returned.
func (c *Connection) Lookup(ctx context.Context, path string) ([]UbusObject, error) {
	var attrs []blob.Blob
	if path != "" {
		attrs = append(attrs, blob.Blob{AttrID: blob.AttrObjPath, Payload: blob.EncodeString(path)})
	}

	result, err := c.doRequest(ctx, wire.CmdLookup, attrs)
	if err != nil {
		return nil, err
	}

	return decodeLookupObjects(result)
}

// LookupID returns the bus-assigned id of the first object matching path, or
// ErrInvalidPath if none was found.
func (c *Connection) LookupID(ctx context.Context, path string) (uint32, error) {
	objs, err := c.Lookup(ctx, path)
	if err != nil {
		return 0, err
	}

	if len(objs) == 0 {
		return 0, errdefs.Wrapf(errdefs.ErrInvalidPath, "%s", path)
	}

	return objs[0].ID, nil
}

func decodeLookupObjects(result requestResult) ([]UbusObject, error) {
	var objects []UbusObject

	for _, frame := range result.frames {
		if frame.cmdType != wire.CmdData {
			continue
		}

		obj := UbusObject{}

		if payload, ok := wire.Find(frame.attrs, blob.AttrObjPath); ok {
			s, err := blob.DecodeString(payload)
			if err != nil {
				return nil, err
			}

			obj.Path = s
		}

		if payload, ok := wire.Find(frame.attrs, blob.AttrObjID); ok {
			id, err := blob.DecodeUint32(payload)
			if err != nil {
				return nil, err
			}

			obj.ID = id
		}

		if payload, ok := wire.Find(frame.attrs, blob.AttrObjType); ok {
			typeID, err := blob.DecodeUint32(payload)
			if err != nil {
				return nil, err
			}

			obj.TypeID = typeID
		}

		if payload, ok := wire.Find(frame.attrs, blob.AttrSignature); ok {
			fields, err := blobmsg.DecodeTable(payload)
			if err != nil {
				return nil, err
			}

			obj.Methods = fields
			obj.RawSignature = value.Value{Kind: value.KindTable, Table: fields}
		}

		objects = append(objects, obj)
	}

	return objects, nil
}

// Invoke calls method on the object identified by id with args, returning
// the decoded reply table. If several DATA frames carry a Data attribute,
// the last one received wins (spec.md §4.E).
func (c *Connection) Invoke(ctx context.Context, id uint32, method string, args value.Value) (value.Value, error) {
	dataPayload, err := blobmsg.EncodeTable(args.Table)
	if err != nil {
		return value.Value{}, err
	}

	attrs := []blob.Blob{
		{AttrID: blob.AttrObjID, Payload: blob.EncodeUint32(id)},
		{AttrID: blob.AttrMethod, Payload: blob.EncodeString(method)},
		{AttrID: blob.AttrData, Payload: dataPayload},
	}

	result, err := c.doRequest(ctx, wire.CmdInvoke, attrs)
	if err != nil {
		return value.Value{}, err
	}

	payload, ok := wire.FindLast(result.dataAttrs(), blob.AttrData)
	if !ok {
		return value.Value{Kind: value.KindTable}, nil
	}

	fields, err := blobmsg.DecodeTable(payload)
	if err != nil {
		return value.Value{}, err
	}

	return value.Value{Kind: value.KindTable, Table: fields}, nil
}

// Call composes LookupID and Invoke, accepting and returning arguments as
// JSON text.
func (c *Connection) Call(ctx context.Context, path, method, argsJSON string) (string, error) {
	id, err := c.LookupID(ctx, path)
	if err != nil {
		return "", err
	}

	args, err := value.FromJSON([]byte(argsJSON))
	if err != nil {
		return "", err
	}

	reply, err := c.Invoke(ctx, id, method, args)
	if err != nil {
		return "", err
	}

	out, err := reply.ToJSON()
	if err != nil {
		return "", err
	}

	return string(out), nil
}

// AddServer registers the object accumulated in b with the daemon, sending
// ADD_OBJECT{ObjPath, Signature}. On success it records the daemon-assigned
// id/type and returns the live ServerObject, which the run loop will
// dispatch INVOKE/NOTIFY frames to from then on.
func (c *Connection) AddServer(ctx context.Context, b *ServerObjectBuilder) (*ServerObject, error) {
	sigFields := make([]value.Field, 0, len(b.methods))

	for name := range b.methods {
		sigFields = append(sigFields, value.Field{Name: name, Value: value.Value{Kind: value.KindTable}})
	}

	sigPayload, err := blobmsg.EncodeTable(sigFields)
	if err != nil {
		return nil, err
	}

	attrs := []blob.Blob{
		{AttrID: blob.AttrObjPath, Payload: blob.EncodeString(b.path)},
		{AttrID: blob.AttrSignature, Payload: sigPayload},
	}

	result, err := c.doRequest(ctx, wire.CmdAddObject, attrs)
	if err != nil {
		return nil, err
	}

	data := result.dataAttrs()

	obj := &ServerObject{Path: b.path, Methods: b.methods}

	if payload, ok := wire.Find(data, blob.AttrObjID); ok {
		id, err := blob.DecodeUint32(payload)
		if err != nil {
			return nil, err
		}

		obj.ID = id
	}

	if payload, ok := wire.Find(data, blob.AttrObjType); ok {
		typeID, err := blob.DecodeUint32(payload)
		if err != nil {
			return nil, err
		}

		obj.TypeID = typeID
	}

	c.objectsMu.Lock()
	c.objects[obj.ID] = obj
	c.objectsMu.Unlock()

	return obj, nil
}

// RemoveObject deregisters a previously added server object from both the
// daemon and this connection's local dispatch table. Supplemented per
// spec.md §9/SPEC_FULL.md §6: REMOVE_OBJECT appears in the wire command
// table but has no spec.md client operation; it is the natural inverse of
// AddServer.
func (c *Connection) RemoveObject(ctx context.Context, id uint32) error {
	attrs := []blob.Blob{
		{AttrID: blob.AttrObjID, Payload: blob.EncodeUint32(id)},
	}

	if _, err := c.doRequest(ctx, wire.CmdRemoveObject, attrs); err != nil {
		return err
	}

	c.objectsMu.Lock()
	delete(c.objects, id)
	c.objectsMu.Unlock()

	return nil
}

// Notify publishes method/args on the server object identified by
// serverObjID to its subscribers. No reply is awaited at the DATA layer
// (spec.md §4.E); the request is still assigned a sequence for protocol
// correctness.
func (c *Connection) Notify(ctx context.Context, serverObjID uint32, method string, args value.Value) error {
	dataPayload, err := blobmsg.EncodeTable(args.Table)
	if err != nil {
		return err
	}

	attrs := []blob.Blob{
		{AttrID: blob.AttrObjID, Payload: blob.EncodeUint32(serverObjID)},
		{AttrID: blob.AttrMethod, Payload: blob.EncodeString(method)},
		{AttrID: blob.AttrData, Payload: dataPayload},
	}

	seq, err := c.nextSequence()
	if err != nil {
		return err
	}

	return c.writeFrame(ctx, wire.CmdNotify, seq, attrs)
}

// Subscribe asks the daemon to route subsequent NOTIFY frames addressed to
// targetID toward the local server object localID; the notification's
// Method attribute selects which of localID's handlers runs.
func (c *Connection) Subscribe(ctx context.Context, localID, targetID uint32) error {
	attrs := []blob.Blob{
		{AttrID: blob.AttrObjID, Payload: blob.EncodeUint32(localID)},
		{AttrID: blob.AttrTarget, Payload: blob.EncodeUint32(targetID)},
	}

	_, err := c.doRequest(ctx, wire.CmdSubscribe, attrs)

	return err
}

// Unsubscribe is the inverse of Subscribe. Supplemented per SPEC_FULL.md §6
// (wire command UNSUBSCRIBE=9, no spec.md client operation).
func (c *Connection) Unsubscribe(ctx context.Context, localID, targetID uint32) error {
	attrs := []blob.Blob{
		{AttrID: blob.AttrObjID, Payload: blob.EncodeUint32(localID)},
		{AttrID: blob.AttrTarget, Payload: blob.EncodeUint32(targetID)},
	}

	_, err := c.doRequest(ctx, wire.CmdUnsubscribe, attrs)

	return err
}

// Ping sends a PING frame and waits for STATUS. Supplemented per
// SPEC_FULL.md §6 (wire command PING=3, no spec.md client operation).
func (c *Connection) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, wire.CmdPing, nil)

	return err
}

// Invoke is a generic helper mirroring the teacher's Call[T]: it invokes
// method on id and decodes the reply (the Result) into T via Value.Decode.
func Invoke[T any](ctx context.Context, c *Connection, id uint32, method string, args value.Value) (*T, error) {
	reply, err := c.Invoke(ctx, id, method, args)
	if err != nil {
		return nil, err
	}

	var target T

	if err := reply.Decode(&target); err != nil {
		return nil, err
	}

	return &target, nil
}
