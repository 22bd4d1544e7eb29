// Copyright (c) 2026 honeybbq
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package stream

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/busline/ubus/internal/blob"
	"github.com/busline/ubus/internal/wire"
)

func TestWriteMsgThenReadMsg(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	clientConn := New(client, 0, time.Second)
	serverConn := New(server, time.Second, 0)

	h := wire.Header{Version: wire.Version, CmdType: wire.CmdInvoke, Seq: 5, Peer: 1}
	attrs := []blob.Blob{{AttrID: blob.AttrObjID, Payload: blob.EncodeUint32(9)}}

	errCh := make(chan error, 1)

	go func() {
		errCh <- clientConn.WriteMsg(context.Background(), h, attrs)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg, err := serverConn.ReadMsg(ctx)
	if err != nil {
		t.Fatalf("ReadMsg: %v", err)
	}

	if err := <-errCh; err != nil {
		t.Fatalf("WriteMsg: %v", err)
	}

	if msg.Header != h {
		t.Fatalf("Header = %+v, want %+v", msg.Header, h)
	}

	if len(msg.Attrs) != 1 || msg.Attrs[0].AttrID != blob.AttrObjID {
		t.Fatalf("Attrs = %+v", msg.Attrs)
	}
}

func TestReadMsgContextCancel(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	serverConn := New(server, 0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := serverConn.ReadMsg(ctx); err == nil {
		t.Fatalf("expected ReadMsg to fail when nothing is ever written")
	}
}

func TestOversizedMessageRejected(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	clientConn := New(client, 0, time.Second)
	serverConn := New(server, time.Second, 0)

	// A single attribute whose payload alone is MaxMessageLen bytes, so the
	// container tag's declared length (payload plus two tags) is just over
	// the ceiling stream.Conn enforces independently of the 24-bit wire limit.
	bigPayload := make([]byte, MaxMessageLen)

	h := wire.Header{Version: wire.Version, CmdType: wire.CmdData, Seq: 1, Peer: 1}
	attrs := []blob.Blob{{AttrID: blob.AttrData, Payload: bigPayload}}

	go func() {
		_ = clientConn.WriteMsg(context.Background(), h, attrs)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := serverConn.ReadMsg(ctx); err == nil {
		t.Fatalf("expected oversized message to be rejected")
	}
}
