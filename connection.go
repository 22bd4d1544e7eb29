// Copyright (c) 2026 honeybbq
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// Package ubus implements a client/server library for the OpenWrt ubus
// micro-IPC bus: it speaks the on-wire protocol over a UNIX domain socket,
// looking up and invoking remote objects, serving local ones, and
// publishing/subscribing to notifications.
package ubus

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/busline/ubus/errdefs"
	"github.com/busline/ubus/internal/blob"
	"github.com/busline/ubus/internal/logging"
	"github.com/busline/ubus/internal/stream"
	"github.com/busline/ubus/internal/wire"
)

const (
	defaultSocketPath   = "/var/run/ubus/ubus.sock"
	defaultDialTimeout  = 3 * time.Second
	defaultReadTimeout  = 0 // the run loop blocks indefinitely between frames by default
	defaultWriteTimeout = 3 * time.Second
	defaultReplyTimeout = 30 * time.Second
	defaultPendingLimit = 1 << 16
)

// replyFrame is one frame (DATA or the terminal STATUS) delivered to a
// pending request's waiter.
type replyFrame struct {
	cmdType uint8
	attrs   []blob.Blob
}

type pendingEntry struct {
	ch     chan replyFrame
	done   chan struct{}
	closed bool
	// err is set before done is closed when the entry is torn down without
	// a terminal STATUS frame (connection closed, context canceled).
	err error
}

// Connection is a live session with a ubus daemon: it owns the socket, the
// sequence space, the table of in-flight client requests, and the set of
// locally registered server objects. Create one with Connect, drive its read
// loop with Run (typically in its own goroutine), and release it with Close.
type Connection struct {
	conn   *stream.Conn
	logger *slog.Logger

	dialTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	replyTimeout time.Duration
	pendingLimit int

	peer uint32

	seqMu   sync.Mutex
	nextSeq uint16

	pendingMu sync.Mutex
	pending   map[uint16]*pendingEntry

	objectsMu sync.RWMutex
	objects   map[uint32]*ServerObject

	writeMu sync.Mutex

	runOnce  sync.Once
	runDone  chan struct{}
	started  bool
	closed   bool
	closedMu sync.Mutex
}

// Option configures a Connection at Connect time.
type Option func(*Connection)

// WithLogger sets the logger used for run-loop diagnostics: dropped frames,
// read failures, handler panics, and failed reply writes. Individual frames
// are not logged.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connection) {
		c.logger = logger
	}
}

// WithDialTimeout bounds how long Connect waits for the initial UNIX socket
// dial plus the HELLO handshake.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Connection) {
		c.dialTimeout = d
	}
}

// WithReadTimeout bounds how long a single Run loop read may block between
// frames. The default (0) blocks indefinitely, since the loop is meant to
// run for the connection's whole lifetime.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Connection) {
		c.readTimeout = d
	}
}

// WithWriteTimeout bounds how long a single outbound frame write may block.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Connection) {
		c.writeTimeout = d
	}
}

// WithReplyTimeout bounds how long a client request pattern (invoke, lookup,
// add_object, subscribe, unsubscribe, remove_object, ping) waits for its
// terminal STATUS frame before failing with ErrReplyTimeout.
func WithReplyTimeout(d time.Duration) Option {
	return func(c *Connection) {
		c.replyTimeout = d
	}
}

// WithPendingLimit bounds how many in-flight client requests may be
// outstanding at once, guarding against unbounded sequence-table growth.
func WithPendingLimit(n int) Option {
	return func(c *Connection) {
		c.pendingLimit = n
	}
}

// ConnectDefault dials the daemon's default socket path.
func ConnectDefault(ctx context.Context, opts ...Option) (*Connection, error) {
	return Connect(ctx, defaultSocketPath, opts...)
}

// newConnection builds a Connection with its options applied but no
// transport attached yet; Connect wires in a dialed socket, and tests wire
// in a net.Pipe half directly.
func newConnection(opts ...Option) *Connection {
	c := &Connection{
		logger:       logging.Discard(),
		dialTimeout:  defaultDialTimeout,
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
		replyTimeout: defaultReplyTimeout,
		pendingLimit: defaultPendingLimit,
		nextSeq:      1, // sequence 0 is reserved; every client request has sequence != 0
		pending:      make(map[uint16]*pendingEntry),
		objects:      make(map[uint32]*ServerObject),
		runDone:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connect dials the UNIX domain socket at sockPath and performs the HELLO
// handshake. Callers must still invoke (*Connection).Run to drive the read
// loop before issuing requests that expect a reply.
func Connect(ctx context.Context, sockPath string, opts ...Option) (*Connection, error) {
	c := newConnection(opts...)

	dialer := net.Dialer{Timeout: c.dialTimeout}

	raw, err := dialer.DialContext(ctx, "unix", sockPath)
	if err != nil {
		return nil, errdefs.Wrapf(errdefs.ErrConnectionFailed, "dial %s: %v", sockPath, err)
	}

	// The run loop's read is meant to block between frames for the
	// connection's whole lifetime by default, not time out, so
	// WithReadTimeout is an opt-in; WithReplyTimeout bounds individual
	// request waits instead.
	c.conn = stream.New(raw, c.readTimeout, c.writeTimeout)

	if err := c.handshake(ctx); err != nil {
		_ = c.conn.Close()

		return nil, err
	}

	return c, nil
}

// handshake reads exactly one UbusMsg and asserts it is HELLO, recording the
// peer id the daemon assigned this connection (spec.md §5).
func (c *Connection) handshake(ctx context.Context) error {
	hctx := ctx

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, c.dialTimeout)

		defer cancel()
	}

	msg, err := c.conn.ReadMsg(hctx)
	if err != nil {
		return errdefs.Wrapf(errdefs.ErrConnectionFailed, "read hello: %v", err)
	}

	if msg.Header.CmdType != wire.CmdHello {
		return errdefs.Wrapf(errdefs.ErrInvalidData, "expected hello")
	}

	c.peer = msg.Header.Peer

	return nil
}

// Close releases the connection. If Run is active, its failing read wakes
// pending requests with ErrUnexpectedClose and Close waits for Run to
// return; without Run, pending requests are not woken here.
func (c *Connection) Close() error {
	c.closedMu.Lock()
	if c.closed {
		c.closedMu.Unlock()

		return nil
	}

	c.closed = true
	c.closedMu.Unlock()

	err := c.conn.Close()

	c.closedMu.Lock()
	started := c.started
	c.closedMu.Unlock()

	if started {
		<-c.runDone
	}

	return err
}

// nextSequence allocates the next client request sequence, skipping 0 and
// wrapping the 16-bit space. It fails with ErrSequenceExhausted if every
// non-zero sequence in the space currently has a pending entry.
func (c *Connection) nextSequence() (uint16, error) {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()

	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	start := c.nextSeq

	for {
		seq := c.nextSeq

		c.nextSeq++
		if c.nextSeq == 0 {
			c.nextSeq = 1
		}

		if _, busy := c.pending[seq]; !busy {
			return seq, nil
		}

		if c.nextSeq == start {
			return 0, errdefs.ErrSequenceExhausted
		}
	}
}

func (c *Connection) registerPending(seq uint16) (*pendingEntry, error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if len(c.pending) >= c.pendingLimit {
		return nil, errdefs.Wrapf(errdefs.ErrSequenceExhausted, "pending limit %d reached", c.pendingLimit)
	}

	entry := &pendingEntry{ch: make(chan replyFrame, 8), done: make(chan struct{})}
	c.pending[seq] = entry

	return entry, nil
}

// deregisterPending removes a pending entry and wakes anyone still waiting
// on it with err. Used when a caller's context is canceled before a
// terminal STATUS frame arrives.
func (c *Connection) deregisterPending(seq uint16, err error) {
	c.pendingMu.Lock()
	entry, ok := c.pending[seq]
	if ok {
		delete(c.pending, seq)
	}
	c.pendingMu.Unlock()

	if ok && !entry.closed {
		entry.err = err
		entry.closed = true
		close(entry.done)
	}
}
