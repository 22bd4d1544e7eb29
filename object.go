// Copyright (c) 2026 honeybbq
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package ubus

import (
	"context"

	"github.com/busline/ubus/internal/value"
)

// UbusObject describes an object as returned by Lookup: a bus-assigned id,
// a type id, and its method signature (spec.md §3).
type UbusObject struct {
	Path   string
	ID     uint32
	TypeID uint32

	// Methods is the best-effort decoded projection of the Signature
	// attribute: one field per method name, with its (usually empty)
	// argument-type table as the value.
	Methods []value.Field

	// RawSignature preserves the Signature attribute exactly as decoded,
	// in addition to the Methods projection above (spec.md §9 Open
	// Question 4).
	RawSignature value.Value
}

// HandlerFunc serves one method invocation on a registered ServerObject. It
// receives the caller's decoded argument table and returns the reply table.
type HandlerFunc func(ctx context.Context, args value.Value) (value.Value, error)

// Handler is a two-variant tagged value {Sync, Async}: the dispatcher
// matches on Async rather than relying on dynamic duck-typing (spec.md
// §9 "Sync vs async handlers as a sum").
type Handler struct {
	Fn    HandlerFunc
	Async bool
}

// ServerObject is a locally registered object whose methods are dispatched
// by the connection's run loop when the daemon delivers a matching INVOKE or
// NOTIFY frame.
type ServerObject struct {
	Path    string
	ID      uint32
	TypeID  uint32
	Methods map[string]Handler
}
