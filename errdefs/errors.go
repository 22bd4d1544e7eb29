// Copyright (c) 2026 honeybbq
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// Package errdefs defines the error taxonomy shared across the codec and
// session packages: sentinel errors for structural/protocol failures, plus a
// typed Status error for non-OK terminal STATUS frames from the daemon.
package errdefs

import (
	"errors"
	"fmt"
)

// Common error types.
var (
	// ErrInvalidCommand represents an invalid command error.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrInvalidParameter represents an invalid parameter error.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrMethodNotFound represents a method not found error.
	ErrMethodNotFound = errors.New("method not found")
	// ErrNotFound represents a not found error.
	ErrNotFound = errors.New("not found")
	// ErrNoData represents a no data error.
	ErrNoData = errors.New("no data")
	// ErrPermissionDenied represents a permission denied error.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTimeout represents a daemon-reported timeout status.
	ErrTimeout = errors.New("timeout")
	// ErrNotSupported represents a not supported error.
	ErrNotSupported = errors.New("not supported")
	// ErrUnknown represents an unknown error.
	ErrUnknown = errors.New("unknown error")
	// ErrConnectionFailed represents a connection failed error.
	ErrConnectionFailed = errors.New("connection failed")
	// ErrNoMemory represents a daemon-reported out-of-memory status.
	ErrNoMemory = errors.New("no memory")
	// ErrParseError represents a daemon-reported argument parse failure.
	ErrParseError = errors.New("parse error")
	// ErrSystemError represents a daemon-reported system error status.
	ErrSystemError = errors.New("system error")

	// ErrClosed represents an operation attempted on a closed connection.
	ErrClosed = errors.New("connection closed")
	// ErrNotUnixSocket represents a path that is not a UNIX domain socket.
	ErrNotUnixSocket = errors.New("not a unix socket")
	// ErrUnsupportedAttributeType represents an unsupported attribute value type.
	ErrUnsupportedAttributeType = errors.New("unsupported attribute value type")
	// ErrInvalidBlobLength represents an invalid blob/tag length.
	ErrInvalidBlobLength = errors.New("invalid blob length")

	// ErrInvalidData represents a structural decode failure: a short buffer,
	// a bad tag length, bad alignment, invalid UTF-8, an unexpected version,
	// or an unexpected first frame.
	ErrInvalidData = errors.New("invalid data")
	// ErrInvalidBlobType represents an unrecognized attribute or value-type id.
	ErrInvalidBlobType = errors.New("invalid blob type")
	// ErrUnexpectedClose represents end-of-stream before a complete frame, or
	// before a pending request received its reply.
	ErrUnexpectedClose = errors.New("unexpected channel closed")
	// ErrInvalidPath represents a lookup that found no matching object.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidMethod represents a client-side method name validation failure.
	ErrInvalidMethod = errors.New("invalid method")
	// ErrParseArguments represents a JSON argument parse failure.
	ErrParseArguments = errors.New("failed to parse arguments")
	// ErrReplyTimeout represents a request whose reply did not arrive before
	// the configured timeout.
	ErrReplyTimeout = errors.New("reply timeout")
	// ErrSequenceExhausted represents sequence-number wraparound colliding
	// with a request that is still pending.
	ErrSequenceExhausted = errors.New("sequence space exhausted")
)

// IsInvalidCommand checks if err is ErrInvalidCommand.
func IsInvalidCommand(err error) bool { return errors.Is(err, ErrInvalidCommand) }

// IsInvalidParameter checks if err is ErrInvalidParameter.
func IsInvalidParameter(err error) bool { return errors.Is(err, ErrInvalidParameter) }

// IsMethodNotFound checks if err is ErrMethodNotFound.
func IsMethodNotFound(err error) bool { return errors.Is(err, ErrMethodNotFound) }

// IsNotFound checks if err is ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsNoData checks if err is ErrNoData.
func IsNoData(err error) bool { return errors.Is(err, ErrNoData) }

// IsPermissionDenied checks if err is ErrPermissionDenied.
func IsPermissionDenied(err error) bool { return errors.Is(err, ErrPermissionDenied) }

// IsTimeout checks if err is ErrTimeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// IsNotSupported checks if err is ErrNotSupported.
func IsNotSupported(err error) bool { return errors.Is(err, ErrNotSupported) }

// IsUnknown checks if err is ErrUnknown.
func IsUnknown(err error) bool { return errors.Is(err, ErrUnknown) }

// IsConnectionFailed checks if err is ErrConnectionFailed.
func IsConnectionFailed(err error) bool { return errors.Is(err, ErrConnectionFailed) }

// IsClosed checks if err is ErrClosed.
func IsClosed(err error) bool { return errors.Is(err, ErrClosed) }

// IsInvalidData checks if err is ErrInvalidData.
func IsInvalidData(err error) bool { return errors.Is(err, ErrInvalidData) }

// IsInvalidBlobType checks if err is ErrInvalidBlobType.
func IsInvalidBlobType(err error) bool { return errors.Is(err, ErrInvalidBlobType) }

// IsUnexpectedClose checks if err is ErrUnexpectedClose.
func IsUnexpectedClose(err error) bool { return errors.Is(err, ErrUnexpectedClose) }

// IsInvalidPath checks if err is ErrInvalidPath.
func IsInvalidPath(err error) bool { return errors.Is(err, ErrInvalidPath) }

// IsInvalidMethod checks if err is ErrInvalidMethod.
func IsInvalidMethod(err error) bool { return errors.Is(err, ErrInvalidMethod) }

// IsParseArguments checks if err is ErrParseArguments.
func IsParseArguments(err error) bool { return errors.Is(err, ErrParseArguments) }

// IsReplyTimeout checks if err is ErrReplyTimeout.
func IsReplyTimeout(err error) bool { return errors.Is(err, ErrReplyTimeout) }

// IsSequenceExhausted checks if err is ErrSequenceExhausted.
func IsSequenceExhausted(err error) bool { return errors.Is(err, ErrSequenceExhausted) }

// Status represents a non-OK terminal STATUS frame received from the daemon.
// Its Code is one of the Status* wire constants below.
type Status struct {
	Code int
}

func (s *Status) Error() string {
	return fmt.Sprintf("ubus status %d: %s", s.Code, StatusText(s.Code))
}

// Is reports whether target is also a *Status, so that errors.Is(err,
// &Status{}) matches any status failure regardless of code.
func (s *Status) Is(target error) bool {
	_, ok := target.(*Status)
	return ok
}

// Ubus wire status codes (spec.md §6).
const (
	StatusOK               = 0
	StatusInvalidCommand   = 1
	StatusInvalidArgument  = 2
	StatusMethodNotFound   = 3
	StatusNotFound         = 4
	StatusNoData           = 5
	StatusPermissionDenied = 6
	StatusTimeout          = 7
	StatusNotSupported     = 8
	StatusUnknownError     = 9
	StatusConnectionFailed = 10
	StatusNoMemory         = 11
	StatusParseError       = 12
	StatusSystemError      = 13
)

var statusText = map[int]string{
	StatusOK:               "ok",
	StatusInvalidCommand:   "invalid command",
	StatusInvalidArgument:  "invalid argument",
	StatusMethodNotFound:   "method not found",
	StatusNotFound:         "not found",
	StatusNoData:           "no data",
	StatusPermissionDenied: "permission denied",
	StatusTimeout:          "timeout",
	StatusNotSupported:     "not supported",
	StatusUnknownError:     "unknown error",
	StatusConnectionFailed: "connection failed",
	StatusNoMemory:         "no memory",
	StatusParseError:       "parse error",
	StatusSystemError:      "system error",
}

// StatusText returns the human-readable name of a ubus status code, or
// "unknown status" if the code is not recognized.
func StatusText(code int) string {
	if text, ok := statusText[code]; ok {
		return text
	}

	return "unknown status"
}

var statusSentinel = map[int]error{
	StatusInvalidCommand:   ErrInvalidCommand,
	StatusInvalidArgument:  ErrInvalidParameter,
	StatusMethodNotFound:   ErrMethodNotFound,
	StatusNotFound:         ErrNotFound,
	StatusNoData:           ErrNoData,
	StatusPermissionDenied: ErrPermissionDenied,
	StatusTimeout:          ErrTimeout,
	StatusNotSupported:     ErrNotSupported,
	StatusUnknownError:     ErrUnknown,
	StatusConnectionFailed: ErrConnectionFailed,
	StatusNoMemory:         ErrNoMemory,
	StatusParseError:       ErrParseError,
	StatusSystemError:      ErrSystemError,
}

// NewStatus wraps a ubus status code as an error. Returns nil for StatusOK.
// The returned error satisfies errors.Is against both &Status{} and the
// matching sentinel (e.g. ErrMethodNotFound for StatusMethodNotFound), so
// callers can branch on whichever granularity they need.
func NewStatus(code int) error {
	if code == StatusOK {
		return nil
	}

	err := &Status{Code: code}
	if sentinel, ok := statusSentinel[code]; ok {
		return &statusError{Status: err, sentinel: sentinel}
	}

	return err
}

type statusError struct {
	*Status
	sentinel error
}

func (s *statusError) Unwrap() error { return s.sentinel }

// IsStatus reports whether err wraps a *Status, and returns it if so.
func IsStatus(err error) (*Status, bool) {
	var wrapped *statusError
	if errors.As(err, &wrapped) {
		return wrapped.Status, true
	}

	var status *Status
	if errors.As(err, &status) {
		return status, true
	}

	return nil, false
}

// Wrapf wraps an error with a formatting message.
func Wrapf(err error, format string, a ...any) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", fmt.Sprintf(format, a...), err)
}
