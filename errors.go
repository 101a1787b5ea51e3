// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package papi

import (
	"fmt"

	"github.com/aclements/go-papi/native"
)

// Kind classifies an [Error].
type Kind int

const (
	// KindNative is a failure status reported by the native library.
	KindNative Kind = iota + 1
	// KindInvalidEvent is an event name the library cannot resolve.
	KindInvalidEvent
	// KindInvalidArgument is a bad configuration, preset, or call.
	KindInvalidArgument
	// KindOutOfCounters means an event set needs more hardware counters
	// than are available.
	KindOutOfCounters
)

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindInvalidEvent:
		return "invalid event"
	case KindInvalidArgument:
		return "invalid argument"
	case KindOutOfCounters:
		return "out of counters"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the error type returned by this package.
type Error struct {
	Kind Kind
	// Code is the native status code for KindNative errors, and otherwise
	// the native code that caused the error, if any.
	Code int
	// Detail is the event name, message, or description, depending on Kind.
	// For KindNative, it is the library's description of Code.
	Detail string
	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for use with errors.Is. Each matches any *Error of its kind.
var (
	ErrNative          = &Error{Kind: KindNative}
	ErrInvalidEvent    = &Error{Kind: KindInvalidEvent}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrOutOfCounters   = &Error{Kind: KindOutOfCounters}
)

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindNative:
		detail := e.Detail
		if detail == "" {
			detail = native.StrError(e.Code)
		}
		msg = fmt.Sprintf("PAPI error: %d (%s)", e.Code, detail)
	case KindInvalidEvent:
		msg = "invalid event: " + e.Detail
	case KindInvalidArgument:
		msg = "invalid argument: " + e.Detail
	case KindOutOfCounters:
		msg = "out of hardware counters: " + e.Detail
	default:
		msg = e.Kind.String() + ": " + e.Detail
	}
	if e.Err != nil && e.Kind != KindNative {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. If target has a
// non-zero Code, the codes must match too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == 0 || t.Code == e.Code)
}

// nativeError returns a KindNative error for code, described by lib.
func nativeError(lib native.Library, code int) error {
	return &Error{Kind: KindNative, Code: code, Detail: lib.StrError(code)}
}

func invalidEvent(name string, code int) error {
	return &Error{Kind: KindInvalidEvent, Code: code, Detail: name}
}

func invalidArgument(err error, format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Detail: fmt.Sprintf(format, args...), Err: err}
}

func outOfCounters(code int, format string, args ...any) error {
	return &Error{Kind: KindOutOfCounters, Code: code, Detail: fmt.Sprintf(format, args...)}
}
