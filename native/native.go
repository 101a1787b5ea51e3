// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package native is the boundary to the process-global performance counter
// library.
//
// Nothing in this package is safe to call before the library has been
// initialized. Callers outside this module should go through
// [github.com/aclements/go-papi.Init] rather than using a [Library] directly.
package native

import "fmt"

// Status codes returned by [Library] methods. These match the values used by
// PAPI so that codes from the cgo backend can be passed through unchanged.
const (
	OK      = 0
	EINVAL  = -1  // Invalid argument
	ENOMEM  = -2  // Insufficient memory
	ESYS    = -3  // A system or C library call failed
	ECMP    = -4  // Not supported by component
	ENOEVNT = -7  // Event does not exist
	ECNFLCT = -8  // Event exists, but cannot be counted due to counter resource limitations
	ENOTRUN = -9  // Event set is currently not running
	EISRUN  = -10 // Event set is currently counting
	ENOEVST = -11 // No such event set available
	ENOCNTR = -13 // Hardware does not support performance counters
	EPERM   = -15 // Permission level does not permit operation
	ENOINIT = -16 // Library has not been initialized
)

// InitState is a bitmask reported by [Library.IsInitialized].
type InitState int

const (
	NotInited         InitState = 0
	LowLevelInited    InitState = 1
	HighLevelInited   InitState = 2
	ThreadLevelInited InitState = 4
)

// EventCode identifies a resolved event within a [Library].
type EventCode int32

// EventSet is a handle to an event set created by [Library.CreateEventSet].
type EventSet int

// NullEventSet is the handle of no event set.
const NullEventSet EventSet = -1

// Library is the surface of the native counter library.
//
// Methods return the library's status codes rather than Go errors so that the
// error taxonomy lives in one place. Except for [Library.LibraryInit], which
// returns the negotiated version on success, a return value of [OK] means
// success.
//
// The library is process-global and non-reentrant. LibraryInit and ThreadInit
// must each be called at most once per process.
type Library interface {
	// Version returns the library version this binding was built against.
	Version() int

	// IsInitialized reports whether the library has already been initialized,
	// possibly by another caller in the same process.
	IsInitialized() InitState

	// LibraryInit initializes the library, requesting version. It returns
	// the library's version, or a negative status code.
	LibraryInit(version int) int

	// ThreadInit registers the calling OS thread with the library.
	ThreadInit() int

	// NumCounters returns the number of hardware counter slots, or a
	// negative status code.
	NumCounters() int

	// EventNameToCode resolves an event name.
	EventNameToCode(name string) (EventCode, int)

	CreateEventSet() (EventSet, int)
	AddEvent(set EventSet, code EventCode) int

	// Start starts counting in set. Counts start at zero.
	Start(set EventSet) int

	// Stop stops counting in set and stores the final counts in values.
	Stop(set EventSet, values []int64) int

	// Read stores the current counts of a running set in values.
	Read(set EventSet, values []int64) int

	// Reset zeroes the counts of set.
	Reset(set EventSet) int

	// DestroyEventSet removes all events from set and frees it.
	DestroyEventSet(set EventSet) int

	// StrError returns a description of a status code.
	StrError(code int) string
}

var statusText = map[int]string{
	OK:      "no error",
	EINVAL:  "invalid argument",
	ENOMEM:  "insufficient memory",
	ESYS:    "a system or C library call failed",
	ECMP:    "not supported by component",
	ENOEVNT: "event does not exist",
	ECNFLCT: "event exists, but cannot be counted due to hardware resource limits",
	ENOTRUN: "event set is currently not running",
	EISRUN:  "event set is currently counting",
	ENOEVST: "no such event set available",
	ENOCNTR: "hardware does not support performance counters",
	EPERM:   "permission level does not permit operation",
	ENOINIT: "library has not been initialized",
}

// StrError returns the standard description of code.
func StrError(code int) string {
	if s, ok := statusText[code]; ok {
		return s
	}
	return fmt.Sprintf("unknown status %d", code)
}

// VersionNumber encodes a library version the way PAPI does.
func VersionNumber(major, minor, revision, increment int) int {
	return major<<24 | minor<<16 | revision<<8 | increment
}
