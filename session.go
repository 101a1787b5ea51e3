// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package papi

import (
	"runtime"
	"slices"

	"github.com/aclements/go-papi/native"
)

// A Session is a handle to the initialized counter library. It is created by
// [Init] or [InitWithConfig]. Sessions share the process-wide library state
// and never need to be closed.
type Session struct {
	lib    native.Library
	config *Config
}

// Config returns the configuration attached to s, or nil.
func (s *Session) Config() *Config {
	return s.config
}

// Version returns the version of the native library as "major.minor.rev.inc".
func (s *Session) Version() string {
	return versionString(s.lib.Version())
}

// NumCounters returns the number of hardware counter slots available to an
// event set.
func (s *Session) NumCounters() int {
	return s.lib.NumCounters()
}

// OpenEventSet opens the events of the named preset in s's configuration.
func (s *Session) OpenEventSet(preset string) (*EventSet, error) {
	if s.config == nil {
		return nil, invalidArgument(nil, "no configuration for preset %q", preset)
	}
	names, ok := s.config.Preset(preset)
	if !ok {
		return nil, invalidArgument(nil, "unknown preset %q", preset)
	}
	if len(names) == 0 {
		return nil, invalidArgument(nil, "preset %q has no events", preset)
	}
	return s.OpenEvents(names...)
}

// OpenEvents opens an event set counting the named events on the calling
// goroutine, which is locked to its OS thread until the set is closed.
//
// Names are resolved by the native library. With the default perf backend,
// these may be PAPI presets such as "PAPI_TOT_INS", native names such as
// "UOPS_RETIRED:ALL", or perf event names such as "cycles" or
// "cpu/event=0x3c/".
func (s *Session) OpenEvents(names ...string) (es *EventSet, err error) {
	if len(names) == 0 {
		return nil, invalidArgument(nil, "no events")
	}

	runtime.LockOSThread()
	set, status := s.lib.CreateEventSet()
	if status != native.OK {
		runtime.UnlockOSThread()
		return nil, nativeError(s.lib, status)
	}
	defer func() {
		if err != nil {
			s.lib.DestroyEventSet(set)
			runtime.UnlockOSThread()
		}
	}()

	codes := make([]native.EventCode, len(names))
	for i, name := range names {
		code, status := s.lib.EventNameToCode(name)
		switch status {
		case native.OK:
		case native.ENOEVNT, native.EINVAL:
			return nil, invalidEvent(name, status)
		default:
			return nil, nativeError(s.lib, status)
		}

		switch status := s.lib.AddEvent(set, code); status {
		case native.OK:
		case native.ECNFLCT, native.ENOCNTR:
			return nil, outOfCounters(status, "adding %s to %d events with %d counters", name, i, s.lib.NumCounters())
		case native.ENOEVNT:
			return nil, invalidEvent(name, status)
		default:
			return nil, nativeError(s.lib, status)
		}
		codes[i] = code
	}

	return &EventSet{
		lib:   s.lib,
		set:   set,
		names: slices.Clone(names),
		codes: codes,
	}, nil
}
