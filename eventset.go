// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package papi

import (
	"runtime"
	"slices"

	"github.com/aclements/go-papi/native"
)

// An EventSet counts a group of events on one OS thread.
//
// An EventSet is bound to the goroutine that opened it and is not safe for
// concurrent use.
type EventSet struct {
	lib     native.Library
	set     native.EventSet
	names   []string
	codes   []native.EventCode
	running bool
	closed  bool
}

// Names returns the event names in counter order.
func (es *EventSet) Names() []string {
	return slices.Clone(es.names)
}

// Len returns the number of events in es.
func (es *EventSet) Len() int {
	return len(es.names)
}

func (es *EventSet) check() error {
	if es.closed {
		return invalidArgument(nil, "event set is closed")
	}
	return nil
}

func (es *EventSet) checkValues(values []int64) error {
	if len(values) != len(es.names) {
		return invalidArgument(nil, "got %d values for %d events", len(values), len(es.names))
	}
	return nil
}

// Start starts counting from zero.
func (es *EventSet) Start() error {
	if err := es.check(); err != nil {
		return err
	}
	if es.running {
		return invalidArgument(nil, "event set is already running")
	}
	if status := es.lib.Start(es.set); status != native.OK {
		return nativeError(es.lib, status)
	}
	es.running = true
	return nil
}

// Stop stops counting and stores the final counts in values, which must have
// length es.Len().
func (es *EventSet) Stop(values []int64) error {
	if err := es.check(); err != nil {
		return err
	}
	if err := es.checkValues(values); err != nil {
		return err
	}
	if !es.running {
		return invalidArgument(nil, "event set is not running")
	}
	if status := es.lib.Stop(es.set, values); status != native.OK {
		return nativeError(es.lib, status)
	}
	es.running = false
	return nil
}

// Read stores the current counts in values without stopping.
func (es *EventSet) Read(values []int64) error {
	if err := es.check(); err != nil {
		return err
	}
	if err := es.checkValues(values); err != nil {
		return err
	}
	switch status := es.lib.Read(es.set, values); status {
	case native.OK:
		return nil
	case native.ENOTRUN:
		return invalidArgument(nil, "event set has not been started")
	default:
		return nativeError(es.lib, status)
	}
}

// Reset zeroes the counts.
func (es *EventSet) Reset() error {
	if err := es.check(); err != nil {
		return err
	}
	if status := es.lib.Reset(es.set); status != native.OK {
		return nativeError(es.lib, status)
	}
	return nil
}

// Close stops es if it is running and releases it. Closing a closed set
// does nothing.
func (es *EventSet) Close() error {
	if es.closed {
		return nil
	}
	stopStatus := native.OK
	if es.running {
		stopStatus = es.lib.Stop(es.set, make([]int64, len(es.names)))
		es.running = false
	}
	status := es.lib.DestroyEventSet(es.set)
	es.closed = true
	runtime.UnlockOSThread()
	if status == native.OK {
		status = stopStatus
	}
	if status != native.OK {
		return nativeError(es.lib, status)
	}
	return nil
}
