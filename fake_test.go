// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package papi

import (
	"sync"

	"github.com/aclements/go-papi/native"
)

const fakeVersion = 0x07010000

// uncountable resolves, but AddEvent rejects it as the kernel would an event
// the hardware can't count.
const uncountable native.EventCode = 99

// fakeLibrary is an in-memory native.Library. Event names listed in events
// resolve; each added event uses one of counters slots. Started sets count
// one tick per Read.
type fakeLibrary struct {
	mu sync.Mutex

	state       native.InitState
	initResult  int // Returned by LibraryInit if non-zero
	threadFails int // Number of ThreadInit calls that fail with ESYS
	stopFails   bool

	events   map[string]native.EventCode
	counters int

	libraryInits int
	threadInits  int
	created      int
	destroyed    int

	sets map[native.EventSet]*fakeSet
	next native.EventSet
}

type fakeSet struct {
	codes   []native.EventCode
	running bool
	ticks   int64
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{
		events: map[string]native.EventCode{
			"PAPI_TOT_INS":              1,
			"PAPI_TOT_CYC":              2,
			"UOPS_RETIRED:ALL":          3,
			"UOPS_RETIRED:STALL_CYCLES": 4,
			"UNCOUNTABLE":               uncountable,
		},
		counters: 2,
		sets:     make(map[native.EventSet]*fakeSet),
	}
}

func (f *fakeLibrary) Version() int { return fakeVersion }

func (f *fakeLibrary) IsInitialized() native.InitState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeLibrary) LibraryInit(version int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.libraryInits++
	if f.initResult != 0 {
		return f.initResult
	}
	f.state |= native.LowLevelInited
	return version
}

func (f *fakeLibrary) ThreadInit() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threadInits++
	if f.threadFails > 0 {
		f.threadFails--
		return native.ESYS
	}
	f.state |= native.ThreadLevelInited
	return native.OK
}

func (f *fakeLibrary) NumCounters() int { return f.counters }

func (f *fakeLibrary) EventNameToCode(name string) (native.EventCode, int) {
	code, ok := f.events[name]
	if !ok {
		return 0, native.ENOEVNT
	}
	return code, native.OK
}

func (f *fakeLibrary) CreateEventSet() (native.EventSet, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.created++
	f.sets[id] = &fakeSet{}
	return id, native.OK
}

func (f *fakeLibrary) AddEvent(id native.EventSet, code native.EventCode) int {
	s, ok := f.sets[id]
	if !ok {
		return native.ENOEVST
	}
	if code == uncountable {
		return native.ENOEVNT
	}
	if len(s.codes) >= f.counters {
		return native.ECNFLCT
	}
	s.codes = append(s.codes, code)
	return native.OK
}

func (f *fakeLibrary) Start(id native.EventSet) int {
	s, ok := f.sets[id]
	if !ok {
		return native.ENOEVST
	}
	if s.running {
		return native.EISRUN
	}
	s.running, s.ticks = true, 0
	return native.OK
}

func (f *fakeLibrary) fill(s *fakeSet, values []int64) {
	s.ticks++
	for i, code := range s.codes {
		values[i] = s.ticks * int64(code)
	}
}

func (f *fakeLibrary) Stop(id native.EventSet, values []int64) int {
	s, ok := f.sets[id]
	if !ok {
		return native.ENOEVST
	}
	if !s.running {
		return native.ENOTRUN
	}
	s.running = false
	if f.stopFails {
		return native.ESYS
	}
	f.fill(s, values)
	return native.OK
}

func (f *fakeLibrary) Read(id native.EventSet, values []int64) int {
	s, ok := f.sets[id]
	if !ok {
		return native.ENOEVST
	}
	if !s.running {
		return native.ENOTRUN
	}
	f.fill(s, values)
	return native.OK
}

func (f *fakeLibrary) Reset(id native.EventSet) int {
	s, ok := f.sets[id]
	if !ok {
		return native.ENOEVST
	}
	s.ticks = 0
	return native.OK
}

func (f *fakeLibrary) DestroyEventSet(id native.EventSet) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sets[id]
	if !ok {
		return native.ENOEVST
	}
	if s.running {
		return native.EISRUN
	}
	delete(f.sets, id)
	f.destroyed++
	return native.OK
}

func (f *fakeLibrary) StrError(code int) string { return "fake: " + native.StrError(code) }
