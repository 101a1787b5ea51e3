// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux && !(papi && cgo)

package native

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/aclements/go-papi/events"
	"github.com/aclements/go-papi/perf"
)

// perfVersion is the version reported by the perf_event backend. Only the
// major and minor numbers take part in version checks.
var perfVersion = VersionNumber(7, 1, 0, 0)

// nativeMask marks codes of native (non-preset) events, as in PAPI.
const nativeMask = 0x40000000

// defaultCounters is the number of general-purpose counters per logical CPU
// on current x86 parts with SMT enabled. Fixed counters are not modeled.
const defaultCounters = 4

// perfLibrary implements Library on top of perf_event_open.
type perfLibrary struct {
	mu       sync.Mutex
	state    InitState
	thread   int // OS thread registered by ThreadInit
	counters int

	events []events.Event // Indexed by code &^ nativeMask
	codes  map[string]EventCode
	sets   map[EventSet]*perfSet
	next   EventSet

	// openGroup opens a counter group. If nil, groups are opened on the
	// calling goroutine with perf.OpenCounter.
	openGroup func(evs []events.Event) (counterGroup, error)
}

// counterGroup is the subset of *perf.Counter used by event sets.
type counterGroup interface {
	Start() error
	Stop() error
	Reset() error
	ReadGroup(cs []perf.Count) error
	Close()
}

type perfSet struct {
	evs     []events.Event
	hw      int // Number of evs that use a hardware counter
	counter counterGroup
	running bool
}

func (l *perfLibrary) open(evs []events.Event) (counterGroup, error) {
	if l.openGroup != nil {
		return l.openGroup(evs)
	}
	c, err := perf.OpenCounter(perf.TargetThisGoroutine, evs...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

var defaultPerf = &perfLibrary{counters: defaultCounters}

// Default returns the process-wide library backed by perf_event_open.
func Default() Library {
	return defaultPerf
}

func (l *perfLibrary) Version() int {
	return perfVersion
}

func (l *perfLibrary) IsInitialized() InitState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *perfLibrary) LibraryInit(version int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if version&0xffff0000 != perfVersion&0xffff0000 {
		return EINVAL
	}

	// Probe that this process may open counters at all.
	c, err := perf.OpenCounter(perf.TargetThisGoroutine, events.EventTaskClock)
	if err != nil {
		slog.Debug("perf_event_open probe failed", "error", err)
		return errnoStatus(err)
	}
	c.Close()

	l.state |= LowLevelInited
	l.codes = make(map[string]EventCode)
	l.sets = make(map[EventSet]*perfSet)
	return perfVersion
}

func (l *perfLibrary) ThreadInit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state&LowLevelInited == 0 {
		return ENOINIT
	}
	l.thread = unix.Gettid()
	l.state |= ThreadLevelInited
	return OK
}

func (l *perfLibrary) NumCounters() int {
	return l.counters
}

func (l *perfLibrary) EventNameToCode(name string) (EventCode, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state&LowLevelInited == 0 {
		return 0, ENOINIT
	}
	if code, ok := l.codes[name]; ok {
		return code, OK
	}
	ev, err := events.ParseEvent(name)
	if err != nil {
		slog.Debug("event resolution failed", "event", name, "error", err)
		return 0, ENOEVNT
	}
	code := EventCode(nativeMask | len(l.events))
	l.events = append(l.events, ev)
	l.codes[name] = code
	return code, OK
}

func (l *perfLibrary) CreateEventSet() (EventSet, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state&LowLevelInited == 0 {
		return NullEventSet, ENOINIT
	}
	id := l.next
	l.next++
	l.sets[id] = &perfSet{}
	return id, OK
}

// lookup returns the set for id. l.mu must be held.
func (l *perfLibrary) lookup(id EventSet) (*perfSet, int) {
	s, ok := l.sets[id]
	if !ok {
		return nil, ENOEVST
	}
	return s, OK
}

func (l *perfLibrary) AddEvent(id EventSet, code EventCode) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, status := l.lookup(id)
	if status != OK {
		return status
	}
	if s.running {
		return EISRUN
	}
	idx := int(code &^ nativeMask)
	if code&nativeMask == 0 || idx >= len(l.events) {
		return ENOEVNT
	}
	ev := l.events[idx]
	hw := events.IsHardware(ev)
	if hw && s.hw >= l.counters {
		return ECNFLCT
	}

	// Reopen the group with the new event so events the kernel can't count
	// are rejected here rather than on Start.
	evs := append(slices.Clone(s.evs), ev)
	c, err := l.open(evs)
	if err != nil {
		slog.Debug("adding event failed", "event", ev, "error", err)
		return errnoStatus(err)
	}
	if s.counter != nil {
		s.counter.Close()
	}
	s.counter = c
	s.evs = evs
	if hw {
		s.hw++
	}
	return OK
}

func (l *perfLibrary) Start(id EventSet) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, status := l.lookup(id)
	if status != OK {
		return status
	}
	if s.running {
		return EISRUN
	}
	if len(s.evs) == 0 {
		return EINVAL
	}
	if err := s.counter.Reset(); err != nil {
		return errnoStatus(err)
	}
	if err := s.counter.Start(); err != nil {
		return errnoStatus(err)
	}
	s.running = true
	return OK
}

func (l *perfLibrary) Stop(id EventSet, values []int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, status := l.lookup(id)
	if status != OK {
		return status
	}
	if !s.running {
		return ENOTRUN
	}
	if err := s.counter.Stop(); err != nil {
		return errnoStatus(err)
	}
	s.running = false
	return s.read(values)
}

func (l *perfLibrary) Read(id EventSet, values []int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, status := l.lookup(id)
	if status != OK {
		return status
	}
	if !s.running {
		return ENOTRUN
	}
	return s.read(values)
}

func (s *perfSet) read(values []int64) int {
	if len(values) < len(s.evs) {
		return EINVAL
	}
	counts := make([]perf.Count, len(s.evs))
	if err := s.counter.ReadGroup(counts); err != nil {
		return errnoStatus(err)
	}
	for i, c := range counts {
		v, _ := c.Value()
		values[i] = int64(v)
	}
	return OK
}

func (l *perfLibrary) Reset(id EventSet) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, status := l.lookup(id)
	if status != OK {
		return status
	}
	if s.counter == nil {
		return OK
	}
	if err := s.counter.Reset(); err != nil {
		return errnoStatus(err)
	}
	return OK
}

func (l *perfLibrary) DestroyEventSet(id EventSet) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, status := l.lookup(id)
	if status != OK {
		return status
	}
	if s.running {
		return EISRUN
	}
	if s.counter != nil {
		s.counter.Close()
	}
	delete(l.sets, id)
	return OK
}

func (l *perfLibrary) StrError(code int) string {
	return StrError(code)
}

// errnoStatus maps a perf_event_open failure to a status code.
func errnoStatus(err error) int {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return ESYS
	}
	switch errno {
	case syscall.EACCES, syscall.EPERM:
		return EPERM
	case syscall.ENOENT, syscall.EOPNOTSUPP:
		return ENOEVNT
	case syscall.ENOSPC:
		return ECNFLCT
	case syscall.ENOMEM:
		return ENOMEM
	case syscall.EINVAL:
		return EINVAL
	}
	return ESYS
}
