// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux && !(papi && cgo)

package native

import (
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aclements/go-papi/events"
	"github.com/aclements/go-papi/perf"
)

// newTestLibrary returns a perf library that skips the perf_event_open probe
// and opens groups with openFake, so event bookkeeping can be tested without
// counter access.
func newTestLibrary(counters int) *perfLibrary {
	return &perfLibrary{
		counters:  counters,
		state:     LowLevelInited,
		codes:     make(map[string]EventCode),
		sets:      make(map[EventSet]*perfSet),
		openGroup: openFake,
	}
}

// fakeGroup is a counterGroup that counts nothing.
type fakeGroup struct {
	n      int
	closed bool
}

func openFake(evs []events.Event) (counterGroup, error) {
	return &fakeGroup{n: len(evs)}, nil
}

func (g *fakeGroup) Start() error                 { return nil }
func (g *fakeGroup) Stop() error                  { return nil }
func (g *fakeGroup) Reset() error                 { return nil }
func (g *fakeGroup) ReadGroup([]perf.Count) error { return nil }
func (g *fakeGroup) Close()                       { g.closed = true }

func TestPerfNotInitialized(t *testing.T) {
	l := &perfLibrary{counters: defaultCounters}
	assert.Equal(t, NotInited, l.IsInitialized())
	assert.Equal(t, ENOINIT, l.ThreadInit())
	_, status := l.EventNameToCode("cycles")
	assert.Equal(t, ENOINIT, status)
	_, status = l.CreateEventSet()
	assert.Equal(t, ENOINIT, status)
}

func TestPerfVersionMismatch(t *testing.T) {
	l := &perfLibrary{counters: defaultCounters}
	assert.Equal(t, EINVAL, l.LibraryInit(VersionNumber(6, 0, 0, 0)))
	assert.Equal(t, NotInited, l.IsInitialized())
}

func TestPerfInit(t *testing.T) {
	l := &perfLibrary{counters: defaultCounters}
	// Only the major and minor version are compared.
	if v := l.LibraryInit(perfVersion | 0x0102); v != perfVersion {
		t.Skipf("perf events unavailable: %s", StrError(v))
	}
	assert.Equal(t, LowLevelInited, l.IsInitialized())
	require.Equal(t, OK, l.ThreadInit())
	assert.Equal(t, LowLevelInited|ThreadLevelInited, l.IsInitialized())
	assert.NotZero(t, l.thread)
}

func TestPerfEventCodes(t *testing.T) {
	l := newTestLibrary(defaultCounters)

	c1, status := l.EventNameToCode("cycles")
	require.Equal(t, OK, status)
	c2, status := l.EventNameToCode("task-clock")
	require.Equal(t, OK, status)
	assert.NotEqual(t, c1, c2)
	assert.NotZero(t, c1&nativeMask)

	again, status := l.EventNameToCode("cycles")
	require.Equal(t, OK, status)
	assert.Equal(t, c1, again, "codes are stable")

	_, status = l.EventNameToCode("PAPI_NOT_A_PRESET")
	assert.Equal(t, ENOEVNT, status)
}

func TestPerfAddEvent(t *testing.T) {
	l := newTestLibrary(2)
	cycles, _ := l.EventNameToCode("cycles")
	instrs, _ := l.EventNameToCode("instructions")
	branches, _ := l.EventNameToCode("branches")
	clock, _ := l.EventNameToCode("task-clock")

	set, status := l.CreateEventSet()
	require.Equal(t, OK, status)
	assert.Equal(t, OK, l.AddEvent(set, cycles))
	assert.Equal(t, OK, l.AddEvent(set, instrs))
	assert.Equal(t, ECNFLCT, l.AddEvent(set, branches), "third hardware event")
	assert.Equal(t, OK, l.AddEvent(set, clock), "software events don't use counters")
	assert.Equal(t, ENOEVNT, l.AddEvent(set, 42))
	assert.Equal(t, ENOEVNT, l.AddEvent(set, nativeMask|100))
	assert.Equal(t, ENOEVST, l.AddEvent(set+1, cycles))

	assert.Equal(t, ENOTRUN, l.Stop(set, make([]int64, 3)))
	assert.Equal(t, ENOTRUN, l.Read(set, make([]int64, 3)))
	assert.Equal(t, OK, l.Reset(set))

	assert.Equal(t, OK, l.DestroyEventSet(set))
	assert.Equal(t, ENOEVST, l.DestroyEventSet(set))
}

func TestPerfAddEventReopens(t *testing.T) {
	l := newTestLibrary(defaultCounters)
	var groups []*fakeGroup
	l.openGroup = func(evs []events.Event) (counterGroup, error) {
		g := &fakeGroup{n: len(evs)}
		groups = append(groups, g)
		return g, nil
	}
	cycles, _ := l.EventNameToCode("cycles")
	clock, _ := l.EventNameToCode("task-clock")
	set, _ := l.CreateEventSet()

	require.Equal(t, OK, l.AddEvent(set, cycles))
	require.Equal(t, OK, l.AddEvent(set, clock))
	require.Len(t, groups, 2)
	assert.True(t, groups[0].closed, "old group not closed")
	assert.False(t, groups[1].closed)
	assert.Equal(t, 2, groups[1].n)

	require.Equal(t, OK, l.DestroyEventSet(set))
	assert.True(t, groups[1].closed)
}

func TestPerfAddEventOpenFails(t *testing.T) {
	for _, tc := range []struct {
		errno syscall.Errno
		want  int
	}{
		{syscall.ENOENT, ENOEVNT},
		{syscall.EOPNOTSUPP, ENOEVNT},
		{syscall.ENOSPC, ECNFLCT},
		{syscall.EACCES, EPERM},
	} {
		l := newTestLibrary(defaultCounters)
		clock, _ := l.EventNameToCode("task-clock")
		cycles, _ := l.EventNameToCode("cycles")
		set, _ := l.CreateEventSet()
		require.Equal(t, OK, l.AddEvent(set, clock))

		// The kernel refuses the group once cycles is added.
		l.openGroup = func(evs []events.Event) (counterGroup, error) {
			return nil, fmt.Errorf("event %s: %w", evs[len(evs)-1], tc.errno)
		}
		assert.Equal(t, tc.want, l.AddEvent(set, cycles), "%v", tc.errno)

		// The set still holds only the events that opened.
		l.openGroup = openFake
		require.Equal(t, OK, l.Start(set))
		assert.Len(t, l.sets[set].evs, 1)
		assert.Zero(t, l.sets[set].hw)
	}
}

func TestPerfStartEmpty(t *testing.T) {
	l := newTestLibrary(defaultCounters)
	set, _ := l.CreateEventSet()
	assert.Equal(t, EINVAL, l.Start(set))
}

func TestPerfCount(t *testing.T) {
	l := newTestLibrary(defaultCounters)
	l.openGroup = nil
	clock, _ := l.EventNameToCode("task-clock")
	faults, _ := l.EventNameToCode("page-faults")
	set, _ := l.CreateEventSet()
	if status := l.AddEvent(set, clock); status != OK {
		t.Skipf("perf events unavailable: %s", StrError(status))
	}
	require.Equal(t, OK, l.AddEvent(set, faults))
	require.Equal(t, OK, l.Start(set))
	assert.Equal(t, EISRUN, l.Start(set))
	assert.Equal(t, EISRUN, l.AddEvent(set, clock))
	assert.Equal(t, EISRUN, l.DestroyEventSet(set))

	sum := 0
	for i := 0; i < 1000000; i++ {
		sum += i
	}
	_ = sum

	values := make([]int64, 2)
	assert.Equal(t, EINVAL, l.Read(set, values[:1]))
	require.Equal(t, OK, l.Read(set, values))
	require.Equal(t, OK, l.Stop(set, values))
	assert.Positive(t, values[0], "task-clock did not advance")
	assert.Equal(t, OK, l.DestroyEventSet(set))
}

func TestErrnoStatus(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want int
	}{
		{syscall.EACCES, EPERM},
		{fmt.Errorf("event cycles: %w", syscall.EPERM), EPERM},
		{syscall.ENOENT, ENOEVNT},
		{syscall.ENOSPC, ECNFLCT},
		{syscall.EINVAL, EINVAL},
		{syscall.EBUSY, ESYS},
		{fmt.Errorf("not an errno"), ESYS},
	} {
		assert.Equal(t, tc.want, errnoStatus(tc.err), "%v", tc.err)
	}
}
