// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package papibench reports hardware performance counters from Go
// benchmarks.
package papibench

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/aclements/go-papi"
)

// Counters is a set of performance counters that will be reported in benchmark
// results.
type Counters struct {
	b  testingB
	bN int

	set        eventSet
	formatters []SampleFormatter
	throughput Throughput

	running bool
	total   []int64 // Counts accumulated over stopped intervals
	buf     []int64
}

// testingB is the *testing.B interface needed by Counters. Used for testing.
type testingB interface {
	ReportMetric(n float64, unit string)
	Logf(format string, args ...any)
	Cleanup(func())
}

// eventSet is the subset of *papi.EventSet used by Counters.
type eventSet interface {
	Names() []string
	Start() error
	Stop(values []int64) error
	Read(values []int64) error
	Reset() error
	Close() error
}

var (
	openErrors sync.Map
	unitsSeen  sync.Map

	unitOut io.Writer = os.Stdout
)

// Open starts the counters of the named preset in s's configuration for
// benchmark b. These counters will be reported as metrics when the benchmark
// ends. The counters only count events on the calling goroutine.
//
// The counters are running on return. In general, any calls to b.StopTimer,
// b.StartTimer, or b.ResetTimer should be paired with the equivalent calls on
// Counters.
//
// The final value of the counters is captured in a b.Cleanup function. If the
// benchmark does substantial other work in cleanup functions, it may want to
// explicitly call [Counters.Stop] before returning.
//
// If the preset cannot be opened, the error is logged once and the returned
// Counters does nothing.
func Open(b *testing.B, s *papi.Session, preset string) *Counters {
	es, err := s.OpenEventSet(preset)
	if err != nil {
		return open(b, b.N, nil, err)
	}
	return open(b, b.N, es, nil)
}

// OpenEvents is like [Open], but counts the named events rather than a
// preset.
func OpenEvents(b *testing.B, s *papi.Session, names ...string) *Counters {
	es, err := s.OpenEvents(names...)
	if err != nil {
		return open(b, b.N, nil, err)
	}
	return open(b, b.N, es, nil)
}

func open(b testingB, bN int, set eventSet, err error) *Counters {
	cs := &Counters{b: b, bN: bN}
	if err != nil {
		// Only report each error once, to avoid flooding benchmark log.
		msg := fmt.Sprintf("error opening counters: %v", err)
		if _, prev := openErrors.Swap(msg, true); !prev {
			b.Logf("%s", msg)
		}
		return cs
	}

	cs.set = set
	for _, name := range set.Names() {
		cs.formatters = append(cs.formatters, NewSampleFormatter(name))
	}
	cs.total = make([]int64, len(cs.formatters))
	cs.buf = make([]int64, len(cs.formatters))

	b.Cleanup(cs.close)
	cs.Start()
	return cs
}

// SetBytes records the number of bytes processed by one iteration, like
// [testing.B.SetBytes]. Counters are then also reported as bytes per event.
func (cs *Counters) SetBytes(n int64) {
	cs.throughput = BytesBinary(uint64(n))
}

// SetBytesDecimal is like SetBytes, for sizes displayed with decimal prefixes.
func (cs *Counters) SetBytesDecimal(n int64) {
	cs.throughput = BytesDecimal(uint64(n))
}

// SetElements records the number of elements processed by one iteration.
// Counters are then also reported as elements per event.
func (cs *Counters) SetElements(n int64) {
	cs.throughput = Elements(uint64(n))
}

func (cs *Counters) logf(format string, args ...any) {
	cs.b.Logf(format, args...)
}

// Start resumes counting after [Counters.Stop].
func (cs *Counters) Start() {
	if cs.set == nil || cs.running {
		return
	}
	if err := cs.set.Start(); err != nil {
		cs.logf("error starting counters: %v", err)
		return
	}
	cs.running = true
}

// Stop pauses counting. Counts accumulate across Stop and Start.
func (cs *Counters) Stop() {
	if cs.set == nil || !cs.running {
		return
	}
	cs.running = false
	if err := cs.set.Stop(cs.buf); err != nil {
		cs.logf("error stopping counters: %v", err)
		return
	}
	for i, v := range cs.buf {
		cs.total[i] += v
	}
}

// Reset zeroes the counts.
func (cs *Counters) Reset() {
	if cs.set == nil {
		return
	}
	clear(cs.total)
	if cs.running {
		if err := cs.set.Reset(); err != nil {
			cs.logf("error resetting counters: %v", err)
		}
	}
}

// Total returns the total count of the named event. If the event is unknown
// or the counters could not be opened, this returns 0, false.
func (cs *Counters) Total(name string) (float64, bool) {
	for i, f := range cs.formatters {
		if f.Event() != name {
			continue
		}
		v := cs.total[i]
		if cs.running {
			if err := cs.set.Read(cs.buf); err != nil {
				return 0, false
			}
			v += cs.buf[i]
		}
		return float64(v), true
	}
	return 0, false
}

func (cs *Counters) close() {
	if cs.set == nil {
		return
	}
	cs.Stop()
	for i, f := range cs.formatters {
		cs.report(f, float64(cs.total[i])/float64(cs.bN))
	}
	if err := cs.set.Close(); err != nil {
		cs.logf("error closing counters: %v", err)
	}
	cs.set = nil
}

// report reports one event's per-iteration count, and the throughput per
// event if one was set.
func (cs *Counters) report(f SampleFormatter, perOp float64) {
	unit := f.Event() + "/op"
	printUnit(unit, "lower")
	cs.b.ReportMetric(perOp, unit)

	if cs.throughput.IsZero() || perOp == 0 {
		return
	}
	vals := []float64{perOp}
	unit = f.ScaleThroughputs(perOp, cs.throughput, vals)
	unit = strings.Replace(unit, "event", f.Event(), 1)
	printUnit(unit, "higher")
	cs.b.ReportMetric(vals[0], unit)
}

// printUnit prints benchmark unit metadata the first time unit is reported.
func printUnit(unit, better string) {
	if _, prev := unitsSeen.Swap(unit, true); !prev {
		fmt.Fprintf(unitOut, "Unit %s better=%s\n", unit, better)
	}
}
