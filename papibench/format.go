// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package papibench

import "fmt"

// A ValueFormatter rescales benchmark samples for display and returns the
// unit label of the rescaled values. Implementations modify values in place.
type ValueFormatter interface {
	// ScaleValues scales values for human display. typical is a
	// representative value, such as the mean.
	ScaleValues(typical float64, values []float64) string

	// ScaleThroughputs converts values, which are measured per iteration,
	// into throughput relative to t.
	ScaleThroughputs(typical float64, t Throughput, values []float64) string

	// ScaleForMachines scales values for machine-readable output.
	ScaleForMachines(values []float64) string
}

type throughputKind uint8

const (
	bytesBinary throughputKind = iota + 1
	bytesDecimal
	elements
)

// Throughput is the amount of work done by one benchmark iteration.
// The zero Throughput means none was set.
type Throughput struct {
	kind throughputKind
	n    uint64
}

// BytesBinary is n bytes per iteration, displayed with binary prefixes.
func BytesBinary(n uint64) Throughput { return Throughput{bytesBinary, n} }

// BytesDecimal is n bytes per iteration, displayed with decimal prefixes.
func BytesDecimal(n uint64) Throughput { return Throughput{bytesDecimal, n} }

// Elements is n elements per iteration.
func Elements(n uint64) Throughput { return Throughput{elements, n} }

// IsZero reports whether t is the zero Throughput.
func (t Throughput) IsZero() bool { return t.kind == 0 }

func (t Throughput) String() string {
	switch t.kind {
	case bytesBinary:
		return fmt.Sprintf("BytesBinary(%d)", t.n)
	case bytesDecimal:
		return fmt.Sprintf("BytesDecimal(%d)", t.n)
	case elements:
		return fmt.Sprintf("Elements(%d)", t.n)
	}
	return "Throughput()"
}

// SampleFormatter formats counter samples, which are event counts rather than
// times. Plain values are left as they are and labeled with the event name.
// Throughputs are reported as work per event, such as bytes per instruction.
type SampleFormatter struct {
	event string
}

var _ ValueFormatter = SampleFormatter{}

// NewSampleFormatter returns a SampleFormatter for counts of the named event.
func NewSampleFormatter(event string) SampleFormatter {
	return SampleFormatter{event: event}
}

// Event returns the event name f labels values with.
func (f SampleFormatter) Event() string {
	return f.event
}

func (f SampleFormatter) ScaleValues(typical float64, values []float64) string {
	return f.event
}

func (f SampleFormatter) ScaleForMachines(values []float64) string {
	return f.event
}

// ScaleThroughputs replaces each sample with the work per event. A zero
// sample yields +Inf, or NaN if the work is also zero.
func (f SampleFormatter) ScaleThroughputs(typical float64, t Throughput, values []float64) string {
	var unit string
	switch t.kind {
	case bytesBinary, bytesDecimal:
		unit = "Bytes/event"
	case elements:
		unit = "elems/event"
	default:
		return f.event
	}
	n := float64(t.n)
	for i, v := range values {
		values[i] = n / v
	}
	return unit
}
