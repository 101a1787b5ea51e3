// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

// Package perf counts events with the Linux perf_event_open system call.
package perf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/aclements/go-papi/events"
)

// Target specifies what goroutine, thread, or CPU a [Counter] should monitor.
type Target interface {
	pidCPU() (pid, cpu int)
	open()
	close()
}

type targetThisGoroutine struct{}

func (targetThisGoroutine) pidCPU() (pid, cpu int) { return 0, -1 }
func (targetThisGoroutine) open()                  { runtime.LockOSThread() }
func (targetThisGoroutine) close()                 { runtime.UnlockOSThread() }

// TargetThisGoroutine monitors the calling goroutine. This will call
// [runtime.LockOSThread] on Open and [runtime.UnlockOSThread] on Close.
var TargetThisGoroutine Target = targetThisGoroutine{}

// A Counter counts a group of [events.Event]s. All events in the group are
// scheduled onto the hardware together.
type Counter struct {
	target Target
	scales []scale
	files  []*os.File // files[0] is the group leader

	running bool
	readBuf []byte
}

type scale struct {
	factor float64
	unit   string
}

// paranoidPath controls unprivileged access to perf events.
const paranoidPath = "/proc/sys/kernel/perf_event_paranoid"

// OpenCounter opens a group [Counter] for evs on target. The counter is
// initially stopped; call [Counter.Start] to start it. Callers must call
// [Counter.Close] when done.
func OpenCounter(target Target, evs ...events.Event) (*Counter, error) {
	if len(evs) == 0 {
		return nil, errors.New("perf: no events")
	}

	c := &Counter{
		target:  target,
		scales:  make([]scale, len(evs)),
		readBuf: make([]byte, 8*(3+len(evs))),
	}
	for i, ev := range evs {
		c.scales[i] = scale{1, ""}
		if es, ok := ev.(events.EventScale); ok {
			c.scales[i].factor, c.scales[i].unit = es.ScaleUnit()
		}
	}

	pid, cpu := target.pidCPU()
	target.open()
	ok := false
	defer func() {
		if !ok {
			for _, f := range c.files {
				f.Close()
			}
			target.close()
		}
	}()

	leader := -1
	for i, ev := range evs {
		attr := unix.PerfEventAttr{}
		attr.Size = uint32(unsafe.Sizeof(attr))
		if err := ev.SetAttrs(&attr); err != nil {
			return nil, fmt.Errorf("event %s: %w", ev, err)
		}
		attr.Bits = unix.PerfBitDisabled
		if i == 0 {
			attr.Read_format = unix.PERF_FORMAT_TOTAL_TIME_ENABLED |
				unix.PERF_FORMAT_TOTAL_TIME_RUNNING |
				unix.PERF_FORMAT_GROUP
		}

		fd, err := unix.PerfEventOpen(&attr, pid, cpu, leader, unix.PERF_FLAG_FD_CLOEXEC)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", ev, explainOpenError(err))
		}
		if i == 0 {
			leader = fd
		}
		c.files = append(c.files, os.NewFile(uintptr(fd), "<perf-event>"))
	}

	ok = true
	return c, nil
}

// explainOpenError adds a hint to permission errors caused by
// perf_event_paranoid.
func explainOpenError(err error) error {
	if !errors.Is(err, syscall.EACCES) && !errors.Is(err, syscall.EPERM) {
		return err
	}
	data, err2 := os.ReadFile(paranoidPath)
	val, err3 := strconv.Atoi(string(bytes.TrimSpace(data)))
	if err2 != nil || err3 != nil || val > 0 {
		return fmt.Errorf("%w (consider: echo 0 | sudo tee %s)", err, paranoidPath)
	}
	return err
}

// Len returns the number of events in c.
func (c *Counter) Len() int {
	return len(c.scales)
}

// Close closes c and unlocks the goroutine from the OS thread.
func (c *Counter) Close() {
	if c == nil || c.files == nil {
		return
	}
	for _, f := range c.files {
		f.Close()
	}
	c.files = nil
	c.running = false
	c.target.close()
}

func (c *Counter) ioctl(req uint) error {
	if c.files == nil {
		return errors.New("perf: counter is closed")
	}
	return unix.IoctlSetInt(int(c.files[0].Fd()), req, unix.PERF_IOC_FLAG_GROUP)
}

// Start starts counting. Starting a running counter does nothing.
func (c *Counter) Start() error {
	if c.running {
		return nil
	}
	if err := c.ioctl(unix.PERF_EVENT_IOC_ENABLE); err != nil {
		return err
	}
	c.running = true
	return nil
}

// Stop stops counting. Stopping a stopped counter does nothing.
func (c *Counter) Stop() error {
	if !c.running {
		return nil
	}
	if err := c.ioctl(unix.PERF_EVENT_IOC_DISABLE); err != nil {
		return err
	}
	c.running = false
	return nil
}

// Running reports whether c is counting.
func (c *Counter) Running() bool {
	return c.running
}

// Reset zeroes the event counts. It does not reset the enabled and running
// times.
func (c *Counter) Reset() error {
	return c.ioctl(unix.PERF_EVENT_IOC_RESET)
}

// Count is the value of one event in a Counter.
type Count struct {
	RawValue uint64 // The number of events while this counter was running.

	// If more events are counted than the hardware can support, the kernel
	// multiplexes them and TimeRunning < TimeEnabled. Value extrapolates
	// assuming a uniform event rate.

	TimeEnabled uint64 // Total time the Counter was started.
	TimeRunning uint64 // Total time the Counter was actually counting.

	scale scale
}

// Value returns the measured value of Count, scaled to account for time the
// counter was scheduled and any conversion factor of the event.
func (c Count) Value() (float64, string) {
	v := float64(c.RawValue)
	if c.TimeEnabled != c.TimeRunning {
		if c.TimeRunning == 0 {
			return 0, c.scale.unit
		}
		v *= float64(c.TimeEnabled) / float64(c.TimeRunning)
	}
	if c.scale.factor != 0 && c.scale.factor != 1 {
		v *= c.scale.factor
	}
	return v, c.scale.unit
}

// Sub returns c minus base, for measuring an interval.
func (c Count) Sub(base Count) Count {
	c.RawValue -= base.RawValue
	c.TimeEnabled -= base.TimeEnabled
	c.TimeRunning -= base.TimeRunning
	return c
}

// ReadOne returns the current value of the first event in c.
func (c *Counter) ReadOne() (Count, error) {
	var cs [1]Count
	if err := c.ReadGroup(cs[:]); err != nil {
		return Count{}, err
	}
	return cs[0], nil
}

// ReadGroup stores the current value of each event in c into cs.
func (c *Counter) ReadGroup(cs []Count) error {
	if c.files == nil {
		return errors.New("perf: counter is closed")
	}
	buf := c.readBuf
	if _, err := c.files[0].Read(buf); err != nil {
		return err
	}

	// Layout with PERF_FORMAT_GROUP: nr, time_enabled, time_running, values[nr].
	nr := binary.NativeEndian.Uint64(buf[0:])
	if nr != uint64(len(c.scales)) {
		return fmt.Errorf("perf: read returned %d events, expected %d", nr, len(c.scales))
	}
	enabled := binary.NativeEndian.Uint64(buf[8:])
	running := binary.NativeEndian.Uint64(buf[16:])
	for i := 0; i < len(cs) && i < len(c.scales); i++ {
		cs[i] = Count{
			RawValue:    binary.NativeEndian.Uint64(buf[24+8*i:]),
			TimeEnabled: enabled,
			TimeRunning: running,
			scale:       c.scales[i],
		}
	}
	return nil
}
