// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package events

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strconv"
	"strings"
)

// The directory and fs.FS of the event source devices. These are variables so
// they can be stubbed by tests.
var (
	pmuDir = "/sys/bus/event_source/devices"
	pmuFS  = os.DirFS(pmuDir)
)

// pmuDesc describes one PMU in /sys.
type pmuDesc struct {
	name   string
	pmu    uint32                // perf_event_attr.type
	format map[string]pmuFormat  // Keyed by symbolic field name
	events map[string]sysfsEvent // Keyed by event name
}

// pmuFormat maps a symbolic parameter onto bits of a perf_event_attr field.
type pmuFormat struct {
	name  string
	field func(*rawEvent) *uint64
	bits  []bitRange
}

type bitRange struct {
	shift int
	nBits int
}

var allBits = []bitRange{{0, 64}}

// sysfsEvent is an event alias from <pmu>/events.
type sysfsEvent struct {
	params []eventParam
	scale  float64
	unit   string
}

func fieldConfig(e *rawEvent) *uint64  { return &e.config }
func fieldConfig1(e *rawEvent) *uint64 { return &e.config1 }
func fieldConfig2(e *rawEvent) *uint64 { return &e.config2 }
func fieldPeriod(e *rawEvent) *uint64  { return &e.period }

// getFormat returns the pmuFormat for a parameter name. In
// "cpu/config=42,edge/", both "config" and "edge" are parameters.
func (d *pmuDesc) getFormat(param string) (pmuFormat, bool) {
	switch param {
	case "config":
		return pmuFormat{param, fieldConfig, allBits}, true
	case "config1":
		return pmuFormat{param, fieldConfig1, allBits}, true
	case "config2":
		return pmuFormat{param, fieldConfig2, allBits}, true
	case "period":
		return pmuFormat{param, fieldPeriod, allBits}, true
	}
	f, ok := d.format[param]
	return f, ok
}

// apply sets each parameter in params on ev.
func (d *pmuDesc) apply(ev *rawEvent, params []eventParam) error {
	for _, p := range params {
		f, ok := d.getFormat(p.k)
		if !ok {
			return fmt.Errorf("unknown parameter %q", p.k)
		}
		if err := f.set(ev, p.v); err != nil {
			return err
		}
	}
	return nil
}

// set scatters val into the bit ranges of f's field in e.
func (f pmuFormat) set(e *rawEvent, val uint64) error {
	field := f.field(e)
	width := 0
	rest := val
	for _, r := range f.bits {
		width += r.nBits
		mask := uint64(1)<<r.nBits - 1
		*field = *field&^(mask<<r.shift) | (rest&mask)<<r.shift
		rest >>= r.nBits
	}
	if rest != 0 {
		return fmt.Errorf("parameter %s=%d not in range 0-%d", f.name, val, uint64(1)<<width-1)
	}
	return nil
}

// resolveSysfsEvent resolves eventName from the PMU's events directory.
func resolveSysfsEvent(pmu *pmuDesc, eventName string, ev *rawEvent) error {
	sev, ok := pmu.events[eventName]
	if !ok {
		return errUnknownEvent
	}
	if err := pmu.apply(ev, sev.params); err != nil {
		return fmt.Errorf("%s description: %w", eventName, err)
	}
	ev.scale, ev.unit = sev.scale, sev.unit
	return nil
}

// pmus caches the description of each PMU by name.
var pmus = newLazyMap(loadPMU)

func loadPMU(name string) (*pmuDesc, error) {
	desc := &pmuDesc{
		name:   name,
		format: make(map[string]pmuFormat),
		events: make(map[string]sysfsEvent),
	}

	typ, err := fs.ReadFile(pmuFS, path.Join(name, "type"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unknown PMU %q", name)
	} else if err != nil {
		return nil, fmt.Errorf("unknown PMU %q: %w", name, err)
	}
	typ = bytes.TrimSpace(typ)
	num, err := strconv.ParseUint(string(typ), 0, 32)
	if err != nil {
		return nil, fmt.Errorf("PMU %q has malformed type %q: %w", name, typ, err)
	}
	desc.pmu = uint32(num)

	err = forEachPMUFile(path.Join(name, "format"), func(file, data string) error {
		f, err := parseFormat(data)
		if err != nil {
			return err
		}
		f.name = file
		desc.format[file] = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Event aliases. Scale and unit live in sibling files with suffixes. See
	// https://www.kernel.org/doc/Documentation/ABI/testing/sysfs-bus-event_source-devices-events
	type extra struct{ scale, unit string }
	extras := make(map[string]extra)
	err = forEachPMUFile(path.Join(name, "events"), func(file, data string) error {
		data = strings.TrimSpace(data)
		switch {
		case strings.HasSuffix(file, ".scale"):
			base := strings.TrimSuffix(file, ".scale")
			x := extras[base]
			x.scale = data
			extras[base] = x
		case strings.HasSuffix(file, ".unit"):
			base := strings.TrimSuffix(file, ".unit")
			x := extras[base]
			x.unit = data
			extras[base] = x
		case strings.HasSuffix(file, ".per-pkg"), strings.HasSuffix(file, ".snapshot"):
			// Aggregation hints. Ignore.
		default:
			params, err := parseParamList(data)
			if err != nil {
				return err
			}
			desc.events[file] = sysfsEvent{params: params, scale: 1}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for base, x := range extras {
		ev, ok := desc.events[base]
		if !ok {
			continue
		}
		if x.scale != "" {
			if ev.scale, err = strconv.ParseFloat(x.scale, 64); err != nil {
				return nil, fmt.Errorf("PMU %q event %s: bad scale: %w", name, base, err)
			}
		}
		ev.unit = x.unit
		desc.events[base] = ev
	}

	return desc, nil
}

// forEachPMUFile calls f with the name and contents of each file in dir. A
// missing dir is treated as empty.
func forEachPMUFile(dir string, f func(name, data string) error) error {
	ents, err := fs.ReadDir(pmuFS, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading %s: %w", path.Join(pmuDir, dir), err)
	}
	for _, ent := range ents {
		p := path.Join(dir, ent.Name())
		b, err := fs.ReadFile(pmuFS, p)
		if err != nil {
			return fmt.Errorf("error reading %s: %w", path.Join(pmuDir, p), err)
		}
		if err := f(ent.Name(), string(b)); err != nil {
			return fmt.Errorf("%w (from %s)", err, path.Join(pmuDir, p))
		}
	}
	return nil
}

// parseFormat parses a format file such as "config:8-15" or "config:0-7,32-35".
// See https://www.kernel.org/doc/Documentation/ABI/testing/sysfs-bus-event_source-devices-format
func parseFormat(s string) (pmuFormat, error) {
	s = strings.TrimSpace(s)
	field, ranges, ok := strings.Cut(s, ":")
	if !ok {
		return pmuFormat{}, fmt.Errorf("error parsing format %q", s)
	}
	var f pmuFormat
	switch field {
	case "config":
		f.field = fieldConfig
	case "config1":
		f.field = fieldConfig1
	case "config2":
		f.field = fieldConfig2
	default:
		return pmuFormat{}, fmt.Errorf("error parsing format %q: unknown field %s", s, field)
	}
	for _, r := range strings.Split(ranges, ",") {
		lo, hi, isRange := strings.Cut(r, "-")
		start, err := strconv.Atoi(lo)
		if err != nil {
			return pmuFormat{}, fmt.Errorf("error parsing format %q: %w", s, err)
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(hi); err != nil {
				return pmuFormat{}, fmt.Errorf("error parsing format %q: %w", s, err)
			}
		}
		f.bits = append(f.bits, bitRange{start, end - start + 1})
	}
	return f, nil
}
