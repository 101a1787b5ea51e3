// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package events

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

type rawEvent struct {
	name    string
	pmu     uint32
	config  uint64
	config1 uint64
	config2 uint64
	period  uint64
	scale   float64
	unit    string
}

func (e *rawEvent) String() string {
	return e.name
}

func (e *rawEvent) SetAttrs(attr *unix.PerfEventAttr) error {
	attr.Type = e.pmu
	attr.Config = e.config
	attr.Ext1 = e.config1
	attr.Ext2 = e.config2
	attr.Sample = e.period // Union of sample_period and sample_freq
	return nil
}

func (e *rawEvent) ScaleUnit() (float64, string) {
	if e.scale == 0 {
		return 1, e.unit
	}
	return e.scale, e.unit
}

// ParseEvent resolves an event name. See the package documentation for the
// accepted forms.
func ParseEvent(name string) (Event, error) {
	if name == "" {
		return nil, fmt.Errorf("empty event name")
	}

	var ev *rawEvent
	pmu, params, err := parsePMUEvent(name)
	switch {
	case err == nil:
		ev, err = resolveEvent(name, pmu, params)
	case err != errNotPMUEvent:
		return nil, err
	case strings.Contains(name, ":"):
		ev, err = resolveNativeEvent(name)
	default:
		// Symbolic event or PAPI preset.
		ev, err = resolveEvent(name, "", []eventParam{{k: name, kOnly: true}})
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

var errNotPMUEvent = errors.New("not a PMU format event")

// parsePMUEvent parses symbolic PMU event strings in the form pmu/k=v,.../
func parsePMUEvent(name string) (pmu string, params []eventParam, err error) {
	if strings.Count(name, "/") != 2 || strings.HasPrefix(name, "/") || !strings.HasSuffix(name, "/") {
		return "", nil, errNotPMUEvent
	}
	pmu, rest, _ := strings.Cut(name, "/")
	params, err = parseParamList(strings.TrimSuffix(rest, "/"))
	if err != nil {
		return "", nil, fmt.Errorf("event %q: %w", name, err)
	}
	return pmu, params, nil
}

type eventParam struct {
	k     string
	v     uint64
	kOnly bool // Param may be an event name or k=1
}

// parseParamList parses a comma-separated list of k and k=v items. A lone k
// means k=1 unless it turns out to be an event name. See
// https://www.kernel.org/doc/Documentation/ABI/testing/sysfs-bus-event_source-devices-events.
func parseParamList(list string) ([]eventParam, error) {
	var params []eventParam
	for _, s := range strings.Split(list, ",") {
		p, err := parseParam(s)
		if err != nil {
			return nil, fmt.Errorf("error parsing event param list %q: %w", list, err)
		}
		params = append(params, p)
	}
	return params, nil
}

func parseParam(s string) (eventParam, error) {
	k, vs, ok := strings.Cut(s, "=")
	if k == "" {
		return eventParam{}, fmt.Errorf("missing parameter name in %q", s)
	}
	if !ok {
		return eventParam{k, 1, true}, nil
	}
	// Decimal, hex, or octal.
	v, err := strconv.ParseUint(vs, 0, 64)
	if err != nil {
		return eventParam{}, fmt.Errorf("parameter %q not a number", s)
	}
	return eventParam{k, v, false}, nil
}

// eventResolver resolves a named event of pmu into ev, or returns
// errUnknownEvent.
type eventResolver func(pmu *pmuDesc, eventName string, ev *rawEvent) error

// errUnknownEvent is an internal error returned by eventResolver.
var errUnknownEvent = errors.New("unknown event")

var eventResolvers = []eventResolver{
	resolveSysfsEvent,
	resolvePerfJsonEvent,
}

// lookupNamed tries each resolver for eventName. It reports false if none
// knows the event.
func lookupNamed(pmu *pmuDesc, eventName string, ev *rawEvent) (bool, error) {
	for _, r := range eventResolvers {
		err := r(pmu, eventName, ev)
		if err == nil {
			return true, nil
		}
		if err != errUnknownEvent {
			return false, err
		}
	}
	return false, nil
}

// resolveEvent resolves an event in the form pmu/param1=N,.../ or a symbolic
// event. Symbolic events have pmu == "" and a single kOnly param.
func resolveEvent(enc string, pmu string, params []eventParam) (*rawEvent, error) {
	// Events with fixed perf configs take priority over anything in /sys and
	// can't be combined with other parameters.
	if len(params) == 1 && params[0].kOnly {
		if b, ok := resolveBuiltinEvent(pmu, params[0].k); ok {
			return &rawEvent{name: enc, pmu: b.pmu, config: b.config, scale: 1}, nil
		}
	}
	if strings.HasPrefix(enc, "PAPI_") {
		return nil, fmt.Errorf("unsupported preset %q", enc)
	}

	symbolic := pmu == ""
	if symbolic {
		pmu = "cpu"
	}
	desc, err := pmus.get(pmu)
	if err != nil {
		return nil, err
	}

	ev := &rawEvent{name: enc, pmu: desc.pmu, scale: 1}
	var named string
	var explicit []eventParam
	for _, p := range params {
		if _, ok := desc.getFormat(p.k); ok {
			explicit = append(explicit, p)
			continue
		}
		if p.kOnly {
			scratch := rawEvent{pmu: desc.pmu}
			found, err := lookupNamed(desc, p.k, &scratch)
			if err != nil {
				return nil, err
			}
			if found {
				if named != "" {
					return nil, fmt.Errorf("event %q: multiple events %q and %q", enc, named, p.k)
				}
				named = p.k
				ev.config, ev.config1, ev.config2, ev.period = scratch.config, scratch.config1, scratch.config2, scratch.period
				ev.scale, ev.unit = scratch.scale, scratch.unit
				continue
			}
		}
		if symbolic {
			return nil, fmt.Errorf("unknown event %q", enc)
		}
		return nil, fmt.Errorf("event %q: unknown event or parameter %q", enc, p.k)
	}

	// Explicit parameters override the named event's, regardless of order.
	if err := desc.apply(ev, explicit); err != nil {
		return nil, fmt.Errorf("event %q: %w", enc, err)
	}
	return ev, nil
}

// nativeModifiers maps libpfm modifier letters to sysfs format names.
var nativeModifiers = map[string]string{
	"c": "cmask",
	"e": "edge",
	"i": "inv",
}

// resolveNativeEvent resolves a libpfm-style name [pmu::]EVENT[:UMASK][:mod=val...]
// against the core PMU. The libpfm PMU prefix names a CPU model rather than
// a perf PMU, so it is ignored.
func resolveNativeEvent(enc string) (*rawEvent, error) {
	rest := enc
	if i := strings.Index(rest, "::"); i >= 0 {
		rest = rest[i+2:]
	}
	fields := strings.Split(rest, ":")
	if fields[0] == "" {
		return nil, fmt.Errorf("event %q: missing event name", enc)
	}

	name := strings.ToLower(fields[0])
	var mods []eventParam
	haveUmask := false
	for _, f := range fields[1:] {
		if k, ok := nativeModifiers[strings.SplitN(f, "=", 2)[0]]; ok {
			p, err := parseParam(f)
			if err != nil {
				return nil, fmt.Errorf("event %q: %w", enc, err)
			}
			p.k, p.kOnly = k, false
			mods = append(mods, p)
			continue
		}
		if strings.Contains(f, "=") {
			return nil, fmt.Errorf("event %q: unsupported modifier %q", enc, f)
		}
		if haveUmask {
			return nil, fmt.Errorf("event %q: multiple unit masks are not supported", enc)
		}
		name += "." + strings.ToLower(f)
		haveUmask = true
	}

	desc, err := pmus.get("cpu")
	if err != nil {
		return nil, err
	}
	ev := &rawEvent{name: enc, pmu: desc.pmu, scale: 1}
	found, err := lookupNamed(desc, name, ev)
	if err != nil {
		return nil, fmt.Errorf("event %q: %w", enc, err)
	}
	if !found {
		return nil, fmt.Errorf("unknown event %q", enc)
	}
	if err := desc.apply(ev, mods); err != nil {
		return nil, fmt.Errorf("event %q: %w", enc, err)
	}
	return ev, nil
}
