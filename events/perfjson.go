// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// perfJson is one entry of "perf list -j". Model-specific events are listed
// there with names like "uops_retired.stall_cycles", which is how libpfm
// native names like UOPS_RETIRED:STALL_CYCLES are found.
type perfJson struct {
	Unit             string
	Topic            string
	EventName        string
	EventAlias       string
	EventType        string
	ScaleUnit        string
	BriefDescription string
	Encoding         string
}

var perfErrRe = regexp.MustCompile(`\}Error: .*`)

// perfListHook, if set, replaces running "perf list -j". Used by tests.
var perfListHook func(outBuf io.Writer)

var getPerfList = sync.OnceValues(func() (map[string]perfJson, error) {
	var outBuf, errBuf bytes.Buffer
	var err error
	if perfListHook != nil {
		perfListHook(&outBuf)
	} else {
		cmd := exec.Command("perf", "list", "-j")
		cmd.Stdout = &outBuf
		cmd.Stderr = &errBuf
		err = cmd.Run()
	}
	return parsePerfList(outBuf.Bytes(), errBuf.Bytes(), err)
})

// parsePerfList returns the events in the output of "perf list -j", keyed by
// lower-case event name and alias.
func parsePerfList(data, errOut []byte, err error) (map[string]perfJson, error) {
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("perf command not found; cannot enumerate native events")
		}
		if len(errOut) != 0 {
			out := string(errOut)
			if strings.Contains(out, "Error: unknown switch `j'") {
				// JSON output needs linux-tools 6.2 or later.
				return nil, fmt.Errorf("perf version must be >= 6.2; cannot enumerate native events")
			}
			return nil, fmt.Errorf("perf list -j failed:\n%s", strings.TrimSpace(out))
		}
		return nil, fmt.Errorf("perf list -j failed: %w", err)
	}

	// Some perf versions interleave errors with the JSON on stdout.
	data = perfErrRe.ReplaceAllLiteral(data, []byte(`}`))
	var list []perfJson
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("error decoding perf list -j output: %w", err)
	}

	m := make(map[string]perfJson)
	for _, ev := range list {
		for _, name := range []string{ev.EventName, ev.EventAlias} {
			if name != "" {
				m[strings.ToLower(name)] = ev
			}
		}
	}
	return m, nil
}

// resolvePerfJsonEvent resolves a model-specific event of the core PMU.
func resolvePerfJsonEvent(pmu *pmuDesc, eventName string, ev *rawEvent) error {
	if pmu.pmu != unix.PERF_TYPE_RAW {
		return errUnknownEvent
	}
	list, err := getPerfList()
	if err != nil {
		return err
	}
	pj, ok := list[strings.ToLower(eventName)]
	if !ok {
		return errUnknownEvent
	}
	return pj.apply(pmu, ev)
}

// apply sets the encoding, scale and unit of pj on ev.
func (pj *perfJson) apply(pmu *pmuDesc, ev *rawEvent) error {
	if pj.Encoding == "" {
		return fmt.Errorf("unsupported event %q: no encoding from perf list -j", pj.EventName)
	}
	pmuName, params, err := parsePMUEvent(pj.Encoding)
	if err == nil && pmuName != "cpu" {
		err = fmt.Errorf("expected PMU %q", "cpu")
	}
	if err != nil {
		return fmt.Errorf("unexpected encoding %q from perf list -j: %w", pj.Encoding, err)
	}

	scale, unit := 1.0, ""
	if pj.ScaleUnit != "" {
		n, err := fmt.Sscanf(pj.ScaleUnit, "%g%s", &scale, &unit)
		if n == 1 && err == io.EOF {
			// No unit.
			err = nil
		}
		if err != nil {
			return fmt.Errorf("unexpected ScaleUnit %q from perf list -j: %w", pj.ScaleUnit, err)
		}
	}

	if err := pmu.apply(ev, params); err != nil {
		return fmt.Errorf("encoding %q from perf list -j: %w", pj.Encoding, err)
	}
	ev.scale, ev.unit = scale, unit
	return nil
}
