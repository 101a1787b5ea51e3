// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package events

import (
	"maps"
	"slices"
	"sync"

	"golang.org/x/sys/unix"
)

type builtinEvent struct {
	pmu    uint32
	config uint64
}

type builtinTables struct {
	cpu      map[string]builtinEvent // No PMU or cpu/ PMU
	software map[string]builtinEvent // No PMU
	presets  map[string]builtinEvent // PAPI_* names, no PMU
}

func cacheConfig(level, op, result uint64) uint64 {
	return level | op<<8 | result<<16
}

// builtins holds the event names that correspond to well-known perf event
// configs and thus generally don't appear in /sys.
var builtins = sync.OnceValue(func() *builtinTables {
	t := &builtinTables{
		cpu:      make(map[string]builtinEvent),
		software: make(map[string]builtinEvent),
		presets:  make(map[string]builtinEvent),
	}
	add := func(m map[string]builtinEvent, typ uint32, config uint64, names ...string) {
		for _, name := range names {
			m[name] = builtinEvent{typ, config}
		}
	}

	// See parse-events.c:event_symbols_hw
	hw := func(config uint64, names ...string) {
		add(t.cpu, unix.PERF_TYPE_HARDWARE, config, names...)
	}
	hw(unix.PERF_COUNT_HW_CPU_CYCLES, "cpu-cycles", "cycles")
	hw(unix.PERF_COUNT_HW_INSTRUCTIONS, "instructions")
	hw(unix.PERF_COUNT_HW_CACHE_REFERENCES, "cache-references")
	hw(unix.PERF_COUNT_HW_CACHE_MISSES, "cache-misses")
	hw(unix.PERF_COUNT_HW_BRANCH_INSTRUCTIONS, "branch-instructions", "branches")
	hw(unix.PERF_COUNT_HW_BRANCH_MISSES, "branch-misses")
	hw(unix.PERF_COUNT_HW_BUS_CYCLES, "bus-cycles")
	hw(unix.PERF_COUNT_HW_STALLED_CYCLES_FRONTEND, "stalled-cycles-frontend", "idle-cycles-frontend")
	hw(unix.PERF_COUNT_HW_STALLED_CYCLES_BACKEND, "stalled-cycles-backend", "idle-cycles-backend")
	hw(unix.PERF_COUNT_HW_REF_CPU_CYCLES, "ref-cycles")

	// See parse-events.c:event_symbols_sw
	sw := func(config uint64, names ...string) {
		add(t.software, unix.PERF_TYPE_SOFTWARE, config, names...)
	}
	sw(unix.PERF_COUNT_SW_CPU_CLOCK, "cpu-clock")
	sw(unix.PERF_COUNT_SW_TASK_CLOCK, "task-clock")
	sw(unix.PERF_COUNT_SW_PAGE_FAULTS, "page-faults", "faults")
	sw(unix.PERF_COUNT_SW_CONTEXT_SWITCHES, "context-switches", "cs")
	sw(unix.PERF_COUNT_SW_CPU_MIGRATIONS, "cpu-migrations", "migrations")
	sw(unix.PERF_COUNT_SW_PAGE_FAULTS_MIN, "minor-faults")
	sw(unix.PERF_COUNT_SW_PAGE_FAULTS_MAJ, "major-faults")
	sw(unix.PERF_COUNT_SW_ALIGNMENT_FAULTS, "alignment-faults")
	sw(unix.PERF_COUNT_SW_EMULATION_FAULTS, "emulation-faults")
	sw(unix.PERF_COUNT_SW_DUMMY, "dummy")

	// PAPI presets that have a generic perf equivalent. Presets that need
	// model-specific encodings are not supported; use the native name.
	preset := func(typ uint32, config uint64, name string) {
		add(t.presets, typ, config, name)
	}
	preset(unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CPU_CYCLES, "PAPI_TOT_CYC")
	preset(unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_INSTRUCTIONS, "PAPI_TOT_INS")
	preset(unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_REF_CPU_CYCLES, "PAPI_REF_CYC")
	preset(unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_BRANCH_INSTRUCTIONS, "PAPI_BR_INS")
	preset(unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_BRANCH_MISSES, "PAPI_BR_MSP")
	preset(unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CACHE_REFERENCES, "PAPI_L3_TCA")
	preset(unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CACHE_MISSES, "PAPI_L3_TCM")
	preset(unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_STALLED_CYCLES_FRONTEND, "PAPI_STL_ICY")
	preset(unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_STALLED_CYCLES_BACKEND, "PAPI_RES_STL")

	const read, miss = unix.PERF_COUNT_HW_CACHE_OP_READ, unix.PERF_COUNT_HW_CACHE_RESULT_MISS
	preset(unix.PERF_TYPE_HW_CACHE, cacheConfig(unix.PERF_COUNT_HW_CACHE_L1D, read, miss), "PAPI_L1_DCM")
	preset(unix.PERF_TYPE_HW_CACHE, cacheConfig(unix.PERF_COUNT_HW_CACHE_L1I, read, miss), "PAPI_L1_ICM")
	preset(unix.PERF_TYPE_HW_CACHE, cacheConfig(unix.PERF_COUNT_HW_CACHE_DTLB, read, miss), "PAPI_TLB_DM")
	preset(unix.PERF_TYPE_HW_CACHE, cacheConfig(unix.PERF_COUNT_HW_CACHE_ITLB, read, miss), "PAPI_TLB_IM")

	return t
})

// resolveBuiltinEvent looks up an event that perf knows by a fixed config.
func resolveBuiltinEvent(pmu, eventName string) (builtinEvent, bool) {
	t := builtins()

	// All builtin events are either under no PMU or under cpu/.
	if !(pmu == "" || pmu == "cpu") {
		return builtinEvent{}, false
	}

	// CPU events can be used with or without a PMU name.
	if e, ok := t.cpu[eventName]; ok {
		return e, true
	}
	if pmu != "" {
		return builtinEvent{}, false
	}
	if e, ok := t.software[eventName]; ok {
		return e, true
	}
	e, ok := t.presets[eventName]
	return e, ok
}

// Presets returns the sorted names of the PAPI presets ParseEvent understands.
func Presets() []string {
	return slices.Sorted(maps.Keys(builtins().presets))
}
