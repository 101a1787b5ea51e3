// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package papi measures hardware performance counters through a
// process-global native counter library.
//
// The native library is initialized once per process by [Init] or
// [InitWithConfig], which return a [Session]. Sessions are cheap and may be
// created freely; only the first successful call touches the library. Named
// groups of events ("presets") come from a TOML [Config]:
//
//	[presets]
//	Test1 = ["UOPS_RETIRED:ALL", "UOPS_RETIRED:STALL_CYCLES"]
//
// and are opened as an [EventSet] with [Session.OpenEventSet].
//
// By default, events are counted with Linux perf_event_open. Building with
// the "papi" tag (and cgo) binds to libpapi instead.
package papi
