// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package events resolves performance event names into perf_event
// attributes.
//
// [ParseEvent] understands four spellings of an event:
//
//   - PAPI preset names, such as PAPI_TOT_CYC or PAPI_L1_DCM.
//   - libpfm native names, such as UOPS_RETIRED:ALL or
//     skl::UOPS_RETIRED:STALL_CYCLES:c=1. These are looked up in the event
//     list reported by "perf list -j".
//   - perf symbolic names, such as cycles, instructions or task-clock.
//   - perf PMU names, such as cpu/event=0xc0,umask=0x1/.
//
// Resolution is only supported on Linux.
package events
