// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux && !(papi && cgo)

package native

// unsupported is the library on platforms with no counter backend. Every
// operation fails with ECMP.
type unsupported struct{}

// Default returns a library that reports counters as unsupported.
func Default() Library {
	return unsupported{}
}

func (unsupported) Version() int                            { return VersionNumber(7, 1, 0, 0) }
func (unsupported) IsInitialized() InitState                { return NotInited }
func (unsupported) LibraryInit(int) int                     { return ECMP }
func (unsupported) ThreadInit() int                         { return ECMP }
func (unsupported) NumCounters() int                        { return 0 }
func (unsupported) EventNameToCode(string) (EventCode, int) { return 0, ECMP }
func (unsupported) CreateEventSet() (EventSet, int)         { return NullEventSet, ECMP }
func (unsupported) AddEvent(EventSet, EventCode) int        { return ECMP }
func (unsupported) Start(EventSet) int                      { return ECMP }
func (unsupported) Stop(EventSet, []int64) int              { return ECMP }
func (unsupported) Read(EventSet, []int64) int              { return ECMP }
func (unsupported) Reset(EventSet) int                      { return ECMP }
func (unsupported) DestroyEventSet(EventSet) int            { return ECMP }
func (unsupported) StrError(code int) string                { return StrError(code) }
