// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build papi && cgo

package native

/*
#cgo LDFLAGS: -lpapi
#include <stdlib.h>
#include <pthread.h>
#include <papi.h>

static unsigned long goPapiThreadID(void) {
	return (unsigned long)pthread_self();
}

static int goPapiThreadInit(void) {
	return PAPI_thread_init(goPapiThreadID);
}

static int goPapiVerCurrent(void) {
	return PAPI_VER_CURRENT;
}
*/
import "C"

import "unsafe"

// papiLibrary calls straight through to libpapi.
type papiLibrary struct{}

// Default returns the library backed by libpapi.
func Default() Library {
	return papiLibrary{}
}

func (papiLibrary) Version() int {
	return int(C.goPapiVerCurrent())
}

func (papiLibrary) IsInitialized() InitState {
	return InitState(C.PAPI_is_initialized())
}

func (papiLibrary) LibraryInit(version int) int {
	return int(C.PAPI_library_init(C.int(version)))
}

func (papiLibrary) ThreadInit() int {
	return int(C.goPapiThreadInit())
}

func (papiLibrary) NumCounters() int {
	return int(C.PAPI_num_cmp_hwctrs(0))
}

func (papiLibrary) EventNameToCode(name string) (EventCode, int) {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	var code C.int
	ret := C.PAPI_event_name_to_code(cs, &code)
	return EventCode(code), int(ret)
}

func (papiLibrary) CreateEventSet() (EventSet, int) {
	es := C.int(C.PAPI_NULL)
	ret := C.PAPI_create_eventset(&es)
	return EventSet(es), int(ret)
}

func (papiLibrary) AddEvent(set EventSet, code EventCode) int {
	return int(C.PAPI_add_event(C.int(set), C.int(code)))
}

func (papiLibrary) Start(set EventSet) int {
	return int(C.PAPI_start(C.int(set)))
}

func (papiLibrary) Stop(set EventSet, values []int64) int {
	return int(C.PAPI_stop(C.int(set), valuesPtr(values)))
}

func (papiLibrary) Read(set EventSet, values []int64) int {
	return int(C.PAPI_read(C.int(set), valuesPtr(values)))
}

func (papiLibrary) Reset(set EventSet) int {
	return int(C.PAPI_reset(C.int(set)))
}

func (papiLibrary) DestroyEventSet(set EventSet) int {
	es := C.int(set)
	if ret := C.PAPI_cleanup_eventset(es); ret != C.PAPI_OK {
		return int(ret)
	}
	return int(C.PAPI_destroy_eventset(&es))
}

func (papiLibrary) StrError(code int) string {
	s := C.PAPI_strerror(C.int(code))
	if s == nil {
		return StrError(code)
	}
	return C.GoString(s)
}

// valuesPtr returns a pointer to the first element of values as PAPI expects
// it, or nil for an empty slice.
func valuesPtr(values []int64) *C.longlong {
	if len(values) == 0 {
		return nil
	}
	return (*C.longlong)(unsafe.Pointer(&values[0]))
}
