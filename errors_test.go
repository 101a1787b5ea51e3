// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package papi

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aclements/go-papi/native"
)

func TestErrorMessages(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want string
	}{
		{nativeError(newFakeLibrary(), native.ENOEVNT), "PAPI error: -7 (fake: event does not exist)"},
		{&Error{Kind: KindNative, Code: native.ENOEVNT}, "PAPI error: -7 (event does not exist)"},
		{invalidEvent("BOGUS:EVENT", native.ENOEVNT), "invalid event: BOGUS:EVENT"},
		{invalidArgument(nil, "unknown preset %q", "x"), `invalid argument: unknown preset "x"`},
		{invalidArgument(errors.New("line 1: bad"), "parsing configuration"), "invalid argument: parsing configuration: line 1: bad"},
		{outOfCounters(native.ECNFLCT, "too many"), "out of hardware counters: too many"},
	} {
		assert.EqualError(t, tc.err, tc.want)
	}
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("opening: %w", nativeError(newFakeLibrary(), native.EPERM))
	assert.ErrorIs(t, err, ErrNative)
	assert.ErrorIs(t, err, &Error{Kind: KindNative, Code: native.EPERM})
	assert.NotErrorIs(t, err, &Error{Kind: KindNative, Code: native.ESYS})
	assert.NotErrorIs(t, err, ErrInvalidArgument)

	assert.ErrorIs(t, invalidEvent("x", native.ENOEVNT), ErrInvalidEvent)
	assert.ErrorIs(t, outOfCounters(native.ECNFLCT, "x"), ErrOutOfCounters)
	assert.NotErrorIs(t, outOfCounters(native.ECNFLCT, "x"), ErrInvalidEvent)

	cause := errors.New("cause")
	err = invalidArgument(cause, "wrapped")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, err, cause)

	var perr *Error
	if assert.ErrorAs(t, err, &perr) {
		assert.Equal(t, KindInvalidArgument, perr.Kind)
		assert.Equal(t, "wrapped", perr.Detail)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "out of counters", KindOutOfCounters.String())
	assert.Equal(t, "Kind(0)", Kind(0).String())
}
