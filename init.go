// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package papi

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/aclements/go-papi/native"
)

// guard serializes initialization of a native library. The library is
// initialized and the first caller's thread registered at most once; if
// either step fails, done stays false and the next caller tries again.
type guard struct {
	mu   sync.Mutex
	done bool
	lib  native.Library
}

var process = &guard{lib: native.Default()}

// Init initializes the native counter library if this process has not done
// so already and returns a [Session] without a configuration.
//
// The first successful call also registers the calling OS thread with the
// library. Later calls do not touch the library at all.
func Init() (*Session, error) {
	return process.init()
}

// InitWithConfig is like [Init], but attaches cfg to the returned Session.
func InitWithConfig(cfg *Config) (*Session, error) {
	s, err := process.init()
	if err != nil {
		return nil, err
	}
	s.config = cfg
	return s, nil
}

func (g *guard) init() (*Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.done {
		if err := g.initLocked(); err != nil {
			slog.Warn("PAPI initialization failed", "error", err)
			return nil, err
		}
		g.done = true
	}
	return &Session{lib: g.lib}, nil
}

func (g *guard) initLocked() error {
	// Someone else in this process may have initialized the library
	// directly, in which case initializing it again would fail.
	if g.lib.IsInitialized()&native.LowLevelInited == 0 {
		want := g.lib.Version()
		if got := g.lib.LibraryInit(want); got != want {
			return nativeError(g.lib, got)
		}
		slog.Debug("initialized PAPI library", "version", versionString(want))
	} else {
		slog.Debug("PAPI library already initialized")
	}

	if status := g.lib.ThreadInit(); status != native.OK {
		return nativeError(g.lib, status)
	}
	return nil
}

// versionString formats an encoded library version as major.minor.rev.inc.
func versionString(v int) string {
	return fmt.Sprintf("%d.%d.%d.%d", v>>24&0xff, v>>16&0xff, v>>8&0xff, v&0xff)
}
