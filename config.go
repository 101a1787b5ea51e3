// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package papi

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"

	"github.com/BurntSushi/toml"
)

// Config is a set of named event presets. The events in a preset are in
// counter-slot order.
//
// A Config is immutable. Accessors return copies.
type Config struct {
	Presets map[string][]string `toml:"presets"`
}

// NewConfig returns a Config with a copy of presets.
func NewConfig(presets map[string][]string) *Config {
	cfg := &Config{}
	if presets != nil {
		cfg.Presets = make(map[string][]string, len(presets))
		for name, evs := range presets {
			cfg.Presets[name] = slices.Clone(evs)
		}
	}
	return cfg
}

// ParseConfig parses a TOML configuration. Presets are read from a
// "presets" table mapping names to arrays of event names. A missing table
// yields a Config with no presets. Event names are not checked.
func ParseConfig(text string) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(text, &cfg)
	if err != nil {
		return nil, invalidArgument(err, "parsing configuration")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		slog.Debug("ignoring unknown configuration keys", "keys", fmt.Sprint(undecoded))
	}
	return &cfg, nil
}

// ParseConfigFile reads and parses the configuration in path. Errors
// reading the file are returned as is; they are not [*Error]s.
func ParseConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseConfig(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Preset returns a copy of the events in the named preset.
//
// A nil Config has no presets.
func (c *Config) Preset(name string) ([]string, bool) {
	if c == nil {
		return nil, false
	}
	evs, ok := c.Presets[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(evs), true
}

// PresetNames returns the preset names in sorted order.
func (c *Config) PresetNames() []string {
	if c == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(c.Presets))
}

// Encode writes c to w as TOML that [ParseConfig] accepts.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
