// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package papi

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
[presets]
Test1 = ["UOPS_RETIRED:ALL", "UOPS_RETIRED:STALL_CYCLES"]
Test2 = ["PAPI_TOT_INS"]
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(testConfig)
	require.NoError(t, err)
	assert.Equal(t, []string{"Test1", "Test2"}, cfg.PresetNames())

	evs, ok := cfg.Preset("Test1")
	require.True(t, ok)
	assert.Equal(t, []string{"UOPS_RETIRED:ALL", "UOPS_RETIRED:STALL_CYCLES"}, evs)

	// Preset returns a copy.
	evs[0] = "changed"
	evs, _ = cfg.Preset("Test1")
	assert.Equal(t, "UOPS_RETIRED:ALL", evs[0])

	_, ok = cfg.Preset("Test3")
	assert.False(t, ok)
}

func TestParseConfigNoPresets(t *testing.T) {
	for _, text := range []string{"", "# nothing\n", "other = 1\n[misc]\nx = \"y\"\n"} {
		cfg, err := ParseConfig(text)
		require.NoError(t, err, "%q", text)
		assert.Empty(t, cfg.PresetNames())
		_, ok := cfg.Preset("Test1")
		assert.False(t, ok)
	}
}

func TestParseConfigEmptyPreset(t *testing.T) {
	cfg, err := ParseConfig("[presets]\nEmpty = []\n")
	require.NoError(t, err)
	evs, ok := cfg.Preset("Empty")
	assert.True(t, ok)
	assert.Empty(t, evs)
}

func TestParseConfigErrors(t *testing.T) {
	for _, text := range []string{
		"[presets\n",
		"[presets]\nTest1 = [1, 2]\n",
		"[presets]\nTest1 = \"PAPI_TOT_INS\"\n",
		"presets = 3\n",
	} {
		cfg, err := ParseConfig(text)
		assert.Nil(t, cfg, "%q", text)
		assert.ErrorIs(t, err, ErrInvalidArgument, "%q", text)
	}

	_, err := ParseConfig("[presets\n")
	var perr toml.ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestParseConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "papi.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))

	cfg, err := ParseConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Test1", "Test2"}, cfg.PresetNames())

	_, err = ParseConfigFile(filepath.Join(dir, "missing.toml"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.NotErrorIs(t, err, ErrInvalidArgument)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[presets\n"), 0o644))
	_, err = ParseConfigFile(bad)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), bad)
}

func TestConfigRoundTrip(t *testing.T) {
	cfg, err := ParseConfig(testConfig)
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, cfg.Encode(&buf))
	cfg2, err := ParseConfig(buf.String())
	require.NoError(t, err)
	assert.Equal(t, cfg, cfg2)
}

func TestNilConfig(t *testing.T) {
	var cfg *Config
	_, ok := cfg.Preset("Test1")
	assert.False(t, ok)
	assert.Empty(t, cfg.PresetNames())
}

func TestNewConfig(t *testing.T) {
	presets := map[string][]string{"b": {"PAPI_TOT_CYC"}, "a": {"PAPI_TOT_INS"}}
	cfg := NewConfig(presets)
	presets["a"][0] = "changed"
	evs, ok := cfg.Preset("a")
	require.True(t, ok)
	assert.Equal(t, []string{"PAPI_TOT_INS"}, evs)
	assert.Equal(t, []string{"a", "b"}, cfg.PresetNames())

	assert.Empty(t, NewConfig(nil).PresetNames())
}
