// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "papi.toml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := execute(root)
	return stdout.String(), stderr.String(), err
}

func TestPresets(t *testing.T) {
	path := writeConfig(t, `
[presets]
Test1 = ["UOPS_RETIRED:ALL", "UOPS_RETIRED:STALL_CYCLES"]
Basic = ["PAPI_TOT_INS"]
`)
	out, _, err := run(t, "presets", "-c", path)
	require.NoError(t, err)
	assert.Equal(t, "Basic: PAPI_TOT_INS\nTest1: UOPS_RETIRED:ALL, UOPS_RETIRED:STALL_CYCLES\n", out)
}

func TestPresetsMissingConfig(t *testing.T) {
	_, stderr, err := run(t, "presets", "--config", filepath.Join(t.TempDir(), "none.toml"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, stderr, "papictl: ")
}

func TestCheckUnknownPreset(t *testing.T) {
	path := writeConfig(t, "[presets]\nBasic = [\"PAPI_TOT_INS\"]\n")
	_, _, err := run(t, "check", "-c", path, "Missing")
	assert.ErrorContains(t, err, `unknown preset "Missing"`)
}

func TestPresetsRejectsArgs(t *testing.T) {
	_, _, err := run(t, "presets", "extra")
	assert.Error(t, err)
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "1 preset", plural(1, "preset"))
	assert.Equal(t, "3 presets", plural(3, "preset"))
}

type closer struct{ err error }

func (c closer) Close() error { return c.err }

func TestCheckPresets(t *testing.T) {
	open := func(preset string) (io.Closer, error) {
		switch preset {
		case "Good":
			return closer{}, nil
		case "BadClose":
			return closer{errors.New("close failed")}, nil
		}
		return nil, errors.New("invalid event: NOT_AN_EVENT")
	}

	var out bytes.Buffer
	require.NoError(t, checkPresets(&out, []string{"Good"}, open))
	assert.Equal(t, "ok   Good\n", out.String())

	out.Reset()
	err := checkPresets(&out, []string{"Good", "Bad"}, open)
	assert.EqualError(t, err, "1 preset failed")
	assert.Equal(t, "ok   Good\nFAIL Bad: invalid event: NOT_AN_EVENT\n", out.String())

	out.Reset()
	err = checkPresets(&out, []string{"Bad", "BadClose"}, open)
	assert.EqualError(t, err, "2 presets failed")
	assert.Equal(t, "FAIL Bad: invalid event: NOT_AN_EVENT\nFAIL BadClose: close failed\n", out.String())
}
