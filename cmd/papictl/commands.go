// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aclements/go-papi"
)

var (
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed)
	bold  = color.New(color.Bold)
)

func newPresetsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the presets in the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := papi.ParseConfigFile(flags.config)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, name := range cfg.PresetNames() {
				evs, _ := cfg.Preset(name)
				bold.Fprint(w, name)
				fmt.Fprintf(w, ": %s\n", strings.Join(evs, ", "))
			}
			return nil
		},
	}
}

func newCheckCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check [preset...]",
		Short: "Check that presets can be opened on this machine",
		Long: `Check initializes the counter library and opens each named preset,
or every preset in the configuration if none are named. It exits with an
error if any preset cannot be opened.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := papi.ParseConfigFile(flags.config)
			if err != nil {
				return err
			}
			presets := args
			if len(presets) == 0 {
				presets = cfg.PresetNames()
			}
			for _, name := range presets {
				if _, ok := cfg.Preset(name); !ok {
					return fmt.Errorf("unknown preset %q in %s", name, flags.config)
				}
			}

			s, err := papi.InitWithConfig(cfg)
			if err != nil {
				return err
			}
			return checkPresets(cmd.OutOrStdout(), presets, func(preset string) (io.Closer, error) {
				es, err := s.OpenEventSet(preset)
				if err != nil {
					return nil, err
				}
				return es, nil
			})
		},
	}
}

// checkPresets opens and closes each preset with open, printing the result
// of each to w.
func checkPresets(w io.Writer, presets []string, open func(preset string) (io.Closer, error)) error {
	failed := 0
	for _, name := range presets {
		es, err := open(name)
		if err == nil {
			err = es.Close()
		}
		if err != nil {
			failed++
			red.Fprint(w, "FAIL")
			fmt.Fprintf(w, " %s: %v\n", name, err)
			continue
		}
		green.Fprint(w, "ok")
		fmt.Fprintf(w, "   %s\n", name)
	}
	if failed > 0 {
		return errors.New(plural(failed, "preset") + " failed")
	}
	return nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print counter library information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := papi.Init()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "version:  %s\n", s.Version())
			fmt.Fprintf(w, "counters: %d\n", s.NumCounters())
			return nil
		},
	}
}
