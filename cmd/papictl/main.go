// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Papictl inspects and checks performance counter presets.
//
// Usage:
//
//	papictl [-c config.toml] presets
//	papictl [-c config.toml] check [preset...]
//	papictl info
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := execute(newRootCmd()); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	config  string
	verbose bool
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	root := &cobra.Command{
		Use:           "papictl",
		Short:         "Inspect and check performance counter presets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if flags.verbose {
				level = slog.LevelDebug
			}
			h := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(h))
		},
	}
	root.PersistentFlags().StringVarP(&flags.config, "config", "c", "papi.toml", "preset configuration `file`")
	root.PersistentFlags().BoolVar(&flags.verbose, "verbose", false, "enable debug logging")

	root.AddCommand(newPresetsCmd(&flags), newCheckCmd(&flags), newInfoCmd())
	return root
}

// execute runs root and prints any error, returning it.
func execute(root *cobra.Command) error {
	err := root.Execute()
	if err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "papictl: %v\n", err)
	}
	return err
}
