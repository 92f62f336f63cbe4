// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ut/lib/process"
	"github.com/bureau-foundation/ut/lib/snapshot"
	"github.com/bureau-foundation/ut/lib/version"
	"github.com/bureau-foundation/ut/lib/viewer"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var summary bool
	flagSet := pflag.NewFlagSet("ut-view", pflag.ContinueOnError)
	flagSet.BoolVar(&summary, "summary", false, "print a per-thread summary instead of opening the timeline")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print(os.Stdout, "ut-view")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) != 1 {
		printHelp(flagSet)
		return fmt.Errorf("expected one capture file, got %d arguments", len(args))
	}
	path := args[0]

	document, err := snapshot.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot load capture %s: %w", path, err)
	}

	if summary {
		return writeSummary(os.Stdout, document)
	}

	program := tea.NewProgram(viewer.NewModel(document, path), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `ut-view displays a capture written by ut-conductor.

The capture may be JSON or CBOR, optionally zstd or lz4 compressed.
Use - to read it from standard input (only with --summary).

Usage:
  ut-view [flags] <capture>

Flags:
%s`, flagSet.FlagUsages())
}
