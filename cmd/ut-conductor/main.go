// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ut/lib/collector"
	"github.com/bureau-foundation/ut/lib/conductor"
	"github.com/bureau-foundation/ut/lib/config"
	"github.com/bureau-foundation/ut/lib/logging"
	"github.com/bureau-foundation/ut/lib/process"
	"github.com/bureau-foundation/ut/lib/procfs"
	"github.com/bureau-foundation/ut/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

// flags are command-line overrides of config fields. Empty values
// leave the config alone.
type flags struct {
	configPath string
	socketName string
	output     string
	format     string
	compress   string
	indent     bool
	logLevel   string
}

func run() error {
	var overrides flags
	flagSet := pflag.NewFlagSet("ut-conductor", pflag.ContinueOnError)
	flagSet.StringVar(&overrides.configPath, "config", "", "path to a ut.yaml config file (default: $UT_CONFIG, else built-in defaults)")
	flagSet.StringVar(&overrides.socketName, "socket", "", "abstract socket name to listen on")
	flagSet.StringVarP(&overrides.output, "output", "o", "", "capture destination, - for standard output")
	flagSet.StringVar(&overrides.format, "format", "", "capture format: json or cbor")
	flagSet.StringVar(&overrides.compress, "compress", "", "capture compression: none, zstd, lz4, or auto")
	flagSet.BoolVar(&overrides.indent, "indent", false, "pretty-print JSON captures")
	flagSet.StringVar(&overrides.logLevel, "log-level", "", "debug, info, warn, or error")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print(os.Stdout, "ut-conductor")
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
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := loadConfig(overrides.configPath)
	if err != nil {
		return err
	}
	overrides.apply(cfg, flagSet)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: logging.Format(cfg.Log.Format),
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	return serve(cfg, logger)
}

// loadConfig reads path, else $UT_CONFIG, else the defaults.
func loadConfig(path string) (*config.Config, error) {
	switch {
	case path != "":
		return config.LoadFile(path)
	case os.Getenv(config.EnvironmentVariable) != "":
		return config.Load()
	default:
		return config.Default(), nil
	}
}

func (f flags) apply(cfg *config.Config, flagSet *pflag.FlagSet) {
	if f.socketName != "" {
		cfg.Conductor.SocketName = f.socketName
	}
	if f.output != "" {
		cfg.Output.Path = f.output
	}
	if f.format != "" {
		cfg.Output.Format = f.format
	}
	if f.compress != "" {
		cfg.Output.Compression = f.compress
	}
	if flagSet.Changed("indent") {
		cfg.Output.Indent = f.indent
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	timeouts, err := cfg.Conductor.Timeouts()
	if err != nil {
		return err
	}
	output, err := newCaptureWriter(cfg.Output, procfs.Names{}, logger)
	if err != nil {
		return err
	}

	listener, err := conductor.Listen(cfg.Conductor.SocketName)
	if err != nil {
		return err
	}
	logger.Info("conductor listening", "pid", os.Getpid(), "socket", listener.Name())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	triggers := make(chan struct{}, 1)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		select {
		case received := <-signals:
			if received == syscall.SIGTERM {
				logger.Info("terminating without capture", "signal", received.String())
				cancel()
				return
			}
			logger.Info("capture requested", "signal", received.String())
			triggers <- struct{}{}
		case <-ctx.Done():
		}
	}()

	registry := collector.NewRegistry(collector.RegistryOptions{
		Listener:         listener,
		Logger:           logger,
		HandshakeTimeout: timeouts.Handshake,
		SettleDelay:      timeouts.Settle,
		Observe: func(status collector.ClientStatus) {
			logger.Debug("client changed",
				"client", status.ID,
				"pid", status.PID,
				"tid", status.TID,
				"state", status.State.String(),
				"blocks", status.Blocks,
				"disconnected", status.Disconnected,
			)
		},
	})
	orchestrator := collector.NewOrchestrator(collector.OrchestratorOptions{
		PauseTimeout: timeouts.Pause,
		Resume:       cfg.Conductor.Resume,
		Logger:       logger,
	})

	return registry.Run(ctx, triggers, func(ctx context.Context, clients []*collector.Client) error {
		return orchestrator.Capture(ctx, clients, registry.Settle, output.write)
	})
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `ut-conductor collects trace buffers from instrumented threads.

Run it before or alongside the instrumented program. Send SIGINT
(Ctrl-C) or SIGQUIT to capture every connected thread and exit.

Usage:
  ut-conductor [flags]

Flags:
%s`, flagSet.FlagUsages())
}
