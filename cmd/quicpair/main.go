// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Quicpair is the QuicPair client: it pairs with servers from their
// QR payload, keeps the list of recent servers, and streams chat
// completions over an authenticated peer-to-peer channel.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/quicpair/quicpair/cmd/quicpair/cli"
	"github.com/quicpair/quicpair/lib/clock"
	"github.com/quicpair/quicpair/lib/config"
	"github.com/quicpair/quicpair/pairing"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout).root().Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// app carries the streams and the flags every command shares.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	clock  clock.Clock

	configPath string
	verbose    bool
}

func newApp(stdin io.Reader, stdout io.Writer) *app {
	return &app{stdin: stdin, stdout: stdout, clock: clock.Real()}
}

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:        "quicpair",
		Description: "QuicPair client: pair with a local inference server and chat with it peer to peer.",
		Subcommands: []*cli.Command{
			a.pairCommand(),
			a.listCommand(),
			a.forgetCommand(),
			a.chatCommand(),
			a.fingerprintCommand(),
			a.versionCommand(),
		},
	}
}

// flagSet returns a flag set carrying the shared flags.
func (a *app) flagSet(name string) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.StringVar(&a.configPath, "config", "", "config file (default: $"+config.EnvironmentVariable+")")
	flagSet.BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")
	return flagSet
}

// environment is what a command needs after flag parsing.
type environment struct {
	config   *config.Config
	logger   *slog.Logger
	registry *pairing.Registry
}

func (a *app) environment() (*environment, error) {
	cfg, err := config.Resolve(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	registry, err := pairing.OpenRegistry(filepath.Join(cfg.Client.StateDir, pairing.RegistryFileName), a.clock)
	if err != nil {
		return nil, err
	}
	return &environment{config: cfg, logger: logger, registry: registry}, nil
}

func (e *environment) keysDirectory() string {
	return filepath.Join(e.config.Client.StateDir, "keys")
}
