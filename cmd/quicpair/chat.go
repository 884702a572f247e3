// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/quicpair/quicpair/cmd/quicpair/cli"
	"github.com/quicpair/quicpair/keystore"
	"github.com/quicpair/quicpair/latency"
	"github.com/quicpair/quicpair/pairing"
	"github.com/quicpair/quicpair/session"
	"github.com/quicpair/quicpair/signaling"
	"github.com/quicpair/quicpair/transport"
)

func (a *app) chatCommand() *cli.Command {
	var (
		server string
		model  string
		repeat int
	)
	return &cli.Command{
		Name:    "chat",
		Summary: "Send a prompt and stream the reply",
		Description: `Connect to a paired server, send one prompt, and stream the reply to
stdout. Without --server the most recently used server is chosen. With
no prompt arguments the prompt is read from stdin.

With --repeat the same prompt is sent several times over one session
and a time-to-first-token summary is printed to stderr.`,
		Usage: "quicpair chat [flags] [prompt...]",
		Flags: func() *pflag.FlagSet {
			flagSet := a.flagSet("chat")
			flagSet.StringVar(&server, "server", "", "server address (default: most recent)")
			flagSet.StringVar(&model, "model", "", "model name (default: config, then the server's default)")
			flagSet.IntVar(&repeat, "repeat", 1, "send the prompt this many times")
			return flagSet
		},
		Run: func(args []string) error {
			if repeat < 1 {
				return cli.Usagef("--repeat must be at least 1")
			}
			prompt, err := a.prompt(args)
			if err != nil {
				return err
			}
			env, err := a.environment()
			if err != nil {
				return err
			}
			descriptor, err := resolveDescriptor(env.registry, server)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.chat(ctx, env, descriptor, session.Request{Prompt: prompt, Model: model}, repeat)
		},
	}
}

func (a *app) prompt(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(io.LimitReader(a.stdin, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", cli.Usagef("empty prompt")
	}
	return prompt, nil
}

// resolveDescriptor picks the server named by address, or the most
// recent one. A server that was never paired can still be dialed by
// address; its key is learned on connect.
func resolveDescriptor(registry *pairing.Registry, address string) (pairing.ConnectionDescriptor, error) {
	if address == "" {
		entries := registry.List()
		if len(entries) == 0 {
			return pairing.ConnectionDescriptor{}, errors.New("no paired servers; run 'quicpair pair' first or pass --server")
		}
		return entries[0], nil
	}
	normalized, err := pairing.NormalizeAddress(address)
	if err != nil {
		return pairing.ConnectionDescriptor{}, cli.Usagef("--server: %v", err)
	}
	if descriptor, ok := registry.Lookup(normalized); ok {
		return descriptor, nil
	}
	return pairing.ConnectionDescriptor{ServerAddress: normalized}, nil
}

func (a *app) chat(ctx context.Context, env *environment, descriptor pairing.ConnectionDescriptor, request session.Request, repeat int) error {
	logger := env.logger
	key, persistent, err := keystore.LoadOrEphemeral(env.keysDirectory(), env.config.Client.KeystoreWorkFactor, logger)
	if err != nil {
		return err
	}
	defer key.Close()
	if !persistent {
		fmt.Fprintln(os.Stderr, "warning: keystore unavailable; this server will see a new client identity")
	}

	recorder := latency.NewRecorder(0)
	s, err := session.Connect(ctx, session.Config{
		Descriptor: descriptor,
		KeyPair:    key,
		Dialer: &session.WebRTCDialer{
			Signaling: signaling.NewClient(signaling.ClientConfig{
				Timeout: env.config.Client.SignalingTimeout,
				Logger:  logger,
			}),
			ICE:    transport.ICEConfigFromServers(env.config.Client.ICEServers),
			Logger: logger,
		},
		HandshakeTimeout: env.config.Client.HandshakeTimeout,
		DefaultModel:     env.config.Client.DefaultModel,
		Latency:          recorder,
		Clock:            a.clock,
		Logger:           logger,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if !descriptor.Pinned() {
		peer := s.PeerStatic()
		descriptor.StaticPublicKey = peer[:]
		fmt.Fprintf(os.Stderr, "pinned server key %s\n", pairing.Fingerprint(peer[:]))
	}
	if _, err := env.registry.Remember(descriptor); err != nil {
		logger.Warn("updating recent servers", "error", err)
	}

	request.OnDelta = func(content string) { io.WriteString(a.stdout, content) }
	for i := 0; i < repeat; i++ {
		exchange, err := s.Send(ctx, request)
		if err != nil {
			return err
		}
		_, err = exchange.Wait(ctx)
		fmt.Fprintln(a.stdout)
		if err != nil {
			return err
		}
	}

	if repeat > 1 {
		summary := recorder.Summary()
		fmt.Fprintf(os.Stderr, "ttft: count=%d p50=%s p90=%s avg=%s\n",
			summary.Count, summary.P50, summary.P90, summary.Avg)
	}
	return nil
}
