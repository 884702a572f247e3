// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/quicpair/quicpair/cmd/quicpair/cli"
	"github.com/quicpair/quicpair/pairing"
)

func (a *app) pairCommand() *cli.Command {
	var label string
	return &cli.Command{
		Name:    "pair",
		Summary: "Remember a server from its pairing payload",
		Description: `Remember a server from the JSON payload shown in its QR code.

The payload is {"server": "host:port", "publicKey": "<base64>"}. Pass it
as an argument, as @file, or as - to read stdin. A payload without a
public key is accepted; the key is learned and pinned on first connect.`,
		Usage: "quicpair pair <payload | @file | -> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := a.flagSet("pair")
			flagSet.StringVar(&label, "label", "", "name to show for this server")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Usagef("pair takes exactly one payload argument")
			}
			data, err := a.readPayload(args[0])
			if err != nil {
				return err
			}
			descriptor, err := pairing.ParsePayload(data)
			if err != nil {
				return err
			}
			if label != "" {
				descriptor.Label = label
			}

			env, err := a.environment()
			if err != nil {
				return err
			}
			if existing, ok := env.registry.Lookup(descriptor.ServerAddress); ok && existing.Pinned() && descriptor.Pinned() &&
				pairing.Fingerprint(existing.StaticPublicKey) != pairing.Fingerprint(descriptor.StaticPublicKey) {
				env.logger.Warn("replacing pinned server key",
					"server", descriptor.ServerAddress,
					"old", pairing.Fingerprint(existing.StaticPublicKey),
					"new", pairing.Fingerprint(descriptor.StaticPublicKey),
				)
			}
			remembered, err := env.registry.Remember(descriptor)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "paired %s (%s) key %s\n",
				remembered.ServerAddress, remembered.Label, keyDescription(remembered))
			return nil
		},
	}
}

func (a *app) readPayload(argument string) ([]byte, error) {
	switch {
	case argument == "-":
		return io.ReadAll(io.LimitReader(a.stdin, 64<<10))
	case strings.HasPrefix(argument, "@"):
		data, err := os.ReadFile(argument[1:])
		if err != nil {
			return nil, fmt.Errorf("reading payload: %w", err)
		}
		return data, nil
	default:
		return []byte(argument), nil
	}
}

func (a *app) listCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Summary: "List recent servers, newest first",
		Flags:   func() *pflag.FlagSet { return a.flagSet("list") },
		Run: func(args []string) error {
			if len(args) != 0 {
				return cli.Usagef("list takes no arguments")
			}
			env, err := a.environment()
			if err != nil {
				return err
			}
			entries := env.registry.List()
			if len(entries) == 0 {
				fmt.Fprintln(a.stdout, "no paired servers")
				return nil
			}
			writer := tabwriter.NewWriter(a.stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(writer, "ADDRESS\tLABEL\tKEY\tLAST SEEN")
			for _, entry := range entries {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
					entry.ServerAddress, entry.Label, keyDescription(entry), lastSeen(entry.LastSeen))
			}
			return writer.Flush()
		},
	}
}

func (a *app) forgetCommand() *cli.Command {
	return &cli.Command{
		Name:    "forget",
		Summary: "Remove a server and its pinned key",
		Usage:   "quicpair forget <host:port> [flags]",
		Flags:   func() *pflag.FlagSet { return a.flagSet("forget") },
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Usagef("forget takes exactly one address")
			}
			env, err := a.environment()
			if err != nil {
				return err
			}
			if _, ok := env.registry.Lookup(args[0]); !ok {
				return fmt.Errorf("no paired server at %s", args[0])
			}
			if err := env.registry.Forget(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "forgot %s\n", args[0])
			return nil
		},
	}
}

func keyDescription(descriptor pairing.ConnectionDescriptor) string {
	if !descriptor.Pinned() {
		return "(not pinned)"
	}
	return pairing.Fingerprint(descriptor.StaticPublicKey)
}

func lastSeen(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}
