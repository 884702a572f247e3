// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/quicpair/quicpair/cmd/quicpair/cli"
	"github.com/quicpair/quicpair/keystore"
	"github.com/quicpair/quicpair/lib/version"
	"github.com/quicpair/quicpair/pairing"
)

func (a *app) fingerprintCommand() *cli.Command {
	return &cli.Command{
		Name:    "fingerprint",
		Summary: "Show this installation's public key",
		Flags:   func() *pflag.FlagSet { return a.flagSet("fingerprint") },
		Run: func(args []string) error {
			env, err := a.environment()
			if err != nil {
				return err
			}
			key, persistent, err := keystore.LoadOrEphemeral(env.keysDirectory(), env.config.Client.KeystoreWorkFactor, env.logger)
			if err != nil {
				return err
			}
			defer key.Close()
			if !persistent {
				return errors.New("keystore unavailable; no persistent key to show")
			}
			public := key.PublicKey()
			fmt.Fprintf(a.stdout, "%s\n%s\n", pairing.Fingerprint(public[:]), base64.StdEncoding.EncodeToString(public[:]))
			return nil
		},
	}
}

func (a *app) versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			fmt.Fprintf(a.stdout, "quicpair %s\n", version.Full())
			return nil
		},
	}
}
