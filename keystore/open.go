// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package keystore

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/quicpair/quicpair/lib/secret"
)

// PassphraseEnvironmentVariable names a file holding the keystore
// passphrase, for unattended use.
const PassphraseEnvironmentVariable = "QUICPAIR_KEY_PASSPHRASE_FILE"

// ReadPassphrase reads the keystore passphrase from the file named by
// PassphraseEnvironmentVariable, or prompts on the terminal. With
// neither available it returns ErrUnavailable.
func ReadPassphrase() (*secret.Buffer, error) {
	if path := os.Getenv(PassphraseEnvironmentVariable); path != "" {
		passphrase, err := secret.ReadFromPath(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrUnavailable, PassphraseEnvironmentVariable, err)
		}
		return passphrase, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%w: no terminal to prompt for a passphrase and %s is not set",
			ErrUnavailable, PassphraseEnvironmentVariable)
	}
	passphrase, err := secret.ReadTerminal(fd, "Keystore passphrase: ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return passphrase, nil
}

// OpenFile loads or creates the installation key sealed in directory.
func OpenFile(directory string, passphrase *secret.Buffer, workFactor int, logger *slog.Logger) (*KeyPair, error) {
	return NewStore(NewFileStorage(directory, passphrase, workFactor), nil, logger).LoadOrCreate()
}

// LoadOrEphemeral opens the installation key in directory, reading the
// passphrase with ReadPassphrase. When the keystore is unavailable it
// logs a warning and returns an ephemeral key with persistent false.
func LoadOrEphemeral(directory string, workFactor int, logger *slog.Logger) (pair *KeyPair, persistent bool, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	passphrase, err := ReadPassphrase()
	if err == nil {
		defer passphrase.Close()
		pair, err = OpenFile(directory, passphrase, workFactor, logger)
		if err == nil {
			return pair, true, nil
		}
	}
	logger.Warn("keystore unavailable, continuing with an ephemeral key", "error", err)
	pair, err = Ephemeral()
	if err != nil {
		return nil, false, err
	}
	return pair, false, nil
}
