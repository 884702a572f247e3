// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package keystore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// PrivateKeyName is the logical name of the installation key.
const PrivateKeyName = "noise-private-key"

// ErrUnavailable means the secure storage backend cannot be used.
// Callers fall back to Ephemeral.
var ErrUnavailable = errors.New("keystore unavailable")

// Store loads or creates the installation key from a SecureStorage.
type Store struct {
	storage SecureStorage
	random  io.Reader
	logger  *slog.Logger
}

// NewStore returns a Store over storage. random nil means crypto/rand;
// logger nil means slog.Default().
func NewStore(storage SecureStorage, random io.Reader, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{storage: storage, random: random, logger: logger}
}

// LoadOrCreate returns the persisted KeyPair, generating and saving it
// on first use. Any storage failure is ErrUnavailable.
func (s *Store) LoadOrCreate() (*KeyPair, error) {
	stored, err := s.storage.Load(PrivateKeyName)
	switch {
	case err == nil:
		defer stored.Close()
		pair, err := fromPrivate(append([]byte(nil), stored.Bytes()...))
		if err != nil {
			return nil, fmt.Errorf("%w: stored key: %v", ErrUnavailable, err)
		}
		s.logger.Debug("loaded installation key")
		return pair, nil
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	pair, err := Generate(s.random)
	if err != nil {
		return nil, err
	}
	if err := s.storage.Save(PrivateKeyName, pair.private.Bytes()); err != nil {
		pair.Close()
		return nil, fmt.Errorf("%w: saving new key: %v", ErrUnavailable, err)
	}
	s.logger.Info("generated installation key")
	return pair, nil
}
