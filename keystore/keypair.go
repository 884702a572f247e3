// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package keystore

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"

	"github.com/quicpair/quicpair/lib/secret"
)

// KeySize is the size of X25519 private and public keys.
const KeySize = 32

// KeyPair is an X25519 key whose private half is held in locked
// memory.
type KeyPair struct {
	private *secret.Buffer
	public  [KeySize]byte
}

// Generate creates a KeyPair from random (crypto/rand when nil).
func Generate(random io.Reader) (*KeyPair, error) {
	if random == nil {
		random = rand.Reader
	}
	private := make([]byte, KeySize)
	if _, err := io.ReadFull(random, private); err != nil {
		secret.Zero(private)
		return nil, fmt.Errorf("generating private key: %w", err)
	}
	return fromPrivate(private)
}

// Ephemeral generates a KeyPair that is never persisted, for running
// without a usable keystore.
func Ephemeral() (*KeyPair, error) {
	return Generate(nil)
}

// fromPrivate moves private into locked memory (zeroing it) and
// derives the public key.
func fromPrivate(private []byte) (*KeyPair, error) {
	if len(private) != KeySize {
		secret.Zero(private)
		return nil, fmt.Errorf("private key is %d bytes, want %d", len(private), KeySize)
	}
	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		secret.Zero(private)
		return nil, fmt.Errorf("deriving public key: %w", err)
	}
	buffer, err := secret.NewFromBytes(private)
	if err != nil {
		return nil, fmt.Errorf("protecting private key: %w", err)
	}
	pair := &KeyPair{private: buffer}
	copy(pair.public[:], public)
	return pair, nil
}

// PublicKey returns the public key.
func (k *KeyPair) PublicKey() [KeySize]byte { return k.public }

// DH returns the X25519 shared secret with peer. Low-order peer points
// are an error.
func (k *KeyPair) DH(peer [KeySize]byte) ([KeySize]byte, error) {
	var shared [KeySize]byte
	out, err := curve25519.X25519(k.private.Bytes(), peer[:])
	if err != nil {
		return shared, err
	}
	copy(shared[:], out)
	return shared, nil
}

// Close zeroes the private key. The KeyPair is unusable afterwards.
func (k *KeyPair) Close() error {
	return k.private.Close()
}
