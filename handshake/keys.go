// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/quicpair/quicpair/lib/secret"
)

// ProtocolName is hashed into every transcript.
const ProtocolName = "QuicPair_X25519_ChaChaPoly_BLAKE3_v1"

// KeySize is the size of X25519 keys and of every derived key.
const KeySize = 32

// channelInfo is the HKDF info string for the channel key schedule.
const channelInfo = "quicpair channel v1"

// confirmLabel prefixes the transcript under the confirmation MAC.
const confirmLabel = "keyAck"

// ErrFailed is returned for every handshake failure.
var ErrFailed = errors.New("handshake failed")

// StaticKey is a long-term X25519 key whose private half stays with
// its owner.
type StaticKey interface {
	PublicKey() [KeySize]byte
	DH(peer [KeySize]byte) ([KeySize]byte, error)
}

// ephemeralKey is a one-connection X25519 key.
type ephemeralKey struct {
	private [KeySize]byte
	public  [KeySize]byte
}

func newEphemeral(random io.Reader) (*ephemeralKey, error) {
	if random == nil {
		random = rand.Reader
	}
	key := &ephemeralKey{}
	if _, err := io.ReadFull(random, key.private[:]); err != nil {
		return nil, fmt.Errorf("generating ephemeral key: %w", err)
	}
	public, err := curve25519.X25519(key.private[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("deriving ephemeral public key: %w", err)
	}
	copy(key.public[:], public)
	return key, nil
}

func (k *ephemeralKey) dh(peer [KeySize]byte) ([KeySize]byte, error) {
	var shared [KeySize]byte
	out, err := curve25519.X25519(k.private[:], peer[:])
	if err != nil {
		return shared, err
	}
	copy(shared[:], out)
	return shared, nil
}

func (k *ephemeralKey) wipe() {
	k.private = [KeySize]byte{}
}

// transcript holds the four public keys of one handshake in
// initiator-first order.
type transcript struct {
	initiatorStatic    [KeySize]byte
	initiatorEphemeral [KeySize]byte
	responderStatic    [KeySize]byte
	responderEphemeral [KeySize]byte
}

func (t *transcript) hash() [KeySize]byte {
	data := make([]byte, 0, len(ProtocolName)+4*KeySize)
	data = append(data, ProtocolName...)
	data = append(data, t.initiatorStatic[:]...)
	data = append(data, t.initiatorEphemeral[:]...)
	data = append(data, t.responderStatic[:]...)
	data = append(data, t.responderEphemeral[:]...)
	return blake3.Sum256(data)
}

// schedule is the output of the key derivation.
type schedule struct {
	hash                 [KeySize]byte
	confirmKey           [KeySize]byte
	initiatorToResponder [KeySize]byte
	responderToInitiator [KeySize]byte
}

// deriveSchedule runs HKDF-SHA256 over ee||es||se||ss salted with the
// transcript hash.
func deriveSchedule(t *transcript, ee, es, se, ss [KeySize]byte) (*schedule, error) {
	ikm := make([]byte, 0, 4*KeySize)
	ikm = append(ikm, ee[:]...)
	ikm = append(ikm, es[:]...)
	ikm = append(ikm, se[:]...)
	ikm = append(ikm, ss[:]...)
	defer secret.Zero(ikm)

	result := &schedule{hash: t.hash()}
	reader := hkdf.New(sha256.New, ikm, result.hash[:], []byte(channelInfo))
	for _, key := range []*[KeySize]byte{&result.confirmKey, &result.initiatorToResponder, &result.responderToInitiator} {
		if _, err := io.ReadFull(reader, key[:]); err != nil {
			return nil, fmt.Errorf("deriving channel keys: %w", err)
		}
	}
	return result, nil
}

// confirmation computes the keyAck MAC.
func (s *schedule) confirmation() []byte {
	hasher, err := blake3.NewKeyed(s.confirmKey[:])
	if err != nil {
		panic("handshake: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(confirmLabel))
	hasher.Write(s.hash[:])
	return hasher.Sum(nil)
}

func (s *schedule) verify(confirm []byte) bool {
	return subtle.ConstantTimeCompare(s.confirmation(), confirm) == 1
}

func (s *schedule) wipe() {
	s.confirmKey = [KeySize]byte{}
	s.initiatorToResponder = [KeySize]byte{}
	s.responderToInitiator = [KeySize]byte{}
}

// publicKeyFrom copies a wire key into a fixed array.
func publicKeyFrom(field string, data []byte) ([KeySize]byte, error) {
	var key [KeySize]byte
	if len(data) != KeySize {
		return key, fmt.Errorf("%w: %s is %d bytes, want %d", ErrFailed, field, len(data), KeySize)
	}
	copy(key[:], data)
	return key, nil
}
