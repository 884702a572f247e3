// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// counterSize is the length of the frame's sequence number prefix.
const counterSize = 8

// ErrBadFrame is returned by Open for frames that are truncated,
// replayed, or fail authentication.
var ErrBadFrame = errors.New("bad sealed frame")

// Channel seals outbound envelopes and opens inbound ones after an
// authenticated handshake. Each direction has its own key.
//
// A sealed frame is an 8-byte big-endian sequence number followed by
// the ChaCha20-Poly1305 ciphertext. The sequence number is the nonce,
// so it never repeats under one key, and Open refuses any number not
// above the last one accepted. The transcript hash is the additional
// data, binding every frame to this handshake.
//
// Seal and Open are safe to call from different goroutines.
type Channel struct {
	additional []byte

	sendMu   sync.Mutex
	send     cipher.AEAD
	sendNext uint64

	receiveMu   sync.Mutex
	receive     cipher.AEAD
	receiveNext uint64
}

func newChannel(sendKey, receiveKey, transcriptHash [KeySize]byte) (*Channel, error) {
	send, err := chacha20poly1305.New(sendKey[:])
	if err != nil {
		return nil, fmt.Errorf("creating send cipher: %w", err)
	}
	receive, err := chacha20poly1305.New(receiveKey[:])
	if err != nil {
		return nil, fmt.Errorf("creating receive cipher: %w", err)
	}
	return &Channel{
		additional: append([]byte(nil), transcriptHash[:]...),
		send:       send,
		receive:    receive,
	}, nil
}

// Seal encrypts plaintext into a frame.
func (c *Channel) Seal(plaintext []byte) ([]byte, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendNext == ^uint64(0) {
		return nil, errors.New("send sequence exhausted")
	}
	sequence := c.sendNext
	c.sendNext++

	var nonce [chacha20poly1305.NonceSize]byte
	binary.BigEndian.PutUint64(nonce[chacha20poly1305.NonceSize-counterSize:], sequence)

	frame := make([]byte, counterSize, counterSize+len(plaintext)+c.send.Overhead())
	binary.BigEndian.PutUint64(frame, sequence)
	return c.send.Seal(frame, nonce[:], plaintext, c.additional), nil
}

// Open authenticates and decrypts a frame.
func (c *Channel) Open(frame []byte) ([]byte, error) {
	if len(frame) < counterSize+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrBadFrame, len(frame))
	}

	c.receiveMu.Lock()
	defer c.receiveMu.Unlock()

	sequence := binary.BigEndian.Uint64(frame[:counterSize])
	if sequence < c.receiveNext {
		return nil, fmt.Errorf("%w: sequence %d already seen", ErrBadFrame, sequence)
	}

	var nonce [chacha20poly1305.NonceSize]byte
	binary.BigEndian.PutUint64(nonce[chacha20poly1305.NonceSize-counterSize:], sequence)
	plaintext, err := c.receive.Open(nil, nonce[:], frame[counterSize:], c.additional)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	c.receiveNext = sequence + 1
	return plaintext, nil
}
