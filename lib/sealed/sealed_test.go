// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"errors"
	"testing"

	"github.com/quicpair/quicpair/lib/secret"
)

// testWorkFactor keeps scrypt fast in tests.
const testWorkFactor = 10

func passphrase(t *testing.T, value string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromBytes([]byte(value))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

func TestSealOpen(t *testing.T) {
	plaintext := bytes.Repeat([]byte{0x42}, 32)
	ciphertext, err := Seal(plaintext, passphrase(t, "open sesame"), testWorkFactor)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(ciphertext, plaintext) {
		t.Fatal("ciphertext contains the plaintext")
	}

	opened, err := Open(ciphertext, passphrase(t, "open sesame"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer opened.Close()
	if !opened.Equal(plaintext) {
		t.Fatal("Open returned different plaintext")
	}
}

func TestOpenWrongPassphrase(t *testing.T) {
	ciphertext, err := Seal([]byte("key material"), passphrase(t, "right"), testWorkFactor)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := Open(ciphertext, passphrase(t, "wrong")); !errors.Is(err, ErrWrongPassphrase) {
		t.Fatalf("Open with wrong passphrase = %v, want ErrWrongPassphrase", err)
	}
}

func TestOpenGarbage(t *testing.T) {
	_, err := Open([]byte("not an age file"), passphrase(t, "x"))
	if err == nil || errors.Is(err, ErrWrongPassphrase) {
		t.Fatalf("Open(garbage) = %v, want a decrypt error", err)
	}
}
