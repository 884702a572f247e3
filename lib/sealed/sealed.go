// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"

	"github.com/quicpair/quicpair/lib/secret"
)

// DefaultWorkFactor is the scrypt work factor for new records.
const DefaultWorkFactor = 18

// maxRecordSize bounds decrypted plaintext. Sealed records are key
// material, never more than a few hundred bytes.
const maxRecordSize = 64 << 10

// ErrWrongPassphrase is returned by Open when the passphrase does not
// decrypt the record.
var ErrWrongPassphrase = errors.New("wrong passphrase")

// Seal encrypts plaintext under passphrase. The passphrase buffer is
// borrowed, not closed.
func Seal(plaintext []byte, passphrase *secret.Buffer, workFactor int) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(string(passphrase.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(workFactor)

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return ciphertext.Bytes(), nil
}

// Open decrypts a record sealed by Seal. The plaintext is returned in a
// secret.Buffer the caller must close.
func Open(ciphertext []byte, passphrase *secret.Buffer) (*secret.Buffer, error) {
	identity, err := age.NewScryptIdentity(string(passphrase.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return nil, ErrWrongPassphrase
		}
		return nil, fmt.Errorf("decrypting: %w", err)
	}

	plaintext, err := io.ReadAll(io.LimitReader(reader, maxRecordSize+1))
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("reading decrypted record: %w", err)
	}
	if len(plaintext) > maxRecordSize {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("decrypted record exceeds %d bytes", maxRecordSize)
	}
	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		return nil, fmt.Errorf("protecting decrypted record: %w", err)
	}
	return buffer, nil
}
