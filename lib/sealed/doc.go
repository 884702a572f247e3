// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts small records at rest with an age scrypt
// (passphrase) recipient.
//
// The keystore's file backend uses it to protect the installation's
// private key. Passphrases and decrypted plaintext stay in
// secret.Buffer values; a heap string copy of the passphrase exists
// only for the duration of the age call that requires it.
//
// The scrypt work factor is log2 of the cost parameter N. Production
// uses 18 (the age default); tests lower it to keep runs fast.
package sealed
