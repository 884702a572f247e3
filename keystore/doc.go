// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Package keystore owns the installation's long-term X25519 key.
//
// [Store.LoadOrCreate] returns the same [KeyPair] on every run: the
// first call generates it and saves the private key to a
// [SecureStorage] backend under the name [PrivateKeyName]; later calls
// load it and rederive the public key. The private key lives in a
// secret.Buffer and never leaves this package; callers get
// [KeyPair.PublicKey] and [KeyPair.DH].
//
// When the backend cannot be used, LoadOrCreate returns
// [ErrUnavailable]. Callers then continue with [Ephemeral], a key that
// lasts for the process only: connections still work, but the server
// cannot recognise this client next time.
//
// [FileStorage] keeps each entry as an age-encrypted (scrypt
// passphrase) CBOR record in a 0700 directory. [MemoryStorage] keeps
// entries in memory.
package keystore
