// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret keeps key material and passphrases out of the Go heap.
//
// A [Buffer] is an anonymous mmap region that is mlocked (never
// swapped) and marked MADV_DONTDUMP (never in a core dump). Close
// zeroes and unmaps it, and any later access panics. The keystore holds
// the installation's X25519 private key in a Buffer for the lifetime of
// the process; the binaries hold the keystore passphrase in one.
//
// Passphrases enter through [ReadFromPath] (a file, or "-" for stdin)
// or [ReadTerminal] (an interactive prompt with echo disabled).
package secret
