// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Package handshake authenticates the pairing server and derives the
// keys that seal every application envelope on the data channel.
//
// The client is the [Initiator]; the server is the [Responder]. Both
// hold a long-term X25519 static key and generate a fresh ephemeral
// key per connection:
//
//	client                                   server
//	  keyInit {publicKey: Ci, ephemeral: Ei} -->
//	  <-- keyAck {publicKey: Sr, ephemeral: Er, confirm}
//
// Both sides compute four Diffie-Hellman results (ee, es, se, ss) and
// a transcript hash h = BLAKE3(protocol name, Ci, Ei, Sr, Er). HKDF-
// SHA256 over the DH results, salted with h, yields a confirmation key
// and one ChaCha20-Poly1305 key per direction. confirm is a BLAKE3
// keyed MAC over h under the confirmation key; only a server holding
// the private half of Sr can produce it.
//
// If the client already knows the server's static key (from the QR
// code or an earlier connection) a different Sr fails the handshake.
// Otherwise the client learns Sr here and pins it for next time.
//
// Every failure is [ErrFailed] and moves the state machine to
// [Failed], which is terminal.
package handshake
