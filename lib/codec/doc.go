// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is QuicPair's CBOR configuration.
//
// Everything a peer or another program reads is JSON: the pairing
// payload, signaling bodies, data-channel envelopes, and the recent
// connections file. CBOR is reserved for records only QuicPair itself
// reads back, currently the sealed private-key record in the keystore.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same record always produces the same bytes.
package codec
