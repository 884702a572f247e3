// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Package pairing turns a scanned QR code into a [ConnectionDescriptor]
// and remembers the servers a client has connected to.
//
// The pairing payload is JSON:
//
//	{"server": "192.168.1.20:8443", "publicKey": "<base64 X25519 key>"}
//
// publicKey is optional. When present the client pins it and refuses a
// server presenting another key; when absent the first key the server
// presents is pinned on success. [ParsePayload] also tolerates
// comments and trailing commas so that a payload typed or pasted by
// hand still parses.
//
// [Registry] keeps the five most recently used descriptors, newest
// first, unique by server address, in a JSON file.
package pairing
