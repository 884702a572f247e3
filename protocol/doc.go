// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol is the envelope format spoken over the data
// channel.
//
// Every message is a flat JSON object with a mandatory "op" field.
// [Decode] turns bytes into one of the [Envelope] variants and [Encode]
// does the reverse:
//
//	chat    {"op":"chat","model":"...","prompt":"...","stream":true}
//	delta   {"op":"delta","content":"..."}
//	done    {"op":"done"}
//	error   {"op":"error","error":"..."}
//	keyInit {"op":"keyInit","publicKey":"<b64>","ephemeral":"<b64>"}
//	keyAck  {"op":"keyAck","publicKey":"<b64>","ephemeral":"<b64>","confirm":"<b64>"}
//
// Older peers spell the handshake ops "noise_init" and "noise_pubkey";
// Decode accepts both spellings and Encode always writes the new ones.
// An op this package does not know decodes to [Unknown] so that callers
// can log and skip it. Anything that is not an object with a string op,
// or has a field of the wrong JSON type, is [ErrMalformedEnvelope].
package protocol
