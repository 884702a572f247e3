// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries QuicPair messages between a client and its
// pairing server over one WebRTC data channel.
//
// The rest of QuicPair sees a [Channel]: an ordered, reliable pipe of
// [Message] values with a Closed signal. Text messages carry plaintext
// handshake envelopes; binary messages carry sealed application
// envelopes. Neither this package nor pion looks inside them.
//
// [Dial] is the client side. It creates a PeerConnection with a single
// ordered data channel labelled [ChannelLabel], gathers every ICE
// candidate before producing the offer (vanilla ICE), hands the offer
// to a [Signaler], applies the answer, and returns once the data
// channel is open. One Dial is one signaling round trip.
//
// [Answer] is the server side. It applies a remote offer, gathers, and
// returns an [Answered] carrying the answer SDP. The caller sends the
// SDP back through signaling, then calls [Answered.Accept] to wait for
// the client's data channel.
//
// [Pipe] returns a connected in-memory pair for tests and for running
// a client session against an in-process server.
package transport
