// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Package session is the client side of a QuicPair connection: it
// dials a paired server, authenticates it with the handshake, and then
// streams chat exchanges over the sealed channel.
//
// [Connect] returns only an authenticated [Session]. Each Session runs
// one goroutine that owns the transport channel, the sealing channel,
// and the exchange in flight; [Session.Send] and [Session.Close] talk
// to it through channels, and inbound messages are handled one at a
// time in arrival order.
//
// A Session carries at most one exchange at a time:
//
//	Idle --Send--> AwaitingFirstToken --delta--> Streaming --done/error--> Idle
//
// A second Send while an exchange is in flight fails with
// [ErrExchangeInProgress]. A server error envelope fails the exchange
// with a [*RemoteError] and leaves the channel usable. A channel that
// closes mid-exchange fails it with [ErrChannelClosed]; nothing is
// resent.
//
// Time to first token is measured on the injected clock from the
// moment the chat envelope is sent to the first delta, and recorded
// when that delta arrives. An exchange that ends before its first
// delta records nothing.
package session
