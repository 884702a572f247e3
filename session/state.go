// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package session

// State is the lifecycle state of a Session.
type State int32

const (
	// Connecting: signaling and transport setup in progress.
	Connecting State = iota

	// Handshaking: the transport is open and keyInit has been sent.
	Handshaking

	// Idle: authenticated, no exchange in flight.
	Idle

	// AwaitingFirstToken: a chat envelope was sent and no delta has
	// arrived yet.
	AwaitingFirstToken

	// Streaming: at least one delta has arrived for the current
	// exchange.
	Streaming

	// Closed is terminal.
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Handshaking:
		return "handshaking"
	case Idle:
		return "idle"
	case AwaitingFirstToken:
		return "awaiting-first-token"
	case Streaming:
		return "streaming"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// busy reports whether an exchange is in flight.
func (s State) busy() bool {
	return s == AwaitingFirstToken || s == Streaming
}
