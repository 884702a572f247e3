// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"

	"github.com/quicpair/quicpair/handshake"
)

var (
	// ErrExchangeInProgress is returned by Send while another exchange
	// is still waiting for its first token or streaming.
	ErrExchangeInProgress = errors.New("exchange already in progress")

	// ErrChannelClosed means the transport closed. An exchange in
	// flight at that moment fails with it and is not resent.
	ErrChannelClosed = errors.New("channel closed")

	// ErrSessionClosed means Close was called.
	ErrSessionClosed = errors.New("session closed")

	// ErrHandshakeTimeout means no valid keyAck arrived in time. It
	// matches handshake.ErrFailed under errors.Is.
	ErrHandshakeTimeout = fmt.Errorf("%w: timed out waiting for keyAck", handshake.ErrFailed)
)

// RemoteError is an error envelope from the server. The exchange it
// ends has failed; the session remains usable.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "server error: " + e.Message
}

// IsRemoteError reports whether err is or wraps a *RemoteError.
func IsRemoteError(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote)
}
