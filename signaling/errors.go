// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout means the server did not answer within the timeout.
	ErrTimeout = errors.New("signaling timed out")

	// ErrRejected means the server answered with something other than
	// a usable SDP answer.
	ErrRejected = errors.New("signaling rejected")

	// ErrUnreachable means no HTTP response was received.
	ErrUnreachable = errors.New("signaling server unreachable")
)

// StatusError is a non-2xx signaling response. It matches ErrRejected
// under errors.Is.
//
//	var statusErr *signaling.StatusError
//	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusForbidden { ... }
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("signaling rejected: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("signaling rejected: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrRejected }
