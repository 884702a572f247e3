// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import "fmt"

// State is the initiator's handshake progress.
type State int

const (
	Idle State = iota
	KeyInitSent
	KeyAckReceived
	Authenticated
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case KeyInitSent:
		return "key-init-sent"
	case KeyAckReceived:
		return "key-ack-received"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}
