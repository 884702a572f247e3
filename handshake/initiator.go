// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"bytes"
	"fmt"
	"io"

	"github.com/quicpair/quicpair/protocol"
)

// Initiator runs the client side of the handshake. It is not safe for
// concurrent use; the session goroutine owns it.
type Initiator struct {
	static StaticKey
	pinned []byte
	random io.Reader

	state      State
	ephemeral  *ephemeralKey
	peerStatic [KeySize]byte
	channel    *Channel
}

// NewInitiator prepares a handshake. pinned is the server static key
// the client already trusts, or nil to accept and learn whatever key
// the server presents. random nil means crypto/rand.
func NewInitiator(static StaticKey, pinned []byte, random io.Reader) *Initiator {
	return &Initiator{
		static: static,
		pinned: append([]byte(nil), pinned...),
		random: random,
	}
}

// State returns the current handshake state.
func (i *Initiator) State() State { return i.state }

// Start generates the ephemeral key and returns the keyInit to send.
func (i *Initiator) Start() (protocol.KeyInit, error) {
	if i.state != Idle {
		return protocol.KeyInit{}, i.fail(fmt.Errorf("%w: Start in state %s", ErrFailed, i.state))
	}
	if len(i.pinned) != 0 && len(i.pinned) != KeySize {
		return protocol.KeyInit{}, i.fail(fmt.Errorf("%w: pinned key is %d bytes, want %d", ErrFailed, len(i.pinned), KeySize))
	}

	ephemeral, err := newEphemeral(i.random)
	if err != nil {
		return protocol.KeyInit{}, i.fail(fmt.Errorf("%w: %v", ErrFailed, err))
	}
	i.ephemeral = ephemeral
	i.state = KeyInitSent

	static := i.static.PublicKey()
	return protocol.KeyInit{
		PublicKey: static[:],
		Ephemeral: append([]byte(nil), ephemeral.public[:]...),
	}, nil
}

// HandleKeyAck verifies the server's answer. On success the state is
// Authenticated and Channel returns the sealing channel.
func (i *Initiator) HandleKeyAck(ack protocol.KeyAck) error {
	if i.state != KeyInitSent {
		return i.fail(fmt.Errorf("%w: keyAck in state %s", ErrFailed, i.state))
	}
	i.state = KeyAckReceived

	responderStatic, err := publicKeyFrom("server public key", ack.PublicKey)
	if err != nil {
		return i.fail(err)
	}
	responderEphemeral, err := publicKeyFrom("server ephemeral key", ack.Ephemeral)
	if err != nil {
		return i.fail(err)
	}
	if len(i.pinned) != 0 && !bytes.Equal(i.pinned, responderStatic[:]) {
		return i.fail(fmt.Errorf("%w: server key does not match the pinned key", ErrFailed))
	}

	ee, err := i.ephemeral.dh(responderEphemeral)
	if err != nil {
		return i.fail(fmt.Errorf("%w: ee: %v", ErrFailed, err))
	}
	es, err := i.ephemeral.dh(responderStatic)
	if err != nil {
		return i.fail(fmt.Errorf("%w: es: %v", ErrFailed, err))
	}
	se, err := i.static.DH(responderEphemeral)
	if err != nil {
		return i.fail(fmt.Errorf("%w: se: %v", ErrFailed, err))
	}
	ss, err := i.static.DH(responderStatic)
	if err != nil {
		return i.fail(fmt.Errorf("%w: ss: %v", ErrFailed, err))
	}

	keys, err := deriveSchedule(&transcript{
		initiatorStatic:    i.static.PublicKey(),
		initiatorEphemeral: i.ephemeral.public,
		responderStatic:    responderStatic,
		responderEphemeral: responderEphemeral,
	}, ee, es, se, ss)
	if err != nil {
		return i.fail(fmt.Errorf("%w: %v", ErrFailed, err))
	}
	defer keys.wipe()

	if !keys.verify(ack.Confirm) {
		return i.fail(fmt.Errorf("%w: confirmation MAC mismatch", ErrFailed))
	}

	channel, err := newChannel(keys.initiatorToResponder, keys.responderToInitiator, keys.hash)
	if err != nil {
		return i.fail(fmt.Errorf("%w: %v", ErrFailed, err))
	}

	i.ephemeral.wipe()
	i.peerStatic = responderStatic
	i.channel = channel
	i.state = Authenticated
	return nil
}

// PeerStatic returns the server's verified static key. It is the zero
// array before Authenticated.
func (i *Initiator) PeerStatic() [KeySize]byte { return i.peerStatic }

// Channel returns the sealing channel, or nil before Authenticated.
func (i *Initiator) Channel() *Channel { return i.channel }

// Abort moves a handshake that has not completed to Failed, for
// example when its deadline passes.
func (i *Initiator) Abort() {
	if i.state != Authenticated {
		i.fail(nil)
	}
}

func (i *Initiator) fail(err error) error {
	i.state = Failed
	if i.ephemeral != nil {
		i.ephemeral.wipe()
	}
	return err
}
