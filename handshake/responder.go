// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"fmt"
	"io"

	"github.com/quicpair/quicpair/protocol"
)

// Responder runs the server side of the handshake. One Responder may
// serve any number of connections.
type Responder struct {
	static StaticKey
	random io.Reader
}

// NewResponder returns a Responder for the server's static key. random
// nil means crypto/rand.
func NewResponder(static StaticKey, random io.Reader) *Responder {
	return &Responder{static: static, random: random}
}

// HandleKeyInit answers a client's keyInit. It returns the keyAck to
// send, the sealing channel, and the client's static key.
func (r *Responder) HandleKeyInit(init protocol.KeyInit) (protocol.KeyAck, *Channel, [KeySize]byte, error) {
	var none [KeySize]byte

	initiatorStatic, err := publicKeyFrom("client public key", init.PublicKey)
	if err != nil {
		return protocol.KeyAck{}, nil, none, err
	}
	initiatorEphemeral, err := publicKeyFrom("client ephemeral key", init.Ephemeral)
	if err != nil {
		return protocol.KeyAck{}, nil, none, err
	}

	ephemeral, err := newEphemeral(r.random)
	if err != nil {
		return protocol.KeyAck{}, nil, none, fmt.Errorf("%w: %v", ErrFailed, err)
	}
	defer ephemeral.wipe()

	ee, err := ephemeral.dh(initiatorEphemeral)
	if err != nil {
		return protocol.KeyAck{}, nil, none, fmt.Errorf("%w: ee: %v", ErrFailed, err)
	}
	es, err := r.static.DH(initiatorEphemeral)
	if err != nil {
		return protocol.KeyAck{}, nil, none, fmt.Errorf("%w: es: %v", ErrFailed, err)
	}
	se, err := ephemeral.dh(initiatorStatic)
	if err != nil {
		return protocol.KeyAck{}, nil, none, fmt.Errorf("%w: se: %v", ErrFailed, err)
	}
	ss, err := r.static.DH(initiatorStatic)
	if err != nil {
		return protocol.KeyAck{}, nil, none, fmt.Errorf("%w: ss: %v", ErrFailed, err)
	}

	responderStatic := r.static.PublicKey()
	keys, err := deriveSchedule(&transcript{
		initiatorStatic:    initiatorStatic,
		initiatorEphemeral: initiatorEphemeral,
		responderStatic:    responderStatic,
		responderEphemeral: ephemeral.public,
	}, ee, es, se, ss)
	if err != nil {
		return protocol.KeyAck{}, nil, none, fmt.Errorf("%w: %v", ErrFailed, err)
	}
	defer keys.wipe()

	channel, err := newChannel(keys.responderToInitiator, keys.initiatorToResponder, keys.hash)
	if err != nil {
		return protocol.KeyAck{}, nil, none, fmt.Errorf("%w: %v", ErrFailed, err)
	}

	ack := protocol.KeyAck{
		PublicKey: responderStatic[:],
		Ephemeral: append([]byte(nil), ephemeral.public[:]...),
		Confirm:   keys.confirmation(),
	}
	return ack, channel, initiatorStatic, nil
}
