// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "encoding/json"

// Op names as written on the wire.
const (
	OpChat    = "chat"
	OpDelta   = "delta"
	OpDone    = "done"
	OpError   = "error"
	OpKeyInit = "keyInit"
	OpKeyAck  = "keyAck"

	legacyOpKeyInit = "noise_init"
	legacyOpKeyAck  = "noise_pubkey"
)

// Envelope is one data channel message. The concrete type is one of
// Chat, Delta, Done, Error, KeyInit, KeyAck, or Unknown.
type Envelope interface {
	// Op returns the wire op name.
	Op() string

	envelope()
}

// Chat asks the server to run a prompt.
type Chat struct {
	Model  string
	Prompt string
	Stream bool
}

// Delta is one chunk of generated text.
type Delta struct {
	Content string
}

// Done ends a successful exchange.
type Done struct{}

// Error ends an exchange with a server-side failure. The channel stays
// usable.
type Error struct {
	Message string
}

// KeyInit opens the handshake: the initiator's static and ephemeral
// X25519 public keys.
type KeyInit struct {
	PublicKey []byte
	Ephemeral []byte
}

// KeyAck answers KeyInit with the responder's static and ephemeral
// public keys and a MAC proving it derived the same channel keys.
type KeyAck struct {
	PublicKey []byte
	Ephemeral []byte
	Confirm   []byte
}

// Unknown is a well-formed envelope with an op this version does not
// handle. Raw holds the original bytes.
type Unknown struct {
	Name string
	Raw  json.RawMessage
}

func (Chat) Op() string      { return OpChat }
func (Delta) Op() string     { return OpDelta }
func (Done) Op() string      { return OpDone }
func (Error) Op() string     { return OpError }
func (KeyInit) Op() string   { return OpKeyInit }
func (KeyAck) Op() string    { return OpKeyAck }
func (u Unknown) Op() string { return u.Name }

func (Chat) envelope()    {}
func (Delta) envelope()   {}
func (Done) envelope()    {}
func (Error) envelope()   {}
func (KeyInit) envelope() {}
func (KeyAck) envelope()  {}
func (Unknown) envelope() {}

// IsHandshake reports whether e belongs to the key exchange and so
// travels in plaintext.
func IsHandshake(e Envelope) bool {
	switch e.(type) {
	case KeyInit, KeyAck:
		return true
	}
	return false
}
