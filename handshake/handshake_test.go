// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"bytes"
	"errors"
	"testing"

	"github.com/quicpair/quicpair/keystore"
	"github.com/quicpair/quicpair/protocol"
)

func newKey(t *testing.T) *keystore.KeyPair {
	t.Helper()
	pair, err := keystore.Generate(nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	t.Cleanup(func() { pair.Close() })
	return pair
}

func run(t *testing.T, client *Initiator, responder *Responder) (*Channel, error) {
	t.Helper()
	keyInit, err := client.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if client.State() != KeyInitSent {
		t.Fatalf("state after Start = %s, want %s", client.State(), KeyInitSent)
	}
	ack, serverChannel, clientStatic, err := responder.HandleKeyInit(keyInit)
	if err != nil {
		t.Fatalf("HandleKeyInit: %v", err)
	}
	if !bytes.Equal(clientStatic[:], keyInit.PublicKey) {
		t.Fatal("responder reported a different client key")
	}
	return serverChannel, client.HandleKeyAck(ack)
}

func TestHandshakeTrustOnFirstUse(t *testing.T) {
	clientKey, serverKey := newKey(t), newKey(t)
	client := NewInitiator(clientKey, nil, nil)

	serverChannel, err := run(t, client, NewResponder(serverKey, nil))
	if err != nil {
		t.Fatalf("HandleKeyAck: %v", err)
	}
	if client.State() != Authenticated {
		t.Fatalf("state = %s, want %s", client.State(), Authenticated)
	}
	if client.PeerStatic() != serverKey.PublicKey() {
		t.Fatal("PeerStatic is not the server key")
	}

	frame, err := client.Channel().Seal([]byte(`{"op":"chat","prompt":"Hi"}`))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	plaintext, err := serverChannel.Open(frame)
	if err != nil {
		t.Fatalf("server Open: %v", err)
	}
	if string(plaintext) != `{"op":"chat","prompt":"Hi"}` {
		t.Fatalf("server opened %q", plaintext)
	}

	reply, err := serverChannel.Seal([]byte(`{"op":"done"}`))
	if err != nil {
		t.Fatalf("server Seal: %v", err)
	}
	if opened, err := client.Channel().Open(reply); err != nil || string(opened) != `{"op":"done"}` {
		t.Fatalf("client Open = %q, %v", opened, err)
	}
}

func TestHandshakePinnedKeyMatches(t *testing.T) {
	clientKey, serverKey := newKey(t), newKey(t)
	pinned := serverKey.PublicKey()
	client := NewInitiator(clientKey, pinned[:], nil)
	if _, err := run(t, client, NewResponder(serverKey, nil)); err != nil {
		t.Fatalf("HandleKeyAck with matching pin: %v", err)
	}
}

func TestHandshakePinnedKeyMismatch(t *testing.T) {
	clientKey, serverKey, impostorKey := newKey(t), newKey(t), newKey(t)
	pinned := serverKey.PublicKey()
	client := NewInitiator(clientKey, pinned[:], nil)

	_, err := run(t, client, NewResponder(impostorKey, nil))
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("HandleKeyAck from impostor = %v, want ErrFailed", err)
	}
	if client.State() != Failed || client.Channel() != nil {
		t.Fatalf("state = %s, channel = %v; want failed with no channel", client.State(), client.Channel())
	}
}

func TestHandshakeTamperedConfirm(t *testing.T) {
	clientKey, serverKey := newKey(t), newKey(t)
	client := NewInitiator(clientKey, nil, nil)
	keyInit, err := client.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	ack, _, _, err := NewResponder(serverKey, nil).HandleKeyInit(keyInit)
	if err != nil {
		t.Fatalf("HandleKeyInit: %v", err)
	}
	ack.Confirm[0] ^= 0x01

	if err := client.HandleKeyAck(ack); !errors.Is(err, ErrFailed) {
		t.Fatalf("HandleKeyAck with tampered confirm = %v, want ErrFailed", err)
	}
	if client.State() != Failed {
		t.Fatalf("state = %s, want failed", client.State())
	}
}

func TestHandshakeSubstitutedEphemeral(t *testing.T) {
	clientKey, serverKey := newKey(t), newKey(t)
	client := NewInitiator(clientKey, nil, nil)
	keyInit, err := client.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	ack, _, _, err := NewResponder(serverKey, nil).HandleKeyInit(keyInit)
	if err != nil {
		t.Fatalf("HandleKeyInit: %v", err)
	}
	attacker := newKey(t).PublicKey()
	ack.Ephemeral = attacker[:]

	if err := client.HandleKeyAck(ack); !errors.Is(err, ErrFailed) {
		t.Fatalf("HandleKeyAck with substituted ephemeral = %v, want ErrFailed", err)
	}
}

func TestHandshakeRejectsBadKeys(t *testing.T) {
	serverKey := newKey(t)
	responder := NewResponder(serverKey, nil)

	tests := map[string]protocol.KeyInit{
		"short static":      {PublicKey: []byte{1, 2, 3}, Ephemeral: bytes.Repeat([]byte{9}, KeySize)},
		"missing ephemeral": {PublicKey: bytes.Repeat([]byte{9}, KeySize)},
		"low order points":  {PublicKey: make([]byte, KeySize), Ephemeral: make([]byte, KeySize)},
	}
	for name, keyInit := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, _, err := responder.HandleKeyInit(keyInit); !errors.Is(err, ErrFailed) {
				t.Fatalf("HandleKeyInit = %v, want ErrFailed", err)
			}
		})
	}
}

func TestInitiatorOutOfOrder(t *testing.T) {
	client := NewInitiator(newKey(t), nil, nil)
	if err := client.HandleKeyAck(protocol.KeyAck{}); !errors.Is(err, ErrFailed) {
		t.Fatalf("HandleKeyAck before Start = %v, want ErrFailed", err)
	}
	if _, err := client.Start(); !errors.Is(err, ErrFailed) {
		t.Fatalf("Start after failure = %v, want ErrFailed", err)
	}
}

func TestAbort(t *testing.T) {
	client := NewInitiator(newKey(t), nil, nil)
	if _, err := client.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	client.Abort()
	if client.State() != Failed {
		t.Fatalf("state after Abort = %s, want failed", client.State())
	}
}

func TestChannelRejectsReplayAndTampering(t *testing.T) {
	clientKey, serverKey := newKey(t), newKey(t)
	client := NewInitiator(clientKey, nil, nil)
	serverChannel, err := run(t, client, NewResponder(serverKey, nil))
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}

	first, _ := client.Channel().Seal([]byte("one"))
	second, _ := client.Channel().Seal([]byte("two"))

	tampered := append([]byte(nil), second...)
	tampered[len(tampered)-1] ^= 0xff
	if _, err := serverChannel.Open(tampered); !errors.Is(err, ErrBadFrame) {
		t.Fatalf("Open(tampered) = %v, want ErrBadFrame", err)
	}
	if _, err := serverChannel.Open(first); err != nil {
		t.Fatalf("Open(first): %v", err)
	}
	if _, err := serverChannel.Open(first); !errors.Is(err, ErrBadFrame) {
		t.Fatalf("Open(replayed) = %v, want ErrBadFrame", err)
	}
	if plaintext, err := serverChannel.Open(second); err != nil || string(plaintext) != "two" {
		t.Fatalf("Open(second) = %q, %v", plaintext, err)
	}
	if _, err := serverChannel.Open([]byte{1, 2, 3}); !errors.Is(err, ErrBadFrame) {
		t.Fatalf("Open(short) = %v, want ErrBadFrame", err)
	}
}

func TestChannelDirectionsAreDistinct(t *testing.T) {
	clientKey, serverKey := newKey(t), newKey(t)
	client := NewInitiator(clientKey, nil, nil)
	if _, err := run(t, client, NewResponder(serverKey, nil)); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	frame, _ := client.Channel().Seal([]byte("reflected"))
	if _, err := client.Channel().Open(frame); !errors.Is(err, ErrBadFrame) {
		t.Fatalf("client opened its own frame: %v", err)
	}
}

func TestStateString(t *testing.T) {
	if Authenticated.String() != "authenticated" || State(42).String() != "State(42)" {
		t.Fatalf("unexpected State strings: %s, %s", Authenticated, State(42))
	}
}
