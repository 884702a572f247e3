// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/quicpair/quicpair/lib/testutil"
)

// loopbackSignaler answers offers in-process and hands the accepted
// server-side channel to the test.
func loopbackSignaler(t *testing.T, accepted chan<- Channel) Signaler {
	logger := testutil.Logger(t)
	return SignalerFunc(func(ctx context.Context, offerSDP string) (string, error) {
		answered, err := Answer(ctx, offerSDP, ICEConfig{}, logger)
		if err != nil {
			return "", err
		}
		go func() {
			channel, err := answered.Accept(context.Background())
			if err != nil {
				t.Errorf("Accept: %v", err)
				return
			}
			accepted <- channel
		}()
		return answered.SDP, nil
	})
}

func TestDialAndAnswerLoopback(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	accepted := make(chan Channel, 1)
	client, err := Dial(ctx, loopbackSignaler(t, accepted), ICEConfig{}, testutil.Logger(t))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	server := testutil.RequireReceive(t, accepted, 30*time.Second, "server channel")
	defer server.Close()

	if err := client.Send(Message{Data: []byte(`{"op":"keyInit"}`), Text: true}); err != nil {
		t.Fatalf("client Send: %v", err)
	}
	received := testutil.RequireReceive(t, server.Receive(), 10*time.Second, "text at server")
	if !received.Text || string(received.Data) != `{"op":"keyInit"}` {
		t.Fatalf("server received %+v", received)
	}

	if err := server.Send(Message{Data: []byte{0xde, 0xad, 0xbe, 0xef}}); err != nil {
		t.Fatalf("server Send: %v", err)
	}
	reply := testutil.RequireReceive(t, client.Receive(), 10*time.Second, "binary at client")
	if reply.Text || string(reply.Data) != "\xde\xad\xbe\xef" {
		t.Fatalf("client received %+v", reply)
	}

	client.Close()
	testutil.RequireClosed(t, server.Closed(), 30*time.Second, "server sees client close")
}

func TestDialSignalingErrorLeavesNothingOpen(t *testing.T) {
	rejected := errors.New("rejected by test")
	signaler := SignalerFunc(func(context.Context, string) (string, error) {
		return "", rejected
	})

	_, err := Dial(context.Background(), signaler, ICEConfig{}, testutil.Logger(t))
	if !errors.Is(err, rejected) {
		t.Fatalf("Dial error = %v, want signaler error", err)
	}
}

func TestDialRejectsGarbageAnswer(t *testing.T) {
	signaler := SignalerFunc(func(context.Context, string) (string, error) {
		return "not an sdp", nil
	})
	_, err := Dial(context.Background(), signaler, ICEConfig{}, testutil.Logger(t))
	if err == nil || !strings.Contains(err.Error(), "remote description") {
		t.Fatalf("Dial error = %v, want remote description error", err)
	}
}

func TestAnswerRejectsGarbageOffer(t *testing.T) {
	if _, err := Answer(context.Background(), "v=garbage", ICEConfig{}, testutil.Logger(t)); err == nil {
		t.Fatal("Answer accepted a garbage offer")
	}
}
