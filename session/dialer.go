// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"log/slog"

	"github.com/quicpair/quicpair/pairing"
	"github.com/quicpair/quicpair/signaling"
	"github.com/quicpair/quicpair/transport"
)

// Dialer opens a transport channel to a paired server.
type Dialer interface {
	Dial(ctx context.Context, descriptor pairing.ConnectionDescriptor) (transport.Channel, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, descriptor pairing.ConnectionDescriptor) (transport.Channel, error)

func (f DialerFunc) Dial(ctx context.Context, descriptor pairing.ConnectionDescriptor) (transport.Channel, error) {
	return f(ctx, descriptor)
}

// WebRTCDialer negotiates a WebRTC data channel through the server's
// signaling endpoint. One Dial is one signaling attempt.
type WebRTCDialer struct {
	Signaling *signaling.Client
	ICE       transport.ICEConfig
	Logger    *slog.Logger
}

func (d *WebRTCDialer) Dial(ctx context.Context, descriptor pairing.ConnectionDescriptor) (transport.Channel, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return transport.Dial(ctx, d.Signaling.Signaler(descriptor), d.ICE,
		logger.With("server", descriptor.ServerAddress))
}
