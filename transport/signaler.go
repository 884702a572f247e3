// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "context"

// Signaler delivers a complete SDP offer to the remote peer and
// returns its complete SDP answer. Both carry every ICE candidate, so
// one call is the whole signaling exchange. Implementations must not
// retry.
type Signaler interface {
	ExchangeOffer(ctx context.Context, offerSDP string) (answerSDP string, err error)
}

// SignalerFunc adapts a function to Signaler.
type SignalerFunc func(ctx context.Context, offerSDP string) (string, error)

func (f SignalerFunc) ExchangeOffer(ctx context.Context, offerSDP string) (string, error) {
	return f(ctx, offerSDP)
}
