// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"strings"
	"time"
)

// Request is one prompt.
type Request struct {
	Prompt string

	// Model is the server-side model name. Empty falls back to
	// Config.DefaultModel, and then to the server's default.
	Model string

	// OnDelta, when set, receives each content fragment as it arrives.
	// It runs on the session goroutine and must not call back into the
	// Session.
	OnDelta func(content string)
}

// Completion is the result of an exchange.
type Completion struct {
	ExchangeID string

	// Text is every delta concatenated in arrival order. A failed
	// exchange carries whatever arrived before the failure.
	Text string

	// TTFT is the time from send to the first delta, or zero when the
	// exchange ended without one.
	TTFT time.Duration
}

// Exchange is a chat request in flight.
type Exchange struct {
	id      string
	request Request
	started time.Time

	// Fields below are owned by the session goroutine until done is
	// closed, and read-only afterwards.
	text       strings.Builder
	ttft       time.Duration
	firstToken bool
	err        error
	done       chan struct{}
}

func newExchange(id string, request Request, started time.Time) *Exchange {
	return &Exchange{
		id:      id,
		request: request,
		started: started,
		done:    make(chan struct{}),
	}
}

// ID returns the exchange identifier, also used for its latency sample.
func (e *Exchange) ID() string { return e.id }

// Done is closed when the exchange ends.
func (e *Exchange) Done() <-chan struct{} { return e.done }

// Wait blocks until the exchange ends or ctx is done. Cancelling ctx
// stops the wait, not the exchange.
func (e *Exchange) Wait(ctx context.Context) (Completion, error) {
	select {
	case <-e.done:
		return e.result()
	case <-ctx.Done():
		return Completion{ExchangeID: e.id}, ctx.Err()
	}
}

func (e *Exchange) result() (Completion, error) {
	return Completion{
		ExchangeID: e.id,
		Text:       e.text.String(),
		TTFT:       e.ttft,
	}, e.err
}

func (e *Exchange) finish(err error) {
	e.err = err
	close(e.done)
}
