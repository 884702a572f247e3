// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"net"
)

// ChannelLabel is the data channel label both peers use.
const ChannelLabel = "llm"

// inboundBuffer is how many received messages a channel holds before
// the sender blocks.
const inboundBuffer = 64

// Message is one data channel message.
type Message struct {
	Data []byte

	// Text is true for text messages and false for binary ones.
	Text bool
}

// Channel is an open, ordered, reliable message channel to one peer.
//
// Receive never closes. Consumers select on Receive and Closed
// together; after Closed fires, messages that arrived before the close
// may still be buffered on Receive.
type Channel interface {
	Send(Message) error
	Receive() <-chan Message
	Closed() <-chan struct{}
	Close() error
}

// ErrClosed is returned by Send on a closed channel. It wraps
// net.ErrClosed.
var ErrClosed = fmt.Errorf("transport: channel closed: %w", net.ErrClosed)

// IsClosed reports whether err came from a closed channel.
func IsClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
