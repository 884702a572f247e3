// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "sync"

// Pipe returns two connected in-memory channels. A message sent on one
// is received on the other in order. Closing either end closes both.
func Pipe() (Channel, Channel) {
	shared := &pipeShared{closed: make(chan struct{})}
	a := &pipeEnd{shared: shared, inbound: make(chan Message, inboundBuffer)}
	b := &pipeEnd{shared: shared, inbound: make(chan Message, inboundBuffer)}
	a.peer, b.peer = b, a
	return a, b
}

type pipeShared struct {
	closeOnce sync.Once
	closed    chan struct{}
}

type pipeEnd struct {
	shared  *pipeShared
	inbound chan Message
	peer    *pipeEnd
}

func (p *pipeEnd) Send(message Message) error {
	select {
	case <-p.shared.closed:
		return ErrClosed
	default:
	}
	data := make([]byte, len(message.Data))
	copy(data, message.Data)
	select {
	case p.peer.inbound <- Message{Data: data, Text: message.Text}:
		return nil
	case <-p.shared.closed:
		return ErrClosed
	}
}

func (p *pipeEnd) Receive() <-chan Message { return p.inbound }

func (p *pipeEnd) Closed() <-chan struct{} { return p.shared.closed }

func (p *pipeEnd) Close() error {
	p.shared.closeOnce.Do(func() { close(p.shared.closed) })
	return nil
}
