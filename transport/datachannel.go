// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"
)

// dataChannel is a Channel backed by a pion data channel. It owns its
// PeerConnection: closing the channel closes the connection, and a
// failed or closed connection closes the channel.
type dataChannel struct {
	connection *webrtc.PeerConnection
	channel    *webrtc.DataChannel
	logger     *slog.Logger

	inbound chan Message

	opened   chan struct{}
	openOnce sync.Once

	closed    chan struct{}
	closeOnce sync.Once
}

func newDataChannel(connection *webrtc.PeerConnection, channel *webrtc.DataChannel, logger *slog.Logger) *dataChannel {
	d := &dataChannel{
		connection: connection,
		channel:    channel,
		logger:     logger,
		inbound:    make(chan Message, inboundBuffer),
		opened:     make(chan struct{}),
		closed:     make(chan struct{}),
	}

	channel.OnOpen(func() {
		d.logger.Debug("data channel opened", "label", channel.Label())
		d.openOnce.Do(func() { close(d.opened) })
	})
	channel.OnMessage(func(message webrtc.DataChannelMessage) {
		select {
		case d.inbound <- Message{Data: message.Data, Text: message.IsString}:
		case <-d.closed:
		}
	})
	channel.OnClose(func() {
		d.logger.Debug("data channel closed by peer", "label", channel.Label())
		d.shutdown()
	})
	return d
}

// handleConnectionState closes the channel when the PeerConnection
// can no longer carry data.
func (d *dataChannel) handleConnectionState(state webrtc.PeerConnectionState) {
	d.logger.Debug("peer connection state change", "state", state.String())
	switch state {
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		d.shutdown()
	}
}

func (d *dataChannel) Send(message Message) error {
	select {
	case <-d.closed:
		return ErrClosed
	default:
	}

	var err error
	if message.Text {
		err = d.channel.SendText(string(message.Data))
	} else {
		err = d.channel.Send(message.Data)
	}
	if err != nil {
		select {
		case <-d.closed:
			return ErrClosed
		default:
		}
		return fmt.Errorf("transport: sending on data channel: %w", err)
	}
	return nil
}

func (d *dataChannel) Receive() <-chan Message { return d.inbound }

func (d *dataChannel) Closed() <-chan struct{} { return d.closed }

func (d *dataChannel) Close() error {
	d.shutdown()
	return nil
}

// shutdown signals Closed once and releases pion resources. pion
// callbacks may call it, so the release runs on its own goroutine.
func (d *dataChannel) shutdown() {
	d.closeOnce.Do(func() {
		close(d.closed)
		go func() {
			if err := d.channel.Close(); err != nil {
				d.logger.Debug("closing data channel", "error", err)
			}
			if err := d.connection.Close(); err != nil {
				d.logger.Debug("closing peer connection", "error", err)
			}
		}()
	})
}
