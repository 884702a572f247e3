// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/quicpair/quicpair/handshake"
	"github.com/quicpair/quicpair/inference"
	"github.com/quicpair/quicpair/lib/netutil"
	"github.com/quicpair/quicpair/pairing"
	"github.com/quicpair/quicpair/protocol"
	"github.com/quicpair/quicpair/transport"
)

// errExchangeBusy is sent to a peer that starts a chat while its
// previous one is still streaming.
const errExchangeBusy = "exchange already in progress"

// peer is one authenticated client channel.
type peer struct {
	channel transport.Channel
	sealer  *handshake.Channel
	logger  *slog.Logger
}

// send seals and sends one envelope. It is called from the peer loop
// and from the streaming goroutine; the sealer and the channel both
// serialize concurrent senders.
func (p *peer) send(envelope protocol.Envelope) error {
	data, err := protocol.Encode(envelope)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", envelope.Op(), err)
	}
	frame, err := p.sealer.Seal(data)
	if err != nil {
		return fmt.Errorf("sealing %s: %w", envelope.Op(), err)
	}
	return p.channel.Send(transport.Message{Data: frame})
}

// ServePeer runs the handshake on channel and then serves chat
// envelopes until the channel closes or ctx ends. It closes channel
// before returning. The returned error is nil for an orderly close.
func (s *Server) ServePeer(ctx context.Context, channel transport.Channel) error {
	defer channel.Close()
	s.active.Add(1)
	defer s.active.Add(-1)

	logger := s.logger.With("peer", uuid.NewString())

	sealer, err := s.acceptHandshake(ctx, channel, logger)
	if err != nil {
		logger.Warn("peer handshake failed", "error", err)
		return err
	}
	p := &peer{channel: channel, sealer: sealer, logger: logger}

	var (
		streaming bool
		finished  = make(chan struct{}, 1)
	)
	streamContext, cancelStream := context.WithCancel(ctx)
	defer func() {
		cancelStream()
		if streaming {
			<-finished
		}
	}()

	for {
		select {
		case message := <-channel.Receive():
			envelope, ok := p.open(message)
			if !ok {
				continue
			}
			if unknown, isUnknown := envelope.(protocol.Unknown); isUnknown && unknown.Name == "ping" {
				if err := p.send(pong); err != nil {
					return closeError(err)
				}
				continue
			}
			chat, ok := envelope.(protocol.Chat)
			if !ok {
				logger.Debug("ignoring envelope", "op", envelope.Op())
				continue
			}
			if streaming {
				logger.Info("refusing overlapping chat")
				if err := p.send(protocol.Error{Message: errExchangeBusy}); err != nil {
					return closeError(err)
				}
				continue
			}
			streaming = true
			go func() {
				s.stream(streamContext, p, chat)
				finished <- struct{}{}
			}()

		case <-finished:
			streaming = false

		case <-channel.Closed():
			logger.Info("peer disconnected")
			return nil

		case <-ctx.Done():
			return nil
		}
	}
}

// acceptHandshake waits for keyInit, answers it, and returns the
// sealing channel. Anything else that arrives first is dropped.
func (s *Server) acceptHandshake(ctx context.Context, channel transport.Channel, logger *slog.Logger) (*handshake.Channel, error) {
	timer := s.clock.NewTimer(s.config.HandshakeTimeout)
	defer timer.Stop()

	for {
		select {
		case message := <-channel.Receive():
			if !message.Text {
				logger.Debug("dropping binary frame before authentication")
				continue
			}
			envelope, err := protocol.Decode(message.Data)
			if err != nil {
				logger.Warn("dropping malformed envelope during handshake", "error", err)
				continue
			}
			init, ok := envelope.(protocol.KeyInit)
			if !ok {
				logger.Warn("dropping envelope before authentication", "op", envelope.Op())
				continue
			}

			ack, sealer, clientStatic, err := handshake.NewResponder(s.config.KeyPair, nil).HandleKeyInit(init)
			if err != nil {
				return nil, err
			}
			data, err := protocol.Encode(ack)
			if err != nil {
				return nil, fmt.Errorf("encoding keyAck: %w", err)
			}
			if err := channel.Send(transport.Message{Data: data, Text: true}); err != nil {
				return nil, fmt.Errorf("sending keyAck: %w", err)
			}
			logger.Info("peer authenticated", "client_key", pairing.Fingerprint(clientStatic[:]))
			return sealer, nil

		case <-channel.Closed():
			return nil, transport.ErrClosed

		case <-timer.C:
			return nil, fmt.Errorf("%w: no keyInit within %s", handshake.ErrFailed, s.config.HandshakeTimeout)

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// pong answers the keepalive ping that older clients send.
var pong = protocol.Unknown{Name: "pong", Raw: json.RawMessage(`{"op":"pong"}`)}

// open opens and decodes an inbound message. Anything that is not a
// sealed envelope is logged and dropped.
func (p *peer) open(message transport.Message) (protocol.Envelope, bool) {
	if message.Text {
		p.logger.Warn("dropping unsealed text message after authentication")
		return nil, false
	}
	plaintext, err := p.sealer.Open(message.Data)
	if err != nil {
		p.logger.Warn("dropping frame", "error", err)
		return nil, false
	}
	envelope, err := protocol.Decode(plaintext)
	if err != nil {
		p.logger.Warn("dropping malformed envelope", "error", err)
		return nil, false
	}
	return envelope, true
}

// stream runs one chat against the inference backend, relaying deltas
// and ending with done or error.
func (s *Server) stream(ctx context.Context, p *peer, chat protocol.Chat) {
	logger := p.logger
	err := s.complete(ctx, logger, inference.ChatRequest{Model: chat.Model, Prompt: chat.Prompt},
		func(content string) error {
			return p.send(protocol.Delta{Content: content})
		})

	switch {
	case err == nil:
		err = p.send(protocol.Done{})
	case ctx.Err() != nil || netutil.IsExpectedCloseError(err):
		return
	default:
		logger.Warn("inference failed", "error", err)
		err = p.send(protocol.Error{Message: remoteMessage(err)})
	}
	if err != nil && !netutil.IsExpectedCloseError(err) {
		logger.Warn("sending end of exchange", "error", err)
	}
}

// remoteMessage is the text put in an error envelope.
func remoteMessage(err error) string {
	var inferenceErr *inference.Error
	switch {
	case errors.As(err, &inferenceErr):
		return inferenceErr.Message
	case errors.Is(err, inference.ErrUnavailable):
		return "inference server unavailable"
	default:
		return "inference failed"
	}
}

// closeError maps a send failure on a closing channel to nil.
func closeError(err error) error {
	if netutil.IsExpectedCloseError(err) {
		return nil
	}
	return err
}
