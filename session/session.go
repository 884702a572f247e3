// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/quicpair/quicpair/handshake"
	"github.com/quicpair/quicpair/keystore"
	"github.com/quicpair/quicpair/latency"
	"github.com/quicpair/quicpair/lib/clock"
	"github.com/quicpair/quicpair/pairing"
	"github.com/quicpair/quicpair/protocol"
	"github.com/quicpair/quicpair/signaling"
	"github.com/quicpair/quicpair/transport"
)

// Config configures Connect.
type Config struct {
	Descriptor pairing.ConnectionDescriptor

	// KeyPair is the client's static key. Nil generates an ephemeral
	// key for this session only, which a server cannot recognize
	// across reconnects.
	KeyPair handshake.StaticKey

	Dialer Dialer

	// HandshakeTimeout bounds the wait for keyAck after the transport
	// opens. Zero means signaling.DefaultTimeout.
	HandshakeTimeout time.Duration

	// DefaultModel fills Request.Model when it is empty.
	DefaultModel string

	// Latency receives one TTFT sample per completed exchange. Nil
	// disables recording.
	Latency *latency.Recorder

	// OnStateChange observes every state transition. It runs on the
	// goroutine making the transition and must not block.
	OnStateChange func(State)

	Clock  clock.Clock
	Random io.Reader
	Logger *slog.Logger
}

// Session is an authenticated connection to one server.
type Session struct {
	id         string
	descriptor pairing.ConnectionDescriptor
	peerStatic [handshake.KeySize]byte

	channel transport.Channel
	sealer  *handshake.Channel

	defaultModel  string
	clock         clock.Clock
	latency       *latency.Recorder
	onStateChange func(State)
	logger        *slog.Logger

	// ephemeral is the key generated when Config.KeyPair was nil.
	ephemeral *keystore.KeyPair

	state    atomic.Int32
	commands chan sendCommand
	closing  chan struct{}
	once     sync.Once
	done     chan struct{}

	// err is written by the session goroutine before done closes.
	err error

	// exchange is owned by the session goroutine.
	exchange *Exchange
}

type sendCommand struct {
	request Request
	reply   chan sendReply
}

type sendReply struct {
	exchange *Exchange
	err      error
}

// Connect dials the descriptor's server, runs the handshake, and
// returns an Idle session. On any failure nothing is left open.
//
// When the descriptor carries a static key, the server must present
// it. Otherwise the key the server presents is accepted and returned
// by PeerStatic so the caller can pin it.
func Connect(ctx context.Context, config Config) (*Session, error) {
	if config.Dialer == nil {
		return nil, errors.New("session: Dialer is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = signaling.DefaultTimeout
	}

	s := &Session{
		id:            uuid.NewString(),
		descriptor:    config.Descriptor,
		defaultModel:  config.DefaultModel,
		clock:         config.Clock,
		latency:       config.Latency,
		onStateChange: config.OnStateChange,
		commands:      make(chan sendCommand),
		closing:       make(chan struct{}),
		done:          make(chan struct{}),
	}
	s.logger = config.Logger.With("session", s.id, "server", config.Descriptor.ServerAddress)

	static := config.KeyPair
	if static == nil {
		ephemeral, err := keystore.Ephemeral()
		if err != nil {
			return nil, fmt.Errorf("generating session key: %w", err)
		}
		s.ephemeral = ephemeral
		static = ephemeral
		s.logger.Warn("no persistent key, using an ephemeral key for this session")
	}

	s.setState(Connecting)
	channel, err := config.Dialer.Dial(ctx, config.Descriptor)
	if err != nil {
		s.abandon()
		return nil, fmt.Errorf("connecting to %s: %w", config.Descriptor.ServerAddress, err)
	}
	s.channel = channel

	s.setState(Handshaking)
	initiator := handshake.NewInitiator(static, config.Descriptor.StaticPublicKey, config.Random)
	if err := s.authenticate(ctx, initiator, config.HandshakeTimeout); err != nil {
		channel.Close()
		s.abandon()
		return nil, err
	}
	s.sealer = initiator.Channel()
	s.peerStatic = initiator.PeerStatic()

	s.logger.Info("session authenticated",
		"server_key", pairing.Fingerprint(s.peerStatic[:]),
		"pinned", config.Descriptor.Pinned(),
	)
	s.setState(Idle)
	go s.run()
	return s, nil
}

// authenticate sends keyInit and waits for a valid keyAck. Anything
// else arriving first is dropped.
func (s *Session) authenticate(ctx context.Context, initiator *handshake.Initiator, timeout time.Duration) error {
	keyInit, err := initiator.Start()
	if err != nil {
		return err
	}
	data, err := protocol.Encode(keyInit)
	if err != nil {
		return fmt.Errorf("encoding keyInit: %w", err)
	}
	if err := s.channel.Send(transport.Message{Data: data, Text: true}); err != nil {
		return fmt.Errorf("sending keyInit: %w: %v", ErrChannelClosed, err)
	}

	timer := s.clock.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case message := <-s.channel.Receive():
			ack, ok := s.keyAckFrom(message)
			if !ok {
				continue
			}
			if err := initiator.HandleKeyAck(ack); err != nil {
				s.logger.Warn("handshake failed", "error", err)
				return err
			}
			return nil

		case <-s.channel.Closed():
			initiator.Abort()
			return fmt.Errorf("%w during handshake", ErrChannelClosed)

		case <-timer.C:
			initiator.Abort()
			s.logger.Warn("handshake timed out", "timeout", timeout)
			return ErrHandshakeTimeout

		case <-ctx.Done():
			initiator.Abort()
			return ctx.Err()
		}
	}
}

func (s *Session) keyAckFrom(message transport.Message) (protocol.KeyAck, bool) {
	if !message.Text {
		s.logger.Debug("dropping binary frame before authentication", "bytes", len(message.Data))
		return protocol.KeyAck{}, false
	}
	envelope, err := protocol.Decode(message.Data)
	if err != nil {
		s.logger.Warn("dropping malformed envelope during handshake", "error", err)
		return protocol.KeyAck{}, false
	}
	ack, ok := envelope.(protocol.KeyAck)
	if !ok {
		s.logger.Debug("dropping envelope before authentication", "op", envelope.Op())
		return protocol.KeyAck{}, false
	}
	return ack, true
}

// abandon releases a session that never started its goroutine.
func (s *Session) abandon() {
	if s.ephemeral != nil {
		s.ephemeral.Close()
	}
	s.setState(Closed)
	close(s.done)
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Descriptor returns the descriptor the session connected with.
func (s *Session) Descriptor() pairing.ConnectionDescriptor { return s.descriptor }

// PeerStatic returns the server's authenticated static public key.
func (s *Session) PeerStatic() [handshake.KeySize]byte { return s.peerStatic }

// State returns the current state.
func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns why the session ended: ErrChannelClosed or
// ErrSessionClosed. It is nil while the session is live.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Send starts an exchange. It fails with ErrExchangeInProgress while
// another exchange is in flight.
func (s *Session) Send(ctx context.Context, request Request) (*Exchange, error) {
	command := sendCommand{request: request, reply: make(chan sendReply, 1)}
	select {
	case s.commands <- command:
	case <-s.done:
		return nil, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	reply := <-command.reply
	return reply.exchange, reply.err
}

// Close ends the session. An exchange in flight fails with
// ErrSessionClosed; it records no latency sample unless its first
// token already arrived. Close is
// idempotent and waits for the session goroutine to exit.
func (s *Session) Close() error {
	s.once.Do(func() { close(s.closing) })
	<-s.done
	return nil
}

func (s *Session) setState(state State) {
	previous := State(s.state.Swap(int32(state)))
	s.logger.Debug("session state", "from", previous.String(), "state", state.String())
	if s.onStateChange != nil {
		s.onStateChange(state)
	}
}

// run is the session goroutine.
func (s *Session) run() {
	defer close(s.done)
	defer func() {
		if s.ephemeral != nil {
			s.ephemeral.Close()
		}
	}()

	for {
		select {
		case command := <-s.commands:
			// Messages already received are handled before the new
			// exchange starts.
			s.drain()
			exchange, err := s.start(command.request)
			command.reply <- sendReply{exchange: exchange, err: err}

		case message := <-s.channel.Receive():
			s.handle(message)

		case <-s.channel.Closed():
			// Messages that arrived before the close still count.
			s.drain()
			s.shutdown(ErrChannelClosed)
			return

		case <-s.closing:
			s.shutdown(ErrSessionClosed)
			return
		}
	}
}

// drain handles every message already buffered on the channel.
func (s *Session) drain() {
	for {
		select {
		case message := <-s.channel.Receive():
			s.handle(message)
		default:
			return
		}
	}
}

func (s *Session) shutdown(reason error) {
	s.err = reason
	s.setState(Closed)
	if s.exchange != nil {
		s.logger.Info("exchange abandoned", "exchange", s.exchange.id, "reason", reason)
		s.exchange.finish(reason)
		s.exchange = nil
	}
	s.channel.Close()
	if errors.Is(reason, ErrChannelClosed) {
		s.logger.Info("session channel closed")
	}
}

func (s *Session) start(request Request) (*Exchange, error) {
	if s.State().busy() {
		return nil, ErrExchangeInProgress
	}
	model := request.Model
	if model == "" {
		model = s.defaultModel
	}

	plaintext, err := protocol.Encode(protocol.Chat{Model: model, Prompt: request.Prompt, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("encoding chat: %w", err)
	}
	frame, err := s.sealer.Seal(plaintext)
	if err != nil {
		return nil, fmt.Errorf("sealing chat: %w", err)
	}

	exchange := newExchange(uuid.NewString(), request, s.clock.Now())
	if err := s.channel.Send(transport.Message{Data: frame}); err != nil {
		if transport.IsClosed(err) {
			return nil, ErrChannelClosed
		}
		return nil, fmt.Errorf("sending chat: %w", err)
	}
	s.exchange = exchange
	s.setState(AwaitingFirstToken)
	s.logger.Debug("exchange started", "exchange", exchange.id, "model", model)
	return exchange, nil
}

// handle processes one inbound message. Only sealed binary frames are
// application traffic after authentication.
func (s *Session) handle(message transport.Message) {
	if message.Text {
		s.logger.Warn("dropping unsealed text message after authentication", "bytes", len(message.Data))
		return
	}
	plaintext, err := s.sealer.Open(message.Data)
	if err != nil {
		s.logger.Warn("dropping frame", "error", err)
		return
	}
	envelope, err := protocol.Decode(plaintext)
	if err != nil {
		s.logger.Warn("dropping malformed envelope", "error", err)
		return
	}

	switch envelope := envelope.(type) {
	case protocol.Delta:
		s.handleDelta(envelope)
	case protocol.Done:
		s.complete(nil)
	case protocol.Error:
		s.complete(&RemoteError{Message: envelope.Message})
	default:
		s.logger.Debug("ignoring envelope", "op", envelope.Op())
	}
}

func (s *Session) handleDelta(delta protocol.Delta) {
	exchange := s.exchange
	if exchange == nil {
		s.logger.Debug("dropping delta outside an exchange")
		return
	}
	if !exchange.firstToken {
		exchange.firstToken = true
		exchange.ttft = s.clock.Since(exchange.started)
		if s.latency != nil {
			s.latency.Record(latency.Sample{
				ExchangeID: exchange.id,
				Elapsed:    exchange.ttft,
				At:         s.clock.Now(),
			})
		}
		s.setState(Streaming)
		s.logger.Debug("first token", "exchange", exchange.id, "ttft", exchange.ttft)
	}
	exchange.text.WriteString(delta.Content)
	if exchange.request.OnDelta != nil {
		exchange.request.OnDelta(delta.Content)
	}
}

// complete ends the current exchange on done (err nil) or a server
// error.
func (s *Session) complete(err error) {
	exchange := s.exchange
	if exchange == nil {
		if err != nil {
			s.logger.Warn("server error outside an exchange", "error", err)
		} else {
			s.logger.Debug("dropping done outside an exchange")
		}
		return
	}
	s.exchange = nil
	s.setState(Idle)
	exchange.finish(err)

	if err != nil {
		s.logger.Info("exchange failed", "exchange", exchange.id, "error", err)
	} else {
		s.logger.Info("exchange complete", "exchange", exchange.id, "ttft", exchange.ttft)
	}
}
