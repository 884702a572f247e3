// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Package server is the pairing server: it answers signaling offers,
// authenticates each client with the responder side of the handshake,
// and streams completions from the local inference engine back over
// the sealed channel.
//
// HTTP surface:
//
//	GET  /healthz          liveness, version, connected peers
//	POST /signaling/offer  offer in, answer out
//	GET  /metrics/ttft     {p50_ms, p90_ms, avg_ms, count}
//	GET  /pairing          the pairing payload to render as a QR code
//
// In strict local mode every endpoint refuses peers outside loopback,
// private, link-local, and CGNAT ranges.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quicpair/quicpair/handshake"
	"github.com/quicpair/quicpair/inference"
	"github.com/quicpair/quicpair/latency"
	"github.com/quicpair/quicpair/lib/clock"
	"github.com/quicpair/quicpair/lib/netutil"
	"github.com/quicpair/quicpair/pairing"
	"github.com/quicpair/quicpair/signaling"
	"github.com/quicpair/quicpair/transport"
)

// Inference streams one completion. *inference.Client implements it.
type Inference interface {
	StreamChat(ctx context.Context, request inference.ChatRequest, onDelta func(content string) error) error
}

// warmer is implemented by inference backends that can preload a
// model.
type warmer interface {
	Warmup(ctx context.Context, model string) error
}

// Config configures a Server.
type Config struct {
	// ListenAddress is the TCP address for Start, e.g. ":8443".
	ListenAddress string

	// AdvertiseAddress is the host:port put in the pairing payload.
	// Empty means the first local interface address with the listen
	// port.
	AdvertiseAddress string

	// Label is the human-readable name in the pairing payload.
	Label string

	// KeyPair is the server's static key. Required.
	KeyPair handshake.StaticKey

	// Inference serves chat envelopes. Required.
	Inference Inference

	// DefaultModel is used when a chat envelope names no model.
	DefaultModel string

	StrictLocal bool
	ICE         transport.ICEConfig

	// HandshakeTimeout bounds the wait for keyInit on a new channel.
	// Zero means signaling.DefaultTimeout.
	HandshakeTimeout time.Duration

	// Latency receives server-side TTFT samples. Nil creates a
	// recorder with the default capacity.
	Latency *latency.Recorder

	Clock  clock.Clock
	Logger *slog.Logger
}

// Server is a QuicPair pairing server.
type Server struct {
	config  Config
	latency *latency.Recorder
	clock   clock.Clock
	logger  *slog.Logger

	// ctx is cancelled by Shutdown and bounds every peer.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	peers    sync.WaitGroup
	active   atomic.Int64
	listener net.Listener

	httpServer *http.Server
}

// New validates config and returns a Server. Call Start to listen, or
// mount Handler on an existing HTTP server.
func New(config Config) (*Server, error) {
	if config.KeyPair == nil {
		return nil, errors.New("server: KeyPair is required")
	}
	if config.Inference == nil {
		return nil, errors.New("server: Inference is required")
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = signaling.DefaultTimeout
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	recorder := config.Latency
	if recorder == nil {
		recorder = latency.NewRecorder(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	server := &Server{
		config:  config,
		latency: recorder,
		clock:   config.Clock,
		logger:  config.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	server.httpServer = &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return server, nil
}

// Latency returns the server-side TTFT recorder.
func (s *Server) Latency() *latency.Recorder { return s.latency }

// ActivePeers returns the number of channels currently being served.
func (s *Server) ActivePeers() int { return int(s.active.Load()) }

// Start listens on Config.ListenAddress and serves in the background.
// If the inference backend can preload models, the default model is
// warmed up in the background as well.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.ListenAddress, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("pairing server started",
		"address", listener.Addr().String(),
		"strict_local", s.config.StrictLocal,
	)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	if preloader, ok := s.config.Inference.(warmer); ok && s.config.DefaultModel != "" {
		go func() {
			if err := preloader.Warmup(s.ctx, s.config.DefaultModel); err != nil && s.ctx.Err() == nil {
				s.logger.Warn("model warmup failed", "model", s.config.DefaultModel, "error", err)
			}
		}()
	}
	return nil
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting requests, closes every peer channel, and
// waits for peer goroutines to exit or ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down pairing server")
	s.mu.Lock()
	s.closed = true
	started := s.listener != nil
	s.mu.Unlock()

	var err error
	if started {
		err = s.httpServer.Shutdown(ctx)
	}
	s.cancel()

	finished := make(chan struct{})
	go func() {
		s.peers.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		if err == nil {
			err = fmt.Errorf("waiting for peers: %w", ctx.Err())
		}
	}
	return err
}

// Answer implements signaling.Answerer. The accepted channel is served
// on its own goroutine until it closes or the server shuts down.
func (s *Server) Answer(ctx context.Context, offerSDP string) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", errors.New("server is shutting down")
	}
	s.peers.Add(1)
	s.mu.Unlock()

	answered, err := transport.Answer(ctx, offerSDP, s.config.ICE, s.logger)
	if err != nil {
		s.peers.Done()
		return "", err
	}

	go func() {
		defer s.peers.Done()
		channel, err := answered.Accept(s.ctx)
		if err != nil {
			if s.ctx.Err() == nil {
				s.logger.Warn("peer never opened a data channel", "error", err)
			}
			return
		}
		s.ServePeer(s.ctx, channel)
	}()
	return answered.SDP, nil
}

// PairingAddress returns the address clients should dial.
func (s *Server) PairingAddress() (string, error) {
	if s.config.AdvertiseAddress != "" {
		return s.config.AdvertiseAddress, nil
	}

	port := ""
	if addr := s.Addr(); addr != nil {
		if tcp, ok := addr.(*net.TCPAddr); ok {
			port = strconv.Itoa(tcp.Port)
		}
	}
	if port == "" {
		_, listenPort, err := net.SplitHostPort(s.config.ListenAddress)
		if err != nil {
			return "", fmt.Errorf("listen address %q: %w", s.config.ListenAddress, err)
		}
		port = listenPort
	}

	host, ok := netutil.FirstLocalInterfaceAddr()
	if !ok {
		host = netip.MustParseAddr("127.0.0.1")
	}
	return net.JoinHostPort(host.String(), port), nil
}

// PairingPayload returns the JSON payload to encode in a QR code.
func (s *Server) PairingPayload() ([]byte, error) {
	address, err := s.PairingAddress()
	if err != nil {
		return nil, err
	}
	key := s.config.KeyPair.PublicKey()
	return pairing.Payload(address, key[:], s.config.Label)
}
