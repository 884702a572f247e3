// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
)

// iceGatherTimeout bounds candidate gathering before an SDP is handed
// to signaling.
const iceGatherTimeout = 15 * time.Second

// iceConnectTimeout bounds the wait for the data channel to open after
// the remote description is applied.
const iceConnectTimeout = 30 * time.Second

// Dial opens a data channel to the peer reached through signaler. On
// error nothing is left open.
func Dial(ctx context.Context, signaler Signaler, ice ICEConfig, logger *slog.Logger) (Channel, error) {
	if logger == nil {
		logger = slog.Default()
	}

	connection, err := newPeerConnection(ice)
	if err != nil {
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}

	ordered := true
	rawChannel, err := connection.CreateDataChannel(ChannelLabel, &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("creating data channel %s: %w", ChannelLabel, err)
	}
	channel := newDataChannel(connection, rawChannel, logger)
	connection.OnConnectionStateChange(channel.handleConnectionState)

	offer, err := connection.CreateOffer(nil)
	if err != nil {
		channel.Close()
		return nil, fmt.Errorf("creating SDP offer: %w", err)
	}
	offerSDP, err := gatherLocal(ctx, connection, offer)
	if err != nil {
		channel.Close()
		return nil, err
	}

	answerSDP, err := signaler.ExchangeOffer(ctx, offerSDP)
	if err != nil {
		channel.Close()
		return nil, err
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answerSDP}
	if err := connection.SetRemoteDescription(answer); err != nil {
		channel.Close()
		return nil, fmt.Errorf("setting remote description: %w", err)
	}

	if err := channel.waitOpen(ctx); err != nil {
		channel.Close()
		return nil, err
	}
	logger.Info("data channel established", "label", ChannelLabel)
	return channel, nil
}

// Answered is a PeerConnection that has answered an offer and is
// waiting for the offerer's data channel.
type Answered struct {
	// SDP is the complete answer to return through signaling.
	SDP string

	connection *webrtc.PeerConnection
	logger     *slog.Logger
	accepted   chan *dataChannel
	failed     chan struct{}
}

// Answer applies offerSDP and produces an answer. The caller must
// either Accept or Close the result.
func Answer(ctx context.Context, offerSDP string, ice ICEConfig, logger *slog.Logger) (*Answered, error) {
	if logger == nil {
		logger = slog.Default()
	}

	connection, err := newPeerConnection(ice)
	if err != nil {
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}

	answered := &Answered{
		connection: connection,
		logger:     logger,
		accepted:   make(chan *dataChannel, 1),
		failed:     make(chan struct{}),
	}

	var current atomic.Pointer[dataChannel]
	connection.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			select {
			case <-answered.failed:
			default:
				close(answered.failed)
			}
		}
		if channel := current.Load(); channel != nil {
			channel.handleConnectionState(state)
		}
	})
	connection.OnDataChannel(func(rawChannel *webrtc.DataChannel) {
		if rawChannel.Label() != ChannelLabel {
			logger.Warn("closing unexpected data channel", "label", rawChannel.Label())
			rawChannel.Close()
			return
		}
		channel := newDataChannel(connection, rawChannel, logger)
		current.Store(channel)
		select {
		case answered.accepted <- channel:
		default:
			logger.Warn("closing duplicate data channel", "label", rawChannel.Label())
			rawChannel.Close()
		}
	})

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}
	if err := connection.SetRemoteDescription(offer); err != nil {
		connection.Close()
		return nil, fmt.Errorf("setting remote description: %w", err)
	}
	answer, err := connection.CreateAnswer(nil)
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("creating SDP answer: %w", err)
	}
	answered.SDP, err = gatherLocal(ctx, connection, answer)
	if err != nil {
		connection.Close()
		return nil, err
	}
	return answered, nil
}

// Accept waits for the offerer's data channel to open. On error the
// PeerConnection is closed.
func (a *Answered) Accept(ctx context.Context) (Channel, error) {
	timer := time.NewTimer(iceConnectTimeout)
	defer timer.Stop()

	select {
	case channel := <-a.accepted:
		if err := channel.waitOpen(ctx); err != nil {
			channel.Close()
			return nil, err
		}
		a.logger.Info("data channel accepted", "label", ChannelLabel)
		return channel, nil
	case <-a.failed:
		a.Close()
		return nil, errors.New("peer connection failed before a data channel opened")
	case <-timer.C:
		a.Close()
		return nil, fmt.Errorf("no data channel within %s", iceConnectTimeout)
	case <-ctx.Done():
		a.Close()
		return nil, ctx.Err()
	}
}

// Close abandons the answered connection.
func (a *Answered) Close() error {
	return a.connection.Close()
}

func (d *dataChannel) waitOpen(ctx context.Context) error {
	timer := time.NewTimer(iceConnectTimeout)
	defer timer.Stop()

	select {
	case <-d.opened:
		return nil
	case <-d.closed:
		return errors.New("data channel closed before it opened")
	case <-timer.C:
		return fmt.Errorf("data channel %s did not open within %s", ChannelLabel, iceConnectTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// gatherLocal sets description as the local description and returns
// the SDP once every ICE candidate is in it.
func gatherLocal(ctx context.Context, connection *webrtc.PeerConnection, description webrtc.SessionDescription) (string, error) {
	gatherComplete := webrtc.GatheringCompletePromise(connection)
	if err := connection.SetLocalDescription(description); err != nil {
		return "", fmt.Errorf("setting local description: %w", err)
	}

	timer := time.NewTimer(iceGatherTimeout)
	defer timer.Stop()

	select {
	case <-gatherComplete:
	case <-timer.C:
		return "", fmt.Errorf("ICE gathering timed out after %s", iceGatherTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return connection.LocalDescription().SDP, nil
}

// newPeerConnection creates a PeerConnection that also gathers
// loopback candidates, so a client and server on one machine (and
// tests) can connect.
func newPeerConnection(ice ICEConfig) (*webrtc.PeerConnection, error) {
	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	return api.NewPeerConnection(webrtc.Configuration{ICEServers: ice.Servers})
}
