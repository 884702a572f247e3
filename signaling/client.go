// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quicpair/quicpair/lib/netutil"
	"github.com/quicpair/quicpair/lib/version"
	"github.com/quicpair/quicpair/pairing"
	"github.com/quicpair/quicpair/transport"
)

// OfferPath is the signaling endpoint on the pairing server.
const OfferPath = "/signaling/offer"

// DefaultTimeout bounds one Negotiate call.
const DefaultTimeout = 5 * time.Second

// sdpMessage is the request and response body.
type sdpMessage struct {
	SDP string `json:"sdp"`
}

// ClientConfig configures a Client. Zero values select defaults.
type ClientConfig struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Client sends offers to pairing servers.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient returns a Client.
func NewClient(config ClientConfig) *Client {
	client := &Client{
		httpClient: config.HTTPClient,
		timeout:    config.Timeout,
		logger:     config.Logger,
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{}
	}
	if client.timeout <= 0 {
		client.timeout = DefaultTimeout
	}
	if client.logger == nil {
		client.logger = slog.Default()
	}
	return client
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Negotiate posts offerSDP to the descriptor's server and returns the
// answer SDP.
func (c *Client) Negotiate(ctx context.Context, descriptor pairing.ConnectionDescriptor, offerSDP string) (string, error) {
	endpoint := (&url.URL{Scheme: "http", Host: descriptor.ServerAddress, Path: OfferPath}).String()

	body, err := json.Marshal(sdpMessage{SDP: offerSDP})
	if err != nil {
		return "", fmt.Errorf("encoding offer: %w", err)
	}

	callContext, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(callContext, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: building request for %s: %v", ErrUnreachable, descriptor.ServerAddress, err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("User-Agent", version.UserAgent())

	started := time.Now()
	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", c.classify(ctx, descriptor.ServerAddress, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: response.StatusCode, Body: netutil.ErrorBody(response.Body)}
		c.logger.Warn("signaling rejected",
			"server", descriptor.ServerAddress,
			"status", response.StatusCode,
		)
		return "", statusErr
	}

	var answer sdpMessage
	if err := netutil.DecodeJSON(response.Body, &answer); err != nil {
		if callContext.Err() != nil {
			return "", c.classify(ctx, descriptor.ServerAddress, err)
		}
		return "", fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if strings.TrimSpace(answer.SDP) == "" {
		return "", fmt.Errorf("%w: response has no sdp", ErrRejected)
	}

	c.logger.Debug("signaling answered",
		"server", descriptor.ServerAddress,
		"elapsed", time.Since(started),
	)
	return answer.SDP, nil
}

// classify maps a transport-level failure to a signaling error. A
// cancelled parent context is returned as is.
func (c *Client) classify(parent context.Context, server string, err error) error {
	if parentErr := parent.Err(); parentErr != nil && !errors.Is(parentErr, context.DeadlineExceeded) {
		return parentErr
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		c.logger.Warn("signaling timed out", "server", server, "timeout", c.timeout)
		return fmt.Errorf("%w after %s: %s", ErrTimeout, c.timeout, server)
	}

	c.logger.Warn("signaling server unreachable", "server", server, "error", err)
	return fmt.Errorf("%w: %s: %v", ErrUnreachable, server, err)
}

// Signaler binds the client to one server for transport.Dial.
func (c *Client) Signaler(descriptor pairing.ConnectionDescriptor) transport.Signaler {
	return transport.SignalerFunc(func(ctx context.Context, offerSDP string) (string, error) {
		return c.Negotiate(ctx, descriptor, offerSDP)
	})
}
