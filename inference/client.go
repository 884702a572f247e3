// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Package inference streams chat completions from a local Ollama
// server.
//
// [Client.StreamChat] posts to /api/chat with streaming enabled and
// reads the newline-delimited JSON response one object at a time,
// handing each non-empty content fragment to a callback. A stream has
// no overall timeout: it ends at done, at an error object, or when the
// caller's context is cancelled.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/quicpair/quicpair/lib/netutil"
	"github.com/quicpair/quicpair/lib/version"
)

// DefaultBaseURL is Ollama's default listen address.
const DefaultBaseURL = "http://127.0.0.1:11434"

// DefaultNumPredict caps generated tokens when the caller sets no
// options.
const DefaultNumPredict = 512

// keepAlive is how long Ollama keeps a warmed model loaded.
const keepAlive = "5m"

var (
	// ErrUnavailable means the inference server could not be reached.
	ErrUnavailable = errors.New("inference server unavailable")

	// ErrNotLocal is returned by NewClient in strict local mode when
	// the base URL is not a local address.
	ErrNotLocal = errors.New("inference URL is not a local address")
)

// Error is a failure reported by the inference server, either as a
// non-2xx response or as an error object inside the stream.
// StatusCode is zero for in-stream errors.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("inference: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return "inference: " + e.Message
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the Ollama server, DefaultBaseURL when empty.
	BaseURL string

	// StrictLocal refuses a BaseURL whose host is not a local
	// address.
	StrictLocal bool

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to one Ollama server. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates the configuration and returns a Client.
func NewClient(config ClientConfig) (*Client, error) {
	raw := config.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing inference URL %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("inference URL %q: scheme must be http or https", raw)
	}
	if config.StrictLocal && !netutil.IsLocalHost(base.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrNotLocal, raw)
	}

	client := &Client{
		baseURL:    base,
		httpClient: config.HTTPClient,
		logger:     config.Logger,
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{}
	}
	if client.logger == nil {
		client.logger = slog.Default()
	}
	return client, nil
}

// ChatRequest is one prompt for StreamChat.
type ChatRequest struct {
	Model  string
	Prompt string

	// Options are passed through to Ollama. Nil means
	// {"num_predict": DefaultNumPredict}.
	Options map[string]any
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatBody struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// chatLine is one object of the NDJSON response.
type chatLine struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error"`
}

// StreamChat runs request and calls onDelta with each content fragment
// in order. It returns nil once the server reports done. An error from
// onDelta stops the stream and is returned as is.
func (c *Client) StreamChat(ctx context.Context, request ChatRequest, onDelta func(content string) error) error {
	options := request.Options
	if options == nil {
		options = map[string]any{"num_predict": DefaultNumPredict}
	}
	response, err := c.post(ctx, "/api/chat", chatBody{
		Model:    request.Model,
		Messages: []chatMessage{{Role: "user", Content: request.Prompt}},
		Stream:   true,
		Options:  options,
	})
	if err != nil {
		return err
	}
	defer response.Body.Close()

	decoder := json.NewDecoder(response.Body)
	for {
		var line chatLine
		if err := decoder.Decode(&line); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("inference stream ended before done: %w", io.ErrUnexpectedEOF)
			}
			return fmt.Errorf("decoding inference stream: %w", err)
		}
		if line.Error != "" {
			return &Error{Message: line.Error}
		}
		if line.Message.Content != "" {
			if err := onDelta(line.Message.Content); err != nil {
				return err
			}
		}
		if line.Done {
			return nil
		}
	}
}

// Warmup asks the server to load model and keep it resident, so the
// first real prompt does not pay the load time.
func (c *Client) Warmup(ctx context.Context, model string) error {
	response, err := c.post(ctx, "/api/generate", map[string]any{
		"model":      model,
		"prompt":     "",
		"stream":     false,
		"keep_alive": keepAlive,
	})
	if err != nil {
		return err
	}
	defer response.Body.Close()
	io.Copy(io.Discard, io.LimitReader(response.Body, netutil.MaxBodySize))
	c.logger.Info("model warmed", "model", model)
	return nil
}

// Version returns the server's reported version. It doubles as a
// health check.
func (c *Client) Version(ctx context.Context) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/version"), nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	request.Header.Set("User-Agent", version.UserAgent())
	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", c.unavailable(ctx, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return "", &Error{StatusCode: response.StatusCode, Message: netutil.ErrorBody(response.Body)}
	}
	var body struct {
		Version string `json:"version"`
	}
	if err := netutil.DecodeJSON(response.Body, &body); err != nil {
		return "", err
	}
	return body.Version, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("User-Agent", version.UserAgent())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, c.unavailable(ctx, err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		defer response.Body.Close()
		return nil, &Error{StatusCode: response.StatusCode, Message: errorMessage(response.Body)}
	}
	return response, nil
}

func (c *Client) unavailable(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.logger.Warn("inference server unreachable", "url", c.baseURL.String(), "error", err)
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (c *Client) endpoint(path string) string {
	return strings.TrimSuffix(c.baseURL.String(), "/") + path
}

// errorMessage extracts Ollama's {"error": "..."} body, falling back
// to the raw text.
func errorMessage(body io.Reader) string {
	raw := netutil.ErrorBody(body)
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(raw), &parsed) == nil && parsed.Error != "" {
		return parsed.Error
	}
	return raw
}
