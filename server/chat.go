// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/quicpair/quicpair/inference"
	"github.com/quicpair/quicpair/latency"
	"github.com/quicpair/quicpair/lib/netutil"
)

// complete runs one prompt against the inference backend and records
// server-side time to first token when the first delta arrives. An
// empty model falls back to the configured default.
func (s *Server) complete(ctx context.Context, logger *slog.Logger, request inference.ChatRequest, onDelta func(content string) error) error {
	if request.Model == "" {
		request.Model = s.config.DefaultModel
	}
	exchangeID := uuid.NewString()
	started := s.clock.Now()
	firstToken := false

	return s.config.Inference.StreamChat(ctx, request, func(content string) error {
		if !firstToken {
			firstToken = true
			elapsed := s.clock.Since(started)
			s.latency.Record(latency.Sample{ExchangeID: exchangeID, Elapsed: elapsed, At: s.clock.Now()})
			logger.Info("first token", "exchange", exchangeID, "model", request.Model, "ttft", elapsed)
		}
		return onDelta(content)
	})
}

// httpChatRequest is the body of POST /api/chat. It takes a bare
// prompt or Ollama's messages form; with messages, the last user
// message is the prompt.
type httpChatRequest struct {
	Model    string `json:"model"`
	Prompt   string `json:"prompt"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Options map[string]any `json:"options"`
}

func (r httpChatRequest) prompt() string {
	if r.Prompt != "" {
		return r.Prompt
	}
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" || r.Messages[i].Role == "" {
			return r.Messages[i].Content
		}
	}
	return ""
}

// httpChatLine is one NDJSON line of the /api/chat response, in
// Ollama's shape so that Ollama clients can read it.
type httpChatLine struct {
	Model   string       `json:"model"`
	Message *chatMessage `json:"message,omitempty"`
	Done    bool         `json:"done"`
	Error   string       `json:"error,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// handleChat streams a completion over plain HTTP as NDJSON. It shares
// the default model and TTFT recording with data channel peers.
func (s *Server) handleChat(writer http.ResponseWriter, request *http.Request) {
	var body httpChatRequest
	if err := netutil.DecodeJSON(request.Body, &body); err != nil {
		writeJSON(writer, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	prompt := body.prompt()
	if prompt == "" {
		writeJSON(writer, http.StatusBadRequest, map[string]string{"error": "no prompt"})
		return
	}
	model := body.Model
	if model == "" {
		model = s.config.DefaultModel
	}
	logger := s.logger.With("remote", request.RemoteAddr, "model", model)

	controller := http.NewResponseController(writer)
	encoder := json.NewEncoder(writer)
	started := false
	writeLine := func(line httpChatLine) error {
		if !started {
			started = true
			writer.Header().Set("Content-Type", "application/x-ndjson")
			writer.Header().Set("Cache-Control", "no-cache")
			writer.WriteHeader(http.StatusOK)
		}
		if err := encoder.Encode(line); err != nil {
			return err
		}
		return controller.Flush()
	}

	err := s.complete(request.Context(), logger,
		inference.ChatRequest{Model: model, Prompt: prompt, Options: body.Options},
		func(content string) error {
			return writeLine(httpChatLine{Model: model, Message: &chatMessage{Role: "assistant", Content: content}})
		})

	switch {
	case err == nil:
		writeLine(httpChatLine{Model: model, Done: true})
	case request.Context().Err() != nil:
		logger.Debug("chat client went away")
	case started:
		logger.Warn("inference failed mid-stream", "error", err)
		writeLine(httpChatLine{Model: model, Done: true, Error: remoteMessage(err)})
	default:
		logger.Warn("inference failed", "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, inference.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(writer, status, map[string]string{"error": remoteMessage(err)})
	}
}
