// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/quicpair/quicpair/lib/netutil"
)

// Answerer turns an offer into an answer.
type Answerer interface {
	Answer(ctx context.Context, offerSDP string) (answerSDP string, err error)
}

// AnswererFunc adapts a function to Answerer.
type AnswererFunc func(ctx context.Context, offerSDP string) (string, error)

func (f AnswererFunc) Answer(ctx context.Context, offerSDP string) (string, error) {
	return f(ctx, offerSDP)
}

// Handler serves POST OfferPath.
func Handler(answerer Answerer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost {
			writer.Header().Set("Allow", http.MethodPost)
			writeError(writer, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var offer sdpMessage
		if err := netutil.DecodeJSON(request.Body, &offer); err != nil {
			writeError(writer, http.StatusBadRequest, "invalid offer body")
			return
		}
		if strings.TrimSpace(offer.SDP) == "" {
			writeError(writer, http.StatusBadRequest, "offer has no sdp")
			return
		}

		answer, err := answerer.Answer(request.Context(), offer.SDP)
		if err != nil {
			logger.Error("answering offer failed",
				"remote", request.RemoteAddr,
				"error", err,
			)
			writeError(writer, http.StatusInternalServerError, "could not answer offer")
			return
		}

		logger.Info("offer answered", "remote", request.RemoteAddr)
		writer.Header().Set("Content-Type", "application/json")
		json.NewEncoder(writer).Encode(sdpMessage{SDP: answer})
	})
}

func writeError(writer http.ResponseWriter, status int, message string) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(map[string]string{"error": message})
}
