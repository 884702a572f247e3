// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"

	"github.com/quicpair/quicpair/lib/netutil"
	"github.com/quicpair/quicpair/lib/version"
	"github.com/quicpair/quicpair/signaling"
)

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle(signaling.OfferPath, signaling.Handler(s, s.logger))
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /metrics/ttft", s.handleTTFT)
	mux.HandleFunc("GET /pairing", s.handlePairing)

	if s.config.StrictLocal {
		return netutil.RequireLocal(mux, s.logger)
	}
	return mux
}

func (s *Server) handleHealth(writer http.ResponseWriter, request *http.Request) {
	writeJSON(writer, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Info(),
		"peers":   s.ActivePeers(),
	})
}

func (s *Server) handleTTFT(writer http.ResponseWriter, request *http.Request) {
	writeJSON(writer, http.StatusOK, s.latency.Summary().Milliseconds())
}

func (s *Server) handlePairing(writer http.ResponseWriter, request *http.Request) {
	payload, err := s.PairingPayload()
	if err != nil {
		s.logger.Error("building pairing payload", "error", err)
		writeJSON(writer, http.StatusInternalServerError, map[string]string{"error": "pairing payload unavailable"})
		return
	}
	writer.Header().Set("Content-Type", "application/json")
	writer.Write(payload)
}

func writeJSON(writer http.ResponseWriter, status int, value any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(value)
}
