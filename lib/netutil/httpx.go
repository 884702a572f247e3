// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds the HTTP and address helpers shared by the
// signaling client, the pairing server, and the inference client.
//
// Response helpers bound every body read at MaxBodySize. Signaling
// answers and error bodies are a few kilobytes; anything past the
// bound is a misbehaving peer. Streaming bodies (the inference NDJSON
// stream) are read line by line instead.
//
// Local-address helpers implement strict local mode: loopback,
// RFC 1918 private, link-local, and CGNAT (100.64.0.0/10) addresses
// are local; everything else is refused.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// MaxBodySize bounds request and response body reads: 1 MiB.
const MaxBodySize int64 = 1 << 20

// maxErrorBody bounds how much of an error body ends up in an error
// message.
const maxErrorBody = 512

// ReadBody reads at most MaxBodySize bytes from body. A body larger
// than the bound is an error rather than a silent truncation.
func ReadBody(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxBodySize {
		return nil, fmt.Errorf("body exceeds %d bytes", MaxBodySize)
	}
	return data, nil
}

// DecodeJSON reads a bounded body and decodes it into v.
func DecodeJSON(body io.Reader, v any) error {
	data, err := ReadBody(body)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	return nil
}

// ErrorBody returns the start of an error response body for use in an
// error message. Read errors are ignored.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	return strings.TrimSpace(string(data))
}
