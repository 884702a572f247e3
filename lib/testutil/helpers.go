// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"
)

// Logger returns a JSON logger that writes nowhere. Set
// QUICPAIR_TEST_LOG=1 to send test logs to stderr instead.
func Logger(t testing.TB) *slog.Logger {
	t.Helper()
	var writer io.Writer = io.Discard
	if os.Getenv("QUICPAIR_TEST_LOG") != "" {
		writer = os.Stderr
	}
	return slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// StateDir returns an empty directory with mode 0700, removed when the
// test ends.
func StateDir(t testing.TB) string {
	t.Helper()
	directory := t.TempDir()
	if err := os.Chmod(directory, 0o700); err != nil {
		t.Fatalf("chmod state directory: %v", err)
	}
	return directory
}
