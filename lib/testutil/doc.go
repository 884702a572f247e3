// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by QuicPair tests.
//
// [RequireReceive], [RequireSend], and [RequireClosed] bound a channel
// operation with a wall-clock timeout so a broken test fails instead
// of hanging. They are the only place tests use real time; everything
// under test runs on a clock.FakeClock.
//
// [Logger] returns a logger that discards output, and [StateDir]
// returns a private per-test state directory.
package testutil
