// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source used by sessions, latency
// measurement, and handshake deadlines.
//
// Code that measures or waits on time takes a Clock instead of calling
// the time package directly. Binaries pass Real(); tests pass Fake(),
// which only moves when Advance is called, so a test can state that a
// first token arrived exactly 120ms after a prompt was sent.
//
// A goroutine that waits on a fake clock registers a pending timer.
// Tests call WaitForTimers before Advance so that the advance cannot
// race ahead of the registration:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go session.run()           // arms a handshake deadline
//	fake.WaitForTimers(1)
//	fake.Advance(5 * time.Second)
package clock
