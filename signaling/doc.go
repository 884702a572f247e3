// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Package signaling exchanges the WebRTC offer and answer with a
// pairing server over plain HTTP on the local network.
//
//	POST http://<serverAddress>/signaling/offer   {"sdp": "<offer>"}
//	200 OK                                         {"sdp": "<answer>"}
//
// [Client.Negotiate] makes exactly one attempt, bounded by a timeout
// (5s unless configured). Its failures are classified so a UI can say
// what went wrong:
//
//   - [ErrTimeout]: no complete answer in time
//   - [ErrUnreachable]: no HTTP response at all (refused, no route,
//     DNS failure)
//   - [ErrRejected]: a response that is not a usable answer (non-2xx
//     status, malformed body, empty sdp); a non-2xx status is a
//     [*StatusError]
//
// Cancellation of the caller's context is returned as the context's
// own error.
//
// [Handler] is the server side of the same exchange.
package signaling
