// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build version of the QuicPair binaries.
//
// Release builds set the variables with -ldflags:
//
//	go build -ldflags "-X github.com/quicpair/quicpair/lib/version.Version=0.2.0 -X github.com/quicpair/quicpair/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Development builds fall back to the VCS stamp the Go toolchain
// records in the binary.
package version
