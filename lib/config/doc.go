// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads QuicPair configuration for the client
// (cmd/quicpair) and the pairing server (cmd/quicpaird).
//
// A configuration file is named explicitly, either by a --config flag
// ([LoadFile]) or by the QUICPAIR_CONFIG environment variable
// ([Load]). [Resolve] applies that order and falls back to [Default]
// when neither is set. There is no search path.
//
// Files are YAML. A file ending in .json or .jsonc is accepted too:
// comments and trailing commas are stripped first, and the remaining
// JSON is decoded by the same YAML decoder. Durations are Go duration
// strings ("5s", "750ms").
//
// After loading, ${HOME}, ${XDG_STATE_HOME} and ${VAR:-default}
// patterns in path fields are expanded.
package config
