// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

type keyRecord struct {
	Version    int    `cbor:"version"`
	Algorithm  string `cbor:"algorithm"`
	PrivateKey []byte `cbor:"private_key"`
}

func TestMarshalIsDeterministic(t *testing.T) {
	record := keyRecord{Version: 1, Algorithm: "x25519", PrivateKey: bytes.Repeat([]byte{7}, 32)}

	first, err := Marshal(record)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(record)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("Marshal produced different bytes for the same record")
	}

	var decoded keyRecord
	if err := Unmarshal(first, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Version != 1 || decoded.Algorithm != "x25519" || !bytes.Equal(decoded.PrivateKey, record.PrivateKey) {
		t.Fatalf("decoded = %+v, want %+v", decoded, record)
	}
}

func TestMapKeysSorted(t *testing.T) {
	// Core deterministic encoding orders keys by their encoded bytes:
	// shorter keys first, then bytewise.
	data, err := Marshal(map[string]int{"alpha": 1, "zeta": 2, "beta": 3})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	beta, zeta, alpha := strings.Index(diagnostic, `"beta"`), strings.Index(diagnostic, `"zeta"`), strings.Index(diagnostic, `"alpha"`)
	if beta < 0 || zeta < 0 || alpha < 0 || !(beta < zeta && zeta < alpha) {
		t.Fatalf("keys not in encoded order (beta, zeta, alpha): %s", diagnostic)
	}
}

func TestUnmarshalAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"algorithm": "x25519"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	asMap, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	if asMap["algorithm"] != "x25519" {
		t.Fatalf("algorithm = %v, want x25519", asMap["algorithm"])
	}
}

func TestUnmarshalRejectsDuplicateKeys(t *testing.T) {
	// {"version": 1, "version": 2}
	data := []byte{0xa2, 0x67, 'v', 'e', 'r', 's', 'i', 'o', 'n', 0x01, 0x67, 'v', 'e', 'r', 's', 'i', 'o', 'n', 0x02}
	var decoded keyRecord
	if err := Unmarshal(data, &decoded); err == nil {
		t.Fatal("Unmarshal accepted duplicate map keys")
	}
}
