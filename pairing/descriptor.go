// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package pairing

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"github.com/zeebo/blake3"
)

// PublicKeySize is the size of a server static key.
const PublicKeySize = 32

// ErrInvalidPayload is returned for a pairing payload that cannot be
// turned into a descriptor.
var ErrInvalidPayload = errors.New("invalid pairing payload")

// ConnectionDescriptor is everything needed to reach and authenticate
// one pairing server.
type ConnectionDescriptor struct {
	// ServerAddress is host:port. It identifies the descriptor.
	ServerAddress string `json:"serverAddress"`

	// StaticPublicKey is the pinned server key, or nil if none is
	// known yet.
	StaticPublicKey []byte `json:"staticPublicKey,omitempty"`

	Label    string    `json:"label"`
	LastSeen time.Time `json:"lastSeen"`
}

// Pinned reports whether a server key is known.
func (d ConnectionDescriptor) Pinned() bool {
	return len(d.StaticPublicKey) == PublicKeySize
}

// payload is the QR code JSON.
type payload struct {
	Server    string `json:"server"`
	PublicKey string `json:"publicKey,omitempty"`
	Label     string `json:"label,omitempty"`
}

// ParsePayload reads a pairing payload. The label defaults to the
// server host.
func ParsePayload(data []byte) (ConnectionDescriptor, error) {
	var parsed payload
	if err := json.Unmarshal(jsonc.ToJSON(data), &parsed); err != nil {
		return ConnectionDescriptor{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	address, err := NormalizeAddress(parsed.Server)
	if err != nil {
		return ConnectionDescriptor{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	descriptor := ConnectionDescriptor{ServerAddress: address, Label: parsed.Label}
	if parsed.PublicKey != "" {
		key, err := decodeKey(parsed.PublicKey)
		if err != nil {
			return ConnectionDescriptor{}, fmt.Errorf("%w: publicKey: %v", ErrInvalidPayload, err)
		}
		descriptor.StaticPublicKey = key
	}
	if descriptor.Label == "" {
		host, _, _ := net.SplitHostPort(address)
		descriptor.Label = host
	}
	return descriptor, nil
}

// Payload encodes the pairing payload a server shows as a QR code.
func Payload(serverAddress string, publicKey []byte, label string) ([]byte, error) {
	address, err := NormalizeAddress(serverAddress)
	if err != nil {
		return nil, err
	}
	if len(publicKey) != PublicKeySize {
		return nil, fmt.Errorf("public key is %d bytes, want %d", len(publicKey), PublicKeySize)
	}
	return json.Marshal(payload{
		Server:    address,
		PublicKey: base64.StdEncoding.EncodeToString(publicKey),
		Label:     label,
	})
}

// NormalizeAddress validates a host:port address and trims
// surrounding whitespace. IPv6 hosts must be bracketed.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", errors.New("server address is empty")
	}
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return "", fmt.Errorf("server address %q: %w", address, err)
	}
	if host == "" {
		return "", fmt.Errorf("server address %q has no host", address)
	}
	number, err := strconv.Atoi(port)
	if err != nil || number < 1 || number > 65535 {
		return "", fmt.Errorf("server address %q has invalid port", address)
	}
	return net.JoinHostPort(host, port), nil
}

// decodeKey accepts standard or URL-safe base64, padded or not.
func decodeKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	for _, encoding := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		key, err := encoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		if len(key) != PublicKeySize {
			return nil, fmt.Errorf("decodes to %d bytes, want %d", len(key), PublicKeySize)
		}
		return key, nil
	}
	return nil, errors.New("not base64")
}

// fingerprintKey separates key fingerprints from other BLAKE3 uses.
var fingerprintKey = blake3.Sum256([]byte("quicpair.fingerprint.v1"))

// Fingerprint renders a public key as four groups of four hex digits
// for comparing keys by eye, e.g. "3f2a-91c0-77de-0b45".
func Fingerprint(publicKey []byte) string {
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("pairing: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(publicKey)
	digest := hex.EncodeToString(hasher.Sum(nil)[:8])
	return digest[0:4] + "-" + digest[4:8] + "-" + digest[8:12] + "-" + digest[12:16]
}
