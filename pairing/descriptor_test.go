// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package pairing

import (
	"bytes"
	"encoding/base64"
	"errors"
	"regexp"
	"testing"
)

var serverKey = bytes.Repeat([]byte{0xab}, PublicKeySize)

func TestParsePayload(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(serverKey)
	descriptor, err := ParsePayload([]byte(`{"server":"192.168.1.20:8443","publicKey":"` + encoded + `"}`))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if descriptor.ServerAddress != "192.168.1.20:8443" {
		t.Errorf("ServerAddress = %q", descriptor.ServerAddress)
	}
	if !bytes.Equal(descriptor.StaticPublicKey, serverKey) || !descriptor.Pinned() {
		t.Errorf("StaticPublicKey = %x, want %x", descriptor.StaticPublicKey, serverKey)
	}
	if descriptor.Label != "192.168.1.20" {
		t.Errorf("Label = %q, want host", descriptor.Label)
	}
	if !descriptor.LastSeen.IsZero() {
		t.Errorf("LastSeen = %v, want zero before first connect", descriptor.LastSeen)
	}
}

func TestParsePayloadWithoutKey(t *testing.T) {
	descriptor, err := ParsePayload([]byte(`{"server":"studio.local:8443","label":"Studio"}`))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if descriptor.Pinned() || descriptor.StaticPublicKey != nil {
		t.Fatalf("StaticPublicKey = %x, want none", descriptor.StaticPublicKey)
	}
	if descriptor.Label != "Studio" {
		t.Fatalf("Label = %q, want Studio", descriptor.Label)
	}
}

func TestParsePayloadManualEntry(t *testing.T) {
	unpadded := base64.RawURLEncoding.EncodeToString(serverKey)
	data := []byte(`{
  // typed in from the server console
  "server": " 10.0.0.5:8443 ",
  "publicKey": "` + unpadded + `",
}`)
	descriptor, err := ParsePayload(data)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if descriptor.ServerAddress != "10.0.0.5:8443" || !bytes.Equal(descriptor.StaticPublicKey, serverKey) {
		t.Fatalf("descriptor = %+v", descriptor)
	}
}

func TestParsePayloadInvalid(t *testing.T) {
	inputs := map[string]string{
		"not json":      `server=1.2.3.4:8443`,
		"no server":     `{"publicKey":"AAAA"}`,
		"no port":       `{"server":"192.168.1.20"}`,
		"bad port":      `{"server":"192.168.1.20:99999"}`,
		"no host":       `{"server":":8443"}`,
		"short key":     `{"server":"192.168.1.20:8443","publicKey":"AAEC"}`,
		"key not b64":   `{"server":"192.168.1.20:8443","publicKey":"!!!"}`,
		"server number": `{"server":8443}`,
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			if _, err := ParsePayload([]byte(input)); !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("ParsePayload(%s) = %v, want ErrInvalidPayload", input, err)
			}
		})
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	data, err := Payload("192.168.1.20:8443", serverKey, "Studio")
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	descriptor, err := ParsePayload(data)
	if err != nil {
		t.Fatalf("ParsePayload(%s): %v", data, err)
	}
	if descriptor.ServerAddress != "192.168.1.20:8443" || descriptor.Label != "Studio" || !bytes.Equal(descriptor.StaticPublicKey, serverKey) {
		t.Fatalf("descriptor = %+v", descriptor)
	}
	if _, err := Payload("192.168.1.20:8443", []byte{1}, ""); err == nil {
		t.Fatal("Payload accepted a short key")
	}
}

func TestFingerprint(t *testing.T) {
	fingerprint := Fingerprint(serverKey)
	if !regexp.MustCompile(`^[0-9a-f]{4}(-[0-9a-f]{4}){3}$`).MatchString(fingerprint) {
		t.Fatalf("Fingerprint = %q, want xxxx-xxxx-xxxx-xxxx", fingerprint)
	}
	if Fingerprint(serverKey) != fingerprint {
		t.Fatal("Fingerprint is not deterministic")
	}
	other := bytes.Repeat([]byte{0xac}, PublicKeySize)
	if Fingerprint(other) == fingerprint {
		t.Fatal("different keys share a fingerprint")
	}
}
