// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 32)
	ephemeral := bytes.Repeat([]byte{0x22}, 32)
	confirm := bytes.Repeat([]byte{0x33}, 32)

	envelopes := []Envelope{
		Chat{Model: "qwen2.5:3b", Prompt: "Hi", Stream: true},
		Chat{Prompt: "no model, no stream"},
		Delta{Content: "Hel"},
		Delta{Content: ""},
		Done{},
		Error{Message: "model not found"},
		KeyInit{PublicKey: key, Ephemeral: ephemeral},
		KeyAck{PublicKey: key, Ephemeral: ephemeral, Confirm: confirm},
	}
	for _, original := range envelopes {
		t.Run(original.Op(), func(t *testing.T) {
			data, err := Encode(original)
			if err != nil {
				t.Fatalf("Encode(%#v): %v", original, err)
			}
			decoded, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode(%s): %v", data, err)
			}
			if !reflect.DeepEqual(decoded, original) {
				t.Fatalf("Decode(Encode(e)) = %#v, want %#v", decoded, original)
			}
		})
	}
}

func TestEncodeWireShape(t *testing.T) {
	data, err := Encode(Chat{Model: "m", Prompt: "p", Stream: true})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := map[string]any{"op": "chat", "model": "m", "prompt": "p", "stream": true}
	if !reflect.DeepEqual(fields, want) {
		t.Fatalf("chat wire = %v, want %v", fields, want)
	}

	data, err = Encode(Error{Message: "boom"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(data) != `{"op":"error","error":"boom"}` {
		t.Fatalf("error wire = %s", data)
	}

	data, err = Encode(Done{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(data) != `{"op":"done"}` {
		t.Fatalf("done wire = %s", data)
	}
}

func TestDecodeLegacyHandshakeOps(t *testing.T) {
	decoded, err := Decode([]byte(`{"op":"noise_init","publicKey":"AAEC","ephemeral":"AwQF"}`))
	if err != nil {
		t.Fatalf("Decode(noise_init): %v", err)
	}
	keyInit, ok := decoded.(KeyInit)
	if !ok {
		t.Fatalf("noise_init decoded to %T, want KeyInit", decoded)
	}
	if !bytes.Equal(keyInit.PublicKey, []byte{0, 1, 2}) || !bytes.Equal(keyInit.Ephemeral, []byte{3, 4, 5}) {
		t.Fatalf("KeyInit = %+v", keyInit)
	}

	decoded, err = Decode([]byte(`{"op":"noise_pubkey","publicKey":"AAEC"}`))
	if err != nil {
		t.Fatalf("Decode(noise_pubkey): %v", err)
	}
	if _, ok := decoded.(KeyAck); !ok {
		t.Fatalf("noise_pubkey decoded to %T, want KeyAck", decoded)
	}
}

func TestDecodeUnknownOp(t *testing.T) {
	input := []byte(`{"op":"ping","t":1}`)
	decoded, err := Decode(input)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	unknown, ok := decoded.(Unknown)
	if !ok {
		t.Fatalf("decoded %T, want Unknown", decoded)
	}
	if unknown.Op() != "ping" || string(unknown.Raw) != string(input) {
		t.Fatalf("Unknown = %+v", unknown)
	}

	// Unknown ops may reuse known field names with other types.
	for _, other := range []string{
		`{"op":"status","content":{"tokens":12}}`,
		`{"op":"ping","stream":"yes"}`,
		`{"op":"rekey","publicKey":"not base64!!"}`,
	} {
		decoded, err := Decode([]byte(other))
		if err != nil {
			t.Fatalf("Decode(%s): %v", other, err)
		}
		if u, ok := decoded.(Unknown); !ok || string(u.Raw) != other {
			t.Fatalf("Decode(%s) = %#v, want Unknown with raw bytes", other, decoded)
		}
	}

	encoded, err := Encode(unknown)
	if err != nil {
		t.Fatalf("Encode(Unknown): %v", err)
	}
	if string(encoded) != string(input) {
		t.Fatalf("Encode(Unknown) = %s, want %s", encoded, input)
	}
}

func TestDecodeMalformed(t *testing.T) {
	inputs := map[string]string{
		"empty":             ``,
		"not json":          `op=chat`,
		"array":             `[{"op":"chat"}]`,
		"string":            `"chat"`,
		"null":              `null`,
		"missing op":        `{"prompt":"hi"}`,
		"numeric op":        `{"op":7}`,
		"null op":           `{"op":null}`,
		"empty op":          `{"op":""}`,
		"prompt wrong type": `{"op":"chat","prompt":42}`,
		"stream wrong type": `{"op":"chat","prompt":"hi","stream":"yes"}`,
		"content object":    `{"op":"delta","content":{"text":"x"}}`,
		"bad base64":        `{"op":"keyInit","publicKey":"%%%"}`,
		"truncated":         `{"op":"delta","content":"Hel`,
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			decoded, err := Decode([]byte(input))
			if !errors.Is(err, ErrMalformedEnvelope) {
				t.Fatalf("Decode(%q) = %#v, %v; want ErrMalformedEnvelope", input, decoded, err)
			}
		})
	}
}

func TestIsHandshake(t *testing.T) {
	if !IsHandshake(KeyInit{}) || !IsHandshake(KeyAck{}) {
		t.Fatal("IsHandshake false for a handshake envelope")
	}
	for _, envelope := range []Envelope{Chat{}, Delta{}, Done{}, Error{}, Unknown{Name: "x"}} {
		if IsHandshake(envelope) {
			t.Fatalf("IsHandshake(%T) = true", envelope)
		}
	}
}

func TestEncodeRejectsNil(t *testing.T) {
	if _, err := Encode(nil); err == nil {
		t.Fatal("Encode(nil) succeeded")
	}
}
