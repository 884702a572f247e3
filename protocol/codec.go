// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEnvelope is returned by Decode for input that is not an
// envelope at all.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// wireEnvelope is the flat JSON form of every variant. Byte fields
// are base64 strings.
type wireEnvelope struct {
	Op        string `json:"op"`
	Model     string `json:"model,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
	Stream    *bool  `json:"stream,omitempty"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
	PublicKey []byte `json:"publicKey,omitempty"`
	Ephemeral []byte `json:"ephemeral,omitempty"`
	Confirm   []byte `json:"confirm,omitempty"`
}

// Encode serializes e. Unknown envelopes are written back as their
// original bytes.
func Encode(e Envelope) ([]byte, error) {
	var wire wireEnvelope
	switch v := e.(type) {
	case Chat:
		stream := v.Stream
		wire = wireEnvelope{Op: OpChat, Model: v.Model, Prompt: v.Prompt, Stream: &stream}
	case Delta:
		wire = wireEnvelope{Op: OpDelta, Content: v.Content}
	case Done:
		wire = wireEnvelope{Op: OpDone}
	case Error:
		wire = wireEnvelope{Op: OpError, Error: v.Message}
	case KeyInit:
		wire = wireEnvelope{Op: OpKeyInit, PublicKey: v.PublicKey, Ephemeral: v.Ephemeral}
	case KeyAck:
		wire = wireEnvelope{Op: OpKeyAck, PublicKey: v.PublicKey, Ephemeral: v.Ephemeral, Confirm: v.Confirm}
	case Unknown:
		if len(v.Raw) == 0 {
			return nil, fmt.Errorf("encoding unknown op %q: no raw bytes", v.Name)
		}
		return append([]byte(nil), v.Raw...), nil
	case nil:
		return nil, errors.New("encoding nil envelope")
	default:
		return nil, fmt.Errorf("encoding envelope: unsupported type %T", e)
	}
	return json.Marshal(wire)
}

// Decode parses one envelope. Its only error is ErrMalformedEnvelope,
// wrapped with detail.
func Decode(data []byte) (Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, malformed("not a JSON object")
	}

	rawOp, ok := fields["op"]
	if !ok {
		return nil, malformed(`missing "op"`)
	}
	var op *string
	if err := json.Unmarshal(rawOp, &op); err != nil || op == nil {
		return nil, malformed(`"op" is not a string`)
	}
	if *op == "" {
		return nil, malformed(`empty "op"`)
	}
	if !known(*op) {
		return Unknown{Name: *op, Raw: append(json.RawMessage(nil), data...)}, nil
	}

	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		var typeError *json.UnmarshalTypeError
		if errors.As(err, &typeError) {
			return nil, malformed(fmt.Sprintf("field %q has the wrong type", typeError.Field))
		}
		return nil, malformed(err.Error())
	}

	switch *op {
	case OpChat:
		return Chat{Model: wire.Model, Prompt: wire.Prompt, Stream: wire.Stream != nil && *wire.Stream}, nil
	case OpDelta:
		return Delta{Content: wire.Content}, nil
	case OpDone:
		return Done{}, nil
	case OpError:
		return Error{Message: wire.Error}, nil
	case OpKeyInit, legacyOpKeyInit:
		return KeyInit{PublicKey: wire.PublicKey, Ephemeral: wire.Ephemeral}, nil
	default:
		return KeyAck{PublicKey: wire.PublicKey, Ephemeral: wire.Ephemeral, Confirm: wire.Confirm}, nil
	}
}

// known reports whether op names a variant other than Unknown. Fields
// of unknown ops are never inspected.
func known(op string) bool {
	switch op {
	case OpChat, OpDelta, OpDone, OpError, OpKeyInit, legacyOpKeyInit, OpKeyAck, legacyOpKeyAck:
		return true
	}
	return false
}

func malformed(detail string) error {
	return fmt.Errorf("%w: %s", ErrMalformedEnvelope, detail)
}
