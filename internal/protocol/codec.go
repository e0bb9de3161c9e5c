package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec frames envelopes for one transport encoding. JSON travels in text
// frames, msgpack in binary frames; both use the json struct tags.
type Codec interface {
	Name() string
	Binary() bool
	Encode(m Message) ([]byte, error)
	Decode(data []byte) (Frame, error)
	Unmarshal(payload []byte, v any) error
}

// NewCodec returns the codec registered under name.
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "msgpack":
		return Msgpack{}, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

type JSON struct{}

func (JSON) Name() string { return "json" }
func (JSON) Binary() bool { return false }

func (JSON) Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

func (JSON) Decode(data []byte) (Frame, error) {
	var in struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return Frame{}, fmt.Errorf("decode json envelope: %v: %w", err, ErrBadRequest)
	}
	if in.Type == "" {
		return Frame{}, fmt.Errorf("envelope without type: %w", ErrBadRequest)
	}
	return Frame{Type: in.Type, Payload: in.Payload}, nil
}

func (JSON) Unmarshal(payload []byte, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode json payload: %v: %w", err, ErrBadRequest)
	}
	return nil
}

type Msgpack struct{}

func (Msgpack) Name() string { return "msgpack" }
func (Msgpack) Binary() bool { return true }

func (Msgpack) Encode(m Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Msgpack) Decode(data []byte) (Frame, error) {
	var in struct {
		Type    string             `msgpack:"type"`
		Payload msgpack.RawMessage `msgpack:"payload"`
	}
	if err := msgpack.Unmarshal(data, &in); err != nil {
		return Frame{}, fmt.Errorf("decode msgpack envelope: %v: %w", err, ErrBadRequest)
	}
	if in.Type == "" {
		return Frame{}, fmt.Errorf("envelope without type: %w", ErrBadRequest)
	}
	return Frame{Type: in.Type, Payload: in.Payload}, nil
}

func (Msgpack) Unmarshal(payload []byte, v any) error {
	if len(payload) == 0 {
		return nil
	}
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode msgpack payload: %v: %w", err, ErrBadRequest)
	}
	return nil
}
