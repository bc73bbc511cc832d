package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMissingType = errors.New("message has no type")
	ErrMissingData = errors.New("message has no data")
)

// Message is the envelope of every frame
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage wraps data in an envelope stamped with now
func NewMessage(t MessageType, data any, now time.Time) (*Message, error) {
	msg := &Message{Type: t, Timestamp: now}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t, err)
		}
		msg.Data = raw
	}
	return msg, nil
}

// Reply builds a response that carries the request id of m
func (m *Message) Reply(t MessageType, data any, now time.Time) (*Message, error) {
	reply, err := NewMessage(t, data, now)
	if err != nil {
		return nil, err
	}
	reply.RequestID = m.RequestID
	return reply, nil
}

// Decode unmarshals the payload into v
func (m *Message) Decode(v any) error {
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return fmt.Errorf("%s: %w", m.Type, ErrMissingData)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return nil
}

// Parse decodes one frame
func Parse(frame []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	if msg.Type == "" {
		return nil, ErrMissingType
	}
	return &msg, nil
}
