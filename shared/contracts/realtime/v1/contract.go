// Package v1 defines the realtime wire contract between the DebtEase backend
// and its clients: STOMP topic names and the JSON message delivered on them.
//
// It is shared by every client component that talks to the realtime endpoint
// and has no dependencies beyond the standard library.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Message is one decoded frame delivered to a topic subscriber.
type Message struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Validate checks that the message carries a topic and a JSON payload.
func (m Message) Validate() error {
	if err := ValidateTopic(m.Topic); err != nil {
		return err
	}
	if len(m.Payload) == 0 {
		return errors.New("missing field: payload")
	}
	if !json.Valid(m.Payload) {
		return errors.New("payload is not valid JSON")
	}
	return nil
}

// Decode unmarshals the payload into dst.
func (m Message) Decode(dst any) error {
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Topic, err)
	}
	return nil
}

// ValidateTopic rejects empty or relative destinations.
func ValidateTopic(topic string) error {
	if strings.TrimSpace(topic) == "" {
		return errors.New("missing field: topic")
	}
	if !strings.HasPrefix(topic, "/") {
		return fmt.Errorf("topic must be absolute: %q", topic)
	}
	return nil
}
