package message

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// Originator identifies the entity a message was produced for.
type Originator struct {
	EntityType string    `json:"entityType"`
	ID         uuid.UUID `json:"id"`
}

// Metadata is the string map carried alongside every message.
type Metadata map[string]string

// Copy returns an independent copy of the metadata.
func (m Metadata) Copy() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Message is the envelope flowing between pipeline nodes. Data holds the
// payload as JSON text; the remaining fields are routed through untouched.
type Message struct {
	ID         uuid.UUID  `json:"id"`
	Type       string     `json:"type" validate:"required"`
	Originator Originator `json:"originator"`
	Metadata   Metadata   `json:"metadata,omitempty"`
	Data       string     `json:"data"`
	Timestamp  time.Time  `json:"ts"`
}

// WithData derives a new message with the same type, originator and
// metadata, a fresh id and the given payload.
func (m Message) WithData(data string) Message {
	return Message{
		ID:         uuid.New(),
		Type:       m.Type,
		Originator: m.Originator,
		Metadata:   m.Metadata.Copy(),
		Data:       data,
		Timestamp:  time.Now().UTC(),
	}
}

// Encode serializes the envelope for transport.
func Encode(msg Message) ([]byte, error) {
	data, err := sonic.ConfigStd.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}

// Decode parses a transported envelope and checks the fields routing relies on.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := sonic.ConfigStd.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if msg.ID == uuid.Nil {
		return Message{}, errors.New("message id missing")
	}
	msg.Type = strings.TrimSpace(msg.Type)
	if msg.Type == "" {
		return Message{}, errors.New("message type missing")
	}
	return msg, nil
}
