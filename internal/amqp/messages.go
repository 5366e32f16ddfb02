package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"budgetbuddy/internal/notify"
)

// EventMessage is the wire form of a notify.Event.
type EventMessage struct {
	Kind       notify.Kind `json:"kind"`
	UserID     string      `json:"userId,omitempty"`
	State      string      `json:"state,omitempty"`
	MutationID string      `json:"mutationId,omitempty"`
	Pending    int         `json:"pending,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// NewEventMessage converts e for publishing.
func NewEventMessage(e notify.Event) *EventMessage {
	ts := e.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &EventMessage{
		Kind:       e.Kind,
		UserID:     e.UserID,
		State:      e.State,
		MutationID: e.MutationID,
		Pending:    e.Pending,
		Timestamp:  ts,
	}
}

// Event converts the message back.
func (m *EventMessage) Event() notify.Event {
	return notify.Event{
		Kind:       m.Kind,
		UserID:     m.UserID,
		State:      m.State,
		MutationID: m.MutationID,
		Pending:    m.Pending,
		At:         m.Timestamp,
	}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON parses a message. Messages without a kind are rejected.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind == "" {
		return nil, errors.New("event message without kind")
	}
	return &msg, nil
}
