package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the delivery lifecycle of a message: sent -> delivered -> read.
type Status string

const (
	// StatusSent marks a sender-side optimistic copy not yet confirmed by the server.
	StatusSent Status = "sent"
	// StatusDelivered marks a message accepted and persisted by the server.
	StatusDelivered Status = "delivered"
	// StatusRead marks a message the counterpart has viewed.
	StatusRead Status = "read"
)

// Rank orders statuses; unknown values rank -1.
func (s Status) Rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// Advance returns the later of s and next. Status never regresses.
func (s Status) Advance(next Status) Status {
	if next.Rank() > s.Rank() {
		return next
	}
	return s
}

// UnmarshalJSON rejects unknown statuses.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !Status(raw).Valid() {
		return fmt.Errorf("unknown message status %q", raw)
	}
	*s = Status(raw)
	return nil
}

// Message is the domain model for a chat message.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Text           string
	Image          string
	CreatedAt      time.Time
	Status         Status
}

// HasContent reports whether the message carries text or an image.
func (m *Message) HasContent() bool {
	return m.Text != "" || m.Image != ""
}
