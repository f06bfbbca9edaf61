package events

import (
	"time"

	"github.com/spec-kit/presence-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventPresenceJoined EventType = "presence_joined"
	EventPresenceLeft   EventType = "presence_left"
	EventPresenceSwept  EventType = "presence_swept"
	EventTypingStarted  EventType = "typing_started"
)

// Event represents a presence lifecycle event emitted by services. Delivery
// is best-effort; nothing in the roster protocol depends on it.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ChannelID string      `json:"channel_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// PresenceJoinedPayload payload.
type PresenceJoinedPayload struct {
	IdentityKind domain.IdentityKind `json:"identity_kind"`
	UserID       string              `json:"user_id,omitempty"`
}

// PresenceLeftPayload payload.
type PresenceLeftPayload struct {
	IdentityKind domain.IdentityKind `json:"identity_kind"`
	UserID       string              `json:"user_id,omitempty"`
}

// PresenceSweptPayload payload.
type PresenceSweptPayload struct {
	Removed int64 `json:"removed"`
}

// TypingStartedPayload payload.
type TypingStartedPayload struct {
	UserID string `json:"user_id"`
}
