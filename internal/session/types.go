package session

import "time"

// Status tracks the session lifecycle. A session never returns to an
// earlier status once it starts draining.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusActive     Status = "active"
	StatusDraining   Status = "draining"
	StatusClosed     Status = "closed"
)

// Session is the full lifecycle state for one connected conversation.
type Session struct {
	ID             string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	Status         Status    `json:"status"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// CreateRequest is the optional body for session creation. UserID is the
// principal identifier supplied by the authentication collaborator; it is
// only used to scope generator context, never interpreted here.
type CreateRequest struct {
	UserID string `json:"user_id"`
}

type CreateResponse struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`
	Status          Status    `json:"status"`
	StartedAt       time.Time `json:"started_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
}
