package domain

import "time"

// Session is a persistent conversation between a user and the assistant.
// Sessions have no fixed lifecycle; they persist until explicitly deleted
// and can be resumed at any time with all prior turns retained.
type Session struct {
	SessionID string
	UserID    string
	// Name is empty until the first exchange, when a short summary of
	// the opening prompt is written onto the session.
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Turn is a single persisted conversation message. Turns are immutable
// once written except for deletion; within a session they form a strict
// total order by CreatedAt.
type Turn struct {
	ID              string
	SessionID       string
	UserID          string
	Role            string
	Message         string
	CreatedAt       time.Time
	ClientMessageID string
}
