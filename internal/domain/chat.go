package domain

import "context"

// Recognized conversation roles. Turns carrying any other role are
// filtered out of history reads and skipped on writes.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape exchanged
// between the session memory, the agent runtime and the handlers.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RecognizedRole reports whether role is one the conversation contract accepts.
func RecognizedRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}

// ConversationMemory is the session-history contract the agent runtime
// consumes as its memory backend. Implementations are backed by external
// state; nothing is held in memory between events.
type ConversationMemory interface {
	// GetItems returns the session's turns in createdAt order.
	// A limit <= 0 means no cap.
	GetItems(ctx context.Context, limit int) ([]ChatMessage, error)
	// AddItems appends the recognized-role items as one atomic write,
	// preserving submission order. Unrecognized roles are skipped.
	AddItems(ctx context.Context, items []ChatMessage) error
	// PopItem removes and returns the most recent turn, or nil when the
	// session is empty.
	PopItem(ctx context.Context) (*ChatMessage, error)
	// Clear deletes every turn in the session.
	Clear(ctx context.Context) error
}
