package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"docchat-agent/internal/domain"
)

const (
	defaultSessionID   = "default"
	fallbackName       = "New Chat"
	maxSessionNameLen  = 50
	truncatedNameLen   = 47
	sessionNameEllipse = "..."
)

// SessionStorer is the session-record surface the chat and lifecycle
// services need.
type SessionStorer interface {
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	PutSession(ctx context.Context, sess domain.Session) error
	TouchSession(ctx context.Context, sessionID string, at time.Time) error
	SetSessionName(ctx context.Context, sessionID, name string, at time.Time) error
	ListSessionsByUser(ctx context.Context, userID string) ([]domain.Session, error)
	CountTurns(ctx context.Context, sessionID string) (int, error)
	DeleteSessionCascade(ctx context.Context, sessionID string) error
}

// RegistryReader reads a user's vector store registry.
type RegistryReader interface {
	GetVectorStoreIDs(ctx context.Context, userID string) ([]string, error)
}

// AgentRunner is the external agent runtime. It consumes the session
// memory as its history backend: it reads prior turns, runs the model
// with retrieval over the user's vector stores, and appends the new
// user/assistant turns.
type AgentRunner interface {
	Run(ctx context.Context, memory domain.ConversationMemory, prompt string, vectorStoreIDs []string) (string, error)
	Summarize(ctx context.Context, prompt string) (string, error)
}

// MemoryFactory builds the conversation memory for one (user, session) pair.
type MemoryFactory func(userID, sessionID string) domain.ConversationMemory

// ChatService processes one chat exchange per invocation.
type ChatService struct {
	sessions SessionStorer
	registry RegistryReader
	agent    AgentRunner
	memories MemoryFactory

	now func() time.Time
}

type ChatInput struct {
	UserID    string
	Prompt    string
	SessionID string
	// ClientMessageID is accepted for request dedupe bookkeeping but is
	// otherwise unused by the exchange itself.
	ClientMessageID string
}

type ChatOutput struct {
	Answer    string
	SessionID string
}

// NewChatService wires the chat flow's collaborators.
func NewChatService(sessions SessionStorer, registry RegistryReader, agent AgentRunner, memories MemoryFactory) (*ChatService, error) {
	if sessions == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if registry == nil {
		return nil, errors.New("usecase: registry reader must not be nil")
	}
	if agent == nil {
		return nil, errors.New("usecase: agent runner must not be nil")
	}
	if memories == nil {
		return nil, errors.New("usecase: memory factory must not be nil")
	}
	return &ChatService{
		sessions: sessions,
		registry: registry,
		agent:    agent,
		memories: memories,
		now:      time.Now,
	}, nil
}

// Chat runs one exchange: get-or-create the session, hand the session
// memory to the agent runtime, and on a session's first exchange
// generate its display name.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_prompt", nil)
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	now := s.now().UTC()
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, "session_read_error", err)
	}
	if sess != nil {
		if err := s.sessions.TouchSession(ctx, sessionID, now); err != nil {
			return ChatOutput{}, newError(ErrorInternal, "session_touch_error", err)
		}
	} else {
		if err := s.sessions.PutSession(ctx, domain.Session{
			SessionID: sessionID,
			UserID:    in.UserID,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return ChatOutput{}, newError(ErrorInternal, "session_create_error", err)
		}
	}

	// Observed before the run so the exchange itself does not count.
	turnCount, err := s.sessions.CountTurns(ctx, sessionID)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, "turn_count_error", err)
	}

	vectorStoreIDs, err := s.registry.GetVectorStoreIDs(ctx, in.UserID)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, "registry_read_error", err)
	}

	memory := s.memories(in.UserID, sessionID)
	answer, err := s.agent.Run(ctx, memory, prompt, vectorStoreIDs)
	if err != nil {
		return ChatOutput{}, newError(ErrorUpstream, "agent_run_error", err)
	}

	if turnCount == 0 {
		s.nameSession(ctx, sessionID, prompt)
	}

	return ChatOutput{Answer: answer, SessionID: sessionID}, nil
}

// nameSession writes a short generated title onto a session after its
// first exchange. Every failure is swallowed behind the static fallback
// name; naming is cosmetic and must never fail the chat request.
func (s *ChatService) nameSession(ctx context.Context, sessionID, prompt string) {
	name, err := s.agent.Summarize(ctx, prompt)
	if err != nil || strings.TrimSpace(name) == "" {
		if err != nil {
			slog.Warn("session name generation failed", "sessionId", sessionID, "err", err)
		}
		name = fallbackName
	}
	name = truncateName(strings.TrimSpace(name))

	if err := s.sessions.SetSessionName(ctx, sessionID, name, s.now().UTC()); err != nil {
		slog.Warn("writing session name failed", "sessionId", sessionID, "err", err)
	}
}

func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= maxSessionNameLen {
		return name
	}
	return string(runes[:truncatedNameLen]) + sessionNameEllipse
}
