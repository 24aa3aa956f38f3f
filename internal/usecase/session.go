package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"docchat-agent/internal/domain"
)

// SessionService manages session records: create, list, delete with
// cascade to the session's turns.
type SessionService struct {
	sessions SessionStorer

	now   func() time.Time
	newID func() string
}

// NewSessionService creates the session lifecycle manager.
func NewSessionService(sessions SessionStorer) (*SessionService, error) {
	if sessions == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	return &SessionService{
		sessions: sessions,
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// Create writes a new unnamed session for the user and returns it.
func (s *SessionService) Create(ctx context.Context, userID string) (domain.Session, error) {
	now := s.now().UTC()
	sess := domain.Session{
		SessionID: s.newID(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.PutSession(ctx, sess); err != nil {
		return domain.Session{}, newError(ErrorInternal, "session_create_error", err)
	}
	return sess, nil
}

// List returns the user's sessions, most recently updated first.
func (s *SessionService) List(ctx context.Context, userID string) ([]domain.Session, error) {
	sessions, err := s.sessions.ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, newError(ErrorInternal, "session_list_error", err)
	}
	return sessions, nil
}

// Delete removes a session and all its turns atomically. It fails with
// NotFound when the session does not exist and Unauthorized when it is
// owned by a different user.
func (s *SessionService) Delete(ctx context.Context, userID, sessionID string) error {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return newError(ErrorInternal, "session_read_error", err)
	}
	if sess == nil {
		return newError(ErrorNotFound, "session_not_found", nil)
	}
	if sess.UserID != userID {
		return newError(ErrorUnauthorized, "session_owner_mismatch", nil)
	}
	if err := s.sessions.DeleteSessionCascade(ctx, sessionID); err != nil {
		return newError(ErrorInternal, "session_delete_error", err)
	}
	return nil
}
