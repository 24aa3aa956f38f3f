// Package handler adapts Lambda events to the usecase layer: API
// Gateway requests for the chat/session surface, S3 object events for
// the vectorization pipeline.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"docchat-agent/internal/domain"
	"docchat-agent/internal/usecase"
)

// Envelope is the uniform response shape every entry point returns.
// Outcomes travel in the envelope, not in the HTTP status code.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	Meta    any    `json:"meta,omitempty"`
}

// ChatRunner runs one chat exchange.
type ChatRunner interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

// SessionManager is the session lifecycle surface.
type SessionManager interface {
	Create(ctx context.Context, userID string) (domain.Session, error)
	List(ctx context.Context, userID string) ([]domain.Session, error)
	Delete(ctx context.Context, userID, sessionID string) error
}

// DocumentRemover deletes indexed documents.
type DocumentRemover interface {
	Delete(ctx context.Context, userID, fileName string) (usecase.DeletedDocument, error)
}

// APIHandler routes API Gateway requests to the services.
type APIHandler struct {
	auth      *Authenticator
	chat      ChatRunner
	sessions  SessionManager
	documents DocumentRemover
}

// NewAPIHandler creates the request handler for the chat/session API.
func NewAPIHandler(auth *Authenticator, chat ChatRunner, sessions SessionManager, documents DocumentRemover) (*APIHandler, error) {
	if auth == nil {
		return nil, errors.New("handler: authenticator must not be nil")
	}
	if chat == nil {
		return nil, errors.New("handler: chat runner must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("handler: session manager must not be nil")
	}
	if documents == nil {
		return nil, errors.New("handler: document remover must not be nil")
	}
	return &APIHandler{auth: auth, chat: chat, sessions: sessions, documents: documents}, nil
}

type chatRequest struct {
	Prompt          string `json:"prompt"`
	SessionID       string `json:"sessionId"`
	ClientMessageID string `json:"clientMessageId"`
}

type deleteSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type deleteDocumentRequest struct {
	FileName string `json:"fileName"`
}

type sessionSummary struct {
	SessionID string  `json:"sessionId"`
	Name      *string `json:"name"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

// Handle dispatches one API Gateway request by its path suffix.
func (h *APIHandler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	route := path.Base(req.Path)

	uid, err := h.auth.UserID(ctx, req.Headers)
	if err != nil {
		msg := "Unauthorized"
		if route == "chat" {
			msg = "Unauthenticated request"
		}
		return respond(Envelope{Success: false, Message: msg, Data: nil}), nil
	}

	switch route {
	case "chat":
		return respond(h.handleChat(ctx, uid, req.Body)), nil
	case "create_session":
		return respond(h.handleCreateSession(ctx, uid)), nil
	case "list_sessions":
		return respond(h.handleListSessions(ctx, uid)), nil
	case "delete_session":
		return respond(h.handleDeleteSession(ctx, uid, req.Body)), nil
	case "delete_document":
		return respond(h.handleDeleteDocument(ctx, uid, req.Body)), nil
	default:
		return respond(Envelope{Success: false, Message: "Unknown operation: " + route, Data: nil}), nil
	}
}

func (h *APIHandler) handleChat(ctx context.Context, uid, body string) Envelope {
	var req chatRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return Envelope{Success: false, Message: "Invalid request body", Data: nil}
	}
	if req.Prompt == "" {
		return Envelope{Success: false, Message: "No text prompt provided", Data: nil}
	}

	out, err := h.chat.Chat(ctx, usecase.ChatInput{
		UserID:          uid,
		Prompt:          req.Prompt,
		SessionID:       req.SessionID,
		ClientMessageID: req.ClientMessageID,
	})
	if err != nil {
		slog.Error("chat request failed", "userId", uid, "err", err)
		return Envelope{Success: false, Message: "Error processing chat: " + err.Error(), Data: nil}
	}
	return Envelope{
		Success: true,
		Message: "Agent run completed successfully",
		Data:    out.Answer,
		Meta:    map[string]string{"sessionId": out.SessionID},
	}
}

func (h *APIHandler) handleCreateSession(ctx context.Context, uid string) Envelope {
	sess, err := h.sessions.Create(ctx, uid)
	if err != nil {
		slog.Error("create session failed", "userId", uid, "err", err)
		return Envelope{Success: false, Message: "Error creating session: " + err.Error(), Data: nil}
	}
	return Envelope{
		Success: true,
		Message: "Session created successfully",
		Data: map[string]any{
			"sessionId": sess.SessionID,
			"name":      nil,
		},
	}
}

func (h *APIHandler) handleListSessions(ctx context.Context, uid string) Envelope {
	sessions, err := h.sessions.List(ctx, uid)
	if err != nil {
		slog.Error("list sessions failed", "userId", uid, "err", err)
		return Envelope{Success: false, Message: "Error listing sessions: " + err.Error(), Data: nil}
	}

	summaries := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, sessionSummary{
			SessionID: sess.SessionID,
			Name:      nullableName(sess.Name),
			CreatedAt: sess.CreatedAt.UTC().Format(time.RFC3339Nano),
			UpdatedAt: sess.UpdatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return Envelope{Success: true, Message: "Sessions retrieved successfully", Data: summaries}
}

func (h *APIHandler) handleDeleteSession(ctx context.Context, uid, body string) Envelope {
	var req deleteSessionRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil || req.SessionID == "" {
		return Envelope{Success: false, Message: "Session ID is required", Data: nil}
	}

	if err := h.sessions.Delete(ctx, uid, req.SessionID); err != nil {
		switch usecase.CodeOf(err) {
		case usecase.ErrorNotFound:
			return Envelope{Success: false, Message: "Session not found", Data: nil}
		case usecase.ErrorUnauthorized:
			return Envelope{Success: false, Message: "Unauthorized to delete this session", Data: nil}
		default:
			slog.Error("delete session failed", "userId", uid, "sessionId", req.SessionID, "err", err)
			return Envelope{Success: false, Message: "Error deleting session: " + err.Error(), Data: nil}
		}
	}
	return Envelope{Success: true, Message: "Session deleted successfully", Data: nil}
}

func (h *APIHandler) handleDeleteDocument(ctx context.Context, uid, body string) Envelope {
	var req deleteDocumentRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil || req.FileName == "" {
		return Envelope{Success: false, Message: "File name is required", Data: nil}
	}

	deleted, err := h.documents.Delete(ctx, uid, req.FileName)
	if err != nil {
		slog.Error("delete document failed", "userId", uid, "fileName", req.FileName, "err", err)
		return Envelope{Success: false, Message: "Error deleting file: " + err.Error(), Data: nil}
	}
	return Envelope{
		Success: true,
		Message: "Successfully deleted " + req.FileName + " from the indexing service",
		Data: map[string]string{
			"fileId":        deleted.FileID,
			"vectorStoreId": deleted.VectorStoreID,
		},
	}
}

func nullableName(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}

func respond(env Envelope) events.APIGatewayProxyResponse {
	body, err := json.Marshal(env)
	if err != nil {
		slog.Error("marshal response envelope", "err", err)
		body = []byte(`{"success":false,"message":"Internal error","data":null}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: 200,
		Headers:    map[string]string{"content-type": "application/json"},
		Body:       string(body),
	}
}
