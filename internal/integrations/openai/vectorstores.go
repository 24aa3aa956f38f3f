package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Terminal and non-terminal states a vector store file moves through
// while the service indexes it.
const (
	FileStatusCompleted  = "completed"
	FileStatusFailed     = "failed"
	FileStatusCancelled  = "cancelled"
	FileStatusInProgress = "in_progress"
)

// vectorStoreExpiry is the inactivity-based expiry every per-user store
// is created with.
type vectorStoreExpiry struct {
	Anchor string `json:"anchor"`
	Days   int    `json:"days"`
}

type createVectorStoreRequest struct {
	Name         string            `json:"name"`
	ExpiresAfter vectorStoreExpiry `json:"expires_after"`
}

type vectorStoreResource struct {
	ID string `json:"id"`
}

type attachFileRequest struct {
	FileID string `json:"file_id"`
}

type vectorStoreFileResource struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

// CreateVectorStore creates a new store scoped to the user, expiring
// after 30 days of inactivity, and returns its id.
func (c *Client) CreateVectorStore(ctx context.Context, userID string) (string, error) {
	raw, err := c.postJSON(ctx, "/vector_stores", createVectorStoreRequest{
		Name:         "Vector Store for " + userID,
		ExpiresAfter: vectorStoreExpiry{Anchor: "last_active_at", Days: 30},
	})
	if err != nil {
		return "", fmt.Errorf("openai: create vector store for %s: %w", userID, err)
	}

	var payload vectorStoreResource
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("openai: decode vector store response: %w", err)
	}
	if payload.ID == "" {
		return "", fmt.Errorf("openai: vector store response for %s has no id", userID)
	}
	return payload.ID, nil
}

// AttachFile submits an uploaded file to a vector store for indexing.
func (c *Client) AttachFile(ctx context.Context, vectorStoreID, fileID string) error {
	_, err := c.postJSON(ctx, "/vector_stores/"+vectorStoreID+"/files", attachFileRequest{FileID: fileID})
	if err != nil {
		return fmt.Errorf("openai: attach file %s to %s: %w", fileID, vectorStoreID, err)
	}
	return nil
}

// RetrieveFileStatus reports a file's indexing state within a store,
// plus the service-reported error message when it failed.
func (c *Client) RetrieveFileStatus(ctx context.Context, vectorStoreID, fileID string) (status, lastError string, err error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return "", "", err
	}

	url := c.endpointURL("/vector_stores/" + vectorStoreID + "/files/" + fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("openai: create status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	raw, err := c.do(req)
	if err != nil {
		return "", "", fmt.Errorf("openai: retrieve status of %s in %s: %w", fileID, vectorStoreID, err)
	}

	var payload vectorStoreFileResource
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", "", fmt.Errorf("openai: decode status response: %w", err)
	}
	if payload.LastError != nil {
		lastError = payload.LastError.Message
	}
	return payload.Status, lastError, nil
}

// DetachFile removes a file from a vector store without deleting the
// underlying file resource.
func (c *Client) DetachFile(ctx context.Context, vectorStoreID, fileID string) error {
	if err := c.delete(ctx, "/vector_stores/"+vectorStoreID+"/files/"+fileID); err != nil {
		return fmt.Errorf("openai: detach file %s from %s: %w", fileID, vectorStoreID, err)
	}
	return nil
}

// DeleteVectorStore deletes an entire vector store.
func (c *Client) DeleteVectorStore(ctx context.Context, vectorStoreID string) error {
	if err := c.delete(ctx, "/vector_stores/"+vectorStoreID); err != nil {
		return fmt.Errorf("openai: delete vector store %s: %w", vectorStoreID, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, apiPath string, payload any) ([]byte, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(apiPath), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	return c.do(req)
}

func (c *Client) delete(ctx context.Context, apiPath string) error {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpointURL(apiPath), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	_, err = c.do(req)
	return err
}
