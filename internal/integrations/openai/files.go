package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// fileResource is the minimal response shape for the Files endpoints.
type fileResource struct {
	ID string `json:"id"`
}

// UploadFile registers the document bytes as a named file resource with
// purpose "assistants" and returns the opaque file id.
func (c *Client) UploadFile(ctx context.Context, fileName string, content io.Reader) (string, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("purpose", "assistants"); err != nil {
		return "", fmt.Errorf("openai: encode upload purpose: %w", err)
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return "", fmt.Errorf("openai: encode upload file part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("openai: encode upload content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("openai: finalize upload body: %w", err)
	}

	url := c.endpointURL("/files")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("openai: create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+apiKey)

	raw, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("openai: upload %s: %w", fileName, err)
	}

	var payload fileResource
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("openai: decode upload response: %w", err)
	}
	if payload.ID == "" {
		return "", fmt.Errorf("openai: upload response for %s has no file id", fileName)
	}
	return payload.ID, nil
}

// DeleteFile removes a file resource from the service's file storage.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return err
	}

	url := c.endpointURL("/files/" + fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("openai: create delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("openai: delete file %s: %w", fileID, err)
	}
	return nil
}
