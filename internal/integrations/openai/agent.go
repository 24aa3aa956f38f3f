package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"docchat-agent/internal/domain"
)

const agentInstructions = "You are a helpful assistant specialized in answering questions about the user's documents. " +
	"You have access to the tool: file_search. " +
	"Use this tool to search for information in the user's vector stores. " +
	"Prioritize using the file_search tool to answer the user's question. " +
	"Provide clear, accurate, and concise responses. " +
	"Provide the source of your information in the format: [Source: <file_name>, page number]."

const namerInstructions = "You are a session name generator. Your task is to create a concise, " +
	"descriptive title (maximum 50 characters) for a chat session based on " +
	"the user's first message. The title should capture the main topic or " +
	"intent of the conversation. Return only the title, nothing else."

const fileSearchMaxResults = 3

// responsesRequest is the minimal request shape for the Responses endpoint.
type responsesRequest struct {
	Model        string               `json:"model"`
	Instructions string               `json:"instructions"`
	Input        []domain.ChatMessage `json:"input"`
	Tools        []fileSearchTool     `json:"tools,omitempty"`
	Temperature  float64              `json:"temperature"`
}

type fileSearchTool struct {
	Type           string   `json:"type"`
	VectorStoreIDs []string `json:"vector_store_ids"`
	MaxNumResults  int      `json:"max_num_results"`
}

// responsesResponse is the minimal response shape for the Responses endpoint.
type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// Run executes one agent exchange: reads the session history from
// memory, runs the model with the file_search tool over the user's
// vector stores, appends the user/assistant turns to memory, and
// returns the assistant's answer.
func (c *Client) Run(ctx context.Context, memory domain.ConversationMemory, prompt string, vectorStoreIDs []string) (string, error) {
	model, err := c.resolveModel(ctx)
	if err != nil {
		return "", err
	}

	history, err := memory.GetItems(ctx, 0)
	if err != nil {
		return "", fmt.Errorf("openai: read session history: %w", err)
	}

	input := make([]domain.ChatMessage, 0, len(history)+1)
	input = append(input, history...)
	input = append(input, domain.ChatMessage{Role: domain.RoleUser, Content: prompt})

	reqBody := responsesRequest{
		Model:        model,
		Instructions: agentInstructions,
		Input:        input,
		Temperature:  0.1,
	}
	if len(vectorStoreIDs) > 0 {
		reqBody.Tools = []fileSearchTool{{
			Type:           "file_search",
			VectorStoreIDs: vectorStoreIDs,
			MaxNumResults:  fileSearchMaxResults,
		}}
	}

	answer, err := c.respond(ctx, reqBody)
	if err != nil {
		return "", err
	}

	if err := memory.AddItems(ctx, []domain.ChatMessage{
		{Role: domain.RoleUser, Content: prompt},
		{Role: domain.RoleAssistant, Content: answer},
	}); err != nil {
		return "", fmt.Errorf("openai: persist turns: %w", err)
	}
	return answer, nil
}

// Summarize produces a short descriptive title for the opening prompt
// of a session.
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	model, err := c.resolveModel(ctx)
	if err != nil {
		return "", err
	}

	title, err := c.respond(ctx, responsesRequest{
		Model:        model,
		Instructions: namerInstructions,
		Input:        []domain.ChatMessage{{Role: domain.RoleUser, Content: prompt}},
		Temperature:  0.3,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(title), nil
}

// respond runs one Responses API call and extracts the output text.
func (c *Client) respond(ctx context.Context, reqBody responsesRequest) (string, error) {
	raw, err := c.postJSON(ctx, "/responses", reqBody)
	if err != nil {
		return "", fmt.Errorf("openai: responses request failed: %w", err)
	}

	var payload responsesResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("openai: decode responses payload: %w", err)
	}

	var sb strings.Builder
	for _, item := range payload.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				sb.WriteString(part.Text)
			}
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("openai: no output text in response")
	}
	return sb.String(), nil
}
