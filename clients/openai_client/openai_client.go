// Package openai_client generates trivia questions through the OpenAI
// chat completions API. The model is asked for strict JSON; anything it
// returns is run through a lenient extractor before parsing, and parse
// failures surface as *FormatError with the raw payload attached.
package openai_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quizroyale/quizroyale/clients"
)

const BaseURL = "https://api.openai.com/v1"

// DefaultModel is used when no model (or an unlisted one) is configured.
const DefaultModel = "gpt-4o-mini"

// allowedModels is the set of models question generation may run on.
var allowedModels = map[string]bool{
	"gpt-4o-mini":  true,
	"gpt-4.1-mini": true,
}

// maxRawLen caps how much of a bad completion is kept on a FormatError.
const maxRawLen = 2000

// FormatError reports a completion that could not be parsed into
// questions. Raw carries the (truncated) model output for debugging.
type FormatError struct {
	Reason string
	Raw    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unparseable completion: %s", e.Reason)
}

func newFormatError(reason, raw string) *FormatError {
	if len(raw) > maxRawLen {
		raw = raw[:maxRawLen]
	}
	return &FormatError{Reason: reason, Raw: raw}
}

type OpenAIClient struct {
	*clients.BaseClient
	model string
}

// NewOpenAIClient creates a client for the given API key and model.
// Models outside the allowlist fall back to DefaultModel.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if !allowedModels[model] {
		model = DefaultModel
	}

	client := &OpenAIClient{
		BaseClient: clients.NewBaseClient(BaseURL),
		model:      model,
	}

	client.SetHeader("Authorization", "Bearer "+apiKey)
	client.SetHeader("Content-Type", "application/json")

	return client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete runs one chat completion and returns the message content.
func (c *OpenAIClient) complete(ctx context.Context, system, user string) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.9,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	body, err := c.Post(ctx, "/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// extractJSON pulls the JSON object out of a completion that may be
// wrapped in prose or a markdown fence: everything from the first "{"
// to the last "}".
func extractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
