package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chirino/taskmate/internal/config"
	registryassistant "github.com/chirino/taskmate/internal/registry/assistant"
	"github.com/tidwall/gjson"
)

func init() {
	registryassistant.Register(registryassistant.Plugin{
		Name:   "openai",
		Loader: load,
	})
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

func load(ctx context.Context) (registryassistant.Assistant, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.AssistantAPIKey == "" {
		return nil, fmt.Errorf("openai assistant: TASKMATE_ASSISTANT_API_KEY is required")
	}
	return New(cfg.AssistantBaseURL, cfg.AssistantAPIKey, cfg.AssistantModel, cfg.AssistantTimeout), nil
}

// ChatCompletions calls an OpenAI-compatible chat completions endpoint.
type ChatCompletions struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// New returns a client for baseURL. A zero timeout means no client-side limit.
func New(baseURL, apiKey, model string, timeout time.Duration) *ChatCompletions {
	return &ChatCompletions{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *ChatCompletions) ModelName() string {
	return c.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

func (c *ChatCompletions) Complete(ctx context.Context, messages []registryassistant.Message) (string, error) {
	req := chatRequest{Model: c.model, Messages: make([]chatMessage, len(messages))}
	for i, m := range messages {
		req.Messages[i] = chatMessage{Role: string(m.Role), Content: m.Content}
	}
	reqBody, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-Title", "TaskMate")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai completion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai completion: read response: %w", err)
	}
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return "", fmt.Errorf("openai completion error: %s", msg.String())
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("openai completion: unexpected status %d", resp.StatusCode)
	}
	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("openai completion: response has no choices")
	}
	return content.String(), nil
}

var _ registryassistant.Assistant = (*ChatCompletions)(nil)
