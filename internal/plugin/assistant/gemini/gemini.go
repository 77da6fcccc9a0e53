package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/chirino/taskmate/internal/config"
	"github.com/chirino/taskmate/internal/model"
	registryassistant "github.com/chirino/taskmate/internal/registry/assistant"
	"google.golang.org/genai"
)

// DefaultModel is used when the configured model is not a Gemini model name.
const DefaultModel = "gemini-2.0-flash"

func init() {
	registryassistant.Register(registryassistant.Plugin{
		Name:   "gemini",
		Loader: load,
	})
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

func load(ctx context.Context) (registryassistant.Assistant, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.AssistantAPIKey == "" {
		return nil, fmt.Errorf("gemini assistant: TASKMATE_ASSISTANT_API_KEY is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.AssistantAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini assistant: create client: %w", err)
	}
	return &Gemini{client: client, model: modelName(cfg.AssistantModel)}, nil
}

// modelName keeps Gemini model ids and replaces provider-qualified ones such as "openai/gpt-3.5-turbo".
func modelName(configured string) string {
	configured = strings.TrimSpace(configured)
	if configured == "" || strings.Contains(configured, "/") {
		return DefaultModel
	}
	return configured
}

// Gemini completes conversations with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

func (g *Gemini) ModelName() string { return g.model }

func (g *Gemini) Complete(ctx context.Context, messages []registryassistant.Message) (string, error) {
	system, contents := toContents(messages)
	var genCfg *genai.GenerateContentConfig
	if system != "" {
		genCfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini completion: empty response")
	}
	return text, nil
}

// toContents splits system messages into a single instruction and maps the
// rest onto Gemini's user/model roles.
func toContents(messages []registryassistant.Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case model.ChatRoleSystem:
			system = append(system, m.Content)
		case model.ChatRoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

var _ registryassistant.Assistant = (*Gemini)(nil)
