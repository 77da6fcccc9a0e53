package disabled

import (
	"context"

	"github.com/chirino/taskmate/internal/registry/assistant"
)

func init() {
	assistant.Register(assistant.Plugin{
		Name: "disabled",
		Loader: func(ctx context.Context) (assistant.Assistant, error) {
			return &disabledAssistant{}, nil
		},
	})
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

type disabledAssistant struct{}

func (d *disabledAssistant) Complete(_ context.Context, _ []assistant.Message) (string, error) {
	return "", assistant.ErrDisabled
}

func (d *disabledAssistant) ModelName() string { return "none" }

var _ assistant.Assistant = (*disabledAssistant)(nil)
