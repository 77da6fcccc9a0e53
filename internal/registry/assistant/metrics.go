package assistant

import (
	"context"
	"time"

	"github.com/chirino/taskmate/internal/security"
)

// Instrument wraps a and records completion latency under the backend label.
func Instrument(backend string, a Assistant) Assistant {
	return &metricsAssistant{backend: backend, inner: a}
}

type metricsAssistant struct {
	backend string
	inner   Assistant
}

func (m *metricsAssistant) Complete(ctx context.Context, messages []Message) (string, error) {
	start := time.Now()
	defer func() { security.ObserveAssistantLatency(m.backend, time.Since(start)) }()
	return m.inner.Complete(ctx, messages)
}

func (m *metricsAssistant) ModelName() string { return m.inner.ModelName() }
