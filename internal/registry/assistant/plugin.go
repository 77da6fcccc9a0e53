package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/chirino/taskmate/internal/model"
)

// ErrDisabled is returned by Complete when no assistant backend is configured.
var ErrDisabled = errors.New("assistant is disabled")

// Message is one prompt message sent to a backend.
type Message struct {
	Role    model.ChatRole
	Content string
}

// Assistant produces a reply to a chat conversation.
type Assistant interface {
	// Complete returns the assistant reply for messages, oldest first.
	Complete(ctx context.Context, messages []Message) (string, error)
	// ModelName returns the model identifier used for completions.
	ModelName() string
}

// Loader creates an Assistant from config.
type Loader func(ctx context.Context) (Assistant, error)

// Plugin represents an assistant plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds an assistant plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered assistant plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named assistant plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown assistant %q; valid: %v", name, Names())
}
