package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotFound is returned by Open and Delete for an unknown file name.
	ErrNotFound = errors.New("file not found")
	// ErrTooLarge is returned by Store when the data exceeds the size limit.
	ErrTooLarge = errors.New("file too large")
)

// StoreResult is the result of a file store operation.
type StoreResult struct {
	Name   string
	Size   int64
	SHA256 string
}

// FileInfo describes a stored file returned by Open.
type FileInfo struct {
	Size        int64
	ContentType string
}

// FileStore defines the interface for uploaded file backends.
type FileStore interface {
	// Store writes data under name. Data longer than maxSize is rejected with
	// ErrTooLarge; a maxSize of zero or less accepts any length.
	Store(ctx context.Context, name string, data io.Reader, maxSize int64, contentType string) (*StoreResult, error)
	// Open returns a reader for the stored file.
	Open(ctx context.Context, name string) (io.ReadCloser, *FileInfo, error)
	// Delete removes the stored file.
	Delete(ctx context.Context, name string) error
}

// Loader creates a FileStore from config.
type Loader func(ctx context.Context) (FileStore, error)

// Plugin represents an upload store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds an upload store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered upload store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named upload store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown upload store %q; valid: %v", name, Names())
}
