package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"

	"github.com/chirino/taskmate/internal/config"
	registryupload "github.com/chirino/taskmate/internal/registry/upload"
	"github.com/chirino/taskmate/internal/tempfiles"
)

func init() {
	registryupload.Register(registryupload.Plugin{
		Name: "local",
		Loader: func(ctx context.Context) (registryupload.FileStore, error) {
			cfg := config.FromContext(ctx)
			if cfg == nil {
				return nil, fmt.Errorf("local upload store: missing config in context")
			}
			return New(cfg.UploadsDir)
		},
	})
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

// DiskStore keeps uploaded files in a directory on the local filesystem.
type DiskStore struct {
	dir string
}

// New creates the directory if needed and returns a store rooted there.
func New(dir string) (*DiskStore, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local upload store: create %q: %w", dir, err)
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) path(name string) (string, error) {
	if !registryupload.ValidName(name) {
		return "", registryupload.ErrNotFound
	}
	return filepath.Join(s.dir, name), nil
}

func (s *DiskStore) Store(_ context.Context, name string, data io.Reader, maxSize int64, _ string) (*registryupload.StoreResult, error) {
	target, err := s.path(name)
	if err != nil {
		return nil, fmt.Errorf("local upload store: invalid name %q", name)
	}
	spool, err := tempfiles.NewSpool(s.dir, ".upload-*", data, maxSize)
	if errors.Is(err, tempfiles.ErrLimit) {
		return nil, registryupload.ErrTooLarge
	}
	if err != nil {
		return nil, fmt.Errorf("local upload store: %w", err)
	}
	defer spool.Discard()
	if err := spool.Commit(target); err != nil {
		return nil, fmt.Errorf("local upload store: %w", err)
	}
	return &registryupload.StoreResult{Name: name, Size: spool.Size, SHA256: spool.SHA256}, nil
}

func (s *DiskStore) Open(_ context.Context, name string) (io.ReadCloser, *registryupload.FileInfo, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, registryupload.ErrNotFound
		}
		return nil, nil, fmt.Errorf("local upload store: open: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("local upload store: stat: %w", err)
	}
	ct := mime.TypeByExtension(filepath.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return f, &registryupload.FileInfo{Size: st.Size(), ContentType: ct}, nil
}

func (s *DiskStore) Delete(_ context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return registryupload.ErrNotFound
		}
		return fmt.Errorf("local upload store: delete: %w", err)
	}
	return nil
}
