// Package tempfiles spools bounded upload streams to disk before they are
// committed to an upload store.
package tempfiles

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrLimit is returned by NewSpool when the stream is longer than the limit.
var ErrLimit = errors.New("stream exceeds size limit")

// Create makes a temp file in dir, creating the directory if needed.
func Create(dir string, pattern string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create temp dir %q: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return f, nil
}

// Spool is a fully written copy of a stream held in a temp file.
type Spool struct {
	File   *os.File
	Size   int64
	SHA256 string

	committed bool
}

// NewSpool copies at most limit bytes of r into a temp file in dir. A longer
// stream is discarded and ErrLimit returned. A limit of zero or less copies
// the whole stream. The caller must Discard the spool.
func NewSpool(dir, pattern string, r io.Reader, limit int64) (*Spool, error) {
	f, err := Create(dir, pattern)
	if err != nil {
		return nil, err
	}
	s := &Spool{File: f}
	hasher := sha256.New()
	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(io.MultiWriter(f, hasher), src)
	if err != nil {
		s.Discard()
		return nil, fmt.Errorf("spool stream: %w", err)
	}
	if limit > 0 && n > limit {
		s.Discard()
		return nil, ErrLimit
	}
	s.Size = n
	s.SHA256 = hex.EncodeToString(hasher.Sum(nil))
	return s, nil
}

// Rewind positions the file at its start for reading.
func (s *Spool) Rewind() error {
	_, err := s.File.Seek(0, io.SeekStart)
	return err
}

// Commit closes the file and moves it to path. path must be on the same filesystem.
func (s *Spool) Commit(path string) error {
	if err := s.File.Close(); err != nil {
		return fmt.Errorf("close spool: %w", err)
	}
	if err := os.Rename(s.File.Name(), path); err != nil {
		return fmt.Errorf("commit spool: %w", err)
	}
	s.committed = true
	return nil
}

// Discard closes the file and removes it unless it was committed.
func (s *Spool) Discard() {
	_ = s.File.Close()
	if !s.committed {
		_ = os.Remove(s.File.Name())
	}
}
