package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"invoice-scanner-go/internal/fsutil"
)

// Sink stores archived attachments under slash-separated keys
type Sink interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, data []byte) error
	// Location returns the operator-facing path of key.
	Location(key string) string
}

// LocalSink stores attachments in a directory tree
type LocalSink struct {
	root string
}

// NewLocalSink creates a sink rooted at root
func NewLocalSink(root string) *LocalSink {
	return &LocalSink{root: root}
}

// Location returns the absolute-or-relative file path of key
func (s *LocalSink) Location(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Exists reports whether a file is already stored at key
func (s *LocalSink) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.Location(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", key, err)
}

// Put writes data atomically, creating the month folder on demand
func (s *LocalSink) Put(_ context.Context, key string, data []byte) error {
	return fsutil.WriteFileAtomic(s.Location(key), data, 0o644)
}
