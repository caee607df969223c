package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"invoice-scanner-go/internal/fsutil"
)

// document is the on-disk layout of the ledger file
type document struct {
	ProcessedIDs []string `json:"processed_ids"`
}

// FileStore keeps the ledger in a single JSON document
type FileStore struct {
	path string
}

// NewFileStore creates a store for the JSON ledger at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the ledger file location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the ledger file. A missing file is an empty ledger.
func (s *FileStore) Load(_ context.Context) ([]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCorrupt, s.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrCorrupt, s.path, err)
	}
	if doc.ProcessedIDs == nil {
		return nil, fmt.Errorf("%w: %s has no processed_ids field", ErrCorrupt, s.path)
	}
	return doc.ProcessedIDs, nil
}

// Save atomically replaces the ledger file
func (s *FileStore) Save(_ context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(document{ProcessedIDs: ids})
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	return fsutil.WriteFileAtomic(s.path, data, 0o644)
}
