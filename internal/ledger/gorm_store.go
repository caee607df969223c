package ledger

import (
	"context"
)

// ProcessedRepository is the subset of the database repository the ledger needs
type ProcessedRepository interface {
	ProcessedIDs(ctx context.Context) ([]string, error)
	MarkProcessed(ctx context.Context, ids []string) error
}

// GormStore keeps the ledger in the processed_emails table
type GormStore struct {
	repo ProcessedRepository
}

// NewGormStore creates a database-backed store
func NewGormStore(repo ProcessedRepository) *GormStore {
	return &GormStore{repo: repo}
}

// Load returns every processed message ID
func (s *GormStore) Load(ctx context.Context) ([]string, error) {
	return s.repo.ProcessedIDs(ctx)
}

// Save inserts the IDs that are not stored yet
func (s *GormStore) Save(ctx context.Context, ids []string) error {
	return s.repo.MarkProcessed(ctx, ids)
}
