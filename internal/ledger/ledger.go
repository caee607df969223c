// Package ledger keeps the set of message IDs that have already been decided
// on, so that no message is classified or archived twice across runs.
//
// A Ledger is loaded once at the start of a scan, grows while the scan runs and
// is saved once at the end. Entries are never removed.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrCorrupt is returned when persisted ledger state exists but cannot be
// decoded. The ledger never falls back to an empty set in that case, because
// that would re-archive every message in the mailbox.
var ErrCorrupt = errors.New("ledger: persisted state is corrupt")

// Store persists the processed-ID set
type Store interface {
	// Load returns the persisted IDs, or an empty slice when nothing was saved yet.
	Load(ctx context.Context) ([]string, error)
	// Save makes ids the persisted set. ids is always a superset of what Load returned.
	Save(ctx context.Context, ids []string) error
}

// Ledger is the in-memory processed-ID set of one scan
type Ledger struct {
	store  Store
	ids    map[string]struct{}
	loaded int
}

// New creates an empty ledger backed by store
func New(store Store) *Ledger {
	return &Ledger{
		store: store,
		ids:   make(map[string]struct{}),
	}
}

// Load merges the persisted IDs into the in-memory set
func (l *Ledger) Load(ctx context.Context) error {
	ids, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	for _, id := range ids {
		l.ids[id] = struct{}{}
	}
	l.loaded = len(l.ids)
	return nil
}

// Contains reports whether id has already been processed
func (l *Ledger) Contains(id string) bool {
	_, ok := l.ids[id]
	return ok
}

// Add marks id as processed
func (l *Ledger) Add(id string) {
	l.ids[id] = struct{}{}
}

// Len returns the number of processed IDs
func (l *Ledger) Len() int {
	return len(l.ids)
}

// Added returns how many IDs were added since Load
func (l *Ledger) Added() int {
	return len(l.ids) - l.loaded
}

// IDs returns the processed IDs in sorted order
func (l *Ledger) IDs() []string {
	out := make([]string, 0, len(l.ids))
	for id := range l.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Save persists the current set
func (l *Ledger) Save(ctx context.Context) error {
	if err := l.store.Save(ctx, l.IDs()); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	return nil
}
