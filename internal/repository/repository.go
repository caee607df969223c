package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"invoice-scanner-go/internal/model"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("record not found")

// insertBatch bounds the rows per INSERT statement
const insertBatch = 500

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// ProcessedIDs returns every message ID in the ledger table
func (r *Repository) ProcessedIDs(ctx context.Context) ([]string, error) {
	var ids []string
	result := r.db.WithContext(ctx).Model(&model.ProcessedEmail{}).Pluck("message_id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("database error loading processed emails: %w", result.Error)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// MarkProcessed inserts ledger rows, ignoring IDs that already exist
func (r *Repository) MarkProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]model.ProcessedEmail, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, model.ProcessedEmail{MessageID: id, ProcessedAt: now})
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, insertBatch)
	if result.Error != nil {
		return fmt.Errorf("failed to mark emails as processed: %w", result.Error)
	}
	return nil
}

// RecordDecision stores the audit row of one classified message
func (r *Repository) RecordDecision(ctx context.Context, scanID string, msg *model.Surface, d model.Decision, paths []string) error {
	row := model.ScanDecision{
		ScanID:        scanID,
		MessageID:     msg.ID,
		Subject:       msg.Subject,
		Sender:        msg.Sender,
		Accepted:      d.Accepted,
		Reason:        string(d.Reason),
		Rationale:     d.Rationale,
		Confidence:    d.Confidence,
		Identifiers:   encodeList(d.Identifiers),
		Keywords:      encodeList(d.Keywords),
		ArchivedPaths: encodeList(paths),
		CreatedAt:     time.Now(),
	}
	result := r.db.WithContext(ctx).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("failed to record decision: %w", result.Error)
	}
	return nil
}

// ListDecisions returns the newest decisions first, optionally only accepted ones
func (r *Repository) ListDecisions(ctx context.Context, limit int, acceptedOnly bool) ([]model.ScanDecision, error) {
	var rows []model.ScanDecision
	q := r.db.WithContext(ctx).Order("created_at desc").Limit(limit)
	if acceptedOnly {
		q = q.Where("accepted = ?", true)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	return rows, nil
}

// GetDecision returns one decision by ID
func (r *Repository) GetDecision(ctx context.Context, id uint) (*model.ScanDecision, error) {
	var row model.ScanDecision
	result := r.db.WithContext(ctx).First(&row, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, fmt.Errorf("database error: %w", result.Error)
	}
	return &row, nil
}

func encodeList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}
