// Package scanner runs one scan pass: list candidate messages, skip what the
// dedup ledger has already seen, classify the rest, archive the attachments
// of accepted invoices, then persist the ledger and a scan summary.
//
// Messages are processed one at a time in provider order. Cancellation is
// honoured between messages; the work done before it is still persisted.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"invoice-scanner-go/internal/archive"
	"invoice-scanner-go/internal/classifier"
	"invoice-scanner-go/internal/ledger"
	"invoice-scanner-go/internal/mail"
	"invoice-scanner-go/internal/metrics"
	"invoice-scanner-go/internal/model"
)

var (
	// ErrLedgerPersist is returned when the processed-id set could not be saved
	ErrLedgerPersist = errors.New("scanner: failed to persist ledger")

	// ErrScanInProgress is returned when a scan is requested while another runs
	ErrScanInProgress = errors.New("scanner: scan already in progress")

	// ErrSourceUnreachable is returned when no candidate message could be fetched
	ErrSourceUnreachable = errors.New("scanner: no candidate message could be fetched")
)

// DecisionRecorder receives every classification decision of a scan
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, scanID string, msg *model.Surface, d model.Decision, archived []string) error
}

// Config holds the scan knobs
type Config struct {
	BatchSize    int
	LookbackDays int
	SummaryDir   string
}

// Scanner orchestrates scan passes over one mailbox
type Scanner struct {
	mu         sync.Mutex
	cfg        Config
	source     mail.Source
	identity   *classifier.Identity
	classifier *classifier.Classifier
	archiver   *archive.Archiver
	store      ledger.Store
	recorder   DecisionRecorder
	metrics    *metrics.Metrics
	now        func() time.Time

	lastMu sync.RWMutex
	last   *model.Summary
}

// New creates a scanner
func New(cfg Config, source mail.Source, identity *classifier.Identity, cls *classifier.Classifier,
	archiver *archive.Archiver, store ledger.Store, m *metrics.Metrics) *Scanner {
	return &Scanner{
		cfg:        cfg,
		source:     source,
		identity:   identity,
		classifier: cls,
		archiver:   archiver,
		store:      store,
		metrics:    m,
		now:        time.Now,
	}
}

// SetRecorder attaches an audit recorder. Recorder failures are logged only.
func (s *Scanner) SetRecorder(r DecisionRecorder) {
	s.recorder = r
}

// LastSummary returns the summary of the most recent completed scan, or nil
func (s *Scanner) LastSummary() *model.Summary {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}

// Run lists up to BatchSize candidates matching the vehicle search terms
// within the lookback window and scans them.
func (s *Scanner) Run(ctx context.Context) (*model.Summary, error) {
	if !s.mu.TryLock() {
		return nil, ErrScanInProgress
	}
	defer s.mu.Unlock()

	q := mail.Query{
		Terms: s.identity.SearchTerms(),
		After: s.now().AddDate(0, 0, -s.cfg.LookbackDays),
	}
	ids, err := s.source.ListCandidates(ctx, q, s.cfg.BatchSize)
	if err != nil {
		s.metrics.ScanFailures.Inc()
		return nil, fmt.Errorf("failed to list candidate messages: %w", err)
	}
	logrus.Infof("Found %d candidate messages", len(ids))

	return s.scan(ctx, ids)
}

// RunIDs scans the given candidate ids in order
func (s *Scanner) RunIDs(ctx context.Context, ids []string) (*model.Summary, error) {
	if !s.mu.TryLock() {
		return nil, ErrScanInProgress
	}
	defer s.mu.Unlock()

	return s.scan(ctx, ids)
}

func (s *Scanner) scan(ctx context.Context, ids []string) (*model.Summary, error) {
	s.metrics.Scans.Inc()
	summary := &model.Summary{
		ScanID:     uuid.NewString(),
		StartedAt:  s.now(),
		Candidates: len(ids),
		Invoices:   []model.InvoiceRecord{},
	}
	log := logrus.WithField("scan_id", summary.ScanID)

	led := ledger.New(s.store)
	if err := led.Load(ctx); err != nil {
		s.metrics.ScanFailures.Inc()
		return nil, err
	}
	log.Infof("Loaded %d processed message ids", led.Len())

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			summary.Interrupted = true
			log.Warnf("Scan interrupted after %d of %d candidates: %v", i, len(ids), err)
			break
		}
		if led.Contains(id) {
			summary.SkippedAlreadyProcessed++
			s.metrics.AlreadyProcessed.Inc()
			continue
		}
		if s.processMessage(ctx, log.WithField("message_id", id), id, summary) {
			led.Add(id)
		}
	}

	if summary.FetchFailures > 0 && summary.TotalScanned == 0 {
		s.metrics.ScanFailures.Inc()
		summary.FinishedAt = s.now()
		return summary, fmt.Errorf("%w: %d fetch failures", ErrSourceUnreachable, summary.FetchFailures)
	}

	if err := led.Save(context.WithoutCancel(ctx)); err != nil {
		s.metrics.ScanFailures.Inc()
		summary.FinishedAt = s.now()
		return summary, fmt.Errorf("%w: %w", ErrLedgerPersist, err)
	}
	s.metrics.LedgerSize.Set(float64(led.Len()))

	summary.FinishedAt = s.now()
	s.metrics.ScanDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())

	path, err := WriteSummary(s.cfg.SummaryDir, summary)
	if err != nil {
		s.metrics.ScanFailures.Inc()
		return summary, fmt.Errorf("failed to write scan summary: %w", err)
	}

	s.lastMu.Lock()
	s.last = summary
	s.lastMu.Unlock()

	logReport(log, summary, path, led.Added())
	return summary, nil
}

// processMessage fetches, classifies and archives one message. It reports
// whether a decision was reached, which is what makes the id ledger-worthy.
func (s *Scanner) processMessage(ctx context.Context, log *logrus.Entry, id string, summary *model.Summary) bool {
	msg, err := s.source.GetMessage(ctx, id)
	if err != nil {
		summary.FetchFailures++
		s.metrics.FetchFailures.Inc()
		log.WithError(err).Warn("Failed to fetch message, will retry next scan")
		return false
	}

	// a decided message is finished even if cancellation arrives meanwhile
	ctx = context.WithoutCancel(ctx)

	summary.TotalScanned++
	s.metrics.MessagesScanned.Inc()

	decision := s.classifier.ClassifySurface(msg)
	log = log.WithFields(logrus.Fields{
		"subject":    msg.Subject,
		"reason":     decision.Reason,
		"confidence": decision.Confidence,
	})

	archived := []string{}
	if decision.Accepted {
		log.Infof("Invoice found: %s", decision.Rationale)
		archived = s.archiveAttachments(ctx, log, msg, summary)

		summary.InvoicesFound++
		s.metrics.InvoicesFound.Inc()
		summary.Invoices = append(summary.Invoices, model.InvoiceRecord{
			ID:            msg.ID,
			Subject:       msg.Subject,
			Sender:        msg.Sender,
			Date:          msg.Date,
			Confidence:    decision.Confidence,
			Identifiers:   decision.Identifiers,
			Keywords:      decision.Keywords,
			ArchivedPaths: archived,
		})
	} else {
		summary.Tally(decision.Reason)
		s.metrics.Rejections.WithLabelValues(decision.Reason.Bucket()).Inc()
		log.Debugf("Skipped: %s", decision.Rationale)
	}

	if s.recorder != nil {
		if err := s.recorder.RecordDecision(ctx, summary.ScanID, msg, decision, archived); err != nil {
			log.WithError(err).Warn("Failed to record decision")
		}
	}
	return true
}

func (s *Scanner) archiveAttachments(ctx context.Context, log *logrus.Entry, msg *model.Surface, summary *model.Summary) []string {
	archived := []string{}
	for _, att := range msg.Attachments {
		if !archive.Eligible(att) {
			continue
		}
		location, err := s.archiver.Archive(ctx, s.source, msg, att)
		if err != nil {
			summary.ArchiveFailures++
			s.metrics.ArchiveFailures.Inc()
			log.WithError(err).WithField("filename", att.Filename).Error("Failed to archive attachment")
			continue
		}
		summary.AttachmentsArchived++
		s.metrics.AttachmentsArchived.Inc()
		archived = append(archived, location)
	}
	return archived
}

func logReport(log *logrus.Entry, s *model.Summary, path string, added int) {
	log.WithFields(logrus.Fields{
		"candidates":                s.Candidates,
		"total_scanned":             s.TotalScanned,
		"invoices_found":            s.InvoicesFound,
		"attachments_archived":      s.AttachmentsArchived,
		"archive_failures":          s.ArchiveFailures,
		"fetch_failures":            s.FetchFailures,
		"skipped_excluded":          s.SkippedExcluded,
		"skipped_no_identifier":     s.SkippedNoIdentifier,
		"skipped_not_relevant":      s.SkippedNotRelevant,
		"skipped_already_processed": s.SkippedAlreadyProcessed,
		"ledger_added":              added,
		"summary":                   path,
		"duration":                  s.FinishedAt.Sub(s.StartedAt).String(),
	}).Info("Scan complete")
}
