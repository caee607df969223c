package model

import "time"

// InvoiceRecord describes one accepted message and what was archived for it
type InvoiceRecord struct {
	ID            string   `json:"id"`
	Subject       string   `json:"subject"`
	Sender        string   `json:"sender"`
	Date          string   `json:"date"`
	Confidence    float64  `json:"confidence"`
	Identifiers   []string `json:"identifiers"`
	Keywords      []string `json:"keywords"`
	ArchivedPaths []string `json:"attachments_archived"`
}

// Summary aggregates the outcome of one scan pass
type Summary struct {
	ScanID                  string          `json:"scan_id"`
	StartedAt               time.Time       `json:"started_at"`
	FinishedAt              time.Time       `json:"finished_at"`
	Candidates              int             `json:"candidates"`
	TotalScanned            int             `json:"total_scanned"`
	InvoicesFound           int             `json:"invoices_found"`
	AttachmentsArchived     int             `json:"attachments_archived"`
	ArchiveFailures         int             `json:"archive_failures"`
	FetchFailures           int             `json:"fetch_failures"`
	SkippedExcluded         int             `json:"skipped_excluded"`
	SkippedNoIdentifier     int             `json:"skipped_no_identifier"`
	SkippedNotRelevant      int             `json:"skipped_not_relevant"`
	SkippedAlreadyProcessed int             `json:"skipped_already_processed"`
	Interrupted             bool            `json:"interrupted,omitempty"`
	Invoices                []InvoiceRecord `json:"invoices"`
}

// Tally counts a rejected decision into its reporting bucket
func (s *Summary) Tally(r Reason) {
	switch r.Bucket() {
	case BucketExcluded:
		s.SkippedExcluded++
	case BucketNoIdentifier:
		s.SkippedNoIdentifier++
	case BucketNotRelevant:
		s.SkippedNotRelevant++
	}
}
