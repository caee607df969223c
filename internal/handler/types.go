package handler

import (
	"time"

	"invoice-scanner-go/internal/model"
)

// ClassifyRequest is a message surface posted for a dry-run classification
type ClassifyRequest struct {
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	Sender      string   `json:"sender"`
	Attachments []string `json:"attachments"`
}

// ClassifyResponse carries the decision and the threshold it was made at
type ClassifyResponse struct {
	model.Decision
	Threshold float64 `json:"threshold"`
}

// DecisionResponse represents one audited classification decision
type DecisionResponse struct {
	ID            uint      `json:"id"`
	ScanID        string    `json:"scan_id"`
	MessageID     string    `json:"message_id"`
	Subject       string    `json:"subject"`
	Sender        string    `json:"sender"`
	Accepted      bool      `json:"accepted"`
	Reason        string    `json:"reason"`
	Rationale     string    `json:"rationale"`
	Confidence    float64   `json:"confidence"`
	Identifiers   []string  `json:"identifiers"`
	Keywords      []string  `json:"keywords"`
	ArchivedPaths []string  `json:"archived_paths"`
	CreatedAt     time.Time `json:"created_at"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Scheduler map[string]string `json:"scheduler,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
