package model

import "time"

// ScanDecision is the audit row written for every classified message
type ScanDecision struct {
	ID            uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ScanID        string    `json:"scan_id" gorm:"type:varchar(64);not null;index"`
	MessageID     string    `json:"message_id" gorm:"type:varchar(255);not null;index"`
	Subject       string    `json:"subject" gorm:"type:text"`
	Sender        string    `json:"sender" gorm:"type:varchar(512)"`
	Accepted      bool      `json:"accepted" gorm:"index"`
	Reason        string    `json:"reason" gorm:"type:varchar(50);not null"`
	Rationale     string    `json:"rationale" gorm:"type:text"`
	Confidence    float64   `json:"confidence"`
	Identifiers   string    `json:"identifiers" gorm:"type:text"`
	Keywords      string    `json:"keywords" gorm:"type:text"`
	ArchivedPaths string    `json:"archived_paths" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName specifies the table name for ScanDecision
func (ScanDecision) TableName() string {
	return "scan_decisions"
}
