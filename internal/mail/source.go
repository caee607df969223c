// Package mail adapts mailbox providers (Gmail API, IMAP) to the flattened
// message surfaces the scanner works on.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"invoice-scanner-go/internal/model"
)

var (
	// ErrUnavailable signals that one message or attachment cannot be
	// fetched; the caller skips it and continues.
	ErrUnavailable = errors.New("mail: message unavailable")

	// ErrRateLimited is returned once provider back-off retries are exhausted.
	ErrRateLimited = errors.New("mail: provider rate limit exceeded")
)

// Source lists, fetches and downloads messages from a mailbox
type Source interface {
	ListCandidates(ctx context.Context, q Query, limit int) ([]string, error)
	GetMessage(ctx context.Context, id string) (*model.Surface, error)
	GetAttachment(ctx context.Context, messageID, handle string) ([]byte, error)
	Close() error
}

// Query selects candidate messages: any of Terms, received after After
type Query struct {
	Terms []string
	After time.Time
}

// GmailQuery renders the query in Gmail search syntax:
//
//	("t1" OR "t2") after:YYYY/MM/DD
func (q Query) GmailQuery() string {
	var parts []string
	if len(q.Terms) > 0 {
		quoted := make([]string, 0, len(q.Terms))
		for _, t := range q.Terms {
			quoted = append(quoted, fmt.Sprintf("%q", t))
		}
		parts = append(parts, "("+strings.Join(quoted, " OR ")+")")
	}
	if !q.After.IsZero() {
		parts = append(parts, "after:"+q.After.Format("2006/01/02"))
	}
	return strings.Join(parts, " ")
}
