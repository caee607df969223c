// Package archive stores the attachments of accepted invoices under a
// deterministic, duplicate-safe layout:
//
//	<root>/<YYYY-MM>/<YYYYMMDD>_<subject>_<fingerprint>_<filename>
//
// The fingerprint is derived from the attachment bytes, so storing the same
// bytes for the same message twice resolves to the same key and the second
// write is skipped.
package archive

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"invoice-scanner-go/internal/model"
)

// ErrNoContent is returned when an attachment has neither inline data nor a
// handle to fetch it with.
var ErrNoContent = errors.New("attachment has no content handle")

// AllowedExtensions are archived regardless of the declared media type
var AllowedExtensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".tiff"}

// AttachmentFetcher downloads attachment bytes from the mail provider
type AttachmentFetcher interface {
	GetAttachment(ctx context.Context, messageID, handle string) ([]byte, error)
}

// Eligible reports whether an attachment is a PDF or image worth archiving
func Eligible(att model.Attachment) bool {
	mediaType := strings.ToLower(att.MediaType)
	if strings.HasPrefix(mediaType, "application/pdf") || strings.HasPrefix(mediaType, "image/") {
		return true
	}
	name := strings.ToLower(strings.TrimSpace(att.Filename))
	for _, ext := range AllowedExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Archiver writes attachments of accepted messages to a Sink
type Archiver struct {
	sink Sink
	now  func() time.Time
}

// New creates an archiver writing to sink
func New(sink Sink) *Archiver {
	return &Archiver{sink: sink, now: time.Now}
}

// Key computes the sink key of an attachment and whether the message date
// had to be replaced by the current time.
func (a *Archiver) Key(msg *model.Surface, att model.Attachment, data []byte) (key string, degraded bool) {
	date, ok := ParseMessageDate(msg.Date)
	if !ok {
		date = a.now()
		degraded = true
	}
	name := BuildFilename(date, msg.Subject, Fingerprint(data), att.Filename)
	return path.Join(date.Format("2006-01"), name), degraded
}

// Archive stores one attachment and returns its location. An attachment that
// is already stored under the computed key is not written again.
func (a *Archiver) Archive(ctx context.Context, fetcher AttachmentFetcher, msg *model.Surface, att model.Attachment) (string, error) {
	data := att.Data
	if data == nil {
		if att.Handle == "" {
			return "", fmt.Errorf("%s: %w", att.Filename, ErrNoContent)
		}
		var err error
		data, err = fetcher.GetAttachment(ctx, msg.ID, att.Handle)
		if err != nil {
			return "", fmt.Errorf("failed to download attachment %s: %w", att.Filename, err)
		}
	}

	key, degraded := a.Key(msg, att, data)
	if degraded {
		logrus.WithFields(logrus.Fields{
			"message_id": msg.ID,
			"date":       msg.Date,
		}).Warn("Unparseable message date, filing attachment under the current month")
	}

	exists, err := a.sink.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	location := a.sink.Location(key)
	if exists {
		logrus.Infof("  Skipping duplicate: %s", path.Base(key))
		return location, nil
	}

	if err := a.sink.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("failed to store attachment %s: %w", att.Filename, err)
	}
	logrus.Infof("  Archived: %s", path.Base(key))
	return location, nil
}
