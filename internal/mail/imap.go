package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
	"github.com/k3a/html2text"
	"github.com/sirupsen/logrus"

	"invoice-scanner-go/internal/config"
	"invoice-scanner-go/internal/model"
)

// IMAPSource implements Source over IMAP. Message ids are mailbox UIDs and
// attachments are delivered inline with the message.
type IMAPSource struct {
	mu      sync.Mutex
	cfg     config.GmailConfig
	client  *client.Client
	mailbox string
}

// NewIMAPSource connects and logs in to the configured IMAP server
func NewIMAPSource(cfg *config.GmailConfig) (*IMAPSource, error) {
	mailbox := cfg.IMAPMailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	s := &IMAPSource{cfg: *cfg, mailbox: mailbox}
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *IMAPSource) connect() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.IMAPHost, s.cfg.IMAPPort)
	c, err := client.DialTLS(addr, &tls.Config{ServerName: s.cfg.IMAPHost})
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	if err := c.Login(s.cfg.IMAPUser, s.cfg.IMAPPassword); err != nil {
		_ = c.Logout()
		return fmt.Errorf("failed to login to IMAP server: %w", err)
	}
	if _, err := c.Select(s.mailbox, true); err != nil {
		_ = c.Logout()
		return fmt.Errorf("failed to select %s: %w", s.mailbox, err)
	}
	s.client = c
	return nil
}

// ensureConnected redials when the server dropped an idle session
func (s *IMAPSource) ensureConnected() error {
	if s.client != nil && s.client.State() != imap.LogoutState {
		return nil
	}
	logrus.Info("Reconnecting to IMAP server")
	return s.connect()
}

// ListCandidates returns the newest limit UIDs matching q, newest first
func (s *IMAPSource) ListCandidates(ctx context.Context, q Query, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnected(); err != nil {
		return nil, err
	}
	uids, err := s.client.UidSearch(searchCriteria(q))
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	return newestFirst(uids, limit), nil
}

// GetMessage fetches the full RFC 822 message without setting \Seen
func (s *IMAPSource) GetMessage(ctx context.Context, id string) (*model.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid uid %q: %w", id, ErrUnavailable)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnected(); err != nil {
		return nil, err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, items, messages)
	}()

	var raw []byte
	for msg := range messages {
		if body := msg.GetBody(section); body != nil {
			raw, err = io.ReadAll(body)
			if err != nil {
				logrus.Warnf("Failed to read message %s: %v", id, err)
			}
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", id, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("message %s: %w", id, ErrUnavailable)
	}

	return parseRFC822(id, bytes.NewReader(raw))
}

// GetAttachment is never needed over IMAP because attachment bytes arrive
// with the message.
func (s *IMAPSource) GetAttachment(_ context.Context, messageID, handle string) ([]byte, error) {
	return nil, fmt.Errorf("attachment %s of message %s: %w", handle, messageID, ErrUnavailable)
}

// Close closes the IMAP connection
func (s *IMAPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Logout()
	s.client = nil
	return err
}

// searchCriteria builds TEXT t1 OR TEXT t2 ... SINCE <after>
func searchCriteria(q Query) *imap.SearchCriteria {
	criteria := orTree(q.Terms)
	if !q.After.IsZero() {
		criteria.Since = q.After
	}
	return criteria
}

func orTree(terms []string) *imap.SearchCriteria {
	c := imap.NewSearchCriteria()
	switch len(terms) {
	case 0:
	case 1:
		c.Text = []string{terms[0]}
	default:
		c.Or = [][2]*imap.SearchCriteria{{orTree(terms[:1]), orTree(terms[1:])}}
	}
	return c
}

// newestFirst keeps the highest limit UIDs and orders them newest first
func newestFirst(uids []uint32, limit int) []string {
	sorted := append([]uint32(nil), uids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}
	ids := make([]string, 0, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		ids = append(ids, strconv.FormatUint(uint64(sorted[i]), 10))
	}
	return ids
}

// parseRFC822 flattens a MIME message into a Surface with inline attachments
func parseRFC822(id string, r io.Reader) (*model.Surface, error) {
	mr, err := gomail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse message %s: %w", id, err)
	}
	defer mr.Close()

	surface := &model.Surface{
		ID:          id,
		Sender:      mr.Header.Get("From"),
		Date:        mr.Header.Get("Date"),
		Attachments: []model.Attachment{},
	}
	if subject, err := mr.Header.Subject(); err == nil {
		surface.Subject = subject
	} else {
		surface.Subject = mr.Header.Get("Subject")
	}

	var body strings.Builder
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			logrus.Warnf("Stopping MIME walk of message %s: %v", id, err)
			break
		}

		data, err := io.ReadAll(part.Body)
		if err != nil {
			logrus.Warnf("Failed to read part of message %s: %v", id, err)
			continue
		}

		switch h := part.Header.(type) {
		case *gomail.AttachmentHeader:
			filename, _ := h.Filename()
			mediaType, _, _ := h.ContentType()
			surface.Attachments = append(surface.Attachments, model.Attachment{
				Filename:  filename,
				MediaType: mediaType,
				Size:      int64(len(data)),
				Data:      data,
			})
		case *gomail.InlineHeader:
			mediaType, typeParams, _ := h.ContentType()
			if mediaType == "" {
				mediaType = "text/plain"
			}
			_, dispParams, _ := h.ContentDisposition()
			filename := dispParams["filename"]
			if filename == "" {
				filename = typeParams["name"]
			}
			if filename != "" || !strings.HasPrefix(mediaType, "text/") {
				surface.Attachments = append(surface.Attachments, model.Attachment{
					Filename:  filename,
					MediaType: mediaType,
					Size:      int64(len(data)),
					Data:      data,
				})
				if mediaType != "text/plain" {
					continue
				}
			}
			text := string(data)
			switch mediaType {
			case "text/plain":
			case "text/html":
				text = html2text.HTML2Text(text)
			default:
				continue
			}
			if body.Len() > 0 {
				body.WriteString("\n")
			}
			body.WriteString(text)
		}
	}
	surface.Body = body.String()
	return surface, nil
}
