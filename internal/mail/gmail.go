package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/k3a/html2text"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"invoice-scanner-go/internal/config"
	"invoice-scanner-go/internal/model"
)

const (
	// maxPageSize is the largest page the Gmail list endpoint returns
	maxPageSize       = 500
	maxRateLimitRetry = 4
)

// OAuthConfig returns the OAuth2 client configuration for read-only mailbox access
func OAuthConfig(cfg *config.GmailConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}
}

// GmailSource implements Source using the Gmail API
type GmailSource struct {
	service     *gmail.Service
	userEmail   string
	limiter     *rateLimiter
	backoffBase time.Duration
}

// NewGmailSource creates a Gmail API source authenticated with the
// configured refresh token.
func NewGmailSource(ctx context.Context, cfg *config.GmailConfig) (*GmailSource, error) {
	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	tokenSource := OAuthConfig(cfg).TokenSource(ctx, token)

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return newGmailSource(service, cfg), nil
}

func newGmailSource(service *gmail.Service, cfg *config.GmailConfig) *GmailSource {
	user := cfg.UserEmail
	if user == "" {
		user = "me"
	}
	return &GmailSource{
		service:     service,
		userEmail:   user,
		limiter:     newRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		backoffBase: time.Second,
	}
}

// ListCandidates returns up to limit message ids matching q, newest first
func (s *GmailSource) ListCandidates(ctx context.Context, q Query, limit int) ([]string, error) {
	query := q.GmailQuery()
	logrus.WithField("query", query).Info("Searching mailbox")

	var (
		ids       []string
		pageToken string
	)
	for limit <= 0 || len(ids) < limit {
		pageSize := int64(maxPageSize)
		if limit > 0 && limit-len(ids) < maxPageSize {
			pageSize = int64(limit - len(ids))
		}

		var resp *gmail.ListMessagesResponse
		err := s.call(ctx, "list messages", func() error {
			call := s.service.Users.Messages.List(s.userEmail).Q(query).MaxResults(pageSize).Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var err error
			resp, err = call.Do()
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" || len(resp.Messages) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// GetMessage fetches one message and flattens it into a Surface
func (s *GmailSource) GetMessage(ctx context.Context, id string) (*model.Surface, error) {
	var msg *gmail.Message
	err := s.call(ctx, "get message "+id, func() error {
		var err error
		msg, err = s.service.Users.Messages.Get(s.userEmail, id).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return flattenGmailMessage(msg), nil
}

// GetAttachment downloads the bytes of one attachment
func (s *GmailSource) GetAttachment(ctx context.Context, messageID, handle string) ([]byte, error) {
	var body *gmail.MessagePartBody
	err := s.call(ctx, "get attachment", func() error {
		var err error
		body, err = s.service.Users.Messages.Attachments.Get(s.userEmail, messageID, handle).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	data, err := decodeBase64URL(body.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment data: %w", err)
	}
	return data, nil
}

// Close closes the Gmail API source
func (s *GmailSource) Close() error {
	// Gmail API service doesn't need explicit closing
	return nil
}

// call runs fn under the rate limiter, backing off and retrying on 429
func (s *GmailSource) call(ctx context.Context, op string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		err := fn()
		switch {
		case err == nil:
			return nil
		case isNotFound(err):
			return fmt.Errorf("%s: %w", op, ErrUnavailable)
		case isRateLimited(err):
			if attempt >= maxRateLimitRetry {
				return fmt.Errorf("%s: %w", op, ErrRateLimited)
			}
			delay := s.backoffBase << attempt
			logrus.WithFields(logrus.Fields{
				"operation": op,
				"attempt":   attempt + 1,
				"delay":     delay.String(),
			}).Warn("Gmail rate limit hit, backing off")
			s.limiter.Backoff(delay)
		default:
			return fmt.Errorf("%s: %w", op, err)
		}
	}
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

func isRateLimited(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusTooManyRequests {
		return true
	}
	if gerr.Code == http.StatusForbidden {
		for _, item := range gerr.Errors {
			if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
				return true
			}
		}
	}
	return false
}

// flattenGmailMessage resolves headers, the text body and the attachment
// descriptors of a full-format Gmail message.
func flattenGmailMessage(msg *gmail.Message) *model.Surface {
	surface := &model.Surface{ID: msg.Id, Attachments: []model.Attachment{}}
	if msg.Payload == nil {
		return surface
	}

	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			surface.Subject = h.Value
		case "from":
			surface.Sender = h.Value
		case "date":
			surface.Date = h.Value
		}
	}

	var body strings.Builder
	walkGmailPart(msg.Payload, &body, surface)
	surface.Body = body.String()
	return surface
}

func walkGmailPart(part *gmail.MessagePart, body *strings.Builder, surface *model.Surface) {
	if part.Filename != "" {
		att := model.Attachment{Filename: part.Filename, MediaType: part.MimeType}
		if part.Body != nil {
			att.Size = part.Body.Size
			att.Handle = part.Body.AttachmentId
			if att.Handle == "" && part.Body.Data != "" {
				if data, err := decodeBase64URL(part.Body.Data); err == nil {
					att.Data = data
				}
			}
		}
		surface.Attachments = append(surface.Attachments, att)
		if att.Data != nil && strings.HasPrefix(part.MimeType, "text/plain") {
			appendText(body, part.Body.Data, false)
		}
	} else if part.Body != nil && part.Body.Data != "" {
		switch {
		case strings.HasPrefix(part.MimeType, "text/plain"):
			appendText(body, part.Body.Data, false)
		case strings.HasPrefix(part.MimeType, "text/html"):
			appendText(body, part.Body.Data, true)
		}
	}

	for _, sub := range part.Parts {
		walkGmailPart(sub, body, surface)
	}
}

func appendText(body *strings.Builder, encoded string, html bool) {
	data, err := decodeBase64URL(encoded)
	if err != nil {
		logrus.Debugf("Skipping undecodable body part: %v", err)
		return
	}
	text := string(data)
	if html {
		text = html2text.HTML2Text(text)
	}
	if body.Len() > 0 {
		body.WriteString("\n")
	}
	body.WriteString(text)
}

// decodeBase64URL accepts padded and unpadded base64url
func decodeBase64URL(s string) ([]byte, error) {
	if data, err := base64.URLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
