package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-scanner-go/internal/model"
)

type fakeFetcher struct {
	data  map[string][]byte
	calls int
	err   error
}

func (f *fakeFetcher) GetAttachment(_ context.Context, _, handle string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.data[handle], nil
}

func testMessage() *model.Surface {
	return &model.Surface{
		ID:      "msg-1",
		Subject: "Invoice: PM Service, Unit 574!",
		Date:    "Tue, 04 Mar 2025 10:15:00 -0600",
	}
}

func TestEligible(t *testing.T) {
	cases := []struct {
		att  model.Attachment
		want bool
	}{
		{model.Attachment{Filename: "wo.bin", MediaType: "application/pdf"}, true},
		{model.Attachment{Filename: "photo", MediaType: "image/heic"}, true},
		{model.Attachment{Filename: "SCAN.TIFF", MediaType: "application/octet-stream"}, true},
		{model.Attachment{Filename: "receipt.jpeg"}, true},
		{model.Attachment{Filename: "notes.docx", MediaType: "application/msword"}, false},
		{model.Attachment{Filename: "invite.ics", MediaType: "text/calendar"}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Eligible(tc.att), tc.att.Filename)
	}
}

func TestBuildFilename(t *testing.T) {
	date := time.Date(2025, 3, 4, 10, 15, 0, 0, time.UTC)

	name := BuildFilename(date, "Invoice: PM  Service, Unit 574!", "abcd1234", "work order.pdf")

	assert.Equal(t, "20250304_Invoice_PM_Service_Unit_574_abcd1234_work_order.pdf", name)
}

func TestBuildFilenameStripsPaths(t *testing.T) {
	date := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "20250304_x_abcd1234_passwd", BuildFilename(date, "x", "abcd1234", "../../etc/passwd"))
	assert.Equal(t, "20250304_x_abcd1234_evil.pdf", BuildFilename(date, "x", "abcd1234", `..\..\evil.pdf`))
	assert.Equal(t, "20250304_x_abcd1234_attachment", BuildFilename(date, "x", "abcd1234", ""))
}

func TestSanitizeSubjectTruncates(t *testing.T) {
	long := "Réparation " + "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

	got := SanitizeSubject(long)

	assert.Len(t, []rune(got), 50)
	assert.Equal(t, "Réparation", got[:len("Réparation")])
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint([]byte("%PDF-1.7 invoice"))

	assert.Len(t, a, 8)
	assert.Equal(t, a, Fingerprint([]byte("%PDF-1.7 invoice")))
	assert.NotEqual(t, a, Fingerprint([]byte("%PDF-1.7 invoice 2")))
}

func TestParseMessageDate(t *testing.T) {
	cases := []struct {
		header string
		month  string
	}{
		{"Tue, 04 Mar 2025 10:15:00 -0600", "2025-03"},
		{"4 Mar 2025 10:15:00 +0000", "2025-03"},
		{"Sat, 31 May 2025 23:10:00 +0000 (UTC)", "2025-05"},
		{"2025-06-01T08:00:00Z", "2025-06"},
	}
	for _, tc := range cases {
		got, ok := ParseMessageDate(tc.header)
		require.True(t, ok, tc.header)
		assert.Equal(t, tc.month, got.Format("2006-01"), tc.header)
	}

	_, ok := ParseMessageDate("yesterday-ish")
	assert.False(t, ok)
}

func TestArchiveWritesOnce(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	a := New(NewLocalSink(root))
	fetcher := &fakeFetcher{data: map[string][]byte{"h1": []byte("%PDF invoice bytes")}}
	att := model.Attachment{Filename: "invoice.pdf", MediaType: "application/pdf", Handle: "h1"}

	first, err := a.Archive(ctx, fetcher, testMessage(), att)
	require.NoError(t, err)
	second, err := a.Archive(ctx, fetcher, testMessage(), att)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, filepath.Join(root, "2025-03"), filepath.Dir(first))
	assert.Equal(t, "20250304_Invoice_PM_Service_Unit_574_"+Fingerprint([]byte("%PDF invoice bytes"))+"_invoice.pdf",
		filepath.Base(first))

	entries, err := os.ReadDir(filepath.Join(root, "2025-03"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "%PDF invoice bytes", string(data))
}

func TestArchiveDifferentBytesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	a := New(NewLocalSink(t.TempDir()))
	msg := testMessage()

	p1, err := a.Archive(ctx, nil, msg, model.Attachment{Filename: "scan.pdf", Data: []byte("one")})
	require.NoError(t, err)
	p2, err := a.Archive(ctx, nil, msg, model.Attachment{Filename: "scan.pdf", Data: []byte("two")})
	require.NoError(t, err)

	assert.NotEqual(t, p1, p2)
}

func TestArchiveInlineDataSkipsFetcher(t *testing.T) {
	fetcher := &fakeFetcher{}
	a := New(NewLocalSink(t.TempDir()))

	_, err := a.Archive(context.Background(), fetcher, testMessage(), model.Attachment{Filename: "a.png", Data: []byte("png")})

	require.NoError(t, err)
	assert.Zero(t, fetcher.calls)
}

func TestArchiveDateFallback(t *testing.T) {
	root := t.TempDir()
	a := New(NewLocalSink(root))
	a.now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	msg := testMessage()
	msg.Date = "not a date"

	p, err := a.Archive(context.Background(), nil, msg, model.Attachment{Filename: "a.pdf", Data: []byte("x")})

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "2026-10"), filepath.Dir(p))
	assert.Contains(t, filepath.Base(p), "20261015_")
}

func TestArchiveErrors(t *testing.T) {
	a := New(NewLocalSink(t.TempDir()))

	_, err := a.Archive(context.Background(), nil, testMessage(), model.Attachment{Filename: "a.pdf"})
	assert.ErrorIs(t, err, ErrNoContent)

	boom := errors.New("quota")
	_, err = a.Archive(context.Background(), &fakeFetcher{err: boom}, testMessage(),
		model.Attachment{Filename: "a.pdf", Handle: "h"})
	assert.ErrorIs(t, err, boom)
}

func TestArchiveWriteFailure(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "2025-03")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))
	a := New(NewLocalSink(root))

	_, err := a.Archive(context.Background(), nil, testMessage(), model.Attachment{Filename: "a.pdf", Data: []byte("x")})

	assert.Error(t, err)
}
