package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-scanner-go/internal/archive"
	"invoice-scanner-go/internal/classifier"
	"invoice-scanner-go/internal/ledger"
	"invoice-scanner-go/internal/mail"
	"invoice-scanner-go/internal/metrics"
	"invoice-scanner-go/internal/model"
)

type fakeSource struct {
	mu          sync.Mutex
	messages    map[string]*model.Surface
	attachments map[string][]byte
	getErr      map[string]error
	listIDs     []string
	listErr     error
	lastQuery   mail.Query
	lastLimit   int
	getCalls    map[string]int
	afterGet    func(id string)
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		messages:    map[string]*model.Surface{},
		attachments: map[string][]byte{},
		getErr:      map[string]error{},
		getCalls:    map[string]int{},
	}
}

func (f *fakeSource) ListCandidates(_ context.Context, q mail.Query, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	f.lastLimit = limit
	return f.listIDs, f.listErr
}

func (f *fakeSource) GetMessage(_ context.Context, id string) (*model.Surface, error) {
	f.mu.Lock()
	f.getCalls[id]++
	err := f.getErr[id]
	msg, ok := f.messages[id]
	hook := f.afterGet
	f.mu.Unlock()

	if hook != nil {
		defer hook(id)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, mail.ErrUnavailable
	}
	cp := *msg
	return &cp, nil
}

func (f *fakeSource) GetAttachment(_ context.Context, messageID, handle string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.attachments[messageID+"/"+handle]
	if !ok {
		return nil, mail.ErrUnavailable
	}
	return data, nil
}

func (f *fakeSource) Close() error { return nil }

type failingStore struct {
	loadErr error
	saveErr error
}

func (s failingStore) Load(context.Context) ([]string, error) { return nil, s.loadErr }
func (s failingStore) Save(context.Context, []string) error   { return s.saveErr }

type recorded struct {
	scanID   string
	id       string
	decision model.Decision
	archived []string
}

type fakeRecorder struct {
	calls []recorded
	err   error
}

func (r *fakeRecorder) RecordDecision(_ context.Context, scanID string, msg *model.Surface, d model.Decision, archived []string) error {
	r.calls = append(r.calls, recorded{scanID: scanID, id: msg.ID, decision: d, archived: archived})
	return r.err
}

type harness struct {
	root    string
	source  *fakeSource
	store   *ledger.FileStore
	scanner *Scanner
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	src := newFakeSource()
	identity := classifier.NewIdentity("574", "3AKJHHDR7KSKE1598")
	cls := classifier.New(identity, classifier.DefaultVocabulary(), classifier.DefaultThreshold)
	store := ledger.NewFileStore(filepath.Join(root, "processed_emails.json"))
	sc := New(Config{BatchSize: 500, LookbackDays: 365, SummaryDir: root},
		src, identity, cls, archive.New(archive.NewLocalSink(root)), store,
		metrics.NewMetrics(prometheus.NewRegistry()))
	return &harness{root: root, source: src, store: store, scanner: sc}
}

// seed installs a mailbox with an invoice, a rate confirmation, a newsletter
// and an unrelated mention of the unit.
func (h *harness) seed() {
	h.source.messages["inv"] = &model.Surface{
		ID:      "inv",
		Subject: "Invoice - PM Service Unit 574",
		Sender:  "shop@example.com",
		Date:    "Tue, 04 Mar 2025 10:15:00 -0600",
		Body:    "VIN 3AKJHHDR7KSKE1598 oil change and labor",
		Attachments: []model.Attachment{
			{Filename: "wo-1187.pdf", MediaType: "application/pdf", Handle: "a1"},
			{Filename: "signature.vcf", MediaType: "text/vcard", Handle: "a2"},
		},
	}
	h.source.attachments["inv/a1"] = []byte("%PDF-1.7 work order")
	h.source.messages["rate"] = &model.Surface{
		ID: "rate", Subject: "Rate Confirmation #4471", Sender: "broker@example.com",
		Body: "Unit 574 pickup tomorrow",
	}
	h.source.messages["news"] = &model.Surface{
		ID: "news", Subject: "Weekly Newsletter", Sender: "news@example.com", Body: "Hello drivers",
	}
	h.source.messages["yard"] = &model.Surface{
		ID: "yard", Subject: "Unit 574 parked at yard", Sender: "ops@example.com",
	}
}

func (h *harness) persistedIDs(t *testing.T) []string {
	t.Helper()
	ids, err := h.store.Load(context.Background())
	require.NoError(t, err)
	return ids
}

func (h *harness) archivedFiles(t *testing.T) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(h.root, "2025-03", "*"))
	require.NoError(t, err)
	return matches
}

func TestRunIDsMixedMailbox(t *testing.T) {
	h := newHarness(t)
	h.seed()

	s, err := h.scanner.RunIDs(context.Background(), []string{"inv", "rate", "news", "yard", "missing"})
	require.NoError(t, err)

	assert.NotEmpty(t, s.ScanID)
	assert.Equal(t, 5, s.Candidates)
	assert.Equal(t, 4, s.TotalScanned)
	assert.Equal(t, 1, s.InvoicesFound)
	assert.Equal(t, 1, s.AttachmentsArchived)
	assert.Equal(t, 1, s.SkippedExcluded)
	assert.Equal(t, 1, s.SkippedNoIdentifier)
	assert.Equal(t, 1, s.SkippedNotRelevant)
	assert.Equal(t, 1, s.FetchFailures)
	assert.Zero(t, s.SkippedAlreadyProcessed)
	assert.False(t, s.Interrupted)

	require.Len(t, s.Invoices, 1)
	inv := s.Invoices[0]
	assert.Equal(t, "inv", inv.ID)
	assert.GreaterOrEqual(t, inv.Confidence, 0.85)
	assert.Contains(t, inv.Identifiers, "3AKJHHDR7KSKE1598")
	require.Len(t, inv.ArchivedPaths, 1)
	data, err := os.ReadFile(inv.ArchivedPaths[0])
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 work order", string(data))

	assert.ElementsMatch(t, []string{"inv", "news", "rate", "yard"}, h.persistedIDs(t))
	assert.Same(t, s, h.scanner.LastSummary())
}

func TestSummaryFileWritten(t *testing.T) {
	h := newHarness(t)
	h.seed()
	start := time.Date(2025, 10, 15, 8, 30, 5, 0, time.UTC)
	h.scanner.now = func() time.Time { return start }

	_, err := h.scanner.RunIDs(context.Background(), []string{"inv"})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(h.root, "scan_summary_20251015_083005.json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.EqualValues(t, 1, doc["invoices_found"])
	assert.EqualValues(t, 0, doc["skipped_already_processed"])
	invoices := doc["invoices"].([]any)
	require.Len(t, invoices, 1)
	assert.Contains(t, invoices[0], "attachments_archived")
}

func TestSecondScanSkipsProcessedMessages(t *testing.T) {
	h := newHarness(t)
	h.seed()
	ids := []string{"inv", "rate", "news"}

	_, err := h.scanner.RunIDs(context.Background(), ids)
	require.NoError(t, err)
	second, err := h.scanner.RunIDs(context.Background(), ids)
	require.NoError(t, err)

	assert.Equal(t, 3, second.SkippedAlreadyProcessed)
	assert.Zero(t, second.TotalScanned)
	assert.Zero(t, second.InvoicesFound)
	assert.Equal(t, 1, h.source.getCalls["inv"])
	assert.Len(t, h.archivedFiles(t), 1)
	assert.Len(t, h.persistedIDs(t), 3)
}

func TestFetchFailureIsRetriedNextScan(t *testing.T) {
	h := newHarness(t)
	h.seed()
	h.source.getErr["inv"] = errors.New("connection reset")

	first, err := h.scanner.RunIDs(context.Background(), []string{"inv", "news"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.FetchFailures)
	assert.Equal(t, []string{"news"}, h.persistedIDs(t))

	delete(h.source.getErr, "inv")
	second, err := h.scanner.RunIDs(context.Background(), []string{"inv", "news"})
	require.NoError(t, err)

	assert.Equal(t, 1, second.InvoicesFound)
	assert.Equal(t, 1, second.SkippedAlreadyProcessed)
	assert.ElementsMatch(t, []string{"inv", "news"}, h.persistedIDs(t))
}

func TestAllFetchesFailingIsFatal(t *testing.T) {
	h := newHarness(t)
	h.seed()
	h.source.getErr["inv"] = errors.New("dial tcp: connection refused")
	h.source.getErr["news"] = errors.New("dial tcp: connection refused")

	s, err := h.scanner.RunIDs(context.Background(), []string{"inv", "news"})

	assert.ErrorIs(t, err, ErrSourceUnreachable)
	require.NotNil(t, s)
	assert.Equal(t, 2, s.FetchFailures)
	assert.Zero(t, s.TotalScanned)
	assert.Empty(t, h.persistedIDs(t))

	summaries, err := ListSummaries(h.root)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestAlreadyProcessedOnlyScanIsNotAFetchFailure(t *testing.T) {
	h := newHarness(t)
	h.seed()
	_, err := h.scanner.RunIDs(context.Background(), []string{"news"})
	require.NoError(t, err)

	s, err := h.scanner.RunIDs(context.Background(), []string{"news"})

	require.NoError(t, err)
	assert.Equal(t, 1, s.SkippedAlreadyProcessed)
}

func TestLedgerGrowsMonotonically(t *testing.T) {
	h := newHarness(t)
	h.seed()
	h.source.getErr["yard"] = errors.New("timeout")
	ids := []string{"inv", "rate", "news", "yard"}

	sizes := []int{}
	for i := 0; i < 3; i++ {
		_, err := h.scanner.RunIDs(context.Background(), ids)
		require.NoError(t, err)
		sizes = append(sizes, len(h.persistedIDs(t)))
	}

	assert.Equal(t, []int{3, 3, 3}, sizes)
}

func TestArchiveFailureStillMarksProcessed(t *testing.T) {
	h := newHarness(t)
	h.seed()
	delete(h.source.attachments, "inv/a1")

	s, err := h.scanner.RunIDs(context.Background(), []string{"inv"})
	require.NoError(t, err)

	assert.Equal(t, 1, s.InvoicesFound)
	assert.Equal(t, 1, s.ArchiveFailures)
	assert.Zero(t, s.AttachmentsArchived)
	assert.Empty(t, s.Invoices[0].ArchivedPaths)
	assert.Equal(t, []string{"inv"}, h.persistedIDs(t))
}

func TestRunBuildsQueryAndLimit(t *testing.T) {
	h := newHarness(t)
	h.seed()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	h.scanner.now = func() time.Time { return now }
	h.source.listIDs = []string{"inv"}

	s, err := h.scanner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, s.InvoicesFound)
	assert.Equal(t, 500, h.source.lastLimit)
	assert.Equal(t, []string{"3AKJHHDR7KSKE1598", "KSKE1598", "574", "Unit 574"}, h.source.lastQuery.Terms)
	assert.Equal(t, "2025/10/15", h.source.lastQuery.After.Format("2006/01/02"))
}

func TestRunListFailureLeavesLedgerUntouched(t *testing.T) {
	h := newHarness(t)
	h.source.listErr = errors.New("invalid_grant")

	s, err := h.scanner.Run(context.Background())

	require.Error(t, err)
	assert.Nil(t, s)
	_, statErr := os.Stat(h.store.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestLedgerSaveFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.seed()
	h.scanner.store = failingStore{saveErr: errors.New("disk full")}

	s, err := h.scanner.RunIDs(context.Background(), []string{"inv"})

	assert.ErrorIs(t, err, ErrLedgerPersist)
	require.NotNil(t, s)
	assert.Equal(t, 1, s.InvoicesFound)
}

func TestCorruptLedgerAbortsScan(t *testing.T) {
	h := newHarness(t)
	h.seed()
	require.NoError(t, os.WriteFile(h.store.Path(), []byte("{not json"), 0o644))

	_, err := h.scanner.RunIDs(context.Background(), []string{"inv"})

	assert.ErrorIs(t, err, ledger.ErrCorrupt)
	assert.Zero(t, h.source.getCalls["inv"])
}

func TestCancellationBetweenMessages(t *testing.T) {
	h := newHarness(t)
	h.seed()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.source.afterGet = func(string) { cancel() }

	s, err := h.scanner.RunIDs(ctx, []string{"inv", "rate", "news"})
	require.NoError(t, err)

	assert.True(t, s.Interrupted)
	assert.Equal(t, 1, s.TotalScanned)
	assert.Equal(t, 1, s.AttachmentsArchived)
	assert.Equal(t, []string{"inv"}, h.persistedIDs(t))
	assert.Zero(t, h.source.getCalls["rate"])
}

func TestConcurrentScanRejected(t *testing.T) {
	h := newHarness(t)
	h.scanner.mu.Lock()
	defer h.scanner.mu.Unlock()

	_, err := h.scanner.Run(context.Background())
	assert.ErrorIs(t, err, ErrScanInProgress)

	_, err = h.scanner.RunIDs(context.Background(), nil)
	assert.ErrorIs(t, err, ErrScanInProgress)
}

func TestRecorderReceivesDecisions(t *testing.T) {
	h := newHarness(t)
	h.seed()
	rec := &fakeRecorder{err: errors.New("db down")}
	h.scanner.SetRecorder(rec)

	s, err := h.scanner.RunIDs(context.Background(), []string{"inv", "rate", "missing"})
	require.NoError(t, err)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, s.ScanID, rec.calls[0].scanID)
	assert.Equal(t, "inv", rec.calls[0].id)
	assert.True(t, rec.calls[0].decision.Accepted)
	assert.Len(t, rec.calls[0].archived, 1)
	assert.Equal(t, model.ReasonRateConfirmation, rec.calls[1].decision.Reason)
}
