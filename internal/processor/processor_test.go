package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jonesrussell/godocscan/internal/analysis"
	"github.com/jonesrussell/godocscan/internal/database"
	"github.com/jonesrussell/godocscan/internal/domain"
	"github.com/jonesrussell/godocscan/internal/logger"
	"github.com/jonesrussell/godocscan/internal/paperless"
	analysismock "github.com/jonesrussell/godocscan/testutils/mocks/analysis"
)

type retryCall struct {
	id           string
	attempts     int
	lastError    string
	scheduledFor time.Time
}

type failCall struct {
	id        string
	attempts  int
	lastError string
}

type fakeQueue struct {
	entries  map[string]*domain.QueueEntry
	claimErr error
	next     []*domain.QueueEntry

	completed   []string
	retries     []retryCall
	fails       []failCall
	resetCutoff time.Time
	resetN      int64
	counts      map[domain.QueueStatus]int
}

func (f *fakeQueue) MarkProcessing(_ context.Context, id string, _ time.Time) (*domain.QueueEntry, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	entry, ok := f.entries[id]
	if !ok {
		return nil, database.ErrNotClaimable
	}
	entry.Status = domain.StatusProcessing
	return entry, nil
}

func (f *fakeQueue) NextDue(_ context.Context, _ time.Time) (*domain.QueueEntry, error) {
	if len(f.next) == 0 {
		return nil, database.ErrNotFound
	}
	entry := f.next[0]
	f.next = f.next[1:]
	return entry, nil
}

func (f *fakeQueue) Complete(_ context.Context, id string, _ time.Time) error {
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeQueue) Retry(_ context.Context, id string, attempts int, lastError string, scheduledFor time.Time) error {
	f.retries = append(f.retries, retryCall{id: id, attempts: attempts, lastError: lastError, scheduledFor: scheduledFor})
	return nil
}

func (f *fakeQueue) Fail(_ context.Context, id string, attempts int, lastError string, _ time.Time) error {
	f.fails = append(f.fails, failCall{id: id, attempts: attempts, lastError: lastError})
	return nil
}

func (f *fakeQueue) ResetStuck(_ context.Context, olderThan time.Time) (int64, error) {
	f.resetCutoff = olderThan
	return f.resetN, nil
}

func (f *fakeQueue) CountByStatus(_ context.Context, status domain.QueueStatus) (int, error) {
	return f.counts[status], nil
}

type fakeDocuments struct {
	docs map[string]*domain.Document
}

func (f *fakeDocuments) GetByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return doc, nil
}

type fakeBots struct {
	bots map[string]*domain.Bot
}

func (f *fakeBots) GetByID(_ context.Context, id string) (*domain.Bot, error) {
	bot, ok := f.bots[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return bot, nil
}

type fakeInstances struct {
	instances map[string]*domain.Instance
}

func (f *fakeInstances) GetByID(_ context.Context, id string) (*domain.Instance, error) {
	inst, ok := f.instances[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return inst, nil
}

type fakeResults struct {
	created   []*domain.AnalysisResult
	createErr error
}

func (f *fakeResults) Create(_ context.Context, result *domain.AnalysisResult) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, result)
	return nil
}

type fakeApplier struct {
	updates []*paperless.MetadataUpdate
	err     error
}

func (f *fakeApplier) ApplyMetadata(_ context.Context, _ int64, update *paperless.MetadataUpdate) error {
	f.updates = append(f.updates, update)
	return f.err
}

type fixture struct {
	queue     *fakeQueue
	documents *fakeDocuments
	bots      *fakeBots
	instances *fakeInstances
	results   *fakeResults
	applier   *fakeApplier
	analyzer  *analysismock.MockAnalyzer
	svc       *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	docID := "doc-1"
	botID := "bot-1"
	entry := &domain.QueueEntry{
		ID:               "entry-1",
		InstanceID:       "inst-1",
		DocumentID:       &docID,
		BotID:            &botID,
		RemoteDocumentID: 42,
		Status:           domain.StatusPending,
		Priority:         domain.DefaultPriority,
		Attempts:         0,
		MaxAttempts:      3,
		ScheduledFor:     time.Now(),
	}

	f := &fixture{
		queue:     &fakeQueue{entries: map[string]*domain.QueueEntry{entry.ID: entry}},
		documents: &fakeDocuments{docs: map[string]*domain.Document{docID: {ID: docID, InstanceID: "inst-1", RemoteID: 42, Title: "invoice"}}},
		bots:      &fakeBots{bots: map[string]*domain.Bot{botID: {ID: botID, Model: "gpt-4o-mini", Prompt: "extract metadata"}}},
		instances: &fakeInstances{instances: map[string]*domain.Instance{"inst-1": {ID: "inst-1", Name: "archive", OwnerID: "owner-1"}}},
		results:   &fakeResults{},
		applier:   &fakeApplier{},
		analyzer:  analysismock.NewMockAnalyzer(ctrl),
	}

	f.svc = NewService(
		f.queue,
		f.documents,
		f.bots,
		f.instances,
		f.results,
		f.analyzer,
		func(*domain.Instance) analysis.MetadataApplier { return f.applier },
		Config{RetryDelayMinutes: 5, StuckThreshold: 10 * time.Minute},
		logger.NewNoOp(),
	)
	return f
}

func (f *fixture) entry() *domain.QueueEntry {
	return f.queue.entries["entry-1"]
}

func TestProcessQueueItem_Success(t *testing.T) {
	f := newFixture(t)
	suggestions := &domain.SuggestionSet{Title: "Invoice March", Tags: []string{"invoice"}}
	f.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(suggestions, nil)

	result := f.svc.ProcessQueueItem(context.Background(), "entry-1")

	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Equal(t, "doc-1", result.DocumentID)
	assert.Equal(t, []string{"entry-1"}, f.queue.completed)

	require.Len(t, f.results.created, 1)
	stored := f.results.created[0]
	assert.Equal(t, "inst-1", stored.InstanceID)
	assert.Equal(t, "doc-1", stored.DocumentID)
	assert.Equal(t, int64(42), stored.RemoteID)
	assert.Equal(t, "bot-1", stored.BotID)
	assert.Equal(t, "Invoice March", stored.Suggestions.Title)

	// No auto-apply gate is enabled on the instance.
	assert.Empty(t, f.applier.updates)
}

func TestProcessQueueItem_ClaimFailure(t *testing.T) {
	f := newFixture(t)
	f.queue.claimErr = database.ErrNotClaimable

	result := f.svc.ProcessQueueItem(context.Background(), "entry-1")

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, f.queue.completed)
	assert.Empty(t, f.queue.retries)
	assert.Empty(t, f.queue.fails)
}

func TestProcessQueueItem_AnalysisFailureSchedulesLinearRetry(t *testing.T) {
	f := newFixture(t)
	f.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(nil, errors.New("model overloaded"))

	before := time.Now()
	result := f.svc.ProcessQueueItem(context.Background(), "entry-1")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "model overloaded")
	assert.Empty(t, f.queue.completed)
	assert.Empty(t, f.queue.fails)

	require.Len(t, f.queue.retries, 1)
	retry := f.queue.retries[0]
	assert.Equal(t, 1, retry.attempts)
	assert.Contains(t, retry.lastError, "model overloaded")

	// First retry is scheduled one delay unit out.
	wantDelay := 5 * time.Minute
	assert.WithinDuration(t, before.Add(wantDelay), retry.scheduledFor, 5*time.Second)
}

func TestProcessQueueItem_SecondFailureBacksOffFurther(t *testing.T) {
	f := newFixture(t)
	f.entry().Attempts = 1
	f.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))

	before := time.Now()
	f.svc.ProcessQueueItem(context.Background(), "entry-1")

	require.Len(t, f.queue.retries, 1)
	retry := f.queue.retries[0]
	assert.Equal(t, 2, retry.attempts)
	assert.WithinDuration(t, before.Add(10*time.Minute), retry.scheduledFor, 5*time.Second)
}

func TestProcessQueueItem_ExhaustedAttemptsFailTerminally(t *testing.T) {
	f := newFixture(t)
	f.entry().Attempts = 2
	f.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(nil, errors.New("still broken"))

	result := f.svc.ProcessQueueItem(context.Background(), "entry-1")

	assert.False(t, result.Success)
	assert.Empty(t, f.queue.retries)

	require.Len(t, f.queue.fails, 1)
	fail := f.queue.fails[0]
	assert.Equal(t, 3, fail.attempts)
	assert.Contains(t, fail.lastError, "still broken")
}

func TestProcessQueueItem_MissingDocumentFailsImmediately(t *testing.T) {
	f := newFixture(t)
	f.documents.docs = map[string]*domain.Document{}

	result := f.svc.ProcessQueueItem(context.Background(), "entry-1")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "document missing")
	assert.Empty(t, f.queue.retries)

	// Data integrity failures do not consume an attempt.
	require.Len(t, f.queue.fails, 1)
	assert.Equal(t, 0, f.queue.fails[0].attempts)
}

func TestProcessQueueItem_NilBotReferenceFailsImmediately(t *testing.T) {
	f := newFixture(t)
	f.entry().BotID = nil

	result := f.svc.ProcessQueueItem(context.Background(), "entry-1")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no bot reference")
	require.Len(t, f.queue.fails, 1)
}

func TestProcessQueueItem_NonErrorPanicBecomesUnknownError(t *testing.T) {
	f := newFixture(t)
	f.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, analysis.AnalyzeRequest) (*domain.SuggestionSet, error) {
			panic("not an error value")
		})

	result := f.svc.ProcessQueueItem(context.Background(), "entry-1")

	assert.False(t, result.Success)
	assert.Equal(t, "Unknown error", result.Error)
	require.Len(t, f.queue.retries, 1)
	assert.Equal(t, "Unknown error", f.queue.retries[0].lastError)
}

func TestProcessQueueItem_AutoApply(t *testing.T) {
	f := newFixture(t)
	inst := f.instances.instances["inst-1"]
	inst.ApplyTitle = true
	inst.ApplyTags = true
	f.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(
		&domain.SuggestionSet{Title: "Invoice March", Correspondent: "ACME"}, nil)

	result := f.svc.ProcessQueueItem(context.Background(), "entry-1")

	assert.True(t, result.Success)
	require.Len(t, f.applier.updates, 1)
	update := f.applier.updates[0]
	require.NotNil(t, update.Title)
	assert.Equal(t, "Invoice March", *update.Title)
	// Correspondent gate is off, suggestion is not applied.
	assert.Nil(t, update.Correspondent)
}

func TestProcessQueueItem_AutoApplyFailureStillCompletes(t *testing.T) {
	f := newFixture(t)
	f.instances.instances["inst-1"].ApplyTitle = true
	f.applier.err = errors.New("remote rejected update")
	f.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(
		&domain.SuggestionSet{Title: "Invoice March"}, nil)

	result := f.svc.ProcessQueueItem(context.Background(), "entry-1")

	assert.True(t, result.Success)
	assert.Equal(t, []string{"entry-1"}, f.queue.completed)
}

func TestProcessQueueItem_ResultStoreFailureStillCompletes(t *testing.T) {
	f := newFixture(t)
	f.results.createErr = errors.New("disk full")
	f.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(
		&domain.SuggestionSet{Title: "Invoice March"}, nil)

	result := f.svc.ProcessQueueItem(context.Background(), "entry-1")

	assert.True(t, result.Success)
	assert.Equal(t, []string{"entry-1"}, f.queue.completed)
}

func TestProcessAllPending_DrainsUntilEmpty(t *testing.T) {
	f := newFixture(t)
	f.queue.next = []*domain.QueueEntry{f.entry()}
	f.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(
		&domain.SuggestionSet{Title: "Invoice March"}, nil)

	results := f.svc.ProcessAllPending(context.Background())

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Empty(t, f.queue.next)
}

func TestProcessAllPending_EmptyQueue(t *testing.T) {
	f := newFixture(t)

	results := f.svc.ProcessAllPending(context.Background())

	assert.Empty(t, results)
}

func TestResetStuckItems(t *testing.T) {
	f := newFixture(t)
	f.queue.resetN = 2

	before := time.Now()
	n, err := f.svc.ResetStuckItems(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.WithinDuration(t, before.Add(-10*time.Minute), f.queue.resetCutoff, 5*time.Second)
}

func TestQueueStats(t *testing.T) {
	f := newFixture(t)
	f.queue.counts = map[domain.QueueStatus]int{
		domain.StatusPending:    4,
		domain.StatusProcessing: 1,
		domain.StatusCompleted:  10,
		domain.StatusFailed:     2,
	}

	stats, err := f.svc.QueueStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, &domain.QueueStats{Pending: 4, Processing: 1, Completed: 10, Failed: 2}, stats)
}
