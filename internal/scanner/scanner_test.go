package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/godocscan/internal/database"
	"github.com/jonesrussell/godocscan/internal/domain"
	"github.com/jonesrussell/godocscan/internal/logger"
	"github.com/jonesrussell/godocscan/internal/paperless"
)

type scanTimeUpdate struct {
	id         string
	nextScanAt *time.Time
}

type fakeInstanceStore struct {
	instances map[string]*domain.Instance
	due       []*domain.Instance
	updates   []scanTimeUpdate
}

func (f *fakeInstanceStore) GetByID(_ context.Context, id string) (*domain.Instance, error) {
	inst, ok := f.instances[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return inst, nil
}

func (f *fakeInstanceStore) ListDue(_ context.Context, _ time.Time) ([]*domain.Instance, error) {
	return f.due, nil
}

func (f *fakeInstanceStore) UpdateScanTimes(_ context.Context, id string, _ time.Time, nextScanAt *time.Time) error {
	f.updates = append(f.updates, scanTimeUpdate{id: id, nextScanAt: nextScanAt})
	return nil
}

type fakeDocumentStore struct {
	upserted []*domain.Document
}

func (f *fakeDocumentStore) Upsert(_ context.Context, doc *domain.Document) (string, error) {
	f.upserted = append(f.upserted, doc)
	return doc.ID, nil
}

type fakeQueueStore struct {
	queuedRemoteIDs map[int64]struct{}
	created         []*domain.QueueEntry
}

func (f *fakeQueueStore) Create(_ context.Context, entry *domain.QueueEntry) error {
	f.created = append(f.created, entry)
	return nil
}

func (f *fakeQueueStore) QueuedRemoteIDs(_ context.Context, _ string, _ []int64) (map[int64]struct{}, error) {
	if f.queuedRemoteIDs == nil {
		return map[int64]struct{}{}, nil
	}
	return f.queuedRemoteIDs, nil
}

type fakeResultStore struct {
	existingRemoteIDs map[int64]struct{}
}

func (f *fakeResultStore) ExistingRemoteIDs(_ context.Context, _ string, _ []int64) (map[int64]struct{}, error) {
	if f.existingRemoteIDs == nil {
		return map[int64]struct{}{}, nil
	}
	return f.existingRemoteIDs, nil
}

type fakeRemoteClient struct {
	docs     []paperless.Document
	err      error
	panicVal any
}

func (f *fakeRemoteClient) FetchAllDocuments(_ context.Context, _ int) ([]paperless.Document, error) {
	if f.panicVal != nil {
		panic(f.panicVal)
	}
	return f.docs, f.err
}

func testInstance() *domain.Instance {
	botID := "bot-1"
	return &domain.Instance{
		ID:                 "inst-1",
		Name:               "archive",
		OwnerID:            "owner-1",
		BaseURL:            "http://paperless.local",
		APIToken:           "token",
		ScanCron:           "*/30 * * * *",
		AutoProcessEnabled: true,
		DefaultBotID:       &botID,
	}
}

func newTestService(
	instances *fakeInstanceStore,
	documents *fakeDocumentStore,
	queue *fakeQueueStore,
	results *fakeResultStore,
	client RemoteClient,
) *Service {
	return NewService(
		instances,
		documents,
		queue,
		results,
		func(*domain.Instance) RemoteClient { return client },
		Config{PageSize: 100, MaxAttempts: 3},
		logger.NewNoOp(),
	)
}

func TestScanInstance_InstanceNotFound(t *testing.T) {
	instances := &fakeInstanceStore{instances: map[string]*domain.Instance{}}
	svc := newTestService(instances, &fakeDocumentStore{}, &fakeQueueStore{}, &fakeResultStore{}, &fakeRemoteClient{})

	result := svc.ScanInstance(context.Background(), "missing")

	assert.Equal(t, "Instance not found", result.Error)
	assert.Empty(t, instances.updates)
}

func TestScanInstance_NoDefaultBot(t *testing.T) {
	inst := testInstance()
	inst.DefaultBotID = nil
	instances := &fakeInstanceStore{instances: map[string]*domain.Instance{inst.ID: inst}}
	queue := &fakeQueueStore{}
	svc := newTestService(instances, &fakeDocumentStore{}, queue, &fakeResultStore{}, &fakeRemoteClient{
		docs: []paperless.Document{{ID: 1, Title: "doc"}},
	})

	result := svc.ScanInstance(context.Background(), inst.ID)

	assert.Equal(t, "No default AI bot configured", result.Error)
	assert.Empty(t, queue.created)

	// The scan window still advances so the instance is rescheduled.
	require.Len(t, instances.updates, 1)
	require.NotNil(t, instances.updates[0].nextScanAt)
	assert.True(t, instances.updates[0].nextScanAt.After(time.Now()))
}

func TestScanInstance_QueuesOnlyNewDocuments(t *testing.T) {
	inst := testInstance()
	instances := &fakeInstanceStore{instances: map[string]*domain.Instance{inst.ID: inst}}
	documents := &fakeDocumentStore{}
	queue := &fakeQueueStore{queuedRemoteIDs: map[int64]struct{}{2: {}}}
	results := &fakeResultStore{existingRemoteIDs: map[int64]struct{}{1: {}}}
	svc := newTestService(instances, documents, queue, results, &fakeRemoteClient{
		docs: []paperless.Document{
			{ID: 1, Title: "already analyzed"},
			{ID: 2, Title: "already queued"},
			{ID: 3, Title: "brand new"},
		},
	})

	result := svc.ScanInstance(context.Background(), inst.ID)

	assert.Empty(t, result.Error)
	assert.Equal(t, 1, result.DocumentsQueued)
	assert.Equal(t, 1, result.DocumentsAlreadyProcessed)
	assert.Equal(t, 1, result.DocumentsAlreadyQueued)
	assert.Equal(t, "archive", result.InstanceName)

	require.Len(t, documents.upserted, 1)
	assert.Equal(t, int64(3), documents.upserted[0].RemoteID)

	require.Len(t, queue.created, 1)
	entry := queue.created[0]
	assert.Equal(t, inst.ID, entry.InstanceID)
	assert.Equal(t, int64(3), entry.RemoteDocumentID)
	assert.Equal(t, domain.StatusPending, entry.Status)
	assert.Equal(t, domain.DefaultPriority, entry.Priority)
	assert.Equal(t, 3, entry.MaxAttempts)
	assert.Equal(t, 0, entry.Attempts)
	require.NotNil(t, entry.BotID)
	assert.Equal(t, "bot-1", *entry.BotID)
	require.NotNil(t, entry.DocumentID)
	assert.NotEmpty(t, entry.ID)

	require.Len(t, instances.updates, 1)
}

func TestScanInstance_RequiredTagsAreAllRequired(t *testing.T) {
	inst := testInstance()
	inst.RequiredTagIDs = []int64{1, 2}
	instances := &fakeInstanceStore{instances: map[string]*domain.Instance{inst.ID: inst}}
	queue := &fakeQueueStore{}
	svc := newTestService(instances, &fakeDocumentStore{}, queue, &fakeResultStore{}, &fakeRemoteClient{
		docs: []paperless.Document{
			{ID: 1, Tags: []int64{1, 2, 3}},
			{ID: 2, Tags: []int64{1}},
			{ID: 3, Tags: []int64{2}},
			{ID: 4, Tags: nil},
		},
	})

	result := svc.ScanInstance(context.Background(), inst.ID)

	assert.Empty(t, result.Error)
	assert.Equal(t, 1, result.DocumentsQueued)
	require.Len(t, queue.created, 1)
	assert.Equal(t, int64(1), queue.created[0].RemoteDocumentID)
}

func TestScanInstance_FetchErrorStillAdvancesScanTimes(t *testing.T) {
	inst := testInstance()
	instances := &fakeInstanceStore{instances: map[string]*domain.Instance{inst.ID: inst}}
	svc := newTestService(instances, &fakeDocumentStore{}, &fakeQueueStore{}, &fakeResultStore{}, &fakeRemoteClient{
		err: errors.New("connection refused"),
	})

	result := svc.ScanInstance(context.Background(), inst.ID)

	assert.Contains(t, result.Error, "connection refused")
	require.Len(t, instances.updates, 1)
	assert.NotNil(t, instances.updates[0].nextScanAt)
}

func TestScanInstance_NonErrorPanicBecomesUnknownError(t *testing.T) {
	inst := testInstance()
	instances := &fakeInstanceStore{instances: map[string]*domain.Instance{inst.ID: inst}}
	svc := newTestService(instances, &fakeDocumentStore{}, &fakeQueueStore{}, &fakeResultStore{}, &fakeRemoteClient{
		panicVal: "boom",
	})

	result := svc.ScanInstance(context.Background(), inst.ID)

	assert.Equal(t, "Unknown error", result.Error)
	require.Len(t, instances.updates, 1)
}

func TestScanInstance_InvalidCronStoresNullNextScan(t *testing.T) {
	inst := testInstance()
	inst.ScanCron = "not a cron"
	instances := &fakeInstanceStore{instances: map[string]*domain.Instance{inst.ID: inst}}
	svc := newTestService(instances, &fakeDocumentStore{}, &fakeQueueStore{}, &fakeResultStore{}, &fakeRemoteClient{})

	result := svc.ScanInstance(context.Background(), inst.ID)

	assert.Empty(t, result.Error)
	require.Len(t, instances.updates, 1)
	assert.Nil(t, instances.updates[0].nextScanAt)
}

func TestScanDueInstances(t *testing.T) {
	inst1 := testInstance()
	inst2 := testInstance()
	inst2.ID = "inst-2"
	inst2.Name = "invoices"
	instances := &fakeInstanceStore{
		instances: map[string]*domain.Instance{inst1.ID: inst1, inst2.ID: inst2},
		due:       []*domain.Instance{inst1, inst2},
	}
	svc := newTestService(instances, &fakeDocumentStore{}, &fakeQueueStore{}, &fakeResultStore{}, &fakeRemoteClient{})

	results, err := svc.ScanDueInstances(context.Background())

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "inst-1", results[0].InstanceID)
	assert.Equal(t, "inst-2", results[1].InstanceID)
}
