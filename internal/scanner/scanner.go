// Package scanner discovers new remote documents for an instance and
// enqueues them for analysis.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/godocscan/internal/database"
	"github.com/jonesrussell/godocscan/internal/domain"
	"github.com/jonesrussell/godocscan/internal/logger"
	"github.com/jonesrussell/godocscan/internal/paperless"
	"github.com/jonesrussell/godocscan/internal/schedule"
)

// Error strings surfaced in scan results.
const (
	errInstanceNotFound = "Instance not found"
	errNoDefaultBot     = "No default AI bot configured"
	errUnknown          = "Unknown error"
)

// InstanceStore is the instance persistence the scanner needs.
type InstanceStore interface {
	GetByID(ctx context.Context, id string) (*domain.Instance, error)
	ListDue(ctx context.Context, now time.Time) ([]*domain.Instance, error)
	UpdateScanTimes(ctx context.Context, id string, lastScanAt time.Time, nextScanAt *time.Time) error
}

// DocumentStore is the document persistence the scanner needs.
type DocumentStore interface {
	Upsert(ctx context.Context, doc *domain.Document) (string, error)
}

// QueueStore is the queue persistence the scanner needs.
type QueueStore interface {
	Create(ctx context.Context, entry *domain.QueueEntry) error
	QueuedRemoteIDs(ctx context.Context, instanceID string, remoteIDs []int64) (map[int64]struct{}, error)
}

// ResultStore answers which remote documents already have a stored
// analysis result.
type ResultStore interface {
	ExistingRemoteIDs(ctx context.Context, instanceID string, remoteIDs []int64) (map[int64]struct{}, error)
}

// RemoteClient fetches documents from one repository instance.
type RemoteClient interface {
	FetchAllDocuments(ctx context.Context, pageSize int) ([]paperless.Document, error)
}

// ClientFactory builds a remote client from an instance's connection
// config. Overridable in tests.
type ClientFactory func(instance *domain.Instance) RemoteClient

// DefaultClientFactory builds a paperless client from the instance config.
func DefaultClientFactory(instance *domain.Instance) RemoteClient {
	return paperless.NewClient(
		paperless.WithBaseURL(instance.BaseURL),
		paperless.WithToken(instance.APIToken),
	)
}

// Config holds scanner settings.
type Config struct {
	// PageSize is the remote fetch page size.
	PageSize int
	// MaxAttempts is the attempt budget stamped on new queue entries.
	MaxAttempts int
}

// Service scans instances for new documents.
type Service struct {
	instances InstanceStore
	documents DocumentStore
	queue     QueueStore
	results   ResultStore
	newClient ClientFactory
	cfg       Config
	log       logger.Interface
}

// NewService creates a new scanner service.
func NewService(
	instances InstanceStore,
	documents DocumentStore,
	queue QueueStore,
	results ResultStore,
	newClient ClientFactory,
	cfg Config,
	log logger.Interface,
) *Service {
	if newClient == nil {
		newClient = DefaultClientFactory
	}
	return &Service{
		instances: instances,
		documents: documents,
		queue:     queue,
		results:   results,
		newClient: newClient,
		cfg:       cfg,
		log:       log,
	}
}

// NextScanTime evaluates a cron expression against now.
func (s *Service) NextScanTime(cronExpr string) (time.Time, error) {
	return schedule.NextOccurrence(cronExpr)
}

// ScanInstance runs one scan pass for the instance: fetch all remote
// documents, filter by required tags, skip already-processed and
// already-queued documents, mirror and enqueue the rest. The instance's
// scan timestamps are advanced even when the scan fails part-way, so the
// instance is always rescheduled.
func (s *Service) ScanInstance(ctx context.Context, instanceID string) domain.ScanResult {
	result := domain.ScanResult{InstanceID: instanceID}

	instance, err := s.instances.GetByID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			result.Error = errInstanceNotFound
		} else {
			result.Error = err.Error()
		}
		return result
	}
	result.InstanceName = instance.Name

	if instance.DefaultBotID == nil || *instance.DefaultBotID == "" {
		// Advance the scan window anyway so the instance does not spin on
		// an unschedulable state.
		s.advanceScanTimes(ctx, instance)
		result.Error = errNoDefaultBot
		return result
	}

	scanErr := s.collectAndQueue(ctx, instance, &result)
	if scanErr != nil {
		result.Error = scanErr.Error()
	}

	s.advanceScanTimes(ctx, instance)

	return result
}

// ScanDueInstances scans every auto-processing-enabled instance whose next
// scan time is unset or has passed, sequentially.
func (s *Service) ScanDueInstances(ctx context.Context) ([]domain.ScanResult, error) {
	due, err := s.instances.ListDue(ctx, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list due instances: %w", err)
	}

	results := make([]domain.ScanResult, 0, len(due))
	for _, instance := range due {
		results = append(results, s.ScanInstance(ctx, instance.ID))
	}

	return results, nil
}

// collectAndQueue performs fetch, filter, partition, upsert and enqueue.
// A panic from a collaborator is converted into the returned error so the
// caller still advances the scan timestamps.
func (s *Service) collectAndQueue(ctx context.Context, instance *domain.Instance, result *domain.ScanResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if recoveredErr, ok := r.(error); ok {
				err = recoveredErr
			} else {
				err = errors.New(errUnknown)
			}
		}
	}()

	client := s.newClient(instance)
	remoteDocs, err := client.FetchAllDocuments(ctx, s.cfg.PageSize)
	if err != nil {
		return fmt.Errorf("failed to fetch remote documents: %w", err)
	}

	filtered := filterByTags(remoteDocs, instance.RequiredTagIDs)
	if len(filtered) == 0 {
		return nil
	}

	remoteIDs := make([]int64, len(filtered))
	for i, doc := range filtered {
		remoteIDs[i] = doc.ID
	}

	processed, err := s.results.ExistingRemoteIDs(ctx, instance.ID, remoteIDs)
	if err != nil {
		return fmt.Errorf("failed to look up processed documents: %w", err)
	}

	queued, err := s.queue.QueuedRemoteIDs(ctx, instance.ID, remoteIDs)
	if err != nil {
		return fmt.Errorf("failed to look up queued documents: %w", err)
	}

	for i := range filtered {
		doc := &filtered[i]

		if _, ok := processed[doc.ID]; ok {
			result.DocumentsAlreadyProcessed++
			continue
		}
		if _, ok := queued[doc.ID]; ok {
			result.DocumentsAlreadyQueued++
			continue
		}

		if enqueueErr := s.enqueueDocument(ctx, instance, doc); enqueueErr != nil {
			return enqueueErr
		}
		result.DocumentsQueued++
	}

	return nil
}

// enqueueDocument mirrors one remote document locally and creates its
// pending queue entry.
func (s *Service) enqueueDocument(ctx context.Context, instance *domain.Instance, doc *paperless.Document) error {
	localID, err := s.documents.Upsert(ctx, &domain.Document{
		ID:               uuid.NewString(),
		InstanceID:       instance.ID,
		RemoteID:         doc.ID,
		Title:            doc.Title,
		Content:          doc.Content,
		TagIDs:           doc.Tags,
		CorrespondentID:  doc.Correspondent,
		RemoteCreatedAt:  doc.Created,
		RemoteModifiedAt: doc.Modified,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert document %d: %w", doc.ID, err)
	}

	entry := &domain.QueueEntry{
		ID:               uuid.NewString(),
		InstanceID:       instance.ID,
		DocumentID:       &localID,
		RemoteDocumentID: doc.ID,
		BotID:            instance.DefaultBotID,
		Status:           domain.StatusPending,
		Priority:         domain.DefaultPriority,
		MaxAttempts:      s.cfg.MaxAttempts,
		ScheduledFor:     time.Now(),
	}
	if createErr := s.queue.Create(ctx, entry); createErr != nil {
		return fmt.Errorf("failed to enqueue document %d: %w", doc.ID, createErr)
	}

	return nil
}

// advanceScanTimes sets last_scan_at to now and recomputes next_scan_at
// from the instance's cron expression. An unparseable expression stores a
// null next scan time; the instance is then only scanned manually until
// the expression is corrected.
func (s *Service) advanceScanTimes(ctx context.Context, instance *domain.Instance) {
	now := time.Now()

	var nextScanAt *time.Time
	next, err := schedule.NextOccurrenceAfter(instance.ScanCron, now)
	if err != nil {
		s.log.Warn("Failed to evaluate scan cron",
			"instance_id", instance.ID,
			"cron", instance.ScanCron,
			"error", err)
	} else {
		nextScanAt = &next
	}

	if updateErr := s.instances.UpdateScanTimes(ctx, instance.ID, now, nextScanAt); updateErr != nil {
		s.log.Error("Failed to update instance scan times",
			"instance_id", instance.ID,
			"error", updateErr)
	}
}

// filterByTags keeps documents whose tag set is a superset of the required
// tags. An empty filter keeps everything.
func filterByTags(docs []paperless.Document, required []int64) []paperless.Document {
	if len(required) == 0 {
		return docs
	}

	filtered := make([]paperless.Document, 0, len(docs))
	for _, doc := range docs {
		tagSet := make(map[int64]struct{}, len(doc.Tags))
		for _, tag := range doc.Tags {
			tagSet[tag] = struct{}{}
		}

		matches := true
		for _, tag := range required {
			if _, ok := tagSet[tag]; !ok {
				matches = false
				break
			}
		}

		if matches {
			filtered = append(filtered, doc)
		}
	}

	return filtered
}
