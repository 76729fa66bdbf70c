// Package processor drains the analysis queue: it claims due entries, runs
// AI analysis, optionally writes suggestions back to the repository, and
// drives the entry's retry state machine.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/godocscan/internal/analysis"
	"github.com/jonesrussell/godocscan/internal/database"
	"github.com/jonesrussell/godocscan/internal/domain"
	"github.com/jonesrussell/godocscan/internal/logger"
	"github.com/jonesrussell/godocscan/internal/paperless"
)

// errUnknown is reported when a collaborator panics with a non-error value.
const errUnknown = "Unknown error"

// DefaultStuckThreshold is how long a processing entry may sit before
// ResetStuckItems considers it orphaned.
const DefaultStuckThreshold = 10 * time.Minute

// QueueStore is the queue persistence the processor needs.
type QueueStore interface {
	MarkProcessing(ctx context.Context, id string, startedAt time.Time) (*domain.QueueEntry, error)
	NextDue(ctx context.Context, now time.Time) (*domain.QueueEntry, error)
	Complete(ctx context.Context, id string, completedAt time.Time) error
	Retry(ctx context.Context, id string, attempts int, lastError string, scheduledFor time.Time) error
	Fail(ctx context.Context, id string, attempts int, lastError string, completedAt time.Time) error
	ResetStuck(ctx context.Context, olderThan time.Time) (int64, error)
	CountByStatus(ctx context.Context, status domain.QueueStatus) (int, error)
}

// DocumentStore loads mirrored documents.
type DocumentStore interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// BotStore loads analysis bots.
type BotStore interface {
	GetByID(ctx context.Context, id string) (*domain.Bot, error)
}

// InstanceStore loads instance config.
type InstanceStore interface {
	GetByID(ctx context.Context, id string) (*domain.Instance, error)
}

// ResultStore persists completed analysis results.
type ResultStore interface {
	Create(ctx context.Context, result *domain.AnalysisResult) error
}

// ApplierFactory builds a metadata applier from an instance's connection
// config. Overridable in tests.
type ApplierFactory func(instance *domain.Instance) analysis.MetadataApplier

// DefaultApplierFactory builds a paperless client from the instance config.
func DefaultApplierFactory(instance *domain.Instance) analysis.MetadataApplier {
	return paperless.NewClient(
		paperless.WithBaseURL(instance.BaseURL),
		paperless.WithToken(instance.APIToken),
	)
}

// Config holds processor settings.
type Config struct {
	// RetryDelayMinutes scales the linear retry backoff: after attempt n
	// fails, the entry is rescheduled n*RetryDelayMinutes minutes out.
	RetryDelayMinutes int
	// StuckThreshold is the staleness cutoff for ResetStuckItems.
	StuckThreshold time.Duration
}

// Service processes queue entries.
type Service struct {
	queue      QueueStore
	documents  DocumentStore
	bots       BotStore
	instances  InstanceStore
	results    ResultStore
	analyzer   analysis.Analyzer
	newApplier ApplierFactory
	cfg        Config
	log        logger.Interface
}

// NewService creates a new queue processor.
func NewService(
	queue QueueStore,
	documents DocumentStore,
	bots BotStore,
	instances InstanceStore,
	results ResultStore,
	analyzer analysis.Analyzer,
	newApplier ApplierFactory,
	cfg Config,
	log logger.Interface,
) *Service {
	if newApplier == nil {
		newApplier = DefaultApplierFactory
	}
	if cfg.StuckThreshold <= 0 {
		cfg.StuckThreshold = DefaultStuckThreshold
	}
	return &Service{
		queue:      queue,
		documents:  documents,
		bots:       bots,
		instances:  instances,
		results:    results,
		analyzer:   analyzer,
		newApplier: newApplier,
		cfg:        cfg,
		log:        log,
	}
}

// ProcessQueueItem claims one entry, runs analysis, and transitions the
// entry's status. Failures are captured on the entry; only claim errors are
// surfaced directly in the result.
func (s *Service) ProcessQueueItem(ctx context.Context, entryID string) domain.ProcessResult {
	result := domain.ProcessResult{EntryID: entryID}

	entry, err := s.queue.MarkProcessing(ctx, entryID, time.Now())
	if err != nil {
		result.Error = err.Error()
		return result
	}

	// Structurally invalid entries are failed immediately; retrying cannot
	// repair a missing reference.
	doc, bot, instance, integrityErr := s.loadAssociations(ctx, entry)
	if integrityErr != nil {
		s.failEntry(ctx, entry, entry.Attempts, integrityErr.Error())
		result.Error = integrityErr.Error()
		return result
	}
	result.DocumentID = doc.ID

	suggestions, analyzeErr := s.analyze(ctx, entry, doc, bot, instance)
	if analyzeErr != nil {
		s.handleAnalysisFailure(ctx, entry, analyzeErr)
		result.Error = analyzeErr.Error()
		return result
	}

	s.storeResult(ctx, entry, doc, suggestions)
	s.maybeAutoApply(ctx, instance, doc, suggestions)

	if completeErr := s.queue.Complete(ctx, entry.ID, time.Now()); completeErr != nil {
		s.log.Error("Failed to mark queue entry completed",
			"entry_id", entry.ID,
			"error", completeErr)
		result.Error = completeErr.Error()
		return result
	}

	result.Success = true
	return result
}

// ProcessAllPending drains the queue: it repeatedly claims the single
// highest-priority, oldest, due pending entry and processes it, one
// in-flight analysis at a time, until none remain.
func (s *Service) ProcessAllPending(ctx context.Context) []domain.ProcessResult {
	var results []domain.ProcessResult

	for {
		entry, err := s.queue.NextDue(ctx, time.Now())
		if err != nil {
			if !errors.Is(err, database.ErrNotFound) {
				s.log.Error("Failed to query next due entry", "error", err)
			}
			return results
		}

		results = append(results, s.ProcessQueueItem(ctx, entry.ID))
	}
}

// ResetStuckItems returns processing entries whose started_at is older
// than the staleness threshold back to pending. It recovers entries
// orphaned by a crash between claim and completion.
func (s *Service) ResetStuckItems(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.StuckThreshold)

	n, err := s.queue.ResetStuck(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stuck entries: %w", err)
	}

	if n > 0 {
		s.log.Info("Reset stuck queue entries", "count", n)
	}

	return n, nil
}

// QueueStats returns per-status entry counts as four independent queries.
func (s *Service) QueueStats(ctx context.Context) (*domain.QueueStats, error) {
	stats := &domain.QueueStats{}

	counts := []struct {
		status domain.QueueStatus
		dest   *int
	}{
		{domain.StatusPending, &stats.Pending},
		{domain.StatusProcessing, &stats.Processing},
		{domain.StatusCompleted, &stats.Completed},
		{domain.StatusFailed, &stats.Failed},
	}

	for _, c := range counts {
		n, err := s.queue.CountByStatus(ctx, c.status)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s entries: %w", c.status, err)
		}
		*c.dest = n
	}

	return stats, nil
}

// loadAssociations loads the entry's document, bot, and instance. A missing
// document or bot reference is a data-integrity error.
func (s *Service) loadAssociations(ctx context.Context, entry *domain.QueueEntry) (*domain.Document, *domain.Bot, *domain.Instance, error) {
	if entry.DocumentID == nil || *entry.DocumentID == "" {
		return nil, nil, nil, errors.New("queue entry has no document reference")
	}
	if entry.BotID == nil || *entry.BotID == "" {
		return nil, nil, nil, errors.New("queue entry has no bot reference")
	}

	doc, err := s.documents.GetByID(ctx, *entry.DocumentID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("document missing: %w", err)
	}

	bot, err := s.bots.GetByID(ctx, *entry.BotID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("bot missing: %w", err)
	}

	instance, err := s.instances.GetByID(ctx, entry.InstanceID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("instance missing: %w", err)
	}

	return doc, bot, instance, nil
}

// analyze runs the AI analysis call, converting panics into errors so the
// retry bookkeeping always runs.
func (s *Service) analyze(
	ctx context.Context,
	entry *domain.QueueEntry,
	doc *domain.Document,
	bot *domain.Bot,
	instance *domain.Instance,
) (suggestions *domain.SuggestionSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			if recoveredErr, ok := r.(error); ok {
				err = recoveredErr
			} else {
				err = errors.New(errUnknown)
			}
			suggestions = nil
		}
	}()

	return s.analyzer.Analyze(ctx, analysis.AnalyzeRequest{
		DocumentID: doc.ID,
		BotID:      bot.ID,
		OwnerID:    instance.OwnerID,
		Title:      doc.Title,
		Content:    doc.Content,
		Model:      bot.Model,
		Prompt:     bot.Prompt,
	})
}

// handleAnalysisFailure increments the attempt count and either schedules a
// linear-backoff retry or terminally fails the entry.
func (s *Service) handleAnalysisFailure(ctx context.Context, entry *domain.QueueEntry, analyzeErr error) {
	attempts := entry.Attempts + 1

	if attempts >= entry.MaxAttempts {
		s.log.Warn("Queue entry exhausted its attempts",
			"entry_id", entry.ID,
			"attempts", attempts,
			"error", analyzeErr)
		s.failEntry(ctx, entry, attempts, analyzeErr.Error())
		return
	}

	delay := time.Duration(s.cfg.RetryDelayMinutes*attempts) * time.Minute
	scheduledFor := time.Now().Add(delay)

	s.log.Info("Scheduling queue entry retry",
		"entry_id", entry.ID,
		"attempts", attempts,
		"retry_in", delay.String(),
		"error", analyzeErr)

	if retryErr := s.queue.Retry(ctx, entry.ID, attempts, analyzeErr.Error(), scheduledFor); retryErr != nil {
		s.log.Error("Failed to schedule queue entry retry",
			"entry_id", entry.ID,
			"error", retryErr)
	}
}

// failEntry terminally fails an entry.
func (s *Service) failEntry(ctx context.Context, entry *domain.QueueEntry, attempts int, reason string) {
	if failErr := s.queue.Fail(ctx, entry.ID, attempts, reason, time.Now()); failErr != nil {
		s.log.Error("Failed to mark queue entry failed",
			"entry_id", entry.ID,
			"error", failErr)
	}
}

// storeResult persists the analysis result. A storage failure is logged
// but does not fail the entry; the analysis itself succeeded.
func (s *Service) storeResult(ctx context.Context, entry *domain.QueueEntry, doc *domain.Document, suggestions *domain.SuggestionSet) {
	if suggestions == nil {
		return
	}

	result := &domain.AnalysisResult{
		ID:          uuid.NewString(),
		InstanceID:  entry.InstanceID,
		DocumentID:  doc.ID,
		RemoteID:    entry.RemoteDocumentID,
		BotID:       *entry.BotID,
		Suggestions: *suggestions,
	}

	if err := s.results.Create(ctx, result); err != nil {
		s.log.Warn("Failed to store analysis result",
			"entry_id", entry.ID,
			"document_id", doc.ID,
			"error", err)
	}
}

// maybeAutoApply writes suggestions back to the repository when any
// auto-apply gate is enabled. Failures are warnings; the analysis is the
// unit of success.
func (s *Service) maybeAutoApply(ctx context.Context, instance *domain.Instance, doc *domain.Document, suggestions *domain.SuggestionSet) {
	flags := instance.AutoApply()
	if !analysis.HasAnyAutoApply(flags) || suggestions == nil {
		return
	}

	applier := s.newApplier(instance)
	if err := analysis.ApplySuggestions(ctx, applier, doc.RemoteID, suggestions, flags); err != nil {
		s.log.Warn("Auto-apply failed",
			"instance_id", instance.ID,
			"remote_document_id", doc.RemoteID,
			"error", err)
	}
}
