package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/godocscan/internal/domain"
)

const queueColumns = `id, instance_id, document_id, remote_document_id, bot_id, status,
	priority, attempts, max_attempts, last_error, scheduled_for,
	started_at, completed_at, created_at, updated_at`

// QueueRepository handles database operations for queue entries.
type QueueRepository struct {
	db *sqlx.DB
}

// NewQueueRepository creates a new queue repository.
func NewQueueRepository(db *sqlx.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Create inserts a new queue entry.
func (r *QueueRepository) Create(ctx context.Context, entry *domain.QueueEntry) error {
	query := `
		INSERT INTO queue_entries (id, instance_id, document_id, remote_document_id,
			bot_id, status, priority, attempts, max_attempts, scheduled_for)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		entry.ID,
		entry.InstanceID,
		entry.DocumentID,
		entry.RemoteDocumentID,
		entry.BotID,
		entry.Status,
		entry.Priority,
		entry.Attempts,
		entry.MaxAttempts,
		entry.ScheduledFor,
	).Scan(&entry.CreatedAt, &entry.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create queue entry: %w", err)
	}

	return nil
}

// GetByID retrieves a queue entry by its ID.
func (r *QueueRepository) GetByID(ctx context.Context, id string) (*domain.QueueEntry, error) {
	var entry domain.QueueEntry
	query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE id = $1`

	err := r.db.GetContext(ctx, &entry, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("queue entry %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}

	return &entry, nil
}

// List retrieves queue entries with optional status filtering, newest first.
func (r *QueueRepository) List(ctx context.Context, status string, limit, offset int) ([]*domain.QueueEntry, error) {
	var entries []*domain.QueueEntry
	var query string
	var args []any

	if status != "" {
		query = `
			SELECT ` + queueColumns + `
			FROM queue_entries
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`
		args = []any{status, limit, offset}
	} else {
		query = `
			SELECT ` + queueColumns + `
			FROM queue_entries
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2
		`
		args = []any{limit, offset}
	}

	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}

	if entries == nil {
		entries = []*domain.QueueEntry{}
	}

	return entries, nil
}

// MarkProcessing atomically claims a pending entry for processing, setting
// its status and started_at in one statement. Returns ErrNotClaimable if the
// entry is missing or not pending.
func (r *QueueRepository) MarkProcessing(ctx context.Context, id string, startedAt time.Time) (*domain.QueueEntry, error) {
	var entry domain.QueueEntry
	query := `
		UPDATE queue_entries
		SET status = $1, started_at = $2, updated_at = now()
		WHERE id = $3 AND status = $4
		RETURNING ` + queueColumns

	err := r.db.GetContext(ctx, &entry, query, domain.StatusProcessing, startedAt, id, domain.StatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("queue entry %s: %w", id, ErrNotClaimable)
		}
		return nil, fmt.Errorf("failed to claim queue entry: %w", err)
	}

	return &entry, nil
}

// NextDue retrieves the single highest-priority, oldest, currently-due
// pending entry. Returns ErrNotFound when the queue is drained.
func (r *QueueRepository) NextDue(ctx context.Context, now time.Time) (*domain.QueueEntry, error) {
	var entry domain.QueueEntry
	query := `
		SELECT ` + queueColumns + `
		FROM queue_entries
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &entry, query, domain.StatusPending, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get next due entry: %w", err)
	}

	return &entry, nil
}

// QueuedRemoteIDs returns which of the given remote document ids already
// have a queue entry for the instance, in any status.
func (r *QueueRepository) QueuedRemoteIDs(ctx context.Context, instanceID string, remoteIDs []int64) (map[int64]struct{}, error) {
	queued := make(map[int64]struct{})
	if len(remoteIDs) == 0 {
		return queued, nil
	}

	var ids []int64
	query := `
		SELECT DISTINCT remote_document_id
		FROM queue_entries
		WHERE instance_id = $1 AND remote_document_id = ANY($2)
	`

	if err := r.db.SelectContext(ctx, &ids, query, instanceID, pq.Array(remoteIDs)); err != nil {
		return nil, fmt.Errorf("failed to query queued remote ids: %w", err)
	}

	for _, id := range ids {
		queued[id] = struct{}{}
	}

	return queued, nil
}

// Complete marks an entry as successfully processed and clears its error.
func (r *QueueRepository) Complete(ctx context.Context, id string, completedAt time.Time) error {
	query := `
		UPDATE queue_entries
		SET status = $1, last_error = NULL, completed_at = $2, updated_at = now()
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, domain.StatusCompleted, completedAt, id)
	if execErr := execRequireRows(result, err, ErrNotFound); execErr != nil {
		return fmt.Errorf("failed to complete queue entry %s: %w", id, execErr)
	}

	return nil
}

// Retry returns an entry to pending with an incremented attempt count and a
// future scheduled_for. started_at is cleared.
func (r *QueueRepository) Retry(ctx context.Context, id string, attempts int, lastError string, scheduledFor time.Time) error {
	query := `
		UPDATE queue_entries
		SET status = $1, attempts = $2, last_error = $3, scheduled_for = $4,
		    started_at = NULL, updated_at = now()
		WHERE id = $5
	`

	result, err := r.db.ExecContext(ctx, query, domain.StatusPending, attempts, lastError, scheduledFor, id)
	if execErr := execRequireRows(result, err, ErrNotFound); execErr != nil {
		return fmt.Errorf("failed to schedule retry for queue entry %s: %w", id, execErr)
	}

	return nil
}

// Fail terminally fails an entry.
func (r *QueueRepository) Fail(ctx context.Context, id string, attempts int, lastError string, completedAt time.Time) error {
	query := `
		UPDATE queue_entries
		SET status = $1, attempts = $2, last_error = $3, completed_at = $4, updated_at = now()
		WHERE id = $5
	`

	result, err := r.db.ExecContext(ctx, query, domain.StatusFailed, attempts, lastError, completedAt, id)
	if execErr := execRequireRows(result, err, ErrNotFound); execErr != nil {
		return fmt.Errorf("failed to fail queue entry %s: %w", id, execErr)
	}

	return nil
}

// ResetStuck returns processing entries whose started_at is older than the
// given cutoff back to pending. Returns the number of entries reset.
func (r *QueueRepository) ResetStuck(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		UPDATE queue_entries
		SET status = $1, started_at = NULL, updated_at = now()
		WHERE status = $2 AND started_at IS NOT NULL AND started_at < $3
	`

	result, err := r.db.ExecContext(ctx, query, domain.StatusPending, domain.StatusProcessing, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stuck entries: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n, nil
}

// CountByStatus returns the number of entries with the given status.
func (r *QueueRepository) CountByStatus(ctx context.Context, status domain.QueueStatus) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM queue_entries WHERE status = $1`

	if err := r.db.GetContext(ctx, &count, query, status); err != nil {
		return 0, fmt.Errorf("failed to count queue entries: %w", err)
	}

	return count, nil
}
