package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/godocscan/internal/domain"
)

const instanceColumns = `id, name, owner_id, base_url, api_token, scan_cron,
	auto_process_enabled, required_tag_ids, default_bot_id,
	apply_title, apply_tags, apply_correspondent, apply_document_type, apply_created_date,
	last_scan_at, next_scan_at, created_at, updated_at`

// InstanceRepository handles database operations for repository instances.
type InstanceRepository struct {
	db *sqlx.DB
}

// NewInstanceRepository creates a new instance repository.
func NewInstanceRepository(db *sqlx.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

// GetByID retrieves an instance by its ID.
func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*domain.Instance, error) {
	var instance domain.Instance
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE id = $1`

	err := r.db.GetContext(ctx, &instance, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("instance %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return &instance, nil
}

// ListAutoProcessEnabled retrieves all instances with auto-processing enabled.
func (r *InstanceRepository) ListAutoProcessEnabled(ctx context.Context) ([]*domain.Instance, error) {
	var instances []*domain.Instance
	query := `
		SELECT ` + instanceColumns + `
		FROM instances
		WHERE auto_process_enabled
		ORDER BY name ASC
	`

	if err := r.db.SelectContext(ctx, &instances, query); err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	if instances == nil {
		instances = []*domain.Instance{}
	}

	return instances, nil
}

// ListDue retrieves auto-processing-enabled instances whose next scan time
// is unset or has passed.
func (r *InstanceRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.Instance, error) {
	var instances []*domain.Instance
	query := `
		SELECT ` + instanceColumns + `
		FROM instances
		WHERE auto_process_enabled
		  AND (next_scan_at IS NULL OR next_scan_at <= $1)
		ORDER BY name ASC
	`

	if err := r.db.SelectContext(ctx, &instances, query, now); err != nil {
		return nil, fmt.Errorf("failed to list due instances: %w", err)
	}

	if instances == nil {
		instances = []*domain.Instance{}
	}

	return instances, nil
}

// UpdateScanTimes sets the last and next scan timestamps. NextScanAt may be
// nil when the cron expression could not be evaluated.
func (r *InstanceRepository) UpdateScanTimes(ctx context.Context, id string, lastScanAt time.Time, nextScanAt *time.Time) error {
	query := `
		UPDATE instances
		SET last_scan_at = $1, next_scan_at = $2, updated_at = now()
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, lastScanAt, nextScanAt, id)
	if execErr := execRequireRows(result, err, ErrNotFound); execErr != nil {
		return fmt.Errorf("failed to update scan times for instance %s: %w", id, execErr)
	}

	return nil
}
