package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/godocscan/internal/domain"
)

// AnalysisResultRepository handles database operations for stored analysis
// results. A stored result marks its remote document as processed.
type AnalysisResultRepository struct {
	db *sqlx.DB
}

// NewAnalysisResultRepository creates a new analysis result repository.
func NewAnalysisResultRepository(db *sqlx.DB) *AnalysisResultRepository {
	return &AnalysisResultRepository{db: db}
}

// Create stores a completed analysis result.
func (r *AnalysisResultRepository) Create(ctx context.Context, result *domain.AnalysisResult) error {
	query := `
		INSERT INTO analysis_results (id, instance_id, document_id, remote_id, bot_id, suggestions)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		result.ID,
		result.InstanceID,
		result.DocumentID,
		result.RemoteID,
		result.BotID,
		result.Suggestions,
	).Scan(&result.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create analysis result: %w", err)
	}

	return nil
}

// ExistingRemoteIDs returns which of the given remote document ids already
// have at least one stored analysis result for the instance.
func (r *AnalysisResultRepository) ExistingRemoteIDs(ctx context.Context, instanceID string, remoteIDs []int64) (map[int64]struct{}, error) {
	processed := make(map[int64]struct{})
	if len(remoteIDs) == 0 {
		return processed, nil
	}

	var ids []int64
	query := `
		SELECT DISTINCT remote_id
		FROM analysis_results
		WHERE instance_id = $1 AND remote_id = ANY($2)
	`

	if err := r.db.SelectContext(ctx, &ids, query, instanceID, pq.Array(remoteIDs)); err != nil {
		return nil, fmt.Errorf("failed to query processed remote ids: %w", err)
	}

	for _, id := range ids {
		processed[id] = struct{}{}
	}

	return processed, nil
}
