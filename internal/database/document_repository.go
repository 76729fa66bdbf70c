package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/godocscan/internal/domain"
)

// DocumentRepository handles database operations for mirrored documents.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Upsert creates or updates the local mirror of a remote document, keyed by
// (instance_id, remote_id). Returns the stored document id.
func (r *DocumentRepository) Upsert(ctx context.Context, doc *domain.Document) (string, error) {
	query := `
		INSERT INTO documents (id, instance_id, remote_id, title, content, tag_ids,
			correspondent_id, remote_created_at, remote_modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (instance_id, remote_id) DO UPDATE
		SET title = EXCLUDED.title,
		    content = EXCLUDED.content,
		    tag_ids = EXCLUDED.tag_ids,
		    correspondent_id = EXCLUDED.correspondent_id,
		    remote_created_at = EXCLUDED.remote_created_at,
		    remote_modified_at = EXCLUDED.remote_modified_at,
		    updated_at = now()
		RETURNING id
	`

	var id string
	err := r.db.QueryRowContext(
		ctx,
		query,
		doc.ID,
		doc.InstanceID,
		doc.RemoteID,
		doc.Title,
		doc.Content,
		doc.TagIDs,
		doc.CorrespondentID,
		doc.RemoteCreatedAt,
		doc.RemoteModifiedAt,
	).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to upsert document: %w", err)
	}

	return id, nil
}

// GetByID retrieves a document by its ID.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	query := `
		SELECT id, instance_id, remote_id, title, content, tag_ids, correspondent_id,
		       remote_created_at, remote_modified_at, created_at, updated_at
		FROM documents
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &doc, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &doc, nil
}
