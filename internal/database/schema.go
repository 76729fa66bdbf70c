package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements creates the tables and indexes this service relies on.
// Statements are idempotent so EnsureSchema can run on every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS bots (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		owner_id UUID NOT NULL,
		model TEXT NOT NULL,
		prompt TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS instances (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		owner_id UUID NOT NULL,
		base_url TEXT NOT NULL,
		api_token TEXT NOT NULL DEFAULT '',
		scan_cron TEXT NOT NULL,
		auto_process_enabled BOOLEAN NOT NULL DEFAULT false,
		required_tag_ids BIGINT[] NOT NULL DEFAULT '{}',
		default_bot_id UUID REFERENCES bots(id),
		apply_title BOOLEAN NOT NULL DEFAULT false,
		apply_tags BOOLEAN NOT NULL DEFAULT false,
		apply_correspondent BOOLEAN NOT NULL DEFAULT false,
		apply_document_type BOOLEAN NOT NULL DEFAULT false,
		apply_created_date BOOLEAN NOT NULL DEFAULT false,
		last_scan_at TIMESTAMPTZ,
		next_scan_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		instance_id UUID NOT NULL REFERENCES instances(id),
		remote_id BIGINT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		tag_ids BIGINT[] NOT NULL DEFAULT '{}',
		correspondent_id BIGINT,
		remote_created_at TIMESTAMPTZ,
		remote_modified_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (instance_id, remote_id)
	)`,
	`CREATE TABLE IF NOT EXISTS queue_entries (
		id UUID PRIMARY KEY,
		instance_id UUID NOT NULL REFERENCES instances(id),
		document_id UUID REFERENCES documents(id),
		remote_document_id BIGINT NOT NULL,
		bot_id UUID REFERENCES bots(id),
		status TEXT NOT NULL DEFAULT 'pending',
		priority INT NOT NULL DEFAULT 50,
		attempts INT NOT NULL DEFAULT 0,
		max_attempts INT NOT NULL DEFAULT 3,
		last_error TEXT,
		scheduled_for TIMESTAMPTZ NOT NULL DEFAULT now(),
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS analysis_results (
		id UUID PRIMARY KEY,
		instance_id UUID NOT NULL REFERENCES instances(id),
		document_id UUID NOT NULL REFERENCES documents(id),
		remote_id BIGINT NOT NULL,
		bot_id UUID NOT NULL REFERENCES bots(id),
		suggestions JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_entries_pending
		ON queue_entries (priority DESC, created_at ASC)
		WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS idx_queue_entries_instance_remote
		ON queue_entries (instance_id, remote_document_id)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_results_instance_remote
		ON analysis_results (instance_id, remote_id)`,
	`CREATE INDEX IF NOT EXISTS idx_instances_next_scan
		ON instances (next_scan_at)
		WHERE auto_process_enabled`,
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
