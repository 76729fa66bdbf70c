package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/godocscan/internal/domain"
)

// BotRepository handles database operations for analysis bots. Bots are
// created and edited by the administrative surface; this core only reads.
type BotRepository struct {
	db *sqlx.DB
}

// NewBotRepository creates a new bot repository.
func NewBotRepository(db *sqlx.DB) *BotRepository {
	return &BotRepository{db: db}
}

// GetByID retrieves a bot by its ID.
func (r *BotRepository) GetByID(ctx context.Context, id string) (*domain.Bot, error) {
	var bot domain.Bot
	query := `
		SELECT id, name, owner_id, model, prompt, created_at, updated_at
		FROM bots
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &bot, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bot %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get bot: %w", err)
	}

	return &bot, nil
}
