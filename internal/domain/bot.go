package domain

import "time"

// Bot represents an AI analysis bot: a model plus the prompt it analyzes
// documents with. Bots are managed by the administrative surface; this core
// only reads them.
type Bot struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Model     string    `db:"model" json:"model"`
	Prompt    string    `db:"prompt" json:"prompt"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
