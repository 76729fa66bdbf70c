package domain

import (
	"fmt"
	"time"
)

// QueueStatus represents a queue entry's position in its lifecycle.
type QueueStatus string

const (
	StatusPending    QueueStatus = "pending"
	StatusProcessing QueueStatus = "processing"
	StatusCompleted  QueueStatus = "completed"
	StatusFailed     QueueStatus = "failed"
)

// DefaultPriority is assigned to entries created by the scanner.
const DefaultPriority = 50

// QueueEntry is the unit of work representing "analyze this document with
// this bot". Created by the scanner, mutated only by the processor.
type QueueEntry struct {
	ID               string      `db:"id" json:"id"`
	InstanceID       string      `db:"instance_id" json:"instance_id"`
	DocumentID       *string     `db:"document_id" json:"document_id,omitempty"`
	RemoteDocumentID int64       `db:"remote_document_id" json:"remote_document_id"`
	BotID            *string     `db:"bot_id" json:"bot_id,omitempty"`
	Status           QueueStatus `db:"status" json:"status"`
	Priority         int         `db:"priority" json:"priority"`
	Attempts         int         `db:"attempts" json:"attempts"`
	MaxAttempts      int         `db:"max_attempts" json:"max_attempts"`
	LastError        *string     `db:"last_error" json:"last_error,omitempty"`
	ScheduledFor     time.Time   `db:"scheduled_for" json:"scheduled_for"`
	StartedAt        *time.Time  `db:"started_at" json:"started_at,omitempty"`
	CompletedAt      *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

// ValidateStatusTransition checks if a queue status transition is valid.
// Returns an error if the transition is not allowed.
func ValidateStatusTransition(from, to QueueStatus) error {
	validTransitions := map[QueueStatus][]QueueStatus{
		StatusPending: {
			StatusProcessing, // Claimed by the processor
		},
		StatusProcessing: {
			StatusCompleted, // Analysis succeeded
			StatusPending,   // Analysis failed, retry scheduled
			StatusFailed,    // Analysis failed, attempts exhausted
		},
		// Terminal states
		StatusCompleted: {},
		StatusFailed:    {},
	}

	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source status: %s", from)
	}

	for _, next := range allowed {
		if next == to {
			return nil
		}
	}

	return fmt.Errorf("invalid status transition from %s to %s", from, to)
}

// IsTerminalStatus checks if a status is terminal (no further transitions).
func IsTerminalStatus(status QueueStatus) bool {
	return status == StatusCompleted || status == StatusFailed
}
