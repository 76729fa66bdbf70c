package domain

import (
	"time"

	"github.com/lib/pq"
)

// Document is the local mirror of a remote document, keyed by
// (instance_id, remote_id). Remote created/modified timestamps may be null
// when the repository does not report them; they are stored as null rather
// than defaulted.
type Document struct {
	ID               string        `db:"id" json:"id"`
	InstanceID       string        `db:"instance_id" json:"instance_id"`
	RemoteID         int64         `db:"remote_id" json:"remote_id"`
	Title            string        `db:"title" json:"title"`
	Content          string        `db:"content" json:"content"`
	TagIDs           pq.Int64Array `db:"tag_ids" json:"tag_ids"`
	CorrespondentID  *int64        `db:"correspondent_id" json:"correspondent_id,omitempty"`
	RemoteCreatedAt  *time.Time    `db:"remote_created_at" json:"remote_created_at,omitempty"`
	RemoteModifiedAt *time.Time    `db:"remote_modified_at" json:"remote_modified_at,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}
