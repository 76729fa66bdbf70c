// Package domain provides domain models used across the application.
package domain

import (
	"time"

	"github.com/lib/pq"
)

// Instance represents a configured connection to one external document
// repository, including its scan schedule and auto-processing settings.
type Instance struct {
	ID                 string        `db:"id" json:"id"`
	Name               string        `db:"name" json:"name"`
	OwnerID            string        `db:"owner_id" json:"owner_id"`
	BaseURL            string        `db:"base_url" json:"base_url"`
	APIToken           string        `db:"api_token" json:"-"`
	ScanCron           string        `db:"scan_cron" json:"scan_cron"`
	AutoProcessEnabled bool          `db:"auto_process_enabled" json:"auto_process_enabled"`
	RequiredTagIDs     pq.Int64Array `db:"required_tag_ids" json:"required_tag_ids"`
	DefaultBotID       *string       `db:"default_bot_id" json:"default_bot_id,omitempty"`
	ApplyTitle         bool          `db:"apply_title" json:"apply_title"`
	ApplyTags          bool          `db:"apply_tags" json:"apply_tags"`
	ApplyCorrespondent bool          `db:"apply_correspondent" json:"apply_correspondent"`
	ApplyDocumentType  bool          `db:"apply_document_type" json:"apply_document_type"`
	ApplyCreatedDate   bool          `db:"apply_created_date" json:"apply_created_date"`
	LastScanAt         *time.Time    `db:"last_scan_at" json:"last_scan_at,omitempty"`
	NextScanAt         *time.Time    `db:"next_scan_at" json:"next_scan_at,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// AutoApplyFlags is the per-field gate for writing suggestions back to the
// remote repository.
type AutoApplyFlags struct {
	Title         bool `json:"title"`
	Tags          bool `json:"tags"`
	Correspondent bool `json:"correspondent"`
	DocumentType  bool `json:"document_type"`
	CreatedDate   bool `json:"created_date"`
}

// AutoApply returns the instance's auto-apply gates.
func (i *Instance) AutoApply() AutoApplyFlags {
	return AutoApplyFlags{
		Title:         i.ApplyTitle,
		Tags:          i.ApplyTags,
		Correspondent: i.ApplyCorrespondent,
		DocumentType:  i.ApplyDocumentType,
		CreatedDate:   i.ApplyCreatedDate,
	}
}
