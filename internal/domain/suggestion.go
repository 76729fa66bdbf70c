package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// SuggestionSet is the structured output of one AI analysis run. It is
// stored as JSONB alongside the analysis result, so it implements
// sql.Scanner and driver.Valuer.
type SuggestionSet struct {
	Title           string   `json:"title,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Correspondent   string   `json:"correspondent,omitempty"`
	DocumentType    string   `json:"document_type,omitempty"`
	CreatedDate     string   `json:"created_date,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	Language        string   `json:"language,omitempty"`
	ConfidenceScore float64  `json:"confidence_score,omitempty"`
}

// Scan implements the sql.Scanner interface.
func (s *SuggestionSet) Scan(value any) error {
	if value == nil {
		*s = SuggestionSet{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for SuggestionSet")
	}

	if len(data) == 0 {
		*s = SuggestionSet{}
		return nil
	}

	return json.Unmarshal(data, s)
}

// Value implements the driver.Valuer interface.
func (s SuggestionSet) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// AnalysisResult records a completed analysis of one document. Its presence
// is what marks a remote document as already processed for future scans.
type AnalysisResult struct {
	ID          string        `db:"id" json:"id"`
	InstanceID  string        `db:"instance_id" json:"instance_id"`
	DocumentID  string        `db:"document_id" json:"document_id"`
	RemoteID    int64         `db:"remote_id" json:"remote_id"`
	BotID       string        `db:"bot_id" json:"bot_id"`
	Suggestions SuggestionSet `db:"suggestions" json:"suggestions"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}
