package models

import (
	"time"

	"github.com/google/uuid"
)

// Page is one ordered chunk of a project's story text, optionally narrated.
// (project_id, index) is unique; indices are 1-based and contiguous.
type Page struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	ProjectID uuid.UUID `db:"project_id" json:"project_id"`
	Index     int       `db:"page_index" json:"index"`
	Text      string    `db:"text"       json:"text"`
	AudioURL  string    `db:"audio_url"  json:"audio_url,omitempty"`
	// Duration is the narration length in seconds for this page.
	Duration  float64   `db:"duration"   json:"duration,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
