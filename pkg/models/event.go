package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Generation event kinds, appended by the pipeline as stages progress.
// The event log is append-only and is never read back by the pipeline;
// it exists for observability and post-mortems.
const (
	EventStage1Start = "stage1_start"
	EventStage1Done  = "stage1_done"
	EventStage2Start = "stage2_start"
	EventStage2Done  = "stage2_done"
	EventStage3Start = "stage3_start"
	EventChunkReused = "chunk_reused"
	EventAudioFailed = "audio_failed"
	EventError       = "error"
	EventDone        = "done"
)

// GenerationEvent is one append-only log entry for a project.
type GenerationEvent struct {
	ID        int64           `db:"id"         json:"id"`
	ProjectID uuid.UUID       `db:"project_id" json:"project_id"`
	Kind      string          `db:"kind"       json:"kind"`
	Payload   json.RawMessage `db:"payload"    json:"payload,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
