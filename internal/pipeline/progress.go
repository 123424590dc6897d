package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tellatale/engine/internal/fault"
	"github.com/tellatale/engine/pkg/models"
)

// Progress sentinels. Each stage owns a fixed band so that a reconnecting
// client can infer the stage from the percentage alone.
const (
	ProgressTextStart    = 5
	ProgressTextDone     = 30
	ProgressMetaStart    = 40
	ProgressMetaDone     = 65
	ProgressAudioStart   = 70
	ProgressAudioCombine = 90
	ProgressDone         = 100
)

// Stage messages shown in client progress bars.
const (
	msgTextStart  = "whispering to the story spirits…"
	msgTextDone   = "binding the pages…"
	msgMetaStart  = "painting the cover…"
	msgMetaDone   = "adding the finishing brushstrokes…"
	msgAudioStart = "recording narration…"
	msgCombine    = "weaving the narration together…"
)

// errCanceled aborts a run after a concurrent cancellation was observed.
// It is not a fault: the driver treats it as a clean stop.
var errCanceled = errors.New("project canceled")

// advance persists a progress sentinel and mirrors it to subscribers.
// The write only lands while the project is still running, so a record
// canceled between stages keeps its last progress, and every advance call
// doubles as a cancel check on the returned status.
func (p *Pipeline) advance(ctx context.Context, projectID uuid.UUID, pct int, msg string) error {
	progress, status, err := p.Store.AdvanceProgress(ctx, projectID, pct)
	if err != nil {
		return fault.New(fault.Unknown, "pipeline.advance", err)
	}
	if status == models.StatusCanceled {
		return errCanceled
	}
	p.Bus.Publish(ctx, projectID, models.ProgressOnlyFrame(progress, msg))
	return nil
}

// event appends a generation-event log entry; logging failures never stop
// the pipeline.
func (p *Pipeline) event(ctx context.Context, projectID uuid.UUID, kind string, payload any) {
	if err := p.Store.AppendEvent(ctx, projectID, kind, payload); err != nil {
		slog.Warn("append generation event", "project_id", projectID, "kind", kind, "error", err)
	}
}
