package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tellatale/engine/internal/fault"
	"github.com/tellatale/engine/internal/store"
	"github.com/tellatale/engine/pkg/models"
)

// fail moves a project to terminal failure: record first, then frame, so a
// reconnecting client always sees consistent state. Failure handling must
// not itself fail loudly; every step is best-effort after the status write.
func (p *Pipeline) fail(ctx context.Context, projectID uuid.UUID, cause error) {
	kind := fault.KindOf(cause)
	userMsg := fault.UserMessage(cause)

	slog.Error("pipeline failed",
		"project_id", projectID,
		"kind", kind.String(),
		"error", cause,
	)
	if kind == fault.AuthFailure {
		// Bad provider credentials fail every project; page the operator.
		slog.Error("provider credentials rejected, all generations will fail",
			"project_id", projectID)
	}

	proj, err := p.Store.GetProject(ctx, projectID)
	if err != nil {
		slog.Error("reload failed project", "project_id", projectID, "error", err)
		return
	}
	if proj.Status == models.StatusCanceled {
		// Cancellation raced the failure; the cancel outcome wins.
		p.Bus.Publish(ctx, projectID, models.CanceledFrame(proj.Progress))
		return
	}
	if proj.Terminal() {
		return
	}

	if _, _, err := p.Store.UpdateProject(ctx, projectID,
		store.WithStatus(models.StatusFailed),
		store.WithErrorMessage(userMsg),
		store.WithFinishedAt(p.Now()),
	); err != nil {
		slog.Error("mark project failed", "project_id", projectID, "error", err)
		return
	}

	p.event(ctx, projectID, models.EventError, map[string]any{
		"kind":   kind.String(),
		"detail": cause.Error(),
	})
	p.Bus.Publish(ctx, projectID, models.FailedFrame(userMsg))
	p.deleteChunks(ctx, proj)
}
