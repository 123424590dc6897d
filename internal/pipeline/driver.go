package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tellatale/engine/internal/store"
	"github.com/tellatale/engine/pkg/models"
)

// maxVariants bounds fan-out for master-plan owners.
const maxVariants = 3

// Run executes the full pipeline for a root project. Terminal projects are
// skipped; stage errors are converted into terminal failure state here, so
// the task queue never retries a run (retries happen inside stages).
func (p *Pipeline) Run(ctx context.Context, projectID uuid.UUID) error {
	return p.run(ctx, projectID, false)
}

// RunRemix executes the pipeline for a variant, reusing the parent's first
// half. Variants never fan out further.
func (p *Pipeline) RunRemix(ctx context.Context, projectID uuid.UUID) error {
	return p.run(ctx, projectID, true)
}

func (p *Pipeline) run(ctx context.Context, projectID uuid.UUID, remix bool) error {
	proj, err := p.Store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("pipeline task for missing project", "project_id", projectID)
			return nil
		}
		return fmt.Errorf("load project %s: %w", projectID, err)
	}
	if proj.Terminal() {
		slog.Info("skipping terminal project", "project_id", projectID, "status", proj.Status)
		return nil
	}

	if _, _, err := p.Store.UpdateProject(ctx, proj.ID,
		store.WithStatus(models.StatusRunning),
		store.WithStartedAt(p.Now()),
	); err != nil {
		return fmt.Errorf("mark project running: %w", err)
	}
	p.Bus.Publish(ctx, proj.ID, models.RunningFrame(proj.Progress, "starting"))

	if err := p.runStages(ctx, proj, remix); err != nil {
		if errors.Is(err, errCanceled) {
			p.announceCanceled(ctx, proj.ID)
			return nil
		}
		p.fail(ctx, proj.ID, err)
		return nil
	}
	return nil
}

func (p *Pipeline) runStages(ctx context.Context, proj *models.Project, remix bool) error {
	if remix {
		if err := p.stageRemixText(ctx, proj); err != nil {
			return err
		}
	} else {
		if err := p.stageText(ctx, proj); err != nil {
			return err
		}
		p.fanOutVariants(ctx, proj)
	}
	if err := p.stageMeta(ctx, proj); err != nil {
		return err
	}
	return p.stageAudio(ctx, proj)
}

// fanOutVariants spawns up to maxVariants branch projects for master-plan
// owners once the root story text exists. Fan-out problems are logged, not
// raised: the root story must finish regardless.
func (p *Pipeline) fanOutVariants(ctx context.Context, proj *models.Project) {
	if proj.IsVariant() {
		return
	}
	user, err := p.Store.GetUser(ctx, proj.UserID)
	if err != nil {
		slog.Warn("load user for fan-out", "project_id", proj.ID, "error", err)
		return
	}
	if !user.HasMasterPlan() {
		return
	}

	choices := p.Catalog.Theme(proj.Theme).Choices
	if len(choices) > maxVariants {
		choices = choices[:maxVariants]
	}
	for _, choice := range choices {
		variant, err := p.Store.CreateVariant(ctx, proj, choice.ID)
		if err != nil {
			slog.Warn("create variant", "project_id", proj.ID, "choice_id", choice.ID, "error", err)
			continue
		}
		if err := p.Enqueuer.EnqueueRemix(ctx, variant.ID); err != nil {
			slog.Warn("enqueue variant", "variant_id", variant.ID, "error", err)
		}
	}
}

// Cancel marks a non-terminal project canceled and notifies subscribers.
// Running stages observe the new status at their next progress write.
func (p *Pipeline) Cancel(ctx context.Context, projectID uuid.UUID) error {
	proj, err := p.Store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if proj.Terminal() {
		return nil
	}

	if _, _, err := p.Store.UpdateProject(ctx, proj.ID,
		store.WithStatus(models.StatusCanceled),
		store.WithFinishedAt(p.Now()),
	); err != nil {
		return fmt.Errorf("cancel project %s: %w", projectID, err)
	}
	p.Bus.Publish(ctx, proj.ID, models.CanceledFrame(proj.Progress))
	p.deleteChunks(ctx, proj)
	return nil
}

func (p *Pipeline) announceCanceled(ctx context.Context, projectID uuid.UUID) {
	proj, err := p.Store.GetProject(ctx, projectID)
	if err != nil {
		slog.Warn("reload canceled project", "project_id", projectID, "error", err)
		return
	}
	p.Bus.Publish(ctx, projectID, models.CanceledFrame(proj.Progress))
	p.deleteChunks(ctx, proj)
}
