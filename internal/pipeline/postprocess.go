package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tellatale/engine/internal/blob"
	"github.com/tellatale/engine/internal/media"
	"github.com/tellatale/engine/internal/store"
	"github.com/tellatale/engine/pkg/models"
)

// maxCoverBytes bounds the provider cover download.
const maxCoverBytes = 20 << 20

// PostprocessCover downloads the provider-hosted cover, recompresses it,
// watermarks covers for creator-plan owners and rehomes the result in the
// artifact store. Runs as its own task so a slow download never holds up
// narration.
func (p *Pipeline) PostprocessCover(ctx context.Context, projectID uuid.UUID) error {
	const op = "pipeline.postprocess_cover"

	proj, err := p.Store.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("%s: load project: %w", op, err)
	}
	if proj.CoverURL == "" {
		return nil
	}
	if strings.Contains(proj.CoverURL, blob.CoverPath(proj.ID)) {
		// Already rehomed; a duplicate task is a no-op.
		return nil
	}

	data, err := p.downloadCover(ctx, proj.CoverURL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	processed, err := media.RecompressJPEG(data)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if p.shouldWatermark(ctx, proj) {
		processed, err = media.Watermark(processed, p.Cfg.Pipeline.WatermarkText)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	url, err := p.Blob.Put(ctx, blob.CoverPath(proj.ID), processed)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, _, err := p.Store.UpdateProject(ctx, proj.ID, store.WithCoverURL(url)); err != nil {
		return fmt.Errorf("%s: update cover url: %w", op, err)
	}
	return nil
}

func (p *Pipeline) downloadCover(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download cover: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxCoverBytes))
}

func (p *Pipeline) shouldWatermark(ctx context.Context, proj *models.Project) bool {
	user, err := p.Store.GetUser(ctx, proj.UserID)
	if err != nil {
		slog.Warn("load user for watermark decision", "project_id", proj.ID, "error", err)
		return false
	}
	return user.Plan == models.PlanCreator
}
