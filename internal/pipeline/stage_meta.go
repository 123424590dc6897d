package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tellatale/engine/internal/catalog"
	"github.com/tellatale/engine/internal/fault"
	"github.com/tellatale/engine/internal/retry"
	"github.com/tellatale/engine/internal/store"
	"github.com/tellatale/engine/pkg/models"
)

const metadataTemperature = 0.5

// minSynopsisChars rejects degenerate synopses in favour of the fallback.
const minSynopsisChars = 20

// stageMeta generates the title/synopsis/tags and the cover image. The two
// provider calls run concurrently; a content-policy cover rejection is
// non-fatal and leaves the cover URL empty.
func (p *Pipeline) stageMeta(ctx context.Context, proj *models.Project) error {
	if err := p.advance(ctx, proj.ID, ProgressMetaStart, msgMetaStart); err != nil {
		return err
	}
	p.event(ctx, proj.ID, models.EventStage2Start, nil)

	theme := p.Catalog.Theme(proj.Theme)

	var (
		meta     storyMetadata
		coverURL string
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		raw, err := p.completeMetadata(gctx, proj)
		if err != nil {
			return err
		}
		parsed, err := parseMetadata(raw)
		if err != nil {
			slog.Warn("metadata parse failed, using fallbacks", "project_id", proj.ID, "error", err)
			return nil
		}
		meta = parsed
		return nil
	})

	g.Go(func() error {
		url, err := p.generateCover(gctx, proj, theme)
		if err != nil {
			if fault.KindOf(err) == fault.ContentRejected {
				slog.Warn("cover rejected by content policy, continuing without cover",
					"project_id", proj.ID)
				return nil
			}
			return err
		}
		coverURL = url
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	applyMetadataFallbacks(&meta, proj, theme)

	if _, _, err := p.Store.UpdateProject(ctx, proj.ID,
		store.WithTitle(meta.Title),
		store.WithSynopsis(meta.Synopsis),
		store.WithTags(strings.Join(meta.Tags, ",")),
		store.WithCoverURL(coverURL),
	); err != nil {
		return fault.New(fault.Unknown, "pipeline.stage_meta", err)
	}
	proj.Title = meta.Title
	proj.CoverURL = coverURL

	if err := p.advance(ctx, proj.ID, ProgressMetaDone, msgMetaDone); err != nil {
		return err
	}
	p.event(ctx, proj.ID, models.EventStage2Done, map[string]any{
		"title":     meta.Title,
		"has_cover": coverURL != "",
	})

	if coverURL != "" {
		if err := p.Enqueuer.EnqueuePostprocess(ctx, proj.ID); err != nil {
			slog.Warn("enqueue cover postprocess", "project_id", proj.ID, "error", err)
		}
	}
	return nil
}

func (p *Pipeline) completeMetadata(ctx context.Context, proj *models.Project) (string, error) {
	var raw string
	err := retry.Do(ctx, retry.MetaPolicy, "stage_meta.synopsis", func(ctx context.Context) error {
		var callErr error
		raw, callErr = p.Text.Complete(ctx, models.TextRequest{
			Model:       p.Cfg.OpenAI.TextModel,
			System:      metadataSystem,
			User:        metadataUserPrompt(proj.FullText),
			Temperature: metadataTemperature,
			MaxTokens:   300,
		})
		return callErr
	})
	return raw, err
}

func (p *Pipeline) generateCover(ctx context.Context, proj *models.Project, theme catalog.Theme) (string, error) {
	var url string
	err := retry.Do(ctx, retry.MetaPolicy, "stage_meta.cover", func(ctx context.Context) error {
		var callErr error
		url, callErr = p.Image.Generate(ctx, models.ImageRequest{
			Model:  p.Cfg.OpenAI.ImageModel,
			Prompt: coverPrompt(proj, theme, p.Catalog.Enhancer(proj.ArtStyle)),
		})
		return callErr
	})
	return url, err
}

// applyMetadataFallbacks fills missing or degenerate fields so stage 2
// always yields presentable metadata.
func applyMetadataFallbacks(meta *storyMetadata, proj *models.Project, theme catalog.Theme) {
	if meta.Title == "" {
		meta.Title = fmt.Sprintf("%s and the %s", proj.HeroName, theme.Name)
	}
	if len(meta.Synopsis) < minSynopsisChars {
		meta.Synopsis = fmt.Sprintf("A story about %s's adventure in %s.", proj.HeroName, theme.Name)
	}
	if len(meta.Tags) == 0 {
		meta.Tags = []string{strings.ToLower(proj.Theme)}
	}
}
