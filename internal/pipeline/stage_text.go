package pipeline

import (
	"context"
	"encoding/binary"
	"strings"

	"github.com/tellatale/engine/internal/fault"
	"github.com/tellatale/engine/internal/retry"
	"github.com/tellatale/engine/internal/store"
	"github.com/tellatale/engine/pkg/models"
)

const storyTemperature = 0.8

// seedFor derives a stable completion seed from the project id so that a
// retried task reproduces the same story.
func seedFor(proj *models.Project) int64 {
	return int64(binary.BigEndian.Uint64(proj.ID[:8]) & 0x7FFFFFFF)
}

// stageText synthesises the full story text and splits it into pages.
func (p *Pipeline) stageText(ctx context.Context, proj *models.Project) error {
	if err := p.advance(ctx, proj.ID, ProgressTextStart, msgTextStart); err != nil {
		return err
	}
	p.event(ctx, proj.ID, models.EventStage1Start, nil)

	theme := p.Catalog.Theme(proj.Theme)
	text, err := p.completeStory(ctx, proj, models.TextRequest{
		Model:       p.textModelFor(proj),
		System:      storySystem,
		User:        storyUserPrompt(proj, theme),
		Temperature: storyTemperature,
		Seed:        seedFor(proj),
		MaxTokens:   p.maxTokensFor(proj.Length),
	})
	if err != nil {
		return err
	}

	return p.storeStory(ctx, proj, text)
}

// stageRemixText synthesises a variant's second half, reusing the parent's
// first half verbatim.
func (p *Pipeline) stageRemixText(ctx context.Context, proj *models.Project) error {
	const op = "pipeline.remix_text"

	if err := p.advance(ctx, proj.ID, ProgressTextStart, msgTextStart); err != nil {
		return err
	}
	p.event(ctx, proj.ID, models.EventStage1Start, map[string]any{"choice_id": proj.ChoiceID})

	if proj.ParentID == nil {
		return fault.Errorf(fault.BadRequest, op, "remix project has no parent")
	}
	parent, err := p.Store.GetProject(ctx, *proj.ParentID)
	if err != nil {
		return fault.New(fault.Unknown, op, err)
	}
	if strings.TrimSpace(parent.FullText) == "" {
		return fault.Errorf(fault.BadRequest, op, "parent %s has no story text", parent.ID)
	}

	choice, ok := p.Catalog.Choice(proj.Theme, proj.ChoiceID)
	if !ok {
		return fault.Errorf(fault.BadRequest, op, "unknown choice %q for theme %q", proj.ChoiceID, proj.Theme)
	}

	firstHalf, _ := SplitHalves(Paragraphs(parent.FullText))
	shared := strings.Join(firstHalf, "\n\n")

	continuation, err := p.completeStory(ctx, proj, models.TextRequest{
		Model:       p.textModelFor(proj),
		System:      storySystem,
		User:        remixUserPrompt(proj, shared, choice),
		Temperature: storyTemperature,
		Seed:        seedFor(proj),
		MaxTokens:   p.maxTokensFor(proj.Length),
	})
	if err != nil {
		return err
	}

	return p.storeStory(ctx, proj, shared+"\n\n"+continuation)
}

func (p *Pipeline) completeStory(ctx context.Context, proj *models.Project, req models.TextRequest) (string, error) {
	var text string
	err := retry.Do(ctx, retry.TextPolicy, "stage_text", func(ctx context.Context) error {
		var callErr error
		text, callErr = p.Text.Complete(ctx, req)
		return callErr
	})
	return text, err
}

func (p *Pipeline) storeStory(ctx context.Context, proj *models.Project, text string) error {
	const op = "pipeline.store_story"

	pages := SplitPages(text)
	if len(pages) == 0 {
		return fault.Errorf(fault.ContentFault, op, "story produced no pages")
	}

	if _, _, err := p.Store.UpdateProject(ctx, proj.ID, store.WithFullText(text)); err != nil {
		return fault.New(fault.Unknown, op, err)
	}
	stored, err := p.Store.ReplacePages(ctx, proj.ID, pages)
	if err != nil {
		return fault.New(fault.Unknown, op, err)
	}
	proj.FullText = text
	proj.Pages = stored

	if err := p.advance(ctx, proj.ID, ProgressTextDone, msgTextDone); err != nil {
		return err
	}
	p.event(ctx, proj.ID, models.EventStage1Done, map[string]any{
		"pages": len(stored),
		"chars": len(text),
	})
	return nil
}
