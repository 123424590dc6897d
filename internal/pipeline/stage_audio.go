package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/tellatale/engine/internal/blob"
	"github.com/tellatale/engine/internal/fault"
	"github.com/tellatale/engine/internal/media"
	"github.com/tellatale/engine/internal/retry"
	"github.com/tellatale/engine/internal/store"
	"github.com/tellatale/engine/pkg/models"
)

// pageAudio is one narrated page's chunk, held in memory until assembly.
type pageAudio struct {
	index    int
	data     []byte
	duration float64
}

// stageAudio narrates each page, assembles the combined track and finishes
// the project. Per-page failures skip the page; if every page fails the
// project still completes as text-only.
func (p *Pipeline) stageAudio(ctx context.Context, proj *models.Project) error {
	const op = "pipeline.stage_audio"

	if err := p.advance(ctx, proj.ID, ProgressAudioStart, msgAudioStart); err != nil {
		return err
	}
	p.event(ctx, proj.ID, models.EventStage3Start, map[string]any{"pages": len(proj.Pages)})

	voice := proj.VoiceID
	if voice == "" {
		voice = p.Catalog.DefaultVoice()
	}

	var (
		mu     sync.Mutex
		chunks = make(map[int]pageAudio, len(proj.Pages))
	)
	sem := semaphore.NewWeighted(int64(p.Cfg.Pipeline.SpeechConcurrency))
	g, gctx := errgroup.WithContext(ctx)

	for _, page := range proj.Pages {
		page := page
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			chunk, err := p.narratePage(gctx, proj, voice, page)
			if err != nil {
				// One bad page must not sink the narration of the others.
				slog.Warn("page narration failed, skipping page",
					"project_id", proj.ID, "page", page.Index, "error", err)
				p.event(gctx, proj.ID, models.EventAudioFailed, map[string]any{
					"page":  page.Index,
					"error": err.Error(),
				})
				return nil
			}
			mu.Lock()
			chunks[page.Index] = chunk
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fault.New(fault.Unknown, op, err)
	}

	if len(chunks) == 0 {
		return p.finishTextOnly(ctx, proj)
	}

	if err := p.advance(ctx, proj.ID, ProgressAudioCombine, msgCombine); err != nil {
		return err
	}

	ordered := make([][]byte, 0, len(chunks))
	for _, page := range proj.Pages {
		if chunk, ok := chunks[page.Index]; ok {
			ordered = append(ordered, chunk.data)
		}
	}
	combined := media.CombineChunks(ordered)
	totalSecs, err := media.Duration(combined)
	if err != nil {
		return err
	}

	audioURL, err := p.Blob.Put(ctx, blob.CombinedAudioPath(proj.ID), combined)
	if err != nil {
		return err
	}
	if _, _, err := p.Store.UpdateProject(ctx, proj.ID,
		store.WithAudio(audioURL, int(totalSecs+0.5)),
	); err != nil {
		return fault.New(fault.Unknown, op, err)
	}

	p.deleteChunks(ctx, proj)
	return p.finish(ctx, proj, map[string]any{
		"pages_narrated": len(chunks),
		"audio_seconds":  int(totalSecs + 0.5),
	})
}

// narratePage produces one page's MP3 chunk, reusing a previously stored
// chunk when a retried task already narrated this page.
func (p *Pipeline) narratePage(ctx context.Context, proj *models.Project, voice string, page models.Page) (pageAudio, error) {
	const op = "pipeline.narrate_page"
	path := blob.ChunkPath(proj.ID, page.Index)

	if exists, err := p.Blob.Exists(ctx, path); err == nil && exists {
		data, err := p.Blob.Get(ctx, path)
		if err == nil {
			if secs, derr := media.Duration(data); derr == nil {
				p.event(ctx, proj.ID, models.EventChunkReused, map[string]any{"page": page.Index})
				return pageAudio{index: page.Index, data: data, duration: secs}, nil
			}
		}
		// A stored chunk that cannot be read or decoded is re-narrated.
	}

	var data []byte
	err := retry.Do(ctx, retry.AudioPolicy, "stage_audio.synthesize", func(ctx context.Context) error {
		stream, callErr := p.Speech.Synthesize(ctx, voice, page.Text, p.Cfg.Eleven.Model)
		if callErr != nil {
			return callErr
		}
		defer stream.Close()
		data, callErr = io.ReadAll(stream)
		if callErr != nil {
			return fault.New(fault.Transient, op, callErr)
		}
		return nil
	})
	if err != nil {
		return pageAudio{}, err
	}
	if len(data) < media.MinAudioBytes {
		return pageAudio{}, fault.Errorf(fault.ContentFault, op, "chunk for page %d is %d bytes", page.Index, len(data))
	}

	secs, err := media.Duration(data)
	if err != nil {
		return pageAudio{}, err
	}
	url, err := p.Blob.Put(ctx, path, data)
	if err != nil {
		return pageAudio{}, err
	}
	if err := p.Store.SetPageAudio(ctx, proj.ID, page.Index, url, secs); err != nil {
		return pageAudio{}, fault.New(fault.Unknown, op, err)
	}
	return pageAudio{index: page.Index, data: data, duration: secs}, nil
}

// finishTextOnly completes a project whose narration failed entirely. The
// story is still readable, so this is success, not failure.
func (p *Pipeline) finishTextOnly(ctx context.Context, proj *models.Project) error {
	slog.Warn("all pages failed narration, finishing text-only", "project_id", proj.ID)
	p.event(ctx, proj.ID, models.EventAudioFailed, map[string]any{
		"message": "Audio generation failed",
	})
	p.deleteChunks(ctx, proj)
	return p.finish(ctx, proj, map[string]any{"pages_narrated": 0})
}

func (p *Pipeline) finish(ctx context.Context, proj *models.Project, payload map[string]any) error {
	const op = "pipeline.finish"

	if _, _, err := p.Store.UpdateProject(ctx, proj.ID,
		store.WithStatus(models.StatusDone),
		store.WithProgress(ProgressDone),
		store.WithFinishedAt(p.Now()),
	); err != nil {
		return fault.New(fault.Unknown, op, err)
	}
	p.event(ctx, proj.ID, models.EventDone, payload)
	p.Bus.Publish(ctx, proj.ID, models.DoneFrame("your story is ready!"))

	if err := p.Enqueuer.EnqueueNotify(ctx, proj.ID); err != nil {
		slog.Warn("enqueue notification", "project_id", proj.ID, "error", err)
	}
	return nil
}

// deleteChunks removes per-page chunks after assembly or terminal failure.
// Best-effort: orphans are reclaimed by the sweeper.
func (p *Pipeline) deleteChunks(ctx context.Context, proj *models.Project) {
	paths, err := p.Blob.List(ctx, blob.ChunkPrefix(proj.ID))
	if err != nil {
		slog.Warn("list chunks for cleanup", "project_id", proj.ID, "error", err)
		return
	}
	for _, path := range paths {
		if err := p.Blob.Delete(ctx, path); err != nil {
			slog.Warn("delete chunk", "project_id", proj.ID, "path", path, "error", err)
		}
	}
}
