// Package pipeline drives story generation: text synthesis, metadata and
// cover generation, per-page narration and final assembly. Stages run in
// order inside one worker task; the project record is the single source of
// truth for status, and the bus only mirrors it.
package pipeline

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tellatale/engine/internal/blob"
	"github.com/tellatale/engine/internal/bus"
	"github.com/tellatale/engine/internal/catalog"
	"github.com/tellatale/engine/internal/config"
	"github.com/tellatale/engine/internal/store"
	"github.com/tellatale/engine/pkg/models"
)

// Enqueuer hands follow-up work to the task queue. The pipeline never
// blocks on downstream work; it enqueues and moves on.
type Enqueuer interface {
	EnqueueRemix(ctx context.Context, projectID uuid.UUID) error
	EnqueuePostprocess(ctx context.Context, projectID uuid.UUID) error
	EnqueueNotify(ctx context.Context, projectID uuid.UUID) error
}

// Pipeline holds the collaborators the stages need. Construct with New;
// fields are exported for tests.
type Pipeline struct {
	Store    store.Store
	Blob     blob.Store
	Bus      bus.Bus
	Text     models.TextProvider
	Image    models.ImageProvider
	Speech   models.SpeechProvider
	Enqueuer Enqueuer
	Catalog  *catalog.Catalog
	Cfg      *config.Config
	HTTP     *http.Client
	Now      func() time.Time
}

func New(cfg *config.Config, st store.Store, bl blob.Store, b bus.Bus,
	text models.TextProvider, image models.ImageProvider, speech models.SpeechProvider,
	enq Enqueuer, cat *catalog.Catalog) *Pipeline {
	return &Pipeline{
		Store:    st,
		Blob:     bl,
		Bus:      b,
		Text:     text,
		Image:    image,
		Speech:   speech,
		Enqueuer: enq,
		Catalog:  cat,
		Cfg:      cfg,
		HTTP:     &http.Client{Timeout: 60 * time.Second},
		Now:      time.Now,
	}
}

// maxTokensFor maps a project's length code to the text call budget.
func (p *Pipeline) maxTokensFor(length string) int {
	if n, ok := p.Cfg.Pipeline.LengthTokens[length]; ok {
		return n
	}
	return p.Cfg.Pipeline.DefaultMaxTokens
}

// textModelFor honours a per-project model override.
func (p *Pipeline) textModelFor(proj *models.Project) string {
	if proj.ModelID != "" {
		return proj.ModelID
	}
	return p.Cfg.OpenAI.TextModel
}
