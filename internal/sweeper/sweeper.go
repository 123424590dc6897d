// Package sweeper reaps projects that never reached completion, reclaiming
// their artifacts and rows.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tellatale/engine/internal/blob"
	"github.com/tellatale/engine/internal/store"
	"github.com/tellatale/engine/pkg/models"
)

// DefaultMaxAge is how long an unfinished project may linger before it is
// reaped.
const DefaultMaxAge = 24 * time.Hour

// Sweeper deletes stale non-done projects and their stored artifacts.
type Sweeper struct {
	Store  store.Store
	Blob   blob.Store
	MaxAge time.Duration
	Now    func() time.Time
}

func New(st store.Store, bl blob.Store) *Sweeper {
	return &Sweeper{Store: st, Blob: bl, MaxAge: DefaultMaxAge, Now: time.Now}
}

// Run reaps every project older than MaxAge that never reached done.
// Artifact deletion tolerates missing objects; the record goes last so a
// partial sweep retries cleanly on the next run.
func (s *Sweeper) Run(ctx context.Context) error {
	cutoff := s.Now().Add(-s.MaxAge)
	projects, err := s.Store.ListReapable(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list reapable projects: %w", err)
	}

	reaped := 0
	for _, proj := range projects {
		if err := s.reap(ctx, proj); err != nil {
			slog.Warn("reap project", "project_id", proj.ID, "error", err)
			continue
		}
		reaped++
	}
	slog.Info("sweep finished", "candidates", len(projects), "reaped", reaped)
	return nil
}

func (s *Sweeper) reap(ctx context.Context, proj *models.Project) error {
	s.deleteQuiet(ctx, proj, blob.CoverPath(proj.ID))
	s.deleteQuiet(ctx, proj, blob.CombinedAudioPath(proj.ID))

	chunks, err := s.Blob.List(ctx, blob.ChunkPrefix(proj.ID))
	if err != nil {
		slog.Warn("list chunks during sweep", "project_id", proj.ID, "error", err)
	}
	for _, path := range chunks {
		s.deleteQuiet(ctx, proj, path)
	}

	if err := s.Store.DeleteProject(ctx, proj.ID); err != nil {
		return fmt.Errorf("delete project record: %w", err)
	}
	slog.Info("reaped stale project",
		"project_id", proj.ID, "status", proj.Status, "created_at", proj.CreatedAt)
	return nil
}

func (s *Sweeper) deleteQuiet(ctx context.Context, proj *models.Project, path string) {
	if err := s.Blob.Delete(ctx, path); err != nil {
		slog.Warn("delete artifact during sweep",
			"project_id", proj.ID, "path", path, "error", err)
	}
}
