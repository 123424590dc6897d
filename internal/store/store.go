// Package store is the data access layer for projects, pages, generation
// events and the user/token records the pipeline reads.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tellatale/engine/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateProject(ctx context.Context, p *models.Project) error
	// GetProject loads a project including its pages, ordered by index.
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	// UpdateProject applies a partial update and returns the resulting
	// progress and status. Progress values are clamped to [0, 100].
	UpdateProject(ctx context.Context, id uuid.UUID, opts ...UpdateOption) (int, string, error)
	// AdvanceProgress writes a progress value only while the project is
	// still running; any other status leaves the stored progress untouched.
	// It returns the resulting progress and status either way, so callers
	// can observe a concurrent cancellation.
	AdvanceProgress(ctx context.Context, id uuid.UUID, progress int) (int, string, error)
	// ReplacePages deletes any existing pages and creates a fresh set
	// indexed from 1.
	ReplacePages(ctx context.Context, projectID uuid.UUID, texts []string) ([]models.Page, error)
	SetPageAudio(ctx context.Context, projectID uuid.UUID, index int, audioURL string, duration float64) error
	// AppendEvent appends one generation-event log entry. The payload is
	// marshalled to JSON.
	AppendEvent(ctx context.Context, projectID uuid.UUID, kind string, payload any) error
	ListEvents(ctx context.Context, projectID uuid.UUID) ([]models.GenerationEvent, error)
	// CreateVariant copies the parent's hero, style and voice fields into a
	// new project that records the parent id and starts running at
	// progress 0.
	CreateVariant(ctx context.Context, parent *models.Project, choiceID string) (*models.Project, error)
	DeleteProject(ctx context.Context, id uuid.UUID) error
	// ListReapable returns projects created before the cutoff that never
	// reached done.
	ListReapable(ctx context.Context, cutoff time.Time) ([]*models.Project, error)

	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetTokensByPrefix(ctx context.Context, prefix string) ([]*models.AuthToken, error)
	TouchToken(ctx context.Context, id uuid.UUID) error
}

type updateParams struct {
	Status       *string
	Progress     *int
	ErrorMessage *string
	FullText     *string
	Title        *string
	Synopsis     *string
	Tags         *string
	CoverURL     *string
	AudioURL     *string
	AudioSecs    *int
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// UpdateOption names one field of a partial project update.
type UpdateOption func(*updateParams)

func WithStatus(status string) UpdateOption {
	return func(p *updateParams) { p.Status = &status }
}

func WithProgress(progress int) UpdateOption {
	progress = ClampProgress(progress)
	return func(p *updateParams) { p.Progress = &progress }
}

func WithErrorMessage(msg string) UpdateOption {
	return func(p *updateParams) { p.ErrorMessage = &msg }
}

func WithFullText(text string) UpdateOption {
	return func(p *updateParams) { p.FullText = &text }
}

func WithTitle(title string) UpdateOption {
	return func(p *updateParams) { p.Title = &title }
}

func WithSynopsis(synopsis string) UpdateOption {
	return func(p *updateParams) { p.Synopsis = &synopsis }
}

func WithTags(tags string) UpdateOption {
	return func(p *updateParams) { p.Tags = &tags }
}

func WithCoverURL(url string) UpdateOption {
	return func(p *updateParams) { p.CoverURL = &url }
}

func WithAudio(url string, seconds int) UpdateOption {
	return func(p *updateParams) {
		p.AudioURL = &url
		p.AudioSecs = &seconds
	}
}

func WithStartedAt(t time.Time) UpdateOption {
	return func(p *updateParams) { p.StartedAt = &t }
}

func WithFinishedAt(t time.Time) UpdateOption {
	return func(p *updateParams) { p.FinishedAt = &t }
}

// ClampProgress bounds a progress value to [0, 100].
func ClampProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}
