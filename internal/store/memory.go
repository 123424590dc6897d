package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tellatale/engine/pkg/models"
)

// MemoryStore is an in-memory Store for tests and single-binary development.
// It mirrors the Postgres semantics that the pipeline relies on: clamped
// progress, page replacement and variant field copying.
type MemoryStore struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*models.Project
	pages    map[uuid.UUID][]models.Page
	events   map[uuid.UUID][]models.GenerationEvent
	users    map[uuid.UUID]*models.User
	tokens   []*models.AuthToken
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[uuid.UUID]*models.Project),
		pages:    make(map[uuid.UUID][]models.Page),
		events:   make(map[uuid.UUID][]models.GenerationEvent),
		users:    make(map[uuid.UUID]*models.User),
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// PutUser seeds a user record.
func (s *MemoryStore) PutUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
}

// PutToken seeds an auth token record.
func (s *MemoryStore) PutToken(t *models.AuthToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tokens = append(s.tokens, &cp)
}

func (s *MemoryStore) CreateProject(_ context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = models.StatusPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	cp.Pages = nil
	s.projects[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetProject(_ context.Context, id uuid.UUID) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	cp.Pages = append([]models.Page(nil), s.pages[id]...)
	return &cp, nil
}

func (s *MemoryStore) UpdateProject(_ context.Context, id uuid.UUID, opts ...UpdateOption) (int, string, error) {
	var params updateParams
	for _, opt := range opts {
		opt(&params)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return 0, "", ErrNotFound
	}
	if params.Status != nil {
		p.Status = *params.Status
	}
	if params.Progress != nil {
		p.Progress = *params.Progress
	}
	if params.ErrorMessage != nil {
		p.ErrorMessage = *params.ErrorMessage
	}
	if params.FullText != nil {
		p.FullText = *params.FullText
	}
	if params.Title != nil {
		p.Title = *params.Title
	}
	if params.Synopsis != nil {
		p.Synopsis = *params.Synopsis
	}
	if params.Tags != nil {
		p.Tags = *params.Tags
	}
	if params.CoverURL != nil {
		p.CoverURL = *params.CoverURL
	}
	if params.AudioURL != nil {
		p.AudioURL = *params.AudioURL
	}
	if params.AudioSecs != nil {
		p.AudioDuration = *params.AudioSecs
	}
	if params.StartedAt != nil {
		t := *params.StartedAt
		p.StartedAt = &t
	}
	if params.FinishedAt != nil {
		t := *params.FinishedAt
		p.FinishedAt = &t
	}
	return p.Progress, p.Status, nil
}

func (s *MemoryStore) AdvanceProgress(_ context.Context, id uuid.UUID, progress int) (int, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return 0, "", ErrNotFound
	}
	if p.Status == models.StatusRunning {
		p.Progress = ClampProgress(progress)
	}
	return p.Progress, p.Status, nil
}

func (s *MemoryStore) ReplacePages(_ context.Context, projectID uuid.UUID, texts []string) ([]models.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[projectID]; !ok {
		return nil, ErrNotFound
	}
	now := time.Now().UTC()
	pages := make([]models.Page, 0, len(texts))
	for i, text := range texts {
		pages = append(pages, models.Page{
			ID:        uuid.New(),
			ProjectID: projectID,
			Index:     i + 1,
			Text:      text,
			CreatedAt: now,
		})
	}
	s.pages[projectID] = pages
	return append([]models.Page(nil), pages...), nil
}

func (s *MemoryStore) SetPageAudio(_ context.Context, projectID uuid.UUID, index int, audioURL string, duration float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pages[projectID] {
		if s.pages[projectID][i].Index == index {
			s.pages[projectID][i].AudioURL = audioURL
			s.pages[projectID][i].Duration = duration
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) AppendEvent(_ context.Context, projectID uuid.UUID, kind string, payload any) error {
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.events[projectID] = append(s.events[projectID], models.GenerationEvent{
		ID:        s.nextID,
		ProjectID: projectID,
		Kind:      kind,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context, projectID uuid.UUID) ([]models.GenerationEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.GenerationEvent(nil), s.events[projectID]...), nil
}

func (s *MemoryStore) CreateVariant(_ context.Context, parent *models.Project, choiceID string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	parentID := parent.ID
	v := &models.Project{
		ID:           uuid.New(),
		UserID:       parent.UserID,
		ParentID:     &parentID,
		HeroName:     parent.HeroName,
		HeroAge:      parent.HeroAge,
		HeroPronouns: parent.HeroPronouns,
		HeroAnimal:   parent.HeroAnimal,
		HeroColor:    parent.HeroColor,
		Theme:        parent.Theme,
		ArtStyle:     parent.ArtStyle,
		Language:     parent.Language,
		VoiceID:      parent.VoiceID,
		Length:       parent.Length,
		Difficulty:   parent.Difficulty,
		ModelID:      parent.ModelID,
		ChoiceID:     choiceID,
		Status:       models.StatusRunning,
		CreatedAt:    now,
		StartedAt:    &now,
	}
	cp := *v
	s.projects[v.ID] = &cp
	return v, nil
}

func (s *MemoryStore) DeleteProject(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, id)
	delete(s.pages, id)
	delete(s.events, id)
	return nil
}

func (s *MemoryStore) ListReapable(_ context.Context, cutoff time.Time) ([]*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Project
	for _, p := range s.projects {
		if p.Status == models.StatusDone || !p.CreatedAt.Before(cutoff) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetTokensByPrefix(_ context.Context, prefix string) ([]*models.AuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AuthToken
	for _, t := range s.tokens {
		if t.TokenPrefix == prefix {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) TouchToken(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, t := range s.tokens {
		if t.ID == id {
			t.LastUsedAt = &now
			return nil
		}
	}
	return ErrNotFound
}

var _ Store = (*MemoryStore)(nil)
