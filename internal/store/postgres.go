package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tellatale/engine/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const projectColumns = `id, user_id, parent_id,
	hero_name, hero_age, hero_pronouns, hero_animal, hero_color,
	theme, art_style, language, voice_id, length, difficulty,
	custom_prompt, model_id, choice_id,
	status, progress, error_message,
	full_text, title, synopsis, tags, cover_url, audio_url, audio_duration,
	created_at, started_at, finished_at`

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.UserID, &p.ParentID,
		&p.HeroName, &p.HeroAge, &p.HeroPronouns, &p.HeroAnimal, &p.HeroColor,
		&p.Theme, &p.ArtStyle, &p.Language, &p.VoiceID, &p.Length, &p.Difficulty,
		&p.CustomPrompt, &p.ModelID, &p.ChoiceID,
		&p.Status, &p.Progress, &p.ErrorMessage,
		&p.FullText, &p.Title, &p.Synopsis, &p.Tags, &p.CoverURL, &p.AudioURL, &p.AudioDuration,
		&p.CreatedAt, &p.StartedAt, &p.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	return &p, nil
}

// --- Projects ---

func (s *PostgresStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = models.StatusPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, user_id, parent_id,
			hero_name, hero_age, hero_pronouns, hero_animal, hero_color,
			theme, art_style, language, voice_id, length, difficulty,
			custom_prompt, model_id, choice_id,
			status, progress, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20)`,
		p.ID, p.UserID, p.ParentID,
		p.HeroName, p.HeroAge, p.HeroPronouns, p.HeroAnimal, p.HeroColor,
		p.Theme, p.ArtStyle, p.Language, p.VoiceID, p.Length, p.Difficulty,
		p.CustomPrompt, p.ModelID, p.ChoiceID,
		p.Status, p.Progress, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	p, err := scanProject(s.pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, page_index, text, audio_url, duration, created_at
		 FROM pages WHERE project_id = $1 ORDER BY page_index`, id)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pg models.Page
		if err := rows.Scan(&pg.ID, &pg.ProjectID, &pg.Index, &pg.Text,
			&pg.AudioURL, &pg.Duration, &pg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		p.Pages = append(p.Pages, pg)
	}
	return p, rows.Err()
}

func (s *PostgresStore) UpdateProject(ctx context.Context, id uuid.UUID, opts ...UpdateOption) (int, string, error) {
	var params updateParams
	for _, opt := range opts {
		opt(&params)
	}

	set := make([]string, 0, 12)
	args := make([]any, 0, 13)
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Progress != nil {
		add("progress", *params.Progress)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}
	if params.FullText != nil {
		add("full_text", *params.FullText)
	}
	if params.Title != nil {
		add("title", *params.Title)
	}
	if params.Synopsis != nil {
		add("synopsis", *params.Synopsis)
	}
	if params.Tags != nil {
		add("tags", *params.Tags)
	}
	if params.CoverURL != nil {
		add("cover_url", *params.CoverURL)
	}
	if params.AudioURL != nil {
		add("audio_url", *params.AudioURL)
	}
	if params.AudioSecs != nil {
		add("audio_duration", *params.AudioSecs)
	}
	if params.StartedAt != nil {
		add("started_at", *params.StartedAt)
	}
	if params.FinishedAt != nil {
		add("finished_at", *params.FinishedAt)
	}

	if len(set) == 0 {
		var progress int
		var status string
		err := s.pool.QueryRow(ctx,
			`SELECT progress, status FROM projects WHERE id = $1`, id).
			Scan(&progress, &status)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", ErrNotFound
		}
		return progress, status, err
	}

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE projects SET %s WHERE id = $%d RETURNING progress, status`,
		strings.Join(set, ", "), len(args))

	var progress int
	var status string
	err := s.pool.QueryRow(ctx, query, args...).Scan(&progress, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", ErrNotFound
	}
	if err != nil {
		return 0, "", fmt.Errorf("update project: %w", err)
	}
	return progress, status, nil
}

func (s *PostgresStore) AdvanceProgress(ctx context.Context, id uuid.UUID, progress int) (int, string, error) {
	var got int
	var status string
	err := s.pool.QueryRow(ctx,
		`UPDATE projects SET progress = $1 WHERE id = $2 AND status = $3
		 RETURNING progress, status`,
		ClampProgress(progress), id, models.StatusRunning).Scan(&got, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		// No longer running; report the stored row as-is.
		err = s.pool.QueryRow(ctx,
			`SELECT progress, status FROM projects WHERE id = $1`, id).
			Scan(&got, &status)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", ErrNotFound
		}
	}
	if err != nil {
		return 0, "", fmt.Errorf("advance progress: %w", err)
	}
	return got, status, nil
}

func (s *PostgresStore) ReplacePages(ctx context.Context, projectID uuid.UUID, texts []string) ([]models.Page, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin replace pages: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM pages WHERE project_id = $1`, projectID); err != nil {
		return nil, fmt.Errorf("delete pages: %w", err)
	}

	now := time.Now().UTC()
	pages := make([]models.Page, 0, len(texts))
	for i, text := range texts {
		pg := models.Page{
			ID:        uuid.New(),
			ProjectID: projectID,
			Index:     i + 1,
			Text:      text,
			CreatedAt: now,
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO pages (id, project_id, page_index, text, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			pg.ID, pg.ProjectID, pg.Index, pg.Text, pg.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert page %d: %w", pg.Index, err)
		}
		pages = append(pages, pg)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit replace pages: %w", err)
	}
	return pages, nil
}

func (s *PostgresStore) SetPageAudio(ctx context.Context, projectID uuid.UUID, index int, audioURL string, duration float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pages SET audio_url = $1, duration = $2
		 WHERE project_id = $3 AND page_index = $4`,
		audioURL, duration, projectID, index)
	if err != nil {
		return fmt.Errorf("set page audio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Events ---

func (s *PostgresStore) AppendEvent(ctx context.Context, projectID uuid.UUID, kind string, payload any) error {
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO generation_events (project_id, kind, payload) VALUES ($1, $2, $3)`,
		projectID, kind, raw)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, projectID uuid.UUID) ([]models.GenerationEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, kind, payload, created_at
		 FROM generation_events WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.GenerationEvent
	for rows.Next() {
		var e models.GenerationEvent
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Kind, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Variants ---

func (s *PostgresStore) CreateVariant(ctx context.Context, parent *models.Project, choiceID string) (*models.Project, error) {
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
		Progress:     0,
		CreatedAt:    now,
		StartedAt:    &now,
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, user_id, parent_id,
			hero_name, hero_age, hero_pronouns, hero_animal, hero_color,
			theme, art_style, language, voice_id, length, difficulty,
			model_id, choice_id, status, progress, created_at, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20)`,
		v.ID, v.UserID, v.ParentID,
		v.HeroName, v.HeroAge, v.HeroPronouns, v.HeroAnimal, v.HeroColor,
		v.Theme, v.ArtStyle, v.Language, v.VoiceID, v.Length, v.Difficulty,
		v.ModelID, v.ChoiceID, v.Status, v.Progress, v.CreatedAt, v.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("create variant: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListReapable(ctx context.Context, cutoff time.Time) ([]*models.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects
		 WHERE created_at < $1 AND status IN ($2, $3, $4, $5)`,
		cutoff, models.StatusPending, models.StatusRunning, models.StatusFailed, models.StatusCanceled)
	if err != nil {
		return nil, fmt.Errorf("list reapable: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// --- Users and tokens ---

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, plan, plan_status, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Plan, &u.PlanStatus, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetTokensByPrefix(ctx context.Context, prefix string) ([]*models.AuthToken, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, token_hash, token_prefix, last_used_at, created_at
		 FROM auth_tokens WHERE token_prefix = $1`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get tokens by prefix: %w", err)
	}
	defer rows.Close()

	var tokens []*models.AuthToken
	for rows.Next() {
		var t models.AuthToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.TokenPrefix,
			&t.LastUsedAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}

func (s *PostgresStore) TouchToken(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE auth_tokens SET last_used_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch token: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
