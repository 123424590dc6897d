package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tellatale/engine/internal/store"
	"github.com/tellatale/engine/pkg/models"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("engine_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func createTestUser(t *testing.T, pool *pgxpool.Pool, plan, status string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, plan, plan_status) VALUES ($1, $2, $3)`, id, plan, status)
	require.NoError(t, err)
	return id
}

func newTestProject(userID uuid.UUID) *models.Project {
	return &models.Project{
		UserID:       userID,
		HeroName:     "Mia",
		HeroAge:      4,
		HeroPronouns: "she/her",
		HeroAnimal:   "fox",
		HeroColor:    "#FF00FF",
		Theme:        "forest",
		ArtStyle:     "watercolor",
		Language:     "en",
		VoiceID:      "nova",
		Length:       models.LengthShort,
		Difficulty:   1,
	}
}

func TestProject_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	userID := createTestUser(t, pool, models.PlanFree, models.PlanActive)
	p := newTestProject(userID)
	require.NoError(t, s.CreateProject(ctx, p))

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, "Mia", got.HeroName)
	assert.Nil(t, got.ParentID)
	assert.Empty(t, got.Pages)
}

func TestProject_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetProject(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProject_PartialUpdateClampsProgress(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	userID := createTestUser(t, pool, models.PlanFree, models.PlanActive)
	p := newTestProject(userID)
	require.NoError(t, s.CreateProject(ctx, p))

	progress, status, err := s.UpdateProject(ctx, p.ID,
		store.WithStatus(models.StatusRunning),
		store.WithProgress(130),
		store.WithStartedAt(time.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, 100, progress)
	assert.Equal(t, models.StatusRunning, status)

	progress, _, err = s.UpdateProject(ctx, p.ID, store.WithProgress(-5))
	require.NoError(t, err)
	assert.Equal(t, 0, progress)

	// Only named fields are touched.
	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mia", got.HeroName)
	assert.NotNil(t, got.StartedAt)
	assert.Nil(t, got.FinishedAt)
}

func TestProject_AdvanceProgressFrozenAfterCancel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	userID := createTestUser(t, pool, models.PlanFree, models.PlanActive)
	p := newTestProject(userID)
	require.NoError(t, s.CreateProject(ctx, p))

	_, _, err := s.UpdateProject(ctx, p.ID, store.WithStatus(models.StatusRunning))
	require.NoError(t, err)

	progress, status, err := s.AdvanceProgress(ctx, p.ID, 30)
	require.NoError(t, err)
	assert.Equal(t, 30, progress)
	assert.Equal(t, models.StatusRunning, status)

	_, _, err = s.UpdateProject(ctx, p.ID, store.WithStatus(models.StatusCanceled))
	require.NoError(t, err)

	// A late sentinel from an in-flight stage must not move a canceled record.
	progress, status, err = s.AdvanceProgress(ctx, p.ID, 40)
	require.NoError(t, err)
	assert.Equal(t, 30, progress)
	assert.Equal(t, models.StatusCanceled, status)

	_, _, err = s.AdvanceProgress(ctx, uuid.New(), 10)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPages_ReplaceAndAmend(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	userID := createTestUser(t, pool, models.PlanFree, models.PlanActive)
	p := newTestProject(userID)
	require.NoError(t, s.CreateProject(ctx, p))

	pages, err := s.ReplacePages(ctx, p.ID, []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, 1, pages[0].Index)
	assert.Equal(t, 3, pages[2].Index)

	// A second replacement discards the first set entirely.
	pages, err = s.ReplacePages(ctx, p.ID, []string{"only"})
	require.NoError(t, err)
	require.Len(t, pages, 1)

	require.NoError(t, s.SetPageAudio(ctx, p.ID, 1, "/media/audio/chunks/x.mp3", 12.5))

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Pages, 1)
	assert.Equal(t, "/media/audio/chunks/x.mp3", got.Pages[0].AudioURL)
	assert.InDelta(t, 12.5, got.Pages[0].Duration, 0.001)

	assert.ErrorIs(t, s.SetPageAudio(ctx, p.ID, 9, "u", 1), store.ErrNotFound)
}

func TestEvents_AppendOnlyOrdered(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	userID := createTestUser(t, pool, models.PlanFree, models.PlanActive)
	p := newTestProject(userID)
	require.NoError(t, s.CreateProject(ctx, p))

	require.NoError(t, s.AppendEvent(ctx, p.ID, models.EventStage1Start, nil))
	require.NoError(t, s.AppendEvent(ctx, p.ID, models.EventStage1Done, map[string]int{"pages": 3}))

	events, err := s.ListEvents(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventStage1Start, events[0].Kind)
	assert.Contains(t, string(events[1].Payload), `"pages"`)
}

func TestCreateVariant_CopiesParentFields(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	userID := createTestUser(t, pool, models.PlanMaster, models.PlanActive)
	parent := newTestProject(userID)
	require.NoError(t, s.CreateProject(ctx, parent))

	v, err := s.CreateVariant(ctx, parent, "old_oak")
	require.NoError(t, err)
	require.NotNil(t, v.ParentID)
	assert.Equal(t, parent.ID, *v.ParentID)
	assert.Equal(t, "old_oak", v.ChoiceID)
	assert.Equal(t, models.StatusRunning, v.Status)
	assert.Equal(t, 0, v.Progress)
	assert.NotNil(t, v.StartedAt)
	assert.Equal(t, parent.HeroName, v.HeroName)
	assert.Equal(t, parent.VoiceID, v.VoiceID)
}

func TestListReapable_SkipsDoneAndRecent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	userID := createTestUser(t, pool, models.PlanFree, models.PlanActive)

	old := newTestProject(userID)
	require.NoError(t, s.CreateProject(ctx, old))
	_, err := pool.Exec(ctx, `UPDATE projects SET created_at = NOW() - INTERVAL '2 days' WHERE id = $1`, old.ID)
	require.NoError(t, err)

	done := newTestProject(userID)
	require.NoError(t, s.CreateProject(ctx, done))
	_, err = pool.Exec(ctx,
		`UPDATE projects SET created_at = NOW() - INTERVAL '2 days', status = 'done' WHERE id = $1`, done.ID)
	require.NoError(t, err)

	fresh := newTestProject(userID)
	require.NoError(t, s.CreateProject(ctx, fresh))

	reapable, err := s.ListReapable(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, reapable, 1)
	assert.Equal(t, old.ID, reapable[0].ID)
}
