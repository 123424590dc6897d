package pipeline

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tellatale/engine/internal/blob"
	"github.com/tellatale/engine/internal/bus"
	"github.com/tellatale/engine/internal/catalog"
	"github.com/tellatale/engine/internal/config"
	"github.com/tellatale/engine/internal/store"
	"github.com/tellatale/engine/pkg/models"
)

// storyText is the canned six-paragraph story the fake text provider
// returns, yielding two pages of three paragraphs each.
const storyText = `Mila woke up early, her magenta scarf glowing in the morning light.

She skipped into the enchanted forest with her little fox.

The trees hummed a soft good-morning song.

Deep in the woods they met a firefly with a lantern heart.

Together they danced until the stars came out.

Then Mila walked home, sleepy and happy, ready for bed.`

const continuationText = `They followed the fireflies over a mossy bridge.

The glowing trail ended at a meadow full of soft light.

Mila said goodnight to every firefly and headed home smiling.`

type fakeText struct {
	mu       sync.Mutex
	requests []models.TextRequest
	fn       func(req models.TextRequest) (string, error)
}

func (f *fakeText) Complete(_ context.Context, req models.TextRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.fn(req)
}

func (f *fakeText) Name() string { return "fake-text" }

func (f *fakeText) recorded() []models.TextRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TextRequest(nil), f.requests...)
}

type fakeImage struct {
	mu      sync.Mutex
	prompts []string
	url     string
	err     error
}

func (f *fakeImage) Generate(_ context.Context, req models.ImageRequest) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func (f *fakeImage) Name() string { return "fake-image" }

func (f *fakeImage) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeSpeech struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeSpeech) Synthesize(_ context.Context, _, text, _ string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(mp3Bytes(10))), nil
}

func (f *fakeSpeech) Name() string { return "fake-speech" }

func (f *fakeSpeech) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

type fakeEnqueuer struct {
	mu          sync.Mutex
	remixes     []uuid.UUID
	postprocess []uuid.UUID
	notify      []uuid.UUID
	onRemix     func(id uuid.UUID)
}

func (f *fakeEnqueuer) EnqueueRemix(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	f.remixes = append(f.remixes, id)
	f.mu.Unlock()
	if f.onRemix != nil {
		f.onRemix(id)
	}
	return nil
}

func (f *fakeEnqueuer) EnqueuePostprocess(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postprocess = append(f.postprocess, id)
	return nil
}

func (f *fakeEnqueuer) EnqueueNotify(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notify = append(f.notify, id)
	return nil
}

// mp3Bytes builds n valid MPEG-1 Layer III frames (128kbps, 44.1kHz).
func mp3Bytes(n int) []byte {
	const frameLen = 417
	frame := make([]byte, frameLen)
	frame[0], frame[1], frame[2], frame[3] = 0xFF, 0xFB, 0x90, 0x00
	out := make([]byte, 0, n*frameLen)
	for i := 0; i < n; i++ {
		out = append(out, frame...)
	}
	return out
}

type testEnv struct {
	pipeline *Pipeline
	store    *store.MemoryStore
	blob     blob.Store
	bus      *bus.MemoryBus
	text     *fakeText
	image    *fakeImage
	speech   *fakeSpeech
	enqueuer *fakeEnqueuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	bl, err := blob.NewLocalStore(config.LocalStorageConfig{Dir: t.TempDir(), BaseURL: "/media"})
	require.NoError(t, err)

	cfg := &config.Config{
		OpenAI: config.OpenAIConfig{TextModel: "gpt-4o-mini", ImageModel: "dall-e-3"},
		Eleven: config.ElevenConfig{Model: "eleven_multilingual_v2"},
		Pipeline: config.PipelineConfig{
			SpeechConcurrency: 2,
			LengthTokens:      map[string]int{"short": 100, "medium": 300, "long": 500},
			DefaultMaxTokens:  4000,
			WatermarkText:     "tellatale",
		},
	}

	env := &testEnv{
		store:    store.NewMemoryStore(),
		blob:     bl,
		bus:      bus.NewMemoryBus(),
		text:     &fakeText{fn: func(models.TextRequest) (string, error) { return storyText, nil }},
		image:    &fakeImage{url: "https://provider.example.com/cover.png"},
		speech:   &fakeSpeech{},
		enqueuer: &fakeEnqueuer{},
	}
	env.pipeline = New(cfg, env.store, bl, env.bus, env.text, env.image, env.speech, env.enqueuer, catalog.Default())
	return env
}

// seedProject stores a pending forest-theme project and its free-plan owner.
func (e *testEnv) seedProject(t *testing.T) *models.Project {
	t.Helper()
	return e.seedProjectForPlan(t, models.PlanFree)
}

func (e *testEnv) seedProjectForPlan(t *testing.T, plan string) *models.Project {
	t.Helper()

	user := &models.User{ID: uuid.New(), Plan: plan, PlanStatus: models.PlanActive}
	e.store.PutUser(user)

	proj := &models.Project{
		ID:           uuid.New(),
		UserID:       user.ID,
		HeroName:     "Mila",
		HeroAge:      5,
		HeroPronouns: "she/her",
		HeroAnimal:   "fox",
		HeroColor:    "#FF00FF",
		Theme:        "forest",
		ArtStyle:     "watercolor",
		VoiceID:      "nova",
		Length:       models.LengthMedium,
		Status:       models.StatusPending,
	}
	require.NoError(t, e.store.CreateProject(context.Background(), proj))
	return proj
}

// collectFrames drains the frame channel until a terminal status arrives.
func collectFrames(t *testing.T, ch <-chan models.ProgressFrame) []models.ProgressFrame {
	t.Helper()
	var frames []models.ProgressFrame
	deadline := time.After(5 * time.Second)
	for {
		select {
		case frame := <-ch:
			frames = append(frames, frame)
			switch frame.Status {
			case models.StatusDone, models.StatusFailed, models.StatusCanceled:
				return frames
			}
		case <-deadline:
			t.Fatalf("no terminal frame after %d frames", len(frames))
		}
	}
}
