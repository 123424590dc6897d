package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tellatale/engine/internal/bus"
	"github.com/tellatale/engine/internal/store"
	"github.com/tellatale/engine/pkg/models"
)

type brokerEnv struct {
	store  *store.MemoryStore
	bus    *bus.MemoryBus
	server *httptest.Server
}

func newBrokerEnv(t *testing.T) *brokerEnv {
	t.Helper()
	st := store.NewMemoryStore()
	b := bus.NewMemoryBus()

	r := chi.NewRouter()
	r.Get("/ws/ai/stories/{projectID}", NewBroker(st, b).ServeStory)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &brokerEnv{store: st, bus: b, server: server}
}

// seedToken stores a bearer token for a user and returns the raw token.
func (e *brokerEnv) seedToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	raw := "tok_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	require.NoError(t, err)
	e.store.PutToken(&models.AuthToken{
		ID:          uuid.New(),
		UserID:      userID,
		TokenHash:   string(hash),
		TokenPrefix: raw[:8],
	})
	return raw
}

func (e *brokerEnv) seedRunningProject(t *testing.T, userID uuid.UUID) *models.Project {
	t.Helper()
	proj := &models.Project{
		ID:       uuid.New(),
		UserID:   userID,
		HeroName: "Mila",
		Theme:    "forest",
		Status:   models.StatusRunning,
		Progress: 5,
	}
	require.NoError(t, e.store.CreateProject(context.Background(), proj))
	return proj
}

func (e *brokerEnv) dial(t *testing.T, projectID uuid.UUID, token string) (*websocket.Conn, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") +
		"/ws/ai/stories/" + projectID.String() + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	return conn, err
}

func readFrame(t *testing.T, conn *websocket.Conn) (models.ProgressFrame, error) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame models.ProgressFrame
	err := conn.ReadJSON(&frame)
	return frame, err
}

func TestServeStory_StreamsFrames(t *testing.T) {
	env := newBrokerEnv(t)
	userID := uuid.New()
	token := env.seedToken(t, userID)
	proj := env.seedRunningProject(t, userID)

	conn, err := env.dial(t, proj.ID, token)
	require.NoError(t, err)
	defer conn.Close()

	// Snapshot of the record arrives first.
	snapshot, err := readFrame(t, conn)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, snapshot.Status)
	require.NotNil(t, snapshot.Progress)
	assert.Equal(t, 5, *snapshot.Progress)

	// Client chatter must not disturb the stream.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello?")))

	// Published frames are forwarded in order; a slight delay lets the
	// subscription settle.
	time.Sleep(50 * time.Millisecond)
	env.bus.Publish(context.Background(), proj.ID, models.ProgressOnlyFrame(30, "working"))
	env.bus.Publish(context.Background(), proj.ID, models.DoneFrame("ready"))

	frame, err := readFrame(t, conn)
	require.NoError(t, err)
	require.NotNil(t, frame.Progress)
	assert.Equal(t, 30, *frame.Progress)

	frame, err = readFrame(t, conn)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, frame.Status)

	// The broker closes normally after a terminal frame.
	_, err = readFrame(t, conn)
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestServeStory_InvalidTokenCloses4001(t *testing.T) {
	env := newBrokerEnv(t)
	userID := uuid.New()
	env.seedToken(t, userID)
	proj := env.seedRunningProject(t, userID)

	conn, err := env.dial(t, proj.ID, "tok_wrongwrongwrong")
	require.NoError(t, err)
	defer conn.Close()

	_, err = readFrame(t, conn)
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, CloseUnauthorized), "got %v", err)
}

func TestServeStory_ForeignProjectCloses4001(t *testing.T) {
	env := newBrokerEnv(t)
	owner := uuid.New()
	intruder := uuid.New()
	intruderToken := env.seedToken(t, intruder)
	proj := env.seedRunningProject(t, owner)

	conn, err := env.dial(t, proj.ID, intruderToken)
	require.NoError(t, err)
	defer conn.Close()

	_, err = readFrame(t, conn)
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, CloseUnauthorized), "got %v", err)
}

func TestServeStory_TerminalProjectGetsSnapshotThenClose(t *testing.T) {
	env := newBrokerEnv(t)
	userID := uuid.New()
	token := env.seedToken(t, userID)
	proj := env.seedRunningProject(t, userID)
	_, _, err := env.store.UpdateProject(context.Background(), proj.ID,
		store.WithStatus(models.StatusDone), store.WithProgress(100))
	require.NoError(t, err)

	conn, err := env.dial(t, proj.ID, token)
	require.NoError(t, err)
	defer conn.Close()

	frame, err := readFrame(t, conn)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, frame.Status)

	_, err = readFrame(t, conn)
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}
