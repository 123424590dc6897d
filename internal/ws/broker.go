// Package ws streams per-project progress frames to websocket subscribers.
// Clients connect to /ws/ai/stories/{projectID}?token=... and receive JSON
// text frames; anything the client sends is ignored.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/tellatale/engine/internal/bus"
	"github.com/tellatale/engine/internal/store"
	"github.com/tellatale/engine/pkg/models"
)

// CloseUnauthorized is sent when the token is missing, invalid or does not
// own the requested project.
const CloseUnauthorized = 4001

// tokenPrefixLen is the indexed prefix used to narrow the bcrypt candidate
// set before comparing hashes.
const tokenPrefixLen = 8

const writeTimeout = 10 * time.Second

var errUnauthorized = errors.New("unauthorized")

// Broker upgrades subscriber connections and forwards bus frames.
type Broker struct {
	store    store.Store
	bus      bus.Bus
	upgrader websocket.Upgrader
}

func NewBroker(st store.Store, b bus.Bus) *Broker {
	return &Broker{
		store: st,
		bus:   b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The bearer token authenticates the subscriber; origin
			// checking adds nothing for non-cookie auth.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeStory handles one subscriber connection for one project.
func (b *Broker) ServeStory(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		http.Error(w, "invalid project id", http.StatusBadRequest)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()
	token, err := b.authenticate(ctx, r.URL.Query().Get("token"))
	if err != nil {
		b.closeWith(conn, CloseUnauthorized, "unauthorized")
		return
	}
	proj, err := b.store.GetProject(ctx, projectID)
	if err != nil || proj.UserID != token.UserID {
		// A missing project is indistinguishable from a foreign one.
		b.closeWith(conn, CloseUnauthorized, "unauthorized")
		return
	}

	frames, cancel, err := b.bus.Subscribe(ctx, projectID)
	if err != nil {
		slog.Error("subscribe progress channel", "project_id", projectID, "error", err)
		b.closeWith(conn, websocket.CloseInternalServerErr, "subscription failed")
		return
	}
	defer cancel()

	// The record is the status authority; the subscriber gets a snapshot
	// before any live frames.
	if err := b.writeFrame(conn, snapshotFrame(proj)); err != nil {
		return
	}
	if proj.Terminal() {
		b.closeWith(conn, websocket.CloseNormalClosure, "")
		return
	}

	// Drain inbound messages so pings are answered and disconnects noticed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-clientGone:
			return
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if err := b.writeFrame(conn, frame); err != nil {
				return
			}
			switch frame.Status {
			case models.StatusDone, models.StatusFailed, models.StatusCanceled:
				b.closeWith(conn, websocket.CloseNormalClosure, "")
				return
			}
		}
	}
}

// authenticate resolves a bearer token to its record. Tokens are stored as
// bcrypt hashes keyed by an 8-character prefix.
func (b *Broker) authenticate(ctx context.Context, token string) (*models.AuthToken, error) {
	if len(token) < tokenPrefixLen {
		return nil, errUnauthorized
	}
	candidates, err := b.store.GetTokensByPrefix(ctx, token[:tokenPrefixLen])
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(candidate.TokenHash), []byte(token)) == nil {
			if err := b.store.TouchToken(ctx, candidate.ID); err != nil {
				slog.Warn("touch auth token", "token_id", candidate.ID, "error", err)
			}
			return candidate, nil
		}
	}
	return nil, errUnauthorized
}

func (b *Broker) writeFrame(conn *websocket.Conn, frame models.ProgressFrame) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(frame)
}

func (b *Broker) closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeTimeout)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
}

func snapshotFrame(proj *models.Project) models.ProgressFrame {
	progress := proj.Progress
	return models.ProgressFrame{
		Status:   proj.Status,
		Progress: &progress,
		Error:    proj.ErrorMessage,
	}
}
