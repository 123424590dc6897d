// Package api assembles the HTTP surface: health plus the progress
// websocket. Project CRUD lives in the platform's separate API service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/tellatale/engine/internal/api/middleware"
	"github.com/tellatale/engine/internal/api/response"
)

// Dependencies holds the handlers the router mounts.
type Dependencies struct {
	HealthHandler http.HandlerFunc
	StoryStream   http.HandlerFunc
}

// NewRouter builds the Chi router with the middleware stack and routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Get("/ws/ai/stories/{projectID}", orNotImplemented(deps.StoryStream))

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
