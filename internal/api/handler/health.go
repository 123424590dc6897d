// Package handler holds the HTTP handlers for the engine's small surface.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/tellatale/engine/internal/api/response"
)

// Pinger is any backing service that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthTimeout = 3 * time.Second

type componentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthBody struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

// Health reports connectivity of the named backing services. Any failing
// component degrades the overall status and the response code.
func Health(components map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		body := healthBody{
			Status:     "ok",
			Components: make(map[string]componentStatus, len(components)),
		}
		for name, p := range components {
			if err := p.Ping(ctx); err != nil {
				body.Status = "degraded"
				body.Components[name] = componentStatus{Status: "down", Error: err.Error()}
				continue
			}
			body.Components[name] = componentStatus{Status: "ok"}
		}

		if body.Status != "ok" {
			response.Status(w, http.StatusServiceUnavailable, body)
			return
		}
		response.JSON(w, body)
	}
}
