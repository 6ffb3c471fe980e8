// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is a named dependency probed by /ready
type Check struct {
	Name   string
	Pinger Pinger
}

// Handler handles the readiness endpoint
type Handler struct {
	checks  []Check
	timeout time.Duration
}

// NewHandler creates a handler probing checks with a per-request timeout
func NewHandler(timeout time.Duration, checks ...Check) *Handler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Handler{checks: checks, timeout: timeout}
}

// Ready returns the status of every dependency
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{}
	status := "ready"
	statusCode := http.StatusOK
	for _, c := range h.checks {
		if err := c.Pinger.Ping(ctx); err != nil {
			slog.Error("Readiness check failed", "check", c.Name, "error", err)
			checks[c.Name] = "unreachable"
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// Router returns the probe routes. /health answers as long as the process is up.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))
	r.Get("/ready", h.Ready)
	return r
}

// Server wraps the probe router in an http.Server
func Server(addr string, h *Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
