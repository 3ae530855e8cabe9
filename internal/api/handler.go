// Package api provides the HTTP handlers for the tutoring service:
// session lifecycle, the synchronous message fallback, uploads, and quiz
// answers.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mamounyosef/agentic-tutor/internal/config"
	"github.com/mamounyosef/agentic-tutor/internal/constructor"
	"github.com/mamounyosef/agentic-tutor/internal/session"
	"github.com/mamounyosef/agentic-tutor/internal/store"
	"github.com/mamounyosef/agentic-tutor/internal/tutor"
)

// Handler provides common handler state and utilities.
type Handler struct {
	mgr     *session.Manager
	repo    store.Repository
	cons    constructor.Deps
	tut     tutor.Deps
	limiter *RateLimiter
	cfg     *config.Config
	log     *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(mgr *session.Manager, repo store.Repository, cons constructor.Deps, tut tutor.Deps, cfg *config.Config, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		mgr:     mgr,
		repo:    repo,
		cons:    cons,
		tut:     tut,
		limiter: NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow),
		cfg:     cfg,
		log:     log,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
