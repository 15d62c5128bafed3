// Package api provides HTTP handlers for the autopilot web surface.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/shsh-autopilot/internal/bot"
	"github.com/ashureev/shsh-autopilot/internal/config"
	"github.com/ashureev/shsh-autopilot/internal/identity"
	"github.com/ashureev/shsh-autopilot/internal/store"
)

const healthCheckTimeout = 5 * time.Second

// Handler serves the JSON API.
type Handler struct {
	repo store.Repository
	cfg  *config.Config
}

// NewHandler creates a new Handler.
func NewHandler(repo store.Repository, cfg *config.Config) *Handler {
	return &Handler{repo: repo, cfg: cfg}
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

// RegisterRoutes mounts the API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/config", h.GetConfig)
	})
}

// GetMe returns the caller's identity and whether credentials are on file.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to look up user", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to look up user")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":   userID,
		"username":  identity.UsernameFromContext(r.Context()),
		"onboarded": user != nil && user.Credentials.Complete(),
	})
}

// GetConfig returns the settings the chat page needs.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"max_iterations":      h.cfg.Loop.MaxIterations,
		"message_limit":       h.cfg.Bot.MessageLimit,
		"sandbox_backend":     h.cfg.Sandbox.Backend,
		"model_provider":      h.cfg.Model.Provider,
		"goal_command":        bot.GoalCommand,
		"onboarding_template": bot.WelcomeMessage,
	})
}

// Health returns the health status of the API and its dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	JSON(w, statusCode, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}
