//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/shsh-autopilot/internal/config"
	"github.com/ashureev/shsh-autopilot/internal/domain"
	"github.com/ashureev/shsh-autopilot/internal/identity"
)

type stubRepo struct {
	users   map[string]*domain.User
	pingErr error
}

func (s *stubRepo) GetUser(_ context.Context, id string) (*domain.User, error) {
	return s.users[id], nil
}
func (s *stubRepo) CreateUser(context.Context, *domain.User) error { return nil }
func (s *stubRepo) Ping(context.Context) error                     { return s.pingErr }
func (s *stubRepo) Close() error                                   { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Loop:    config.LoopConfig{MaxIterations: 5},
		Bot:     config.BotConfig{MessageLimit: 2000},
		Model:   config.ModelConfig{Provider: config.ModelProviderGroq},
		Sandbox: config.SandboxConfig{Backend: config.SandboxBackendHTTP},
	}
}

func newRouter(repo *stubRepo) http.Handler {
	r := chi.NewRouter()
	NewHandler(repo, testConfig()).RegisterRoutes(r)
	return r
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantState  string
	}{
		{"healthy", nil, http.StatusOK, "healthy"},
		{"degraded", errors.New("database is closed"), http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newRouter(&stubRepo{pingErr: tt.pingErr}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			var body struct {
				Status string `json:"status"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantState {
				t.Fatalf("expected %q, got %q", tt.wantState, body.Status)
			}
		})
	}
}

func TestGetMe(t *testing.T) {
	repo := &stubRepo{users: map[string]*domain.User{
		"anon_known": {UserID: "anon_known", Credentials: domain.Credentials{ModelAPIKey: "a", SandboxAPIKey: "b"}},
	}}

	tests := []struct {
		userID        string
		wantOnboarded bool
	}{
		{"anon_known", true},
		{"anon_new", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req = req.WithContext(identity.WithIdentity(req.Context(), tt.userID, "anon-x", "default"))
		w := httptest.NewRecorder()
		newRouter(repo).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tt.userID, w.Code)
		}
		var body struct {
			UserID    string `json:"user_id"`
			Onboarded bool   `json:"onboarded"`
		}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.UserID != tt.userID || body.Onboarded != tt.wantOnboarded {
			t.Fatalf("unexpected body %+v", body)
		}
	}
}

func TestGetMeRequiresIdentity(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&stubRepo{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestGetConfig(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&stubRepo{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/config", nil))

	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["max_iterations"] != float64(5) || body["goal_command"] != "!goal" {
		t.Fatalf("unexpected config %v", body)
	}
}
