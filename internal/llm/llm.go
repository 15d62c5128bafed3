// Package llm wraps the language models that turn a goal into shell commands.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ashureev/shsh-autopilot/internal/config"
)

// ErrEmptyResponse is returned when the model answers without any choice.
var ErrEmptyResponse = errors.New("model returned no choices")

// ErrRetryable marks provider failures that may succeed later (rate limits).
var ErrRetryable = errors.New("retryable")

// Client performs one synchronous completion authenticated by secret.
type Client interface {
	Complete(ctx context.Context, system, user, secret string) (string, error)
}

// APIError is a non-success reply from the model provider.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("model api error: status %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("model api error: status %d: %s", e.StatusCode, e.Message)
}

// Is makes rate-limit replies match ErrRetryable.
func (e *APIError) Is(target error) bool {
	return target == ErrRetryable && e.StatusCode == http.StatusTooManyRequests
}

// New builds the client for the configured provider.
func New(cfg config.ModelConfig, httpClient *http.Client, logger *slog.Logger) (Client, error) {
	switch cfg.Provider {
	case config.ModelProviderGroq, config.ModelProviderOpenAI:
		return NewOpenAICompatible(cfg.BaseURL, cfg.Name, httpClient, logger), nil
	case config.ModelProviderGemini:
		return NewGemini(cfg.Name, cfg.BaseURL, httpClient, logger), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}
