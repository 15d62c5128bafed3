package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Gemini completes prompts through the Gemini API. The client is built per
// call because each user brings their own API key.
type Gemini struct {
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Client = (*Gemini)(nil)

// NewGemini creates a Gemini-backed client. An empty baseURL uses the
// public Gemini API endpoint.
func NewGemini(model, baseURL string, httpClient *http.Client, logger *slog.Logger) *Gemini {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{model: model, baseURL: baseURL, httpClient: httpClient, logger: logger}
}

// Complete sends the prompts and returns the trimmed text reply.
func (g *Gemini) Complete(ctx context.Context, system, user, secret string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     secret,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: g.baseURL,
		},
	})
	if err != nil {
		return "", fmt.Errorf("create gemini client: %w", err)
	}

	g.logger.DebugContext(ctx, "Requesting completion", "model", g.model)

	resp, err := client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(user, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		},
	)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &APIError{StatusCode: apiErr.Code, Type: apiErr.Status, Message: apiErr.Message}
		}
		var apiErrPtr *genai.APIError
		if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
			return "", &APIError{StatusCode: apiErrPtr.Code, Type: apiErrPtr.Status, Message: apiErrPtr.Message}
		}
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	return strings.TrimSpace(resp.Text()), nil
}
