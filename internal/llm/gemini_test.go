package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction"`
}

func TestGeminiComplete(t *testing.T) {
	var got geminiRequest
	var apiKey, path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("x-goog-api-key")
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"  apt-get update\napt-get install -y curl\n"}]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini("gemini-2.5-flash", srv.URL, srv.Client(), nil)
	out, err := g.Complete(context.Background(), "sys", "usr", "user-key")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if out != "apt-get update\napt-get install -y curl" {
		t.Errorf("unexpected output %q", out)
	}
	if apiKey != "user-key" {
		t.Errorf("expected per-user api key, got %q", apiKey)
	}
	if !strings.Contains(path, "gemini-2.5-flash") || !strings.HasSuffix(path, ":generateContent") {
		t.Errorf("unexpected path %q", path)
	}
	if len(got.Contents) != 1 || len(got.Contents[0].Parts) != 1 || got.Contents[0].Parts[0].Text != "usr" {
		t.Errorf("unexpected contents %+v", got.Contents)
	}
	if got.SystemInstruction == nil || len(got.SystemInstruction.Parts) != 1 || got.SystemInstruction.Parts[0].Text != "sys" {
		t.Errorf("unexpected system instruction %+v", got.SystemInstruction)
	}
}

func TestGeminiAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	_, err := NewGemini("gemini-2.5-flash", srv.URL, srv.Client(), nil).Complete(context.Background(), "sys", "usr", "k")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Message != "quota exceeded" || apiErr.Type != "RESOURCE_EXHAUSTED" {
		t.Errorf("unexpected api error %+v", apiErr)
	}
	if !errors.Is(err, ErrRetryable) {
		t.Error("expected 429 to be retryable")
	}
}

func TestGeminiNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	_, err := NewGemini("gemini-2.5-flash", srv.URL, srv.Client(), nil).Complete(context.Background(), "sys", "usr", "k")
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}
