package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	// AuthHeader carries the per-user sandbox secret on every request.
	AuthHeader = "x-ssh-auth"

	maxResponseBytes = 32 << 20
	maxErrorSnippet  = 512
)

// HTTPExecutor runs commands through the sandbox HTTP API (POST {base}/exec).
type HTTPExecutor struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

var _ Executor = (*HTTPExecutor)(nil)

type execRequest struct {
	Cmd string `json:"cmd"`
	Pwd string `json:"pwd"`
}

// NewHTTPExecutor creates an executor for the sandbox API at baseURL.
func NewHTTPExecutor(baseURL string, client *http.Client, logger *slog.Logger) *HTTPExecutor {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPExecutor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// Exec sends one command and returns its captured output.
func (e *HTTPExecutor) Exec(ctx context.Context, command, workDir, secret string) (Result, error) {
	if strings.TrimSpace(command) == "" {
		return Result{}, ErrEmptyCommand
	}

	body, err := json.Marshal(execRequest{Cmd: command, Pwd: workDir})
	if err != nil {
		return Result{}, fmt.Errorf("encode exec request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/exec", bytes.NewReader(body))
	if err != nil {
		return Result{}, transportErr("build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(AuthHeader, secret)

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, transportErr("post /exec", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			e.logger.Debug("Failed to close exec response body", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, transportErr("read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, transportErr("post /exec",
			fmt.Errorf("bad status: %d, body: %s", resp.StatusCode, snippet(data)))
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, transportErr("decode response", err)
	}

	return result, nil
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorSnippet {
		return s[:maxErrorSnippet] + "..."
	}
	return s
}
