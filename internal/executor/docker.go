package executor

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/ashureev/shsh-autopilot/internal/container"
)

// DockerExecutor runs commands in local Docker sandboxes, one per secret.
type DockerExecutor struct {
	mgr     container.Manager
	tracker *container.Tracker
	logger  *slog.Logger

	// Serializes sandbox creation per name.
	locks sync.Map
}

var _ Executor = (*DockerExecutor)(nil)

// NewDockerExecutor creates an executor backed by mgr.
func NewDockerExecutor(mgr container.Manager, tracker *container.Tracker, logger *slog.Logger) *DockerExecutor {
	if tracker == nil {
		tracker = container.NewTracker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DockerExecutor{mgr: mgr, tracker: tracker, logger: logger}
}

// Exec ensures the sandbox for secret is running and runs command in it.
func (e *DockerExecutor) Exec(ctx context.Context, command, workDir, secret string) (Result, error) {
	if strings.TrimSpace(command) == "" {
		return Result{}, ErrEmptyCommand
	}

	name := container.SandboxName(secret)
	containerID, err := e.ensure(ctx, name)
	if err != nil {
		return Result{}, transportErr("ensure sandbox", err)
	}
	e.tracker.Touch(name, containerID)

	out, err := e.mgr.Exec(ctx, containerID, command, workDir)
	if err != nil {
		return Result{}, transportErr("exec", err)
	}
	e.logger.Debug("Sandbox command finished",
		"sandbox", name,
		"exit_code", out.ExitCode,
		"stdout_bytes", len(out.Stdout),
		"stderr_bytes", len(out.Stderr))

	return Result{Stdout: out.Stdout, Stderr: out.Stderr}, nil
}

func (e *DockerExecutor) ensure(ctx context.Context, name string) (string, error) {
	v, _ := e.locks.LoadOrStore(name, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	return e.mgr.EnsureSandbox(ctx, name)
}
