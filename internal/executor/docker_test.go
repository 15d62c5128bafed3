package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/ashureev/shsh-autopilot/internal/container"
)

type fakeSandboxManager struct {
	ensured   []string
	execs     []string
	workDirs  []string
	out       container.ExecOutput
	ensureErr error
	execErr   error
}

func (f *fakeSandboxManager) EnsureSandbox(_ context.Context, name string) (string, error) {
	f.ensured = append(f.ensured, name)
	if f.ensureErr != nil {
		return "", f.ensureErr
	}
	return "cid-" + name, nil
}

func (f *fakeSandboxManager) Exec(_ context.Context, _ string, command, workDir string) (container.ExecOutput, error) {
	f.execs = append(f.execs, command)
	f.workDirs = append(f.workDirs, workDir)
	return f.out, f.execErr
}

func (f *fakeSandboxManager) StopSandbox(context.Context, string) error     { return nil }
func (f *fakeSandboxManager) EnsureNetwork(context.Context) (string, error) { return "", nil }
func (f *fakeSandboxManager) Close() error                                  { return nil }

func TestDockerExecutorRunsInSandboxForSecret(t *testing.T) {
	mgr := &fakeSandboxManager{out: container.ExecOutput{Stdout: "ok\n", Stderr: "warn", ExitCode: 0}}
	tracker := container.NewTracker()
	exec := NewDockerExecutor(mgr, tracker, nil)

	res, err := exec.Exec(context.Background(), "apt-get update", "/home", "s1")
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if res.Stdout != "ok\n" || res.Stderr != "warn" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(mgr.ensured) != 1 || mgr.ensured[0] != container.SandboxName("s1") {
		t.Fatalf("unexpected sandbox %v", mgr.ensured)
	}
	if mgr.workDirs[0] != "/home" {
		t.Fatalf("unexpected work dir %q", mgr.workDirs[0])
	}
	if tracker.Len() != 1 {
		t.Fatalf("expected sandbox to be tracked, got %d", tracker.Len())
	}
}

func TestDockerExecutorErrorsAreTransport(t *testing.T) {
	tests := []struct {
		name string
		mgr  *fakeSandboxManager
	}{
		{"ensure", &fakeSandboxManager{ensureErr: errors.New("daemon down")}},
		{"exec", &fakeSandboxManager{execErr: errors.New("attach failed")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDockerExecutor(tt.mgr, nil, nil).Exec(context.Background(), "ls", "/", "s")
			if !IsTransport(err) {
				t.Fatalf("expected transport error, got %v", err)
			}
		})
	}
}

func TestDockerExecutorRejectsEmptyCommand(t *testing.T) {
	mgr := &fakeSandboxManager{}
	_, err := NewDockerExecutor(mgr, nil, nil).Exec(context.Background(), "", "/", "s")
	if !errors.Is(err, ErrEmptyCommand) {
		t.Fatalf("expected ErrEmptyCommand, got %v", err)
	}
	if len(mgr.ensured) != 0 {
		t.Fatal("sandbox must not be created for an empty command")
	}
}
