package container

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeManager struct {
	mu      sync.Mutex
	stopped []string
}

func (f *fakeManager) EnsureSandbox(context.Context, string) (string, error) { return "", nil }
func (f *fakeManager) Exec(context.Context, string, string, string) (ExecOutput, error) {
	return ExecOutput{}, nil
}
func (f *fakeManager) EnsureNetwork(context.Context) (string, error) { return "", nil }
func (f *fakeManager) Close() error                                  { return nil }

func (f *fakeManager) StopSandbox(_ context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, containerID)
	return nil
}

func TestSandboxNameIsStableAndOpaque(t *testing.T) {
	a := SandboxName("secret-a")
	if a != SandboxName("secret-a") {
		t.Fatal("expected stable name for the same secret")
	}
	if a == SandboxName("secret-b") {
		t.Fatal("expected different names for different secrets")
	}
	if !strings.HasPrefix(a, sandboxNamePrefix) {
		t.Fatalf("expected prefix %q, got %q", sandboxNamePrefix, a)
	}
	if len(a) != len(sandboxNamePrefix)+12 {
		t.Fatalf("unexpected name length %d", len(a))
	}
	if strings.Contains(a, "secret") {
		t.Fatal("name must not leak the secret")
	}
}

func TestCleanupIdleSandboxes(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tracker := NewTracker()
	tracker.now = func() time.Time { return now }

	tracker.Touch("old", "c-old")
	now = now.Add(2 * time.Hour)
	tracker.Touch("fresh", "c-fresh")

	mgr := &fakeManager{}
	var cleaned []string
	n := cleanupIdleSandboxes(context.Background(), tracker, mgr, time.Hour, func(name string) {
		cleaned = append(cleaned, name)
	})

	if n != 1 {
		t.Fatalf("expected 1 sandbox cleaned, got %d", n)
	}
	if len(mgr.stopped) != 1 || mgr.stopped[0] != "c-old" {
		t.Fatalf("unexpected stopped containers %v", mgr.stopped)
	}
	if len(cleaned) != 1 || cleaned[0] != "old" {
		t.Fatalf("unexpected cleanup callbacks %v", cleaned)
	}
	if tracker.Len() != 1 {
		t.Fatalf("expected fresh sandbox to remain tracked, got %d", tracker.Len())
	}
}

func TestCleanupIdleSandboxesNothingExpired(t *testing.T) {
	tracker := NewTracker()
	tracker.Touch("a", "c-a")

	mgr := &fakeManager{}
	if n := cleanupIdleSandboxes(context.Background(), tracker, mgr, time.Hour, nil); n != 0 {
		t.Fatalf("expected nothing cleaned, got %d", n)
	}
	if len(mgr.stopped) != 0 {
		t.Fatalf("expected no stops, got %v", mgr.stopped)
	}
}
