package container

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"
)

const (
	ttlWorkerInterval = 5 * time.Minute
	sandboxNamePrefix = "autopilot-sbx-"
)

// SandboxName derives a stable container name from a sandbox secret.
// The secret itself never appears in container metadata.
func SandboxName(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return sandboxNamePrefix + hex.EncodeToString(sum[:])[:12]
}

type sandboxEntry struct {
	containerID string
	lastUsed    time.Time
}

// Tracker records when each sandbox was last used.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]sandboxEntry
	now     func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[string]sandboxEntry),
		now:     time.Now,
	}
}

// Touch marks the sandbox as used now.
func (t *Tracker) Touch(name, containerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[name] = sandboxEntry{containerID: containerID, lastUsed: t.now()}
}

// Expired removes and returns the container IDs idle longer than ttl.
func (t *Tracker) Expired(ttl time.Duration) map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-ttl)
	expired := make(map[string]string)
	for name, e := range t.entries {
		if e.lastUsed.Before(cutoff) {
			expired[name] = e.containerID
			delete(t.entries, name)
		}
	}
	return expired
}

// Len returns the number of tracked sandboxes.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// CleanupCallback is called when a sandbox is removed by the TTL worker.
type CleanupCallback func(name string)

// StartTTLWorker runs a background goroutine that periodically stops
// sandboxes that have been idle longer than ttl.
func StartTTLWorker(ctx context.Context, tracker *Tracker, mgr Manager, ttl time.Duration, onCleanup CleanupCallback) {
	ticker := time.NewTicker(ttlWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", ttlWorkerInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				cleanupIdleSandboxes(ctx, tracker, mgr, ttl, onCleanup)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func cleanupIdleSandboxes(ctx context.Context, tracker *Tracker, mgr Manager, ttl time.Duration, onCleanup CleanupCallback) int {
	expired := tracker.Expired(ttl)
	if len(expired) == 0 {
		return 0
	}

	slog.Info("TTL worker found idle sandboxes", "count", len(expired))

	for name, containerID := range expired {
		if err := mgr.StopSandbox(ctx, containerID); err != nil {
			slog.Error("TTL worker failed to stop sandbox",
				"error", err,
				"container_id", containerID,
				"name", name)
		}
		if onCleanup != nil {
			onCleanup(name)
		}
	}

	slog.Info("TTL worker cleanup completed", "cleaned", len(expired))
	return len(expired)
}
