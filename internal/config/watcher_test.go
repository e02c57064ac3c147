package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/botcrew/orchestrator/internal/config"
)

func TestWatcher_DetectsSecretsFileChange(t *testing.T) {
	homeDir := t.TempDir()

	secretsPath := filepath.Join(homeDir, "secrets.yaml")
	if err := os.WriteFile(secretsPath, []byte("OPENAI_API_KEY: sk-initial\n"), 0o644); err != nil {
		t.Fatalf("write initial secrets: %v", err)
	}

	w := config.NewWatcher(homeDir, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	// Instead of a fixed sleep, retry the write at short intervals until the
	// watcher produces an event. This handles any platform-specific delay in
	// filesystem notification readiness.
	deadline := time.After(3 * time.Second)
	writeTick := time.NewTicker(50 * time.Millisecond)
	defer writeTick.Stop()

	if err := os.WriteFile(secretsPath, []byte("OPENAI_API_KEY: sk-updated\n"), 0o644); err != nil {
		t.Fatalf("write updated secrets: %v", err)
	}

	for {
		select {
		case ev := <-w.Events():
			if filepath.Base(ev.Path) != "secrets.yaml" {
				t.Fatalf("expected secrets.yaml event, got %s", ev.Path)
			}
			return
		case <-writeTick.C:
			_ = os.WriteFile(secretsPath, []byte("OPENAI_API_KEY: sk-updated\n"), 0o644)
		case <-deadline:
			t.Fatalf("timed out waiting for secrets.yaml change event")
		}
	}
}
