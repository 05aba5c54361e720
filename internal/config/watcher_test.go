package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchPolicyFile_InitialReadAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy")
	if err := os.WriteFile(path, []byte("freeze\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchPolicyFile(ctx, path, func(policy string) {
			got <- policy
		})
	}()

	select {
	case policy := <-got:
		if policy != "freeze" {
			t.Errorf("expected initial freeze, got %q", policy)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for initial policy read")
	}

	if err := os.WriteFile(path, []byte("drop\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case policy := <-got:
			if policy == "drop" {
				cancel()
				if err := <-done; err != nil {
					t.Errorf("watcher returned error: %v", err)
				}
				return
			}
			// Editors and filesystems may surface intermediate writes.
		case <-deadline:
			t.Fatal("timed out waiting for policy reload")
		}
	}
}

func TestWatchPolicyFile_MissingDirectory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := WatchPolicyFile(ctx, "/nonexistent/dir/policy", func(string) {})
	if err == nil {
		t.Error("expected error for unwatchable directory")
	}
}

func TestReadPolicyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy")

	if _, ok := readPolicyFile(path); ok {
		t.Error("expected miss for absent file")
	}

	os.WriteFile(path, []byte("  drop \n"), 0o644)
	policy, ok := readPolicyFile(path)
	if !ok || policy != "drop" {
		t.Errorf("expected trimmed drop, got %q (%v)", policy, ok)
	}

	os.WriteFile(path, []byte("   \n"), 0o644)
	if _, ok := readPolicyFile(path); ok {
		t.Error("expected blank file to be ignored")
	}
}
