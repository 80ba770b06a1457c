package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestNewWatcherLoadsInitialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolweave.yaml")
	writeConfig(t, path, minimalYAML)

	w, err := NewWatcher(path, nil, WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if w.Current() == nil {
		t.Fatal("Current() returned nil after construction")
	}
	if len(w.Current().Upstream) != 1 {
		t.Errorf("Current().Upstream = %+v, want 1 entry", w.Current().Upstream)
	}
}

func TestNewWatcherRejectsInvalidInitialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolweave.yaml")
	writeConfig(t, path, "server:\n  log_level: verbose\n")

	if _, err := NewWatcher(path, nil); err == nil {
		t.Fatal("expected an error for an invalid initial config, got nil")
	}
}

func TestWatcherDetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolweave.yaml")
	writeConfig(t, path, minimalYAML)

	changed := make(chan struct{}, 1)
	var gotOld, gotNew *Config
	onChange := func(old, new *Config) {
		gotOld, gotNew = old, new
		changed <- struct{}{}
	}

	w, err := NewWatcher(path, onChange, WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// Ensure the mtime will differ from the initial load.
	time.Sleep(30 * time.Millisecond)
	writeConfig(t, path, minimalYAML+"\n  # a trailing comment to change content\n")

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not called within 2s of the file changing")
	}

	if gotOld == nil || gotNew == nil {
		t.Fatal("onChange received a nil config")
	}
	if w.Current() != gotNew {
		t.Error("Current() does not reflect the reloaded config")
	}
}

func TestWatcherIgnoresTouchWithoutContentChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolweave.yaml")
	writeConfig(t, path, minimalYAML)

	called := make(chan struct{}, 1)
	w, err := NewWatcher(path, func(_, _ *Config) { called <- struct{}{} }, WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	initial := w.Current()

	// Touch the file (new mtime) without changing its content.
	time.Sleep(30 * time.Millisecond)
	now := time.Now().Add(time.Second)
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	select {
	case <-called:
		t.Fatal("onChange was called for a content-identical touch")
	case <-time.After(150 * time.Millisecond):
	}

	if w.Current() != initial {
		t.Error("Current() pointer changed despite no content change")
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolweave.yaml")
	writeConfig(t, path, minimalYAML)

	w, err := NewWatcher(path, nil, WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Stop()
	w.Stop() // must not panic
}
