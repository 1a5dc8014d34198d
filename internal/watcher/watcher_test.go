package watcher_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/pipewatch/internal/config"
	"github.com/zjrosen/pipewatch/internal/watcher"
)

func startWatcher(t *testing.T, path string) <-chan struct{} {
	t.Helper()
	w, err := watcher.New(watcher.Config{Path: path, Debounce: 50 * time.Millisecond})
	require.NoError(t, err, "failed to create watcher")
	t.Cleanup(func() { _ = w.Stop() })

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")
	return onChange
}

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o600))
	onChange := startWatcher(t, path)

	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("a: %d\n", i)), 0o600))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-onChange:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification but got timeout")
	}

	select {
	case <-onChange:
		t.Fatal("unexpected second notification")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o600))
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o600))
	onChange := startWatcher(t, path)

	require.NoError(t, os.WriteFile(other, []byte("y"), 0o600))

	select {
	case <-onChange:
		t.Fatal("should not notify for unrelated files")
	case <-time.After(150 * time.Millisecond):
	}
}

// SaveStartOptions replaces the file through a temp file and rename; the
// watcher must still see it.
func TestWatcher_SeesAtomicReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.WriteDefaultConfig(path))
	onChange := startWatcher(t, path)

	require.NoError(t, config.SaveStartOptions(path, config.StartConfig{Count: 42}))

	select {
	case <-onChange:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification for atomic replace")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o600))

	w, err := watcher.New(watcher.DefaultConfig(path))
	require.NoError(t, err)
	_, err = w.Start()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		assert.NoError(t, w.Stop())
		assert.NoError(t, w.Stop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() timed out - possible deadlock")
	}
}

func TestWatcher_StartFailsForMissingDirectory(t *testing.T) {
	w, err := watcher.New(watcher.DefaultConfig(filepath.Join(t.TempDir(), "missing", "config.yaml")))
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	_, err = w.Start()

	require.ErrorContains(t, err, "watching directory")
}

func TestDefaultConfig(t *testing.T) {
	cfg := watcher.DefaultConfig("/etc/pipewatch/config.yaml")

	assert.Equal(t, "/etc/pipewatch/config.yaml", cfg.Path)
	assert.Equal(t, watcher.DefaultDebounce, cfg.Debounce)
}
