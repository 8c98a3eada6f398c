package watcher_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/qlcli/internal/config"
	"github.com/zjrosen/qlcli/internal/watcher"
)

func newWatcher(t *testing.T, path string) *watcher.Watcher {
	t.Helper()
	w, err := watcher.New(watcher.Config{Path: path, DebounceDur: 50 * time.Millisecond})
	require.NoError(t, err)
	return w
}

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cli: {}\n"), 0o600))

	w := newWatcher(t, path)
	defer func() { _ = w.Stop() }()
	onChange, err := w.Start()
	require.NoError(t, err)

	for i := range 10 {
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("cli:\n  max_paths: %d\n", i)), 0o600))
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
	require.NoError(t, os.WriteFile(path, []byte("cli: {}\n"), 0o600))

	w := newWatcher(t, path)
	defer func() { _ = w.Stop() }()
	onChange, err := w.Start()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "traces.jsonl"), []byte("{}"), 0o600))

	select {
	case <-onChange:
		t.Fatal("unexpected notification for unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_DetectsAtomicSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(config.DefaultConfigTemplate()), 0o600))

	w := newWatcher(t, path)
	defer func() { _ = w.Stop() }()
	onChange, err := w.Start()
	require.NoError(t, err)

	require.NoError(t, config.SaveUseExtensionPacks(path, true))

	select {
	case <-onChange:
	case <-time.After(time.Second):
		t.Fatal("expected notification after rename-over save")
	}
}

func TestWatcher_Run_CallsHandlerUntilCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cli: {}\n"), 0o600))

	w := newWatcher(t, path)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	require.NoError(t, w.Run(ctx, func() { calls.Add(1) }))

	require.NoError(t, os.WriteFile(path, []byte("cli:\n  max_paths: 9\n"), 0o600))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWatcher_StartFailsForMissingDirectory(t *testing.T) {
	w := newWatcher(t, filepath.Join(t.TempDir(), "missing", "config.yaml"))
	defer func() { _ = w.Stop() }()

	_, err := w.Start()
	require.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := watcher.DefaultConfig("/home/user/.qlcli/config.yaml")
	require.Equal(t, "/home/user/.qlcli/config.yaml", cfg.Path)
	require.Equal(t, 500*time.Millisecond, cfg.DebounceDur)
}
