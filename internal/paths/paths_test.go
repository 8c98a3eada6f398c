package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	work := t.TempDir()
	t.Chdir(work)

	user := filepath.Join(home, ".config", "qlcli", "config.yaml")

	got, ok := ResolveConfigFile("")
	require.Equal(t, user, got)
	require.False(t, ok)

	require.NoError(t, os.MkdirAll(filepath.Dir(user), 0o755))
	require.NoError(t, os.WriteFile(user, nil, 0o600))
	got, ok = ResolveConfigFile("")
	require.Equal(t, user, got)
	require.True(t, ok)

	require.NoError(t, os.MkdirAll(filepath.Join(work, ".qlcli"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(work, LocalConfigFile), nil, 0o600))
	got, ok = ResolveConfigFile("")
	require.Equal(t, LocalConfigFile, got)
	require.True(t, ok)

	got, ok = ResolveConfigFile(filepath.Join(work, "missing.yaml"))
	require.Equal(t, filepath.Join(work, "missing.yaml"), got)
	require.False(t, ok)
}

func TestTracesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.Equal(t, filepath.Join(home, ".config", "qlcli", "traces", "traces.jsonl"), TracesFile())
}
