package distribution

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func noLookPath(string) (string, error) { return "", errors.New("not on PATH") }

func versionRunner(out string, calls *atomic.Int32) Option {
	return WithVersionRunner(func(ctx context.Context, path string) (string, error) {
		if calls != nil {
			calls.Add(1)
		}
		return out, nil
	})
}

func TestCodeQLPathWithoutVersionCheck_Precedence(t *testing.T) {
	t.Setenv(EnvExecutablePath, "")
	onPath := WithLookPath(func(string) (string, error) { return "/usr/bin/codeql", nil })

	path, err := New("", onPath).CodeQLPathWithoutVersionCheck(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/usr/bin/codeql", path)

	path, err = New("/opt/codeql/codeql", onPath).CodeQLPathWithoutVersionCheck(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/opt/codeql/codeql", path)

	t.Setenv(EnvExecutablePath, "/env/codeql")
	path, err = New("/opt/codeql/codeql", onPath).CodeQLPathWithoutVersionCheck(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/env/codeql", path)
}

func TestCodeQLPathWithoutVersionCheck_NotFound(t *testing.T) {
	t.Setenv(EnvExecutablePath, "")

	_, err := New("", WithLookPath(noLookPath)).CodeQLPathWithoutVersionCheck(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDistribution_Classification(t *testing.T) {
	t.Setenv(EnvExecutablePath, "")
	tests := []struct {
		out  string
		want Kind
	}{
		{out: "2.15.1\n", want: KindCompatible},
		{out: "2.11.6", want: KindCompatible},
		{out: "2.11.5\n", want: KindIncompatible},
	}
	for _, tt := range tests {
		t.Run(tt.out, func(t *testing.T) {
			d, err := New("/opt/codeql", versionRunner(tt.out, nil)).Distribution(context.Background())
			require.NoError(t, err)
			require.Equal(t, tt.want, d.Kind)
			require.Equal(t, "/opt/codeql", d.Path)
			require.NotNil(t, d.Version)
		})
	}
}

func TestDistribution_NotFound(t *testing.T) {
	t.Setenv(EnvExecutablePath, "")

	d, err := New("", WithLookPath(noLookPath)).Distribution(context.Background())
	require.NoError(t, err)
	require.Equal(t, KindNotFound, d.Kind)
	require.Nil(t, d.Version)

	failing := WithVersionRunner(func(context.Context, string) (string, error) {
		return "", errors.New("exec format error")
	})
	d, err = New("/bad/codeql", failing).Distribution(context.Background())
	require.NoError(t, err)
	require.Equal(t, KindNotFound, d.Kind)
}

func TestDistribution_UnparseableVersion(t *testing.T) {
	t.Setenv(EnvExecutablePath, "")

	_, err := New("/opt/codeql", versionRunner("not a version", nil)).Distribution(context.Background())
	require.ErrorContains(t, err, "parsing codeql version")
}

func TestDistribution_CachedUntilNotifyChanged(t *testing.T) {
	t.Setenv(EnvExecutablePath, "")
	var calls atomic.Int32
	p := New("/opt/codeql", versionRunner("2.14.0", &calls))

	var notified atomic.Int32
	unsubscribe := p.OnDidChangeDistribution(func() { notified.Add(1) })

	for range 3 {
		_, err := p.Distribution(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), calls.Load())

	p.NotifyChanged()
	require.Equal(t, int32(1), notified.Load())

	_, err := p.Distribution(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())

	unsubscribe()
	p.NotifyChanged()
	require.Equal(t, int32(1), notified.Load())
}

func TestSetExecutablePath_NotifiesOnlyOnChange(t *testing.T) {
	p := New("/a")
	var notified atomic.Int32
	p.OnDidChangeDistribution(func() { notified.Add(1) })

	require.False(t, p.SetExecutablePath("/a"))
	require.Zero(t, notified.Load())

	require.True(t, p.SetExecutablePath("/b"))
	require.Equal(t, int32(1), notified.Load())
}

func TestKindString(t *testing.T) {
	require.Equal(t, "compatible", KindCompatible.String())
	require.Equal(t, "incompatible", KindIncompatible.String())
	require.Equal(t, "not found", KindNotFound.String())
}
