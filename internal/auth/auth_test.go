package auth

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type countingSource struct {
	calls atomic.Int32
	tok   *oauth2.Token
	err   error
}

func (s *countingSource) Token() (*oauth2.Token, error) {
	s.calls.Add(1)
	return s.tok, s.err
}

func TestTokenCredentials_AccessToken_Reused(t *testing.T) {
	src := &countingSource{tok: &oauth2.Token{AccessToken: "ghp_abc", Expiry: time.Now().Add(time.Hour)}}
	creds := New(src)

	for range 3 {
		token, err := creds.AccessToken(context.Background())
		require.NoError(t, err)
		require.Equal(t, "ghp_abc", token)
	}
	require.Equal(t, int32(1), src.calls.Load())
}

func TestTokenCredentials_AccessToken_SourceError(t *testing.T) {
	creds := New(&countingSource{err: errors.New("keychain locked")})

	_, err := creds.AccessToken(context.Background())
	require.ErrorIs(t, err, ErrNoCredentials)
	require.ErrorContains(t, err, "keychain locked")
}

func TestTokenCredentials_AccessToken_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "x"})).AccessToken(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestTokenCredentials_NilSource(t *testing.T) {
	creds := New(nil)

	_, err := creds.AccessToken(context.Background())
	require.ErrorIs(t, err, ErrNoCredentials)

	token, err := creds.ExistingAccessToken(context.Background())
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestTokenCredentials_ExistingAccessToken_NonInteractive(t *testing.T) {
	creds := New(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "ghp_static"}))

	token, err := creds.ExistingAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ghp_static", token)
}

func TestTokenCredentials_ExistingAccessToken_InteractiveDoesNotPrompt(t *testing.T) {
	src := &countingSource{tok: &oauth2.Token{AccessToken: "typed"}}
	creds := NewInteractive(src)

	token, err := creds.ExistingAccessToken(context.Background())
	require.NoError(t, err)
	require.Empty(t, token)
	require.Zero(t, src.calls.Load())

	_, err = creds.AccessToken(context.Background())
	require.NoError(t, err)

	token, err = creds.ExistingAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "typed", token)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "ghp_from_gh")

	token, err := FromEnv(nil).AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ghp_from_gh", token)

	t.Setenv("GITHUB_TOKEN", "ghp_from_github")
	token, err = FromEnv(nil).AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ghp_from_github", token)
}

func TestFromEnv_FallsBackToPrompt(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "")
	var out bytes.Buffer

	creds := FromEnv(NewPromptSource(strings.NewReader("ghp_typed\n"), &out))

	existing, err := creds.ExistingAccessToken(context.Background())
	require.NoError(t, err)
	require.Empty(t, existing)

	token, err := creds.AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ghp_typed", token)
	require.Equal(t, "GitHub token: ", out.String())
}

func TestPromptSource_Errors(t *testing.T) {
	_, err := NewPromptSource(strings.NewReader(""), &bytes.Buffer{}).Token()
	require.Error(t, err)

	_, err = NewPromptSource(strings.NewReader("   \n"), &bytes.Buffer{}).Token()
	require.ErrorContains(t, err, "empty token")

	tok, err := NewPromptSource(strings.NewReader("no-newline"), &bytes.Buffer{}).Token()
	require.NoError(t, err)
	require.Equal(t, "no-newline", tok.AccessToken)
}
