// Package auth supplies GitHub access tokens to codeql commands that ask for
// them on stdin.
package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"github.com/zjrosen/qlcli/internal/log"
)

// ErrNoCredentials is returned when no token source can produce a token.
var ErrNoCredentials = errors.New("no GitHub credentials available")

// Credentials provides GitHub access tokens.
type Credentials interface {
	// AccessToken returns a valid token, prompting the user if needed.
	AccessToken(ctx context.Context) (string, error)
	// ExistingAccessToken returns a token only if one is available without
	// prompting. It returns "" and no error when there is none.
	ExistingAccessToken(ctx context.Context) (string, error)
}

// TokenCredentials implements Credentials over an oauth2.TokenSource.
type TokenCredentials struct {
	source      oauth2.TokenSource
	interactive bool

	mu   sync.Mutex
	last string
}

// New wraps a non-interactive source. Tokens are reused until they expire.
func New(source oauth2.TokenSource) *TokenCredentials {
	if source == nil {
		return &TokenCredentials{}
	}
	return &TokenCredentials{source: oauth2.ReuseTokenSource(nil, source)}
}

// NewInteractive wraps a source that prompts the user. ExistingAccessToken
// never triggers it.
func NewInteractive(source oauth2.TokenSource) *TokenCredentials {
	return &TokenCredentials{source: oauth2.ReuseTokenSource(nil, source), interactive: true}
}

// FromEnv builds credentials from GITHUB_TOKEN, then GH_TOKEN. When neither
// is set and fallback is non-nil, the fallback source is used interactively.
func FromEnv(fallback oauth2.TokenSource) *TokenCredentials {
	for _, name := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if token := strings.TrimSpace(os.Getenv(name)); token != "" {
			log.Debug(log.CatAuth, "Using token from environment", "var", name)
			return New(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
		}
	}
	if fallback != nil {
		return NewInteractive(fallback)
	}
	return New(nil)
}

// AccessToken returns a valid token from the source.
func (c *TokenCredentials) AccessToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c == nil || c.source == nil {
		return "", ErrNoCredentials
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tok, err := c.source.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoCredentials, err)
	}
	if !tok.Valid() {
		return "", ErrNoCredentials
	}
	c.last = tok.AccessToken
	return tok.AccessToken, nil
}

// ExistingAccessToken returns the last token handed out, or for
// non-interactive sources, whatever the source produces.
func (c *TokenCredentials) ExistingAccessToken(ctx context.Context) (string, error) {
	if c == nil || c.source == nil {
		return "", nil
	}

	c.mu.Lock()
	last, interactive := c.last, c.interactive
	c.mu.Unlock()

	if last != "" || interactive {
		return last, nil
	}

	token, err := c.AccessToken(ctx)
	if errors.Is(err, ErrNoCredentials) {
		return "", nil
	}
	return token, err
}

// PromptSource reads a token from in after writing a prompt to out.
// It implements oauth2.TokenSource.
type PromptSource struct {
	in     *bufio.Reader
	out    io.Writer
	prompt string
}

// NewPromptSource creates a PromptSource.
func NewPromptSource(in io.Reader, out io.Writer) *PromptSource {
	return &PromptSource{
		in:     bufio.NewReader(in),
		out:    out,
		prompt: "GitHub token: ",
	}
}

// Token prompts once and returns the entered token.
func (p *PromptSource) Token() (*oauth2.Token, error) {
	if _, err := io.WriteString(p.out, p.prompt); err != nil {
		return nil, fmt.Errorf("writing prompt: %w", err)
	}
	line, err := p.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return nil, fmt.Errorf("reading token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return nil, errors.New("empty token")
	}
	return &oauth2.Token{AccessToken: token}, nil
}
