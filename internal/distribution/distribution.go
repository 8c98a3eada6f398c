// Package distribution locates the codeql executable and determines its version.
package distribution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/zjrosen/qlcli/internal/log"
)

// MinimumVersion is the oldest codeql release this client supports.
var MinimumVersion = semver.MustParse("2.11.6")

// EnvExecutablePath overrides every other way of locating codeql.
const EnvExecutablePath = "CODEQL_PATH"

// ErrNotFound is returned when no codeql executable can be located.
var ErrNotFound = errors.New("codeql executable not found")

// Kind classifies a located distribution.
type Kind int

const (
	KindNotFound Kind = iota
	KindCompatible
	KindIncompatible
)

func (k Kind) String() string {
	switch k {
	case KindCompatible:
		return "compatible"
	case KindIncompatible:
		return "incompatible"
	default:
		return "not found"
	}
}

// Distribution describes the codeql executable in use.
type Distribution struct {
	Kind    Kind
	Path    string
	Version *semver.Version
}

// Provider resolves the codeql executable and caches its version until the
// distribution changes.
type Provider struct {
	lookPath   func(file string) (string, error)
	runVersion func(ctx context.Context, path string) (string, error)

	mu             sync.Mutex
	executablePath string
	cached         *Distribution
	listeners      map[int]func()
	nextListener   int
}

// Option customizes a Provider.
type Option func(*Provider)

// WithLookPath replaces exec.LookPath.
func WithLookPath(fn func(file string) (string, error)) Option {
	return func(p *Provider) { p.lookPath = fn }
}

// WithVersionRunner replaces running "<codeql> version --format=terse".
func WithVersionRunner(fn func(ctx context.Context, path string) (string, error)) Option {
	return func(p *Provider) { p.runVersion = fn }
}

// New creates a Provider. executablePath is the configured cli.executable_path
// and may be empty.
func New(executablePath string, opts ...Option) *Provider {
	p := &Provider{
		lookPath:       exec.LookPath,
		runVersion:     runTerseVersion,
		executablePath: executablePath,
		listeners:      make(map[int]func()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CodeQLPathWithoutVersionCheck returns the executable path without running it.
func (p *Provider) CodeQLPathWithoutVersionCheck(_ context.Context) (string, error) {
	p.mu.Lock()
	configured := p.executablePath
	p.mu.Unlock()

	if env := strings.TrimSpace(os.Getenv(EnvExecutablePath)); env != "" {
		return env, nil
	}
	if configured != "" {
		return configured, nil
	}
	path, err := p.lookPath("codeql")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return path, nil
}

// Distribution locates codeql and classifies its version. A successful
// lookup is cached until NotifyChanged.
func (p *Provider) Distribution(ctx context.Context) (Distribution, error) {
	p.mu.Lock()
	if p.cached != nil {
		d := *p.cached
		p.mu.Unlock()
		return d, nil
	}
	p.mu.Unlock()

	path, err := p.CodeQLPathWithoutVersionCheck(ctx)
	if err != nil {
		log.Warn(log.CatDist, "No codeql distribution", "error", err)
		return Distribution{Kind: KindNotFound}, nil
	}

	out, err := p.runVersion(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return Distribution{}, ctx.Err()
		}
		log.Warn(log.CatDist, "codeql version failed", "path", path, "error", err)
		return Distribution{Kind: KindNotFound, Path: path}, nil
	}

	version, err := semver.NewVersion(strings.TrimSpace(out))
	if err != nil {
		return Distribution{}, fmt.Errorf("parsing codeql version %q: %w", strings.TrimSpace(out), err)
	}

	d := Distribution{Kind: KindCompatible, Path: path, Version: version}
	if version.LessThan(MinimumVersion) {
		d.Kind = KindIncompatible
		log.Warn(log.CatDist, "Unsupported codeql version", "version", version, "minimum", MinimumVersion)
	}

	p.mu.Lock()
	p.cached = &d
	p.mu.Unlock()

	log.Info(log.CatDist, "Found codeql", "path", path, "version", version, "kind", d.Kind)
	return d, nil
}

// SetExecutablePath changes the configured path, notifying listeners when it
// differs. It reports whether the path changed.
func (p *Provider) SetExecutablePath(path string) bool {
	p.mu.Lock()
	changed := p.executablePath != path
	p.executablePath = path
	p.mu.Unlock()

	if changed {
		p.NotifyChanged()
	}
	return changed
}

// OnDidChangeDistribution registers fn to run after every NotifyChanged.
// The returned func unregisters it.
func (p *Provider) OnDidChangeDistribution(fn func()) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextListener
	p.nextListener++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// NotifyChanged drops the cached distribution and calls every listener.
func (p *Provider) NotifyChanged() {
	p.mu.Lock()
	p.cached = nil
	listeners := make([]func(), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	log.Debug(log.CatDist, "Distribution changed", "listeners", len(listeners))
	for _, fn := range listeners {
		fn()
	}
}

func runTerseVersion(ctx context.Context, path string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "version", "--format=terse") //nolint:gosec // path is the resolved codeql executable
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}
