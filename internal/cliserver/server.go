package cliserver

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/Masterminds/semver/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/qlcli/internal/auth"
	"github.com/zjrosen/qlcli/internal/cachemanager"
	"github.com/zjrosen/qlcli/internal/config"
	"github.com/zjrosen/qlcli/internal/log"
)

const supportedLanguagesKey = "supported"

// Options configures a Server.
type Options struct {
	Distribution DistributionProvider
	// Credentials answers token prompts for pack commands. May be nil.
	Credentials auth.Credentials
	// Context receives capability flags. May be nil.
	Context ContextSetter
	Config  config.CLIConfig
	// ConfigPath is the file SetUseExtensionPacks writes to. When empty the
	// setting only changes in memory.
	ConfigPath string
	Tracer     trace.Tracer
	// CommandFactory overrides process creation. Defaults to exec.Command.
	CommandFactory CommandFactoryFunc
}

// Server is the typed client for the codeql command line.
type Server struct {
	channel *Channel
	queue   *Queue
	stream  *StreamRunner
	version *VersionResolver
	creds   auth.Credentials

	cfg        atomic.Pointer[config.CLIConfig]
	configPath string

	languageCache cachemanager.CacheManager[string, []string]
	languages     *cachemanager.ReadThroughCache[string, []string, struct{}]

	unsubscribe func()
	closeOnce   sync.Once
}

// New creates a Server. No process is started until the first command.
func New(opts Options) *Server {
	s := &Server{
		channel:    NewChannel(opts.Distribution, opts.CommandFactory),
		stream:     NewStreamRunner(opts.Distribution, opts.CommandFactory, opts.Tracer),
		version:    NewVersionResolver(opts.Distribution, opts.Context),
		creds:      opts.Credentials,
		configPath: opts.ConfigPath,
	}
	s.queue = NewQueue(s.channel, opts.Tracer)
	cfg := opts.Config
	s.cfg.Store(&cfg)

	s.languageCache = cachemanager.NewInMemoryCacheManager[string, []string]("supported-languages", cachemanager.NoExpiration, 0)
	s.languages = cachemanager.NewReadThroughCache[string, []string, struct{}](
		s.languageCache,
		func(ctx context.Context, _ struct{}) ([]string, error) {
			return s.loadSupportedLanguages(ctx)
		},
		false,
	)

	s.queue.OnRestart(s.version.Invalidate)
	s.queue.OnRestart(func() {
		if err := s.languages.Invalidate(context.Background()); err != nil {
			log.Warn(log.CatCache, "Failed to flush supported languages", "error", err)
		}
	})

	if opts.Distribution != nil {
		s.unsubscribe = opts.Distribution.OnDidChangeDistribution(func() {
			log.Info(log.CatDist, "Distribution changed, restarting cli-server")
			s.queue.RequestRestart()
		})
	}
	return s
}

// Config returns the current CLI settings.
func (s *Server) Config() config.CLIConfig {
	return *s.cfg.Load()
}

// UpdateConfig replaces the CLI settings and restarts the worker so it picks
// up the change.
func (s *Server) UpdateConfig(cfg config.CLIConfig) {
	s.SetConfig(cfg)
	log.Info(log.CatConfig, "Configuration changed, restarting cli-server")
	s.queue.RequestRestart()
}

// SetConfig replaces the CLI settings without restarting the worker. Used
// when a restart is already on its way, such as after a distribution change.
func (s *Server) SetConfig(cfg config.CLIConfig) {
	s.cfg.Store(&cfg)
}

// OnRestart registers fn to run after every worker restart.
func (s *Server) OnRestart(fn func()) {
	s.queue.OnRestart(fn)
}

// Restart stops the worker once the running command finishes, before any
// other queued command, and drops cached version data.
func (s *Server) Restart(ctx context.Context) error {
	return s.queue.Restart(ctx)
}

// Close stops the worker. Later commands fail with ErrServerClosed.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		s.channel.Close()
	})
}

// Version returns the codeql version, fetching it once per worker lifetime.
func (s *Server) Version(ctx context.Context) (*semver.Version, error) {
	return s.version.Version(ctx)
}

// AddVersionChangedListener registers fn for version changes.
func (s *Server) AddVersionChangedListener(fn VersionListener) {
	s.version.AddVersionChangedListener(fn)
}

// Constraints returns the version-gated feature predicates.
func (s *Server) Constraints() Constraints {
	return s.version.Constraints()
}

// RunOption adjusts a single command.
type RunOption func(*runOptions)

type runOptions struct {
	addFormat bool
	silent    bool
	onLine    LineHandler
}

// WithoutFormat leaves out "--format json" for commands that emit JSON by
// default or reject the flag.
func WithoutFormat() RunOption {
	return func(o *runOptions) { o.addFormat = false }
}

// Silent keeps the command out of the log.
func Silent(silent bool) RunOption {
	return func(o *runOptions) { o.silent = silent }
}

// WithLineHandler answers interactive prompts on stdout.
func WithLineHandler(h LineHandler) RunOption {
	return func(o *runOptions) { o.onLine = h }
}

func applyRunOptions(opts []RunOption) runOptions {
	o := runOptions{addFormat: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// RunCommand runs command on the worker and returns its raw output.
func (s *Server) RunCommand(ctx context.Context, command, args []string, description string, opts ...RunOption) (string, error) {
	o := applyRunOptions(opts)
	return s.queue.Submit(ctx, Command{
		Command:     command,
		Args:        args,
		Description: description,
		OnLine:      o.onLine,
		Silent:      o.silent,
	})
}

// RunJSON runs command and decodes its output into T. "--format json" is put
// before args, ahead of any positional arguments, unless WithoutFormat is
// given.
func RunJSON[T any](ctx context.Context, s *Server, command, args []string, description string, opts ...RunOption) (T, error) {
	var out T
	o := applyRunOptions(opts)
	if o.addFormat {
		args = append([]string{"--format", "json"}, args...)
	}
	raw, err := s.RunCommand(ctx, command, args, description, opts...)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("parsing output of %s failed: %w", description, err)
	}
	return out, nil
}

// RunJSONWithAuthentication is RunJSON for commands that accept
// "--github-auth-stdin". The flag is only passed when a token is already
// known, so a user who never signed in is not prompted. The worker's prompt
// is answered with a fresh token, or with the token known at the start if a
// fresh one cannot be had.
func RunJSONWithAuthentication[T any](ctx context.Context, s *Server, command, args []string, description string, opts ...RunOption) (T, error) {
	if s.creds == nil {
		return RunJSON[T](ctx, s, command, args, description, opts...)
	}
	token, err := s.creds.ExistingAccessToken(ctx)
	if err != nil {
		log.Debug(log.CatAuth, "No existing access token", "error", err)
		token = ""
	}
	if token != "" {
		args = append([]string{"--github-auth-stdin"}, args...)
	}
	opts = append(opts, WithLineHandler(AuthResponder(s.creds, token)))
	return RunJSON[T](ctx, s, command, args, description, opts...)
}

// RunStreaming runs command in its own process and decodes each record into
// T. See StreamRunner.Run for cancellation and error behaviour.
func RunStreaming[T any](ctx context.Context, s *Server, command, args []string, description string, logger LineLogger) iter.Seq2[T, error] {
	return DecodeEvents[T](s.stream.Run(ctx, command, args, description, logger), description)
}
