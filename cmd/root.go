package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/qlcli/internal/auth"
	"github.com/zjrosen/qlcli/internal/cliserver"
	"github.com/zjrosen/qlcli/internal/config"
	"github.com/zjrosen/qlcli/internal/distribution"
	"github.com/zjrosen/qlcli/internal/flags"
	"github.com/zjrosen/qlcli/internal/log"
	"github.com/zjrosen/qlcli/internal/paths"
	"github.com/zjrosen/qlcli/internal/tracing"
	"github.com/zjrosen/qlcli/internal/watcher"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config

	logFile    string
	verbose    bool
	executable string

	rt *runtime
)

var rootCmd = &cobra.Command{
	Use:   "qlcli",
	Short: "A command line client for the CodeQL cli-server",
	Long: `qlcli keeps a CodeQL "execute cli-server" worker alive and drives it
through a typed command facade: resolving queries and packs, decoding and
interpreting results, and running QL tests.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setupRuntime,
	PersistentPostRun: func(*cobra.Command, []string) { teardownRuntime() },
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .qlcli/config.yaml, then ~/.config/qlcli/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"append debug log to this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"echo log entries to stderr")
	rootCmd.PersistentFlags().StringVar(&executable, "codeql", "",
		"path to the codeql executable (overrides cli.executable_path)")

	_ = viper.BindPFlag("cli.executable_path", rootCmd.PersistentFlags().Lookup("codeql"))
}

func initConfig() {
	loaded, path, err := loadConfig(viper.GetViper(), cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	cfg = loaded
	configPath = path
}

// configPath is the file settings are saved to.
var configPath string

// loadConfig reads the config file into v. Lookup order when path is empty:
// .qlcli/config.yaml in the current directory, then ~/.config/qlcli/config.yaml.
// A default file is written to the user config dir when neither exists.
// It returns the defaults and an error when the file cannot be read.
func loadConfig(v *viper.Viper, path string) (config.Config, string, error) {
	defaults := config.Defaults()
	v.SetDefault("cli.number_threads", defaults.CLI.NumberThreads)
	v.SetDefault("cli.number_test_threads", defaults.CLI.NumberTestThreads)
	v.SetDefault("cli.max_paths", defaults.CLI.MaxPaths)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	v.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	resolved, exists := paths.ResolveConfigFile(path)
	if resolved != "" && !exists && path == "" {
		if err := config.WriteDefaultConfig(resolved); err != nil {
			log.Warn(log.CatConfig, "Continuing without a config file", "error", err)
		}
	}
	if resolved != "" {
		v.SetConfigFile(resolved)
	}

	var readErr error
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			readErr = fmt.Errorf("reading config: %w", err)
		}
	}

	var out config.Config
	if err := v.Unmarshal(&out); err != nil {
		return defaults, v.ConfigFileUsed(), fmt.Errorf("decoding config: %w", err)
	}
	if readErr != nil {
		return defaults, v.ConfigFileUsed(), readErr
	}
	return out, v.ConfigFileUsed(), nil
}

// runtime is everything a subcommand needs to talk to codeql.
type runtime struct {
	server   *cliserver.Server
	dist     *distribution.Provider
	registry *flags.Registry
	tracer   *tracing.Provider

	cancel  context.CancelFunc
	cleanup []func()
}

func setupRuntime(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var cleanup []func()
	if logFile != "" {
		closeLog, err := log.Init(logFile)
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		cleanup = append(cleanup, closeLog)
	} else if verbose {
		log.InitWriter(io.Discard, log.LevelDebug)
	}
	log.SetMinLevel(log.ParseLevel(cfg.Log.Level))

	ctx, cancel := context.WithCancel(context.Background())
	if verbose {
		tailLog(ctx, cmd.ErrOrStderr())
	}
	log.Info(log.CatCmd, "qlcli starting", "version", version, "command", cmd.CommandPath(), "config", configPath)

	provider, err := tracing.NewProvider(tracing.FromConfig(cfg.Tracing))
	if err != nil {
		cancel()
		return fmt.Errorf("initializing tracing: %w", err)
	}

	registry := flags.New(cfg.Flags)
	dist := distribution.New(cfg.CLI.ExecutablePath)
	server := cliserver.New(cliserver.Options{
		Distribution: dist,
		Credentials:  auth.FromEnv(auth.NewPromptSource(cmd.InOrStdin(), cmd.ErrOrStderr())),
		Context:      registry,
		Config:       cfg.CLI,
		ConfigPath:   configPath,
		Tracer:       provider.Tracer(),
	})

	rt = &runtime{
		server:   server,
		dist:     dist,
		registry: registry,
		tracer:   provider,
		cancel:   cancel,
		cleanup:  cleanup,
	}

	if verbose {
		tailCapabilities(ctx, registry, cmd.ErrOrStderr())
	}
	if registry.Enabled(flags.FlagWatchConfig) && configPath != "" {
		if err := watchConfig(ctx, rt, configPath); err != nil {
			log.Warn(log.CatConfig, "Not watching config file", "error", err)
		}
	}
	return nil
}

func teardownRuntime() {
	if rt == nil {
		return
	}
	rt.cancel()
	rt.server.Close()
	if err := rt.tracer.Shutdown(context.Background()); err != nil {
		log.Warn(log.CatCmd, "Flushing traces failed", "error", err)
	}
	for i := len(rt.cleanup) - 1; i >= 0; i-- {
		rt.cleanup[i]()
	}
	rt = nil
}

// tailLog echoes log entries to w until ctx is done.
func tailLog(ctx context.Context, w io.Writer) {
	listener := log.NewListener(ctx)
	if listener == nil {
		return
	}
	go func() {
		for {
			ev, ok := listener.Next(ctx)
			if !ok {
				return
			}
			fmt.Fprint(w, ev.Payload)
		}
	}()
}

// tailCapabilities reports capability flags to w as they are published.
func tailCapabilities(ctx context.Context, registry *flags.Registry, w io.Writer) {
	events := registry.Broker().Subscribe(ctx)
	go func() {
		for ev := range events {
			fmt.Fprintf(w, "capability %s=%t\n", ev.Payload.Key, ev.Payload.Value)
		}
	}()
}

// watchConfig reloads the config file on change and hands the new cli
// settings to the server, which restarts its worker.
func watchConfig(ctx context.Context, r *runtime, path string) error {
	w, err := watcher.New(watcher.DefaultConfig(path))
	if err != nil {
		return err
	}
	return w.Run(ctx, func() { reloadConfig(r, path) })
}

func reloadConfig(r *runtime, path string) {
	loaded, _, err := loadConfig(viper.New(), path)
	if err != nil {
		log.ErrorErr(log.CatConfig, "Reloading config failed", err, "path", path)
		return
	}
	if err := loaded.Validate(); err != nil {
		log.ErrorErr(log.CatConfig, "Ignoring invalid config", err, "path", path)
		return
	}
	if executable != "" {
		loaded.CLI.ExecutablePath = executable
	}
	// A new executable restarts the worker through the distribution listener.
	r.server.SetConfig(loaded.CLI)
	if !r.dist.SetExecutablePath(loaded.CLI.ExecutablePath) {
		r.server.UpdateConfig(loaded.CLI)
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
