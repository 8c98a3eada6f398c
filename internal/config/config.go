// Package config provides configuration types and defaults for qlcli.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zjrosen/qlcli/internal/log"
	"github.com/zjrosen/qlcli/internal/paths"
)

// Config holds all configuration options for qlcli.
type Config struct {
	CLI     CLIConfig       `mapstructure:"cli"`
	Tracing TracingConfig   `mapstructure:"tracing"`
	Log     LogConfig       `mapstructure:"log"`
	Flags   map[string]bool `mapstructure:"flags"`
}

// CLIConfig holds settings passed through to the codeql executable.
type CLIConfig struct {
	// ExecutablePath overrides PATH lookup of the codeql binary.
	ExecutablePath string `mapstructure:"executable_path"`

	// NumberThreads is passed as --threads to interpret commands. 0 lets codeql decide.
	NumberThreads int `mapstructure:"number_threads"`

	// NumberTestThreads is passed as --threads to test runs. 0 lets codeql decide.
	NumberTestThreads int `mapstructure:"number_test_threads"`

	// MaxPaths caps path explanations per alert when interpreting results.
	MaxPaths int `mapstructure:"max_paths"`

	// QueryMemoryMB is passed as --ram to resolve ram. 0 omits the flag.
	QueryMemoryMB int `mapstructure:"query_memory_mb"`

	// AdditionalTestArguments are appended to every test run.
	AdditionalTestArguments []string `mapstructure:"additional_test_arguments"`

	// UseExtensionPacks enables model packs in the workspace.
	UseExtensionPacks bool `mapstructure:"use_extension_packs"`
}

// LogConfig holds debug log settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `mapstructure:"level"`
}

// TracingConfig holds distributed tracing configuration for cli commands.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/qlcli/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate"`
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/qlcli/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	return paths.TracesFile()
}

// ValidateCLI checks the cli section for errors.
func ValidateCLI(cli CLIConfig) error {
	if cli.NumberThreads < 0 {
		return fmt.Errorf("cli.number_threads must not be negative, got %d", cli.NumberThreads)
	}
	if cli.NumberTestThreads < 0 {
		return fmt.Errorf("cli.number_test_threads must not be negative, got %d", cli.NumberTestThreads)
	}
	if cli.MaxPaths < 0 {
		return fmt.Errorf("cli.max_paths must not be negative, got %d", cli.MaxPaths)
	}
	if cli.QueryMemoryMB < 0 {
		return fmt.Errorf("cli.query_memory_mb must not be negative, got %d", cli.QueryMemoryMB)
	}
	for i, arg := range cli.AdditionalTestArguments {
		if strings.TrimSpace(arg) == "" {
			return fmt.Errorf("cli.additional_test_arguments[%d] is empty", i)
		}
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := ValidateCLI(c.CLI); err != nil {
		return err
	}
	return ValidateTracing(c.Tracing)
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		CLI: CLIConfig{
			NumberThreads:     1,
			NumberTestThreads: 1,
			MaxPaths:          4,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from config dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# qlcli configuration

# Settings for the codeql executable
cli:
  # executable_path: /opt/codeql/codeql  # Default: codeql on PATH (or $CODEQL_PATH)
  number_threads: 1         # --threads for bqrs interpret (0 = codeql default)
  number_test_threads: 1    # --threads for test run (0 = codeql default)
  max_paths: 4              # --max-paths for path-problem results
  # query_memory_mb: 4096   # --ram for resolve ram (omitted when 0)
  # additional_test_arguments:
  #   - --check-undefined-labels
  use_extension_packs: false

# Debug log (written with --log-file, or to stderr with --verbose)
log:
  level: info  # debug, info, warn, error

# Feature flags
# flags:
#   watch-config: true   # restart the cli-server when this file changes
#   stream-stderr: true  # echo codeql stderr during test runs

# Distributed tracing of cli-server commands
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/qlcli/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
