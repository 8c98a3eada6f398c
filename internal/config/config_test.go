package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaults_AreValid(t *testing.T) {
	cfg := Defaults()

	require.NoError(t, cfg.Validate())
	require.Equal(t, 1, cfg.CLI.NumberThreads)
	require.Equal(t, 4, cfg.CLI.MaxPaths)
	require.False(t, cfg.CLI.UseExtensionPacks)
	require.Equal(t, "file", cfg.Tracing.Exporter)
}

func TestValidateCLI(t *testing.T) {
	tests := []struct {
		name    string
		cli     CLIConfig
		wantErr string
	}{
		{name: "zero values", cli: CLIConfig{}},
		{name: "negative threads", cli: CLIConfig{NumberThreads: -1}, wantErr: "cli.number_threads"},
		{name: "negative test threads", cli: CLIConfig{NumberTestThreads: -2}, wantErr: "cli.number_test_threads"},
		{name: "negative max paths", cli: CLIConfig{MaxPaths: -1}, wantErr: "cli.max_paths"},
		{name: "negative ram", cli: CLIConfig{QueryMemoryMB: -1}, wantErr: "cli.query_memory_mb"},
		{name: "blank test arg", cli: CLIConfig{AdditionalTestArguments: []string{"--ok", " "}}, wantErr: "additional_test_arguments[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCLI(tt.cli)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateTracing(t *testing.T) {
	tests := []struct {
		name    string
		tracing TracingConfig
		wantErr string
	}{
		{name: "defaults", tracing: Defaults().Tracing},
		{name: "sample rate too high", tracing: TracingConfig{SampleRate: 1.5}, wantErr: "sample_rate"},
		{name: "unknown exporter", tracing: TracingConfig{Exporter: "zipkin"}, wantErr: "tracing.exporter"},
		{name: "file without path", tracing: TracingConfig{Enabled: true, Exporter: "file"}, wantErr: "file_path"},
		{name: "otlp without endpoint", tracing: TracingConfig{Enabled: true, Exporter: "otlp"}, wantErr: "otlp_endpoint"},
		{name: "disabled file without path", tracing: TracingConfig{Exporter: "file"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTracing(tt.tracing)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultConfigTemplate_LoadsWithViper(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(DefaultConfigTemplate())))

	cfg := Defaults()
	require.NoError(t, v.Unmarshal(&cfg))

	require.Equal(t, 1, cfg.CLI.NumberThreads)
	require.Equal(t, 1, cfg.CLI.NumberTestThreads)
	require.Equal(t, 4, cfg.CLI.MaxPaths)
	require.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestWriteDefaultConfig_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".qlcli", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfigTemplate(), string(data))
}

func TestDefaultTracesFilePath(t *testing.T) {
	path := DefaultTracesFilePath()
	if path == "" {
		t.Skip("no home directory")
	}
	require.True(t, strings.HasSuffix(path, filepath.Join("qlcli", "traces", "traces.jsonl")))
}
