package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zjrosen/qlcli/internal/cliserver"
	"github.com/zjrosen/qlcli/internal/flags"
)

// infoDTO describes the codeql distribution in use.
type infoDTO struct {
	Path         string          `json:"path"`
	Kind         string          `json:"kind"`
	Version      string          `json:"version"`
	Capabilities map[string]bool `json:"capabilities"`
	Languages    []string        `json:"languages,omitempty"`
	// Debug lists the servers that will wait for a Java debugger.
	Debug map[string]bool `json:"debug"`
}

var infoLanguages bool

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the codeql distribution and its capabilities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printJSON(cmd, func(ctx context.Context) (infoDTO, error) {
			return collectInfo(ctx, rt, infoLanguages)
		})
	},
}

func collectInfo(ctx context.Context, r *runtime, withLanguages bool) (infoDTO, error) {
	dist, err := r.dist.Distribution(ctx)
	if err != nil {
		return infoDTO{}, err
	}
	// Resolving the version publishes the capability flags.
	v, err := r.server.Version(ctx)
	if err != nil {
		return infoDTO{}, err
	}
	info := infoDTO{
		Path:         dist.Path,
		Kind:         dist.Kind.String(),
		Version:      v.String(),
		Capabilities: make(map[string]bool),
		Debug: map[string]bool{
			"cli-server":   cliserver.ShouldDebugCliServer(),
			"ide-server":   cliserver.ShouldDebugIdeServer(),
			"query-server": cliserver.ShouldDebugQueryServer(),
		},
	}
	for _, key := range []string{flags.ContextSupportsQuickEvalCount, flags.ContextSupportsTrimCache} {
		value, _ := r.registry.Context(key)
		info.Capabilities[key] = value
	}
	if withLanguages {
		if info.Languages, err = r.server.SupportedLanguages(ctx); err != nil {
			return infoDTO{}, err
		}
	}
	return info, nil
}

func init() {
	infoCmd.Flags().BoolVar(&infoLanguages, "languages", false, "also list supported languages")
	rootCmd.AddCommand(infoCmd)
}
