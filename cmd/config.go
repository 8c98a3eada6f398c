package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/zjrosen/qlcli/internal/cliserver"
	"github.com/zjrosen/qlcli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change qlcli settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return formatter(cmd).FormatJSON(struct {
			Path   string        `json:"path"`
			Config config.Config `json:"config"`
		}{configPath, cfg})
	},
}

var configSetExtensionPacksCmd = &cobra.Command{
	Use:   "set-extension-packs <true|false>",
	Short: "Enable or disable extension packs and save the setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if rt == nil {
			return errNoRuntime
		}
		enabled, err := strconv.ParseBool(args[0])
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", args[0], err)
		}
		if err := rt.server.SetUseExtensionPacks(enabled); err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		active, err := rt.server.UseExtensionPacks(ctx)
		if err != nil {
			return err
		}
		if enabled && !active {
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved, but extension packs need codeql %s or newer\n",
				cliserver.VersionQlpacksKind)
		}
		return nil
	},
}

var configSetExecutableCmd = &cobra.Command{
	Use:   "set-executable <path>",
	Short: "Save the codeql executable path",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if configPath == "" {
			return fmt.Errorf("no config file in use")
		}
		return config.SaveExecutablePath(configPath, args[0])
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetExtensionPacksCmd, configSetExecutableCmd)
	rootCmd.AddCommand(configCmd)
}
