package cmd

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"github.com/zjrosen/qlcli/internal/log"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Control the cli-server worker",
}

var serverClearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Make the worker drop its qlpack cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if rt == nil {
			return errNoRuntime
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return rt.server.ClearCache(ctx)
	},
}

var serverRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the worker and re-resolve the codeql version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if rt == nil {
			return errNoRuntime
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		rt.server.AddVersionChangedListener(func(v *semver.Version) {
			if v == nil {
				log.Warn(log.CatVersion, "codeql version unknown after restart")
				return
			}
			log.Info(log.CatVersion, "codeql version after restart", "version", v.String())
		})
		if err := rt.server.Restart(ctx); err != nil {
			return err
		}
		v, err := rt.server.Version(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "cli-server restarted (codeql %s)\n", v)
		return err
	},
}

func init() {
	serverCmd.AddCommand(serverClearCacheCmd, serverRestartCmd)
	rootCmd.AddCommand(serverCmd)
}
