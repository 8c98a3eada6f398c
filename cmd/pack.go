package cmd

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/zjrosen/qlcli/internal/cliserver"
)

var (
	packForceUpdate bool
	packWorkspaces  []string
	packOutput      string
	packNoQueries   bool
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Manage CodeQL packs",
}

var packInstallCmd = &cobra.Command{
	Use:   "install <dir>",
	Short: "Install the dependencies of a pack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, func(ctx context.Context) (map[string]any, error) {
			return rt.server.PackInstall(ctx, args[0], cliserver.PackInstallOptions{
				ForceUpdate:      packForceUpdate,
				WorkspaceFolders: packWorkspaces,
			})
		})
	},
}

var packDownloadCmd = &cobra.Command{
	Use:   "download <scope/name[@version]>...",
	Short: "Download packs into the package cache",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, func(ctx context.Context) (map[string]any, error) {
			return rt.server.PackDownload(ctx, args)
		})
	},
}

var packAddCmd = &cobra.Command{
	Use:   "add <dir> <language>",
	Short: "Add the standard library of a language to a pack",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if rt == nil {
			return errNoRuntime
		}
		lang := cliserver.QueryLanguage(args[1])
		if !slices.Contains(cliserver.KnownLanguages, lang) {
			return fmt.Errorf("unknown language %q", args[1])
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return rt.server.PackAdd(ctx, args[0], lang)
	},
}

var packBundleCmd = &cobra.Command{
	Use:   "bundle <dir>",
	Short: "Bundle a pack into an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if rt == nil {
			return errNoRuntime
		}
		if packOutput == "" {
			return fmt.Errorf("--output is required")
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return rt.server.PackBundle(ctx, args[0], packWorkspaces, packOutput, nil)
	},
}

var packPacklistCmd = &cobra.Command{
	Use:   "packlist <dir>",
	Short: "List the files that make up a pack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, func(ctx context.Context) ([]string, error) {
			return rt.server.PackPacklist(ctx, args[0], !packNoQueries)
		})
	},
}

var packResolveDepsCmd = &cobra.Command{
	Use:   "resolve-dependencies <dir>",
	Short: "Resolve pack dependencies and write the lock file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, func(ctx context.Context) (map[string]string, error) {
			return rt.server.PackResolveDependencies(ctx, args[0])
		})
	},
}

func init() {
	packInstallCmd.Flags().BoolVar(&packForceUpdate, "force-update", false, "update dependencies to the newest allowed versions")
	packCmd.PersistentFlags().StringSliceVar(&packWorkspaces, "workspace", nil, "workspace folders to search for packs")
	packBundleCmd.Flags().StringVarP(&packOutput, "output", "o", "", "archive to write")
	packPacklistCmd.Flags().BoolVar(&packNoQueries, "no-queries", false, "leave out query files")

	packCmd.AddCommand(packInstallCmd, packDownloadCmd, packAddCmd, packBundleCmd, packPacklistCmd, packResolveDepsCmd)
	rootCmd.AddCommand(packCmd)
}
