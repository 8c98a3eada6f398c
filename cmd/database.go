package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	unbundleTarget string
	unbundleName   string
)

var databaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Work with CodeQL databases",
}

var databaseUnbundleCmd = &cobra.Command{
	Use:   "unbundle <archive>",
	Short: "Extract a database archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if rt == nil {
			return errNoRuntime
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		out, err := rt.server.DatabaseUnbundle(ctx, args[0], unbundleTarget, unbundleName)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}

func init() {
	databaseUnbundleCmd.Flags().StringVar(&unbundleTarget, "target", "", "directory to extract into")
	databaseUnbundleCmd.Flags().StringVar(&unbundleName, "name", "", "name of the extracted database")

	databaseCmd.AddCommand(databaseUnbundleCmd)
	rootCmd.AddCommand(databaseCmd)
}
