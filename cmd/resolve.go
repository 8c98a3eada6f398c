package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zjrosen/qlcli/internal/cliserver"
)

var (
	resolveAdditionalPacks []string
	resolveKind            string
	resolveExtensionsOnly  bool
	resolveRAM             int
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve queries, packs, languages and databases",
}

var resolveQueriesCmd = &cobra.Command{
	Use:   "queries <dir|suite>",
	Short: "List the queries in a directory or suite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, func(ctx context.Context) ([]string, error) {
			if len(resolveAdditionalPacks) > 0 {
				return rt.server.ResolveQueriesInSuite(ctx, args[0], resolveAdditionalPacks, nil)
			}
			return rt.server.ResolveQueries(ctx, args[0], false)
		})
	},
}

var resolveByLanguageCmd = &cobra.Command{
	Use:   "by-language <query>",
	Short: "Show the language each query targets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, func(ctx context.Context) (cliserver.QueryInfoByLanguage, error) {
			return rt.server.ResolveQueryByLanguage(ctx, resolveAdditionalPacks, args[0])
		})
	},
}

var resolveTestsCmd = &cobra.Command{
	Use:   "tests <path>",
	Short: "List the QL tests under a path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, func(ctx context.Context) ([]string, error) {
			return rt.server.ResolveTests(ctx, args[0])
		})
	},
}

var resolveLanguagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the installed languages with query support",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printJSON(cmd, func(ctx context.Context) ([]string, error) {
			return rt.server.SupportedLanguages(ctx)
		})
	},
}

var resolveMetadataCmd = &cobra.Command{
	Use:   "metadata <query>",
	Short: "Read the metadata of a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, func(ctx context.Context) (cliserver.QueryMetadata, error) {
			return rt.server.ResolveMetadata(ctx, args[0])
		})
	},
}

var resolveQlpacksCmd = &cobra.Command{
	Use:   "qlpacks",
	Short: "Map pack names to their directories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printJSON(cmd, func(ctx context.Context) (cliserver.QlpacksInfo, error) {
			return rt.server.ResolveQlpacks(ctx, resolveAdditionalPacks, resolveExtensionsOnly, cliserver.QlpackKind(resolveKind))
		})
	},
}

var resolveDatabaseCmd = &cobra.Command{
	Use:   "database <path>",
	Short: "Describe a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, func(ctx context.Context) (cliserver.DbInfo, error) {
			return rt.server.ResolveDatabase(ctx, args[0])
		})
	},
}

var resolveRAMCmd = &cobra.Command{
	Use:   "ram",
	Short: "Compute query server memory arguments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printJSON(cmd, func(ctx context.Context) ([]string, error) {
			mb := resolveRAM
			if !cmd.Flags().Changed("ram") {
				mb = rt.server.Config().QueryMemoryMB
			}
			return rt.server.ResolveRAM(ctx, mb)
		})
	},
}

var resolveExtensionsCmd = &cobra.Command{
	Use:   "extensions <suite>",
	Short: "List the model and data extensions a suite uses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, func(ctx context.Context) (cliserver.ResolveExtensionsResult, error) {
			return rt.server.ResolveExtensions(ctx, args[0], resolveAdditionalPacks)
		})
	},
}

func init() {
	resolveCmd.PersistentFlags().StringSliceVar(&resolveAdditionalPacks, "additional-packs", nil,
		"extra directories to search for packs")
	resolveQlpacksCmd.Flags().StringVar(&resolveKind, "kind", "", "pack kind: query, library or all")
	resolveQlpacksCmd.Flags().BoolVar(&resolveExtensionsOnly, "extensions-only", false, "only list extension packs")
	resolveRAMCmd.Flags().IntVar(&resolveRAM, "ram", 0, "query memory in MB (default: cli.query_memory_mb)")

	resolveCmd.AddCommand(
		resolveQueriesCmd,
		resolveByLanguageCmd,
		resolveTestsCmd,
		resolveLanguagesCmd,
		resolveMetadataCmd,
		resolveQlpacksCmd,
		resolveDatabaseCmd,
		resolveRAMCmd,
		resolveExtensionsCmd,
	)
	rootCmd.AddCommand(resolveCmd)
}
