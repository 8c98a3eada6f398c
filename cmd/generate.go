package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/qlcli/internal/cliserver"
)

var (
	generateOutput     string
	generateEndSummary string
	generateJSON       bool
	generateRaw        bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate query help, log summaries and DIL",
}

var generateQueryHelpCmd = &cobra.Command{
	Use:   "query-help <file.qhelp>",
	Short: "Render query help as markdown",
	Long: `Render query help as markdown. On a terminal the markdown is styled;
use --raw, or pipe the output, to get the markdown text.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if rt == nil {
			return errNoRuntime
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		out, err := rt.server.GenerateQueryHelp(ctx, args[0], generateOutput)
		if err != nil {
			return err
		}
		return formatter(cmd).FormatMarkdown(out, generateRaw)
	},
}

var generateLogSummaryCmd = &cobra.Command{
	Use:   "log-summary <evaluator-log> <output>",
	Short: "Summarize an evaluator log",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if rt == nil {
			return errNoRuntime
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		var err error
		if generateJSON {
			_, err = rt.server.GenerateJSONLogSummary(ctx, args[0], args[1])
		} else {
			if generateEndSummary == "" {
				return fmt.Errorf("--end-summary is required for text summaries")
			}
			_, err = rt.server.GenerateLogSummary(ctx, args[0], args[1], generateEndSummary)
		}
		return err
	},
}

var generateDilCmd = &cobra.Command{
	Use:   "dil <file.qlo> <output.dil>",
	Short: "Decompile a compiled query to DIL",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if rt == nil {
			return errNoRuntime
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return rt.server.GenerateDil(ctx, args[0], args[1])
	},
}

var generateExtensibleCmd = &cobra.Command{
	Use:   "extensible-predicates <pack>",
	Short: "List the extensible predicates of a pack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, func(ctx context.Context) (cliserver.ExtensiblePredicateMetadata, error) {
			ok, err := rt.server.Constraints().SupportsGenerateExtensiblePredicateMetadata(ctx)
			if err != nil {
				return cliserver.ExtensiblePredicateMetadata{}, err
			}
			if !ok {
				return cliserver.ExtensiblePredicateMetadata{}, fmt.Errorf("codeql %s or newer is required",
					cliserver.VersionGenerateExtensiblePredicateMetadata)
			}
			return rt.server.GenerateExtensiblePredicateMetadata(ctx, args[0])
		})
	},
}

func init() {
	generateQueryHelpCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "directory to write markdown into")
	generateQueryHelpCmd.Flags().BoolVar(&generateRaw, "raw", false, "print markdown without terminal styling")
	generateLogSummaryCmd.Flags().StringVar(&generateEndSummary, "end-summary", "", "file for the end-of-query summary")
	generateLogSummaryCmd.Flags().BoolVar(&generateJSON, "json", false, "write a per-predicate JSON summary")

	generateCmd.AddCommand(generateQueryHelpCmd, generateLogSummaryCmd, generateDilCmd, generateExtensibleCmd)
	rootCmd.AddCommand(generateCmd)
}
