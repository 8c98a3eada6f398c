package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/qlcli/internal/cliserver"
	"github.com/zjrosen/qlcli/internal/presentation"
)

var (
	bqrsPageSize  int
	bqrsResultSet string
	bqrsRows      int
	bqrsStartAt   int64
	bqrsEntities  []string

	interpretFormat       string
	interpretOutput       string
	interpretQuery        string
	interpretArchive      string
	interpretSourcePrefix string

	sortResultSet  string
	sortKeys       []string
	sortDirections []string
)

var bqrsCmd = &cobra.Command{
	Use:   "bqrs",
	Short: "Inspect and interpret query results",
}

var bqrsInfoCmd = &cobra.Command{
	Use:   "info <file.bqrs>",
	Short: "Show the result sets of a bqrs file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, func(ctx context.Context) (cliserver.BqrsInfo, error) {
			return rt.server.BqrsInfo(ctx, args[0], bqrsPageSize)
		})
	},
}

var bqrsDecodeCmd = &cobra.Command{
	Use:   "decode <file.bqrs>",
	Short: "Decode one page of a result set, or every result set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bqrsResultSet == "" {
			return printJSON(cmd, func(ctx context.Context) (cliserver.DecodedBqrs, error) {
				return rt.server.BqrsDecodeAll(ctx, args[0])
			})
		}
		return printJSON(cmd, func(ctx context.Context) (cliserver.DecodedBqrsChunk, error) {
			return rt.server.BqrsDecode(ctx, args[0], bqrsResultSet, cliserver.BqrsDecodeOptions{
				PageSize: bqrsRows,
				Offset:   bqrsStartAt,
				Entities: bqrsEntities,
			})
		})
	},
}

var bqrsSortCmd = &cobra.Command{
	Use:   "sort <file.bqrs> <sorted.bqrs>",
	Short: "Write a result set sorted by columns",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if rt == nil {
			return errNoRuntime
		}
		keys, dirs, err := parseSort(sortKeys, sortDirections)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return rt.server.SortBqrs(ctx, args[0], args[1], sortResultSet, keys, dirs)
	},
}

var bqrsInterpretCmd = &cobra.Command{
	Use:   "interpret <file.bqrs>",
	Short: "Interpret results as SARIF, CSV or dot graphs",
	Long: `Interpret query results. The query's metadata is resolved from --query.

  sarif  writes a SARIF log to --output and prints a per-rule summary
  csv    writes CSV to --output
  graph  writes .dot files under --output and prints them`,
	Args: cobra.ExactArgs(1),
	RunE: runInterpret,
}

func runInterpret(cmd *cobra.Command, args []string) error {
	if rt == nil {
		return errNoRuntime
	}
	if interpretOutput == "" {
		return fmt.Errorf("--output is required")
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	var metadata cliserver.QueryMetadata
	if interpretQuery != "" {
		var err error
		if metadata, err = rt.server.ResolveMetadata(ctx, interpretQuery); err != nil {
			return err
		}
	}
	var source *cliserver.SourceInfo
	if interpretArchive != "" {
		source = &cliserver.SourceInfo{SourceArchive: interpretArchive, SourceLocationPrefix: interpretSourcePrefix}
	}

	switch interpretFormat {
	case "sarif":
		report, err := rt.server.InterpretBqrsSarif(ctx, metadata, args[0], interpretOutput, source)
		if err != nil {
			return err
		}
		return formatter(cmd).FormatJSON(presentation.FromSarifReport(report))
	case "csv":
		return rt.server.GenerateResultsCsv(ctx, metadata, args[0], interpretOutput, source)
	case "graph":
		dots, err := rt.server.InterpretBqrsGraph(ctx, metadata, args[0], interpretOutput, source)
		if err != nil {
			return err
		}
		for _, dot := range dots {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), dot); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q: want sarif, csv or graph", interpretFormat)
	}
}

// parseSort converts column indexes and asc/desc names. Missing directions
// default to ascending.
func parseSort(keys, directions []string) ([]int, []cliserver.SortDirection, error) {
	if len(keys) == 0 {
		return nil, nil, fmt.Errorf("at least one --key is required")
	}
	if len(directions) > len(keys) {
		return nil, nil, fmt.Errorf("got %d directions for %d keys", len(directions), len(keys))
	}
	outKeys := make([]int, len(keys))
	outDirs := make([]cliserver.SortDirection, len(keys))
	for i, k := range keys {
		n, err := strconv.Atoi(k)
		if err != nil || n < 0 {
			return nil, nil, fmt.Errorf("invalid sort key %q", k)
		}
		outKeys[i] = n
		outDirs[i] = cliserver.SortAsc
		if i < len(directions) {
			switch strings.ToLower(directions[i]) {
			case "asc":
			case "desc":
				outDirs[i] = cliserver.SortDesc
			default:
				return nil, nil, fmt.Errorf("invalid sort direction %q", directions[i])
			}
		}
	}
	return outKeys, outDirs, nil
}

func init() {
	bqrsInfoCmd.Flags().IntVar(&bqrsPageSize, "page-size", 0, "precompute page offsets for this page size")

	bqrsDecodeCmd.Flags().StringVar(&bqrsResultSet, "result-set", "", "result set to decode (default: all)")
	bqrsDecodeCmd.Flags().IntVar(&bqrsRows, "rows", 0, "rows per page")
	bqrsDecodeCmd.Flags().Int64Var(&bqrsStartAt, "start-at", 0, "byte offset of the page")
	bqrsDecodeCmd.Flags().StringSliceVar(&bqrsEntities, "entities", nil, "entity columns to render (default: url,string)")

	bqrsSortCmd.Flags().StringVar(&sortResultSet, "result-set", "#select", "result set to sort")
	bqrsSortCmd.Flags().StringSliceVar(&sortKeys, "key", nil, "column index to sort by (repeatable)")
	bqrsSortCmd.Flags().StringSliceVar(&sortDirections, "direction", nil, "asc or desc per key")

	bqrsInterpretCmd.Flags().StringVar(&interpretFormat, "format", "sarif", "sarif, csv or graph")
	bqrsInterpretCmd.Flags().StringVarP(&interpretOutput, "output", "o", "", "output file, or directory for graph")
	bqrsInterpretCmd.Flags().StringVar(&interpretQuery, "query", "", "query whose metadata is used")
	bqrsInterpretCmd.Flags().StringVar(&interpretArchive, "source-archive", "", "source archive of the database")
	bqrsInterpretCmd.Flags().StringVar(&interpretSourcePrefix, "source-location-prefix", "", "source root of the database")

	bqrsCmd.AddCommand(bqrsInfoCmd, bqrsDecodeCmd, bqrsSortCmd, bqrsInterpretCmd)
	rootCmd.AddCommand(bqrsCmd)
}
