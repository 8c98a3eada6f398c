package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zjrosen/qlcli/internal/cliserver"
	"github.com/zjrosen/qlcli/internal/flags"
	"github.com/zjrosen/qlcli/internal/log"
	"github.com/zjrosen/qlcli/internal/presentation"
)

var (
	testAdditionalPacks []string
	testJSON            bool
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run QL tests",
}

var testRunCmd = &cobra.Command{
	Use:   "run <path>...",
	Short: "Run the QL tests under the given paths",
	Long: `Run QL tests in a separate codeql process and print each result as it
finishes. Interrupt to stop the run; the codeql process tree is killed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTests,
}

func runTests(cmd *cobra.Command, args []string) error {
	if rt == nil {
		return errNoRuntime
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	logger := stderrLogger(rt.registry.Enabled(flags.FlagStreamStderr), cmd.ErrOrStderr())
	out := formatter(cmd)
	summary := presentation.TestSummaryDTO{Failures: []string{}}
	for ev, err := range rt.server.RunTests(ctx, args, testAdditionalPacks, logger) {
		if err != nil {
			return err
		}
		result := presentation.FromTestCompleted(ev)
		summary.Add(result)
		if testJSON {
			err = out.FormatJSON(result)
		} else {
			err = out.FormatTestResult(result)
		}
		if err != nil {
			return err
		}
	}

	if testJSON {
		if err := out.FormatJSON(summary); err != nil {
			return err
		}
	} else if err := out.FormatTestSummary(summary); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d tests failed", summary.Failed, summary.Passed+summary.Failed)
	}
	return nil
}

// stderrLogger echoes codeql stderr to w when enabled, and logs it otherwise.
func stderrLogger(echo bool, w io.Writer) cliserver.LineLogger {
	if echo {
		return func(line string) { fmt.Fprintln(w, line) }
	}
	return func(line string) { log.Debug(log.CatStream, "test run", "stderr", line) }
}

func init() {
	testRunCmd.Flags().StringSliceVar(&testAdditionalPacks, "additional-packs", nil,
		"extra directories to search for packs")
	testRunCmd.Flags().BoolVar(&testJSON, "json", false, "print results as JSON")

	testCmd.AddCommand(testRunCmd)
	rootCmd.AddCommand(testCmd)
}
