package cliserver

import (
	"context"
	"fmt"
	"iter"
	"strconv"
)

// RunTests runs the QL tests at testPaths in a separate process and yields
// one event per finished test. Workspaces are searched for packs. Cancel ctx
// to stop the run.
func (s *Server) RunTests(ctx context.Context, testPaths, workspaces []string, logger LineLogger) iter.Seq2[TestCompleted, error] {
	cfg := s.Config()
	args := append([]string{}, cfg.AdditionalTestArguments...)
	args = append(args, additionalPacksArg(workspaces)...)
	args = append(args, "--threads", strconv.Itoa(cfg.NumberTestThreads))
	args = append(args, testPaths...)
	return RunStreaming[TestCompleted](ctx, s, []string{"test", "run"}, args, "Run CodeQL Tests", logger)
}

// GenerateQueryHelp renders a .qhelp file as markdown, into outputDir when
// given.
func (s *Server) GenerateQueryHelp(ctx context.Context, qhelpPath, outputDir string) (string, error) {
	args := []string{"--format=markdown"}
	if outputDir != "" {
		args = append(args, "--output", outputDir)
	}
	args = append(args, qhelpPath)
	return s.RunCommand(ctx, []string{"generate", "query-help"}, args,
		fmt.Sprintf("Generating qhelp in markdown format at %s", outputDir))
}

// GenerateLogSummary writes a text summary of an evaluator log to outputPath
// and the end-of-query part alone to endSummaryPath.
func (s *Server) GenerateLogSummary(ctx context.Context, inputPath, outputPath, endSummaryPath string) (string, error) {
	return s.RunCommand(ctx, []string{"generate", "log-summary"}, []string{
		"--format=text",
		"--end-summary=" + endSummaryPath,
		"--sourcemap",
		inputPath,
		outputPath,
	}, "Generating log summary")
}

// GenerateJSONLogSummary writes a per-predicate JSON summary of an evaluator
// log to outputPath.
func (s *Server) GenerateJSONLogSummary(ctx context.Context, inputPath, outputPath string) (string, error) {
	return s.RunCommand(ctx, []string{"generate", "log-summary"},
		[]string{"--format=predicates", inputPath, outputPath}, "Generating JSON log summary")
}

// GenerateDil decompiles a compiled query to DIL.
func (s *Server) GenerateDil(ctx context.Context, qloFile, outFile string) error {
	_, err := s.RunCommand(ctx, []string{"query", "decompile"},
		[]string{"--kind", "dil", "-o", outFile, qloFile}, "Generating DIL")
	return err
}

// GenerateExtensiblePredicateMetadata lists the extensible predicates of the
// pack at packRoot.
func (s *Server) GenerateExtensiblePredicateMetadata(ctx context.Context, packRoot string) (ExtensiblePredicateMetadata, error) {
	return RunJSON[ExtensiblePredicateMetadata](ctx, s, []string{"generate", "extensible-predicate-metadata"},
		[]string{packRoot}, "Generating extensible predicate metadata", WithoutFormat())
}
