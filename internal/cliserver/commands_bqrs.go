package cliserver

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/owenrumney/go-sarif/v2/sarif"
)

const (
	sarifFormat = "sarifv2.1.0"
	csvFormat   = "csv"
	dotFormat   = "dot"
)

// BqrsInfo reads the result set headers of a bqrs file. A positive pageSize
// also precomputes page offsets.
func (s *Server) BqrsInfo(ctx context.Context, bqrsPath string, pageSize int) (BqrsInfo, error) {
	var args []string
	if pageSize > 0 {
		args = append(args, "--paginate-rows", strconv.Itoa(pageSize))
	}
	args = append(args, bqrsPath)
	return RunJSON[BqrsInfo](ctx, s, []string{"bqrs", "info"}, args, "Reading bqrs header")
}

// BqrsDecode reads one page of resultSet.
func (s *Server) BqrsDecode(ctx context.Context, bqrsPath, resultSet string, opts BqrsDecodeOptions) (DecodedBqrsChunk, error) {
	entities := opts.Entities
	if len(entities) == 0 {
		entities = []string{"url", "string"}
	}
	args := []string{"--entities=" + strings.Join(entities, ","), "--result-set", resultSet}
	if opts.PageSize > 0 {
		args = append(args, "--rows", strconv.Itoa(opts.PageSize))
	}
	if opts.Offset > 0 {
		args = append(args, "--start-at", strconv.FormatInt(opts.Offset, 10))
	}
	args = append(args, bqrsPath)
	return RunJSON[DecodedBqrsChunk](ctx, s, []string{"bqrs", "decode"}, args, "Reading bqrs data")
}

// BqrsDecodeAll reads every result set of a bqrs file.
func (s *Server) BqrsDecodeAll(ctx context.Context, bqrsPath string) (DecodedBqrs, error) {
	return RunJSON[DecodedBqrs](ctx, s, []string{"bqrs", "decode"}, []string{bqrsPath}, "Reading all bqrs data")
}

// SortBqrs writes resultSet of resultsPath, sorted by the given columns, to
// sortedPath.
func (s *Server) SortBqrs(ctx context.Context, resultsPath, sortedPath, resultSet string, sortKeys []int, directions []SortDirection) error {
	keys := make([]string, len(sortKeys))
	for i, k := range sortKeys {
		keys[i] = strconv.Itoa(k)
	}
	dirs := make([]string, len(directions))
	for i, d := range directions {
		dirs[i] = d.String()
	}
	_, err := s.RunCommand(ctx, []string{"bqrs", "decode"}, []string{
		"--format=bqrs",
		"--result-set=" + resultSet,
		"--output=" + sortedPath,
		"--sort-key=" + strings.Join(keys, ","),
		"--sort-direction=" + strings.Join(dirs, ","),
		resultsPath,
	}, "Sorting query results")
	return err
}

// RunInterpretCommand runs "bqrs interpret" on resultsPath, forwarding the
// query metadata and the thread and path limits from configuration.
func (s *Server) RunInterpretCommand(ctx context.Context, format string, extraArgs []string, metadata QueryMetadata, resultsPath, outputPath string, source *SourceInfo) error {
	cfg := s.Config()
	args := []string{"--output", outputPath, "--format", format}
	args = append(args, metadata.interpretFlags()...)
	args = append(args, extraArgs...)
	if source != nil {
		args = append(args,
			"--source-archive", source.SourceArchive,
			"--source-location-prefix", source.SourceLocationPrefix)
	}
	args = append(args,
		"--threads", strconv.Itoa(cfg.NumberThreads),
		"--max-paths", strconv.Itoa(cfg.MaxPaths),
		resultsPath)
	_, err := s.RunCommand(ctx, []string{"bqrs", "interpret"}, args, "Interpreting query results")
	return err
}

// InterpretBqrsSarif interprets results as SARIF and parses the log.
// Results are not grouped by primary location.
func (s *Server) InterpretBqrsSarif(ctx context.Context, metadata QueryMetadata, resultsPath, outputPath string, source *SourceInfo, extraArgs ...string) (*sarif.Report, error) {
	args := append([]string{"--no-group-results"}, extraArgs...)
	if err := s.RunInterpretCommand(ctx, sarifFormat, args, metadata, resultsPath, outputPath, source); err != nil {
		return nil, err
	}
	report, err := sarif.Open(outputPath)
	if err != nil {
		return nil, fmt.Errorf("parsing SARIF output %s: %w", outputPath, err)
	}
	return report, nil
}

// InterpretBqrsGraph interprets results as dot graphs and returns the
// contents of every .dot file written under outputDir.
func (s *Server) InterpretBqrsGraph(ctx context.Context, metadata QueryMetadata, resultsPath, outputDir string, source *SourceInfo) ([]string, error) {
	var args []string
	if source != nil {
		args = []string{
			"--dot-location-url-format",
			"file://" + source.SourceLocationPrefix + "{path}:{start:line}:{start:column}:{end:line}:{end:column}",
		}
	}
	if err := s.RunInterpretCommand(ctx, dotFormat, args, metadata, resultsPath, outputDir, source); err != nil {
		return nil, err
	}
	dots, err := readDotFiles(outputDir)
	if err != nil {
		return nil, fmt.Errorf("reading output of interpretation failed: %w", err)
	}
	return dots, nil
}

// readDotFiles reads every .dot file under dir in lexical order. Graphs are
// held in memory, so this is only suitable for small outputs.
func readDotFiles(dir string) ([]string, error) {
	var dots []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".dot") {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		dots = append(dots, string(b))
		return nil
	})
	return dots, err
}

// GenerateResultsCsv interprets results as CSV into csvPath.
func (s *Server) GenerateResultsCsv(ctx context.Context, metadata QueryMetadata, resultsPath, csvPath string, source *SourceInfo) error {
	return s.RunInterpretCommand(ctx, csvFormat, nil, metadata, resultsPath, csvPath, source)
}

// DatabaseUnbundle extracts a database archive. Empty target or name use the
// codeql defaults.
func (s *Server) DatabaseUnbundle(ctx context.Context, archivePath, target, name string) (string, error) {
	var args []string
	if target != "" {
		args = append(args, "--target", target)
	}
	if name != "" {
		args = append(args, "--name", name)
	}
	args = append(args, archivePath)
	return s.RunCommand(ctx, []string{"database", "unbundle"}, args,
		fmt.Sprintf("Extracting %s to directory %s", archivePath, target))
}
