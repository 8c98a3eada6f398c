package cliserver

import (
	"context"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/zjrosen/qlcli/internal/cachemanager"
	"github.com/zjrosen/qlcli/internal/log"
)

// additionalPacksArg returns "--additional-packs <paths>" or nothing.
func additionalPacksArg(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	return []string{"--additional-packs", strings.Join(paths, string(filepath.ListSeparator))}
}

// ResolveQueryByLanguage reports the language each query in queryPath
// targets.
func (s *Server) ResolveQueryByLanguage(ctx context.Context, workspaces []string, queryPath string) (QueryInfoByLanguage, error) {
	args := append([]string{"--format", "bylanguage", queryPath}, additionalPacksArg(workspaces)...)
	return RunJSON[QueryInfoByLanguage](ctx, s, []string{"resolve", "queries"}, args,
		"Resolving query by language", WithoutFormat())
}

// ResolveQueries lists the queries under queryDir.
func (s *Server) ResolveQueries(ctx context.Context, queryDir string, silent bool) ([]string, error) {
	return RunJSON[[]string](ctx, s, []string{"resolve", "queries"}, []string{queryDir},
		"Resolving queries", Silent(silent))
}

// ResolveTests lists the QL tests under testPath. It runs as a background
// task and is not logged.
func (s *Server) ResolveTests(ctx context.Context, testPath string) ([]string, error) {
	return RunJSON[[]string](ctx, s, []string{"resolve", "tests", "--strict-test-discovery"}, []string{testPath},
		"Resolving tests", Silent(true))
}

// ResolveQlref resolves a .qlref file to the query it names.
func (s *Server) ResolveQlref(ctx context.Context, qlref string) (QlrefInfo, error) {
	return RunJSON[QlrefInfo](ctx, s, []string{"resolve", "qlref"}, []string{qlref},
		"Resolving qlref", WithoutFormat())
}

// ClearCache forces the worker to drop its qlpack cache, which it otherwise
// refreshes every second.
func (s *Server) ClearCache(ctx context.Context) error {
	_, err := s.RunCommand(ctx, []string{"clear-cache"}, nil, "Clearing qlpack cache")
	return err
}

// ResolveMetadata reads the metadata comment of a query.
func (s *Server) ResolveMetadata(ctx context.Context, queryPath string) (QueryMetadata, error) {
	return RunJSON[QueryMetadata](ctx, s, []string{"resolve", "metadata"}, []string{queryPath},
		"Resolving query metadata")
}

// ResolveMlModels lists the ML models available to queryPath. The query's
// directory is resolved so query libraries work too.
func (s *Server) ResolveMlModels(ctx context.Context, additionalPacks []string, queryPath string) (MlModelsInfo, error) {
	args := append(additionalPacksArg(additionalPacks), filepath.Dir(queryPath))
	return RunJSON[MlModelsInfo](ctx, s, []string{"resolve", "ml-models"}, args,
		"Resolving ML models", WithoutFormat())
}

// ResolveRAM returns query server arguments splitting queryMemoryMB between
// heap and off-heap memory. Zero lets codeql pick a limit from system memory.
func (s *Server) ResolveRAM(ctx context.Context, queryMemoryMB int) ([]string, error) {
	var args []string
	if queryMemoryMB > 0 {
		args = append(args, "--ram", strconv.Itoa(queryMemoryMB))
	}
	return RunJSON[[]string](ctx, s, []string{"resolve", "ram"}, args, "Resolving RAM settings")
}

// ResolveDatabase describes the database at databasePath.
func (s *Server) ResolveDatabase(ctx context.Context, databasePath string) (DbInfo, error) {
	return RunJSON[DbInfo](ctx, s, []string{"resolve", "database"}, []string{databasePath}, "Resolving database")
}

// ResolveUpgrades finds the upgrade scripts for dbScheme. Downgrades are only
// considered when a target dbscheme is given.
func (s *Server) ResolveUpgrades(ctx context.Context, dbScheme string, searchPath []string, allowDowngrades bool, targetDbScheme string) (UpgradesInfo, error) {
	args := append(additionalPacksArg(searchPath), "--dbscheme", dbScheme)
	if targetDbScheme != "" {
		args = append(args, "--target-dbscheme", targetDbScheme)
		if allowDowngrades {
			args = append(args, "--allow-downgrades")
		}
	}
	return RunJSON[UpgradesInfo](ctx, s, []string{"resolve", "upgrades"}, args,
		"Resolving database upgrade scripts")
}

// QlpackKind filters "resolve qlpacks".
type QlpackKind string

const (
	QlpackKindAny     QlpackKind = ""
	QlpackKindQuery   QlpackKind = "query"
	QlpackKindLibrary QlpackKind = "library"
	QlpackKindAll     QlpackKind = "all"
)

// ResolveQlpacks maps pack names to their directories. With extensionPacksOnly
// only extension packs are returned; codeql releases without "--kind" support
// return an empty result and log a warning.
func (s *Server) ResolveQlpacks(ctx context.Context, additionalPacks []string, extensionPacksOnly bool, kind QlpackKind) (QlpacksInfo, error) {
	args := additionalPacksArg(additionalPacks)
	description := "Resolving qlpack information"
	if extensionPacksOnly {
		ok, err := s.Constraints().SupportsQlpacksKind(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Warn(log.CatCmd, "Running with extension packs requires a newer codeql",
				"minimum", VersionQlpacksKind.String())
			return QlpacksInfo{}, nil
		}
		args = append(args, "--kind", "extension", "--no-recursive")
		description += " (extension packs only)"
	} else if kind != QlpackKindAny {
		args = append(args, "--kind", string(kind))
	}
	return RunJSON[QlpacksInfo](ctx, s, []string{"resolve", "qlpacks"}, args, description)
}

// ResolveExtensions lists the models and data extensions used by suite.
func (s *Server) ResolveExtensions(ctx context.Context, suite string, additionalPacks []string) (ResolveExtensionsResult, error) {
	args := append(additionalPacksArg(additionalPacks), suite)
	return RunJSON[ResolveExtensionsResult](ctx, s, []string{"resolve", "extensions"}, args,
		"Resolving extensions", WithoutFormat())
}

// ResolveLanguages maps each installed extractor language to its directories.
func (s *Server) ResolveLanguages(ctx context.Context) (LanguagesInfo, error) {
	return RunJSON[LanguagesInfo](ctx, s, []string{"resolve", "languages"}, nil, "Resolving languages")
}

// SupportedLanguages returns the installed languages that are also
// KnownLanguages, leaving out extractors such as xml. The result is cached
// until the worker restarts.
func (s *Server) SupportedLanguages(ctx context.Context) ([]string, error) {
	return s.languages.Get(ctx, supportedLanguagesKey, struct{}{}, cachemanager.NoExpiration)
}

func (s *Server) loadSupportedLanguages(ctx context.Context) ([]string, error) {
	resolved, err := s.ResolveLanguages(ctx)
	if err != nil {
		return nil, err
	}
	langs := make([]string, 0, len(resolved))
	for name := range resolved {
		if slices.Contains(KnownLanguages, QueryLanguage(name)) {
			langs = append(langs, name)
		}
	}
	sort.Strings(langs)
	return langs, nil
}

// ResolveQueriesInSuite lists the queries selected by suite. A nil searchPath
// uses the codeql default search path.
func (s *Server) ResolveQueriesInSuite(ctx context.Context, suite string, additionalPacks, searchPath []string) ([]string, error) {
	args := additionalPacksArg(additionalPacks)
	if searchPath != nil {
		args = append(args, "--search-path", filepath.Join(searchPath...))
	}
	args = append(args, "--allow-library-packs", suite)
	return RunJSON[[]string](ctx, s, []string{"resolve", "queries"}, args, "Resolving queries")
}
