package cliserver

import (
	"context"
	"fmt"

	"github.com/zjrosen/qlcli/internal/config"
	"github.com/zjrosen/qlcli/internal/log"
)

// PackAdd adds the standard library pack for language as a dependency of the
// pack in dir and installs it. codeql rewrites qlpack.yml, dropping comments.
func (s *Server) PackAdd(ctx context.Context, dir string, language QueryLanguage) error {
	_, err := RunJSONWithAuthentication[any](ctx, s, []string{"pack", "add"},
		[]string{"--dir", dir, fmt.Sprintf("codeql/%s-all", language)},
		fmt.Sprintf("Adding and installing %s pack dependency.", language), WithoutFormat())
	return err
}

// PackDownload downloads packs given as "<scope/name[@version]>".
func (s *Server) PackDownload(ctx context.Context, packs []string) (map[string]any, error) {
	return RunJSONWithAuthentication[map[string]any](ctx, s, []string{"pack", "download"}, packs, "Downloading packs")
}

// PackInstall installs the dependencies of the pack in dir. Workspace folders
// are searched for packs when codeql supports it.
func (s *Server) PackInstall(ctx context.Context, dir string, opts PackInstallOptions) (map[string]any, error) {
	args := []string{dir}
	if opts.ForceUpdate {
		args = append(args, "--mode", "update")
	}
	if len(opts.WorkspaceFolders) > 0 {
		ok, err := s.Constraints().SupportsAdditionalPacksInstall(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			args = append(args, "--allow-prerelease", "--no-strict-mode")
			args = append(args, additionalPacksArg(opts.WorkspaceFolders)...)
		}
	}
	return RunJSONWithAuthentication[map[string]any](ctx, s, []string{"pack", "install"}, args,
		"Installing pack dependencies")
}

// PackBundle bundles the pack in dir into outputPath.
func (s *Server) PackBundle(ctx context.Context, dir string, workspaceFolders []string, outputPath string, moreOptions []string) error {
	args := []string{"-o", outputPath, dir}
	args = append(args, moreOptions...)
	args = append(args, additionalPacksArg(workspaceFolders)...)
	_, err := RunJSONWithAuthentication[any](ctx, s, []string{"pack", "bundle"}, args, "Bundling pack")
	return err
}

// PackPacklist lists the files that make up the pack in dir.
func (s *Server) PackPacklist(ctx context.Context, dir string, includeQueries bool) ([]string, error) {
	args := []string{dir}
	if !includeQueries {
		args = []string{"--no-include-queries", dir}
	}
	res, err := RunJSON[struct {
		Paths []string `json:"paths"`
	}](ctx, s, []string{"pack", "packlist"}, args, "Generating the pack list")
	if err != nil {
		return nil, err
	}
	return res.Paths, nil
}

// PackResolveDependencies maps each dependency of the pack in dir to its
// resolved version, creating the lock file if missing.
func (s *Server) PackResolveDependencies(ctx context.Context, dir string) (map[string]string, error) {
	return RunJSONWithAuthentication[map[string]string](ctx, s, []string{"pack", "resolve-dependencies"},
		[]string{dir}, "Resolving pack dependencies")
}

// UseExtensionPacks reports whether extension packs are enabled and the
// codeql release supports them.
func (s *Server) UseExtensionPacks(ctx context.Context) (bool, error) {
	if !s.Config().UseExtensionPacks {
		return false, nil
	}
	return s.Constraints().SupportsQlpacksKind(ctx)
}

// SetUseExtensionPacks changes cli.use_extension_packs, saving it to the
// config file when the Server has one.
func (s *Server) SetUseExtensionPacks(useExtensionPacks bool) error {
	if s.configPath != "" {
		if err := config.SaveUseExtensionPacks(s.configPath, useExtensionPacks); err != nil {
			return err
		}
	}
	cfg := s.Config()
	cfg.UseExtensionPacks = useExtensionPacks
	s.cfg.Store(&cfg)
	log.Info(log.CatConfig, "Updated use_extension_packs", "value", useExtensionPacks)
	return nil
}
