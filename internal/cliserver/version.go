package cliserver

import (
	"context"
	"sync"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/singleflight"

	"github.com/zjrosen/qlcli/internal/distribution"
	"github.com/zjrosen/qlcli/internal/flags"
	"github.com/zjrosen/qlcli/internal/log"
)

// Minimum codeql versions for optional features.
var (
	// VersionOldestSupported is the oldest codeql release this client drives.
	VersionOldestSupported = distribution.MinimumVersion

	// VersionQlpacksKind adds "--kind" to "resolve qlpacks".
	VersionQlpacksKind = semver.MustParse("2.12.3")

	// VersionAdditionalPacksInstall adds "--additional-packs" to "pack install".
	VersionAdditionalPacksInstall = semver.MustParse("2.12.4")

	VersionGlobalCompilationCache = semver.MustParse("2.12.4")

	// VersionQuickEvalCount is the first query server with quick-eval count mode.
	VersionQuickEvalCount = semver.MustParse("2.13.3")

	// VersionVisibilityNotifications is the first language server that
	// accepts visibility change notifications.
	VersionVisibilityNotifications = semver.MustParse("2.14.0")

	// VersionGenerateExtensiblePredicateMetadata adds
	// "generate extensible-predicate-metadata".
	VersionGenerateExtensiblePredicateMetadata = semver.MustParse("2.14.3")

	// VersionTrimCache is the first query server with evaluation/trimCache.
	VersionTrimCache = semver.MustParse("2.15.1")
)

// VersionListener is called with the newly resolved version, or nil when
// resolution failed.
type VersionListener func(v *semver.Version)

// VersionResolver lazily fetches and caches the codeql version. Concurrent
// first calls share one lookup.
type VersionResolver struct {
	dist    DistributionProvider
	context ContextSetter

	mu         sync.Mutex
	version    *semver.Version
	generation uint64
	listeners  []VersionListener

	group singleflight.Group
}

// NewVersionResolver creates a VersionResolver. ctxSetter may be nil.
func NewVersionResolver(dist DistributionProvider, ctxSetter ContextSetter) *VersionResolver {
	return &VersionResolver{dist: dist, context: ctxSetter}
}

// Version returns the cached version, fetching it first if needed. A failed
// fetch is not cached.
func (r *VersionResolver) Version(ctx context.Context) (*semver.Version, error) {
	r.mu.Lock()
	if r.version != nil {
		v := r.version
		r.mu.Unlock()
		return v, nil
	}
	r.mu.Unlock()

	ch := r.group.DoChan("version", func() (any, error) {
		return r.refresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*semver.Version), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *VersionResolver) refresh(ctx context.Context) (*semver.Version, error) {
	r.mu.Lock()
	gen := r.generation
	r.mu.Unlock()

	v, err := r.fetch(ctx)

	r.mu.Lock()
	if err == nil && gen == r.generation {
		r.version = v
	}
	listeners := append([]VersionListener{}, r.listeners...)
	r.mu.Unlock()

	if err != nil {
		log.Warn(log.CatVersion, "Failed to determine codeql version", "error", err)
	} else {
		log.Info(log.CatVersion, "Resolved codeql version", "version", v.String())
	}
	for _, fn := range listeners {
		fn(v)
	}
	r.publish(v)
	return v, err
}

func (r *VersionResolver) fetch(ctx context.Context) (*semver.Version, error) {
	d, err := r.dist.Distribution(ctx)
	if err != nil {
		return nil, err
	}
	switch d.Kind {
	case distribution.KindCompatible, distribution.KindIncompatible:
		if d.Version == nil {
			return nil, ErrNoDistribution
		}
		return d.Version, nil
	default:
		return nil, ErrNoDistribution
	}
}

// publish sets the capability flags; an unknown version disables both.
func (r *VersionResolver) publish(v *semver.Version) {
	if r.context == nil {
		return
	}
	set := func(key string, value bool) {
		if err := r.context.SetContext(key, value); err != nil {
			log.Warn(log.CatVersion, "Failed to publish capability", "key", key, "error", err)
		}
	}
	set(flags.ContextSupportsQuickEvalCount, v != nil && !v.LessThan(VersionQuickEvalCount))
	set(flags.ContextSupportsTrimCache, v != nil && !v.LessThan(VersionTrimCache))
}

// AddVersionChangedListener registers fn for every future resolution. If a
// version is already cached, fn is called with it immediately.
func (r *VersionResolver) AddVersionChangedListener(fn VersionListener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	v := r.version
	r.mu.Unlock()

	if v != nil {
		fn(v)
	}
}

// Invalidate drops the cached version. The next Version call fetches again.
func (r *VersionResolver) Invalidate() {
	r.mu.Lock()
	r.version = nil
	r.generation++
	r.mu.Unlock()
	r.group.Forget("version")
	log.Debug(log.CatVersion, "Version cache invalidated")
}

// IsAtLeast reports whether the codeql version is at least minVersion, resolving the
// version first if needed.
func (r *VersionResolver) IsAtLeast(ctx context.Context, minVersion *semver.Version) (bool, error) {
	v, err := r.Version(ctx)
	if err != nil {
		return false, err
	}
	return !v.LessThan(minVersion), nil
}

// Constraints answers feature questions against the resolved version.
type Constraints struct {
	r *VersionResolver
}

// Constraints returns the feature predicates backed by r.
func (r *VersionResolver) Constraints() Constraints {
	return Constraints{r: r}
}

// IsAtLeast reports whether the codeql version is at least minVersion.
func (c Constraints) IsAtLeast(ctx context.Context, minVersion *semver.Version) (bool, error) {
	return c.r.IsAtLeast(ctx, minVersion)
}

func (c Constraints) SupportsQlpacksKind(ctx context.Context) (bool, error) {
	return c.IsAtLeast(ctx, VersionQlpacksKind)
}

func (c Constraints) SupportsAdditionalPacksInstall(ctx context.Context) (bool, error) {
	return c.IsAtLeast(ctx, VersionAdditionalPacksInstall)
}

func (c Constraints) UsesGlobalCompilationCache(ctx context.Context) (bool, error) {
	return c.IsAtLeast(ctx, VersionGlobalCompilationCache)
}

func (c Constraints) SupportsVisibilityNotifications(ctx context.Context) (bool, error) {
	return c.IsAtLeast(ctx, VersionVisibilityNotifications)
}

func (c Constraints) SupportsQuickEvalCount(ctx context.Context) (bool, error) {
	return c.IsAtLeast(ctx, VersionQuickEvalCount)
}

func (c Constraints) SupportsGenerateExtensiblePredicateMetadata(ctx context.Context) (bool, error) {
	return c.IsAtLeast(ctx, VersionGenerateExtensiblePredicateMetadata)
}

func (c Constraints) SupportsTrimCache(ctx context.Context) (bool, error) {
	return c.IsAtLeast(ctx, VersionTrimCache)
}
