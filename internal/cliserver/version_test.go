package cliserver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/qlcli/internal/distribution"
	"github.com/zjrosen/qlcli/internal/flags"
	"github.com/zjrosen/qlcli/internal/mocks"
)

func compatible(v string) distribution.Distribution {
	return distribution.Distribution{Kind: distribution.KindCompatible, Path: "codeql", Version: mustVersion(v)}
}

func TestVersionResolver_CachesUntilInvalidated(t *testing.T) {
	dist := mocks.NewMockDistributionProvider(t)
	dist.On("Distribution", mock.Anything).Return(compatible("2.15.1"), nil).Twice()

	r := NewVersionResolver(dist, nil)
	ctx := context.Background()

	v1, err := r.Version(ctx)
	require.NoError(t, err)
	v2, err := r.Version(ctx)
	require.NoError(t, err)
	require.Same(t, v1, v2)
	dist.AssertNumberOfCalls(t, "Distribution", 1)

	r.Invalidate()
	_, err = r.Version(ctx)
	require.NoError(t, err)
	dist.AssertNumberOfCalls(t, "Distribution", 2)
}

func TestVersionResolver_ConcurrentCallsShareOneLookup(t *testing.T) {
	dist := mocks.NewMockDistributionProvider(t)
	dist.On("Distribution", mock.Anything).
		Run(func(mock.Arguments) { time.Sleep(50 * time.Millisecond) }).
		Return(compatible("2.14.0"), nil).Once()

	r := NewVersionResolver(dist, nil)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := r.Version(context.Background())
			if assert.NoError(t, err) {
				assert.Equal(t, "2.14.0", v.String())
			}
		}()
	}
	wg.Wait()
	dist.AssertNumberOfCalls(t, "Distribution", 1)
}

func TestVersionResolver_FailureNotifiesAndRetries(t *testing.T) {
	dist := mocks.NewMockDistributionProvider(t)
	dist.On("Distribution", mock.Anything).Return(distribution.Distribution{}, errors.New("not installed")).Once()
	dist.On("Distribution", mock.Anything).Return(compatible("2.13.3"), nil).Once()

	setter := mocks.NewMockContextSetter(t)
	setter.On("SetContext", flags.ContextSupportsQuickEvalCount, false).Return(nil).Once()
	setter.On("SetContext", flags.ContextSupportsTrimCache, false).Return(nil).Twice()
	setter.On("SetContext", flags.ContextSupportsQuickEvalCount, true).Return(nil).Once()

	r := NewVersionResolver(dist, setter)
	var seen []*semver.Version
	r.AddVersionChangedListener(func(v *semver.Version) { seen = append(seen, v) })

	_, err := r.Version(context.Background())
	require.EqualError(t, err, "not installed")

	v, err := r.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2.13.3", v.String())

	require.Len(t, seen, 2)
	require.Nil(t, seen[0])
	require.Equal(t, v, seen[1])
}

func TestVersionResolver_DistributionKinds(t *testing.T) {
	tests := []struct {
		name    string
		dist    distribution.Distribution
		wantErr error
	}{
		{"compatible", compatible("2.15.1"), nil},
		{"incompatible", distribution.Distribution{Kind: distribution.KindIncompatible, Version: mustVersion("2.9.0")}, nil},
		{"not found", distribution.Distribution{Kind: distribution.KindNotFound}, ErrNoDistribution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist := mocks.NewMockDistributionProvider(t)
			dist.On("Distribution", mock.Anything).Return(tt.dist, nil)

			v, err := NewVersionResolver(dist, nil).Version(context.Background())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.EqualError(t, err, "no distribution found")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.dist.Version, v)
		})
	}
}

func TestVersionResolver_PublishesCapabilityFlags(t *testing.T) {
	tests := []struct {
		version   string
		quickEval bool
		trimCache bool
	}{
		{"2.11.6", false, false},
		{"2.13.3", true, false},
		{"2.15.0", true, false},
		{"2.15.1", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			dist := mocks.NewMockDistributionProvider(t)
			dist.On("Distribution", mock.Anything).Return(compatible(tt.version), nil)

			setter := mocks.NewMockContextSetter(t)
			setter.On("SetContext", flags.ContextSupportsQuickEvalCount, tt.quickEval).Return(nil).Once()
			setter.On("SetContext", flags.ContextSupportsTrimCache, tt.trimCache).Return(nil).Once()

			_, err := NewVersionResolver(dist, setter).Version(context.Background())
			require.NoError(t, err)
		})
	}
}

func TestVersionResolver_ListenerCalledImmediatelyWhenCached(t *testing.T) {
	dist := mocks.NewMockDistributionProvider(t)
	dist.On("Distribution", mock.Anything).Return(compatible("2.14.3"), nil).Once()

	r := NewVersionResolver(dist, nil)
	_, err := r.Version(context.Background())
	require.NoError(t, err)

	var got *semver.Version
	r.AddVersionChangedListener(func(v *semver.Version) { got = v })
	require.NotNil(t, got)
	require.Equal(t, "2.14.3", got.String())
}

func TestVersionResolver_ListenerNotCalledWithoutVersion(t *testing.T) {
	r := NewVersionResolver(mocks.NewMockDistributionProvider(t), nil)
	called := false
	r.AddVersionChangedListener(func(*semver.Version) { called = true })
	require.False(t, called)
}

func TestConstraints(t *testing.T) {
	tests := []struct {
		version string
		check   func(Constraints, context.Context) (bool, error)
		want    bool
	}{
		{"2.12.2", Constraints.SupportsQlpacksKind, false},
		{"2.12.3", Constraints.SupportsQlpacksKind, true},
		{"2.12.3", Constraints.SupportsAdditionalPacksInstall, false},
		{"2.12.4", Constraints.SupportsAdditionalPacksInstall, true},
		{"2.12.4", Constraints.UsesGlobalCompilationCache, true},
		{"2.13.9", Constraints.SupportsVisibilityNotifications, false},
		{"2.14.0", Constraints.SupportsVisibilityNotifications, true},
		{"2.13.2", Constraints.SupportsQuickEvalCount, false},
		{"2.14.2", Constraints.SupportsGenerateExtensiblePredicateMetadata, false},
		{"2.14.3", Constraints.SupportsGenerateExtensiblePredicateMetadata, true},
		{"2.15.1", Constraints.SupportsTrimCache, true},
		{"3.0.0", Constraints.SupportsTrimCache, true},
	}
	for _, tt := range tests {
		dist := mocks.NewMockDistributionProvider(t)
		dist.On("Distribution", mock.Anything).Return(compatible(tt.version), nil)

		got, err := tt.check(NewVersionResolver(dist, nil).Constraints(), context.Background())
		require.NoError(t, err)
		require.Equal(t, tt.want, got, "version %s", tt.version)
	}
}

func TestConstraints_PropagatesVersionError(t *testing.T) {
	dist := mocks.NewMockDistributionProvider(t)
	dist.On("Distribution", mock.Anything).Return(distribution.Distribution{}, errors.New("boom"))

	_, err := NewVersionResolver(dist, nil).Constraints().IsAtLeast(context.Background(), VersionQlpacksKind)
	require.EqualError(t, err, "boom")
}
