package cachemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type languageKey string

type qlpackPaths struct {
	Name  string
	Paths []string
}

func TestInMemoryCacheManager_SetGet_StructValue(t *testing.T) {
	cache := NewInMemoryCacheManager[languageKey, qlpackPaths]("qlpacks", DefaultExpiration, DefaultCleanupInterval)
	want := qlpackPaths{Name: "codeql/java-all", Paths: []string{"/packs/java"}}

	cache.Set(context.Background(), "java", want, NoExpiration)

	got, ok := cache.Get(context.Background(), "java")
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestInMemoryCacheManager_Miss(t *testing.T) {
	cache := NewInMemoryCacheManager[string, []string]("languages", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.Get(context.Background(), "languages")
	require.False(t, ok)
	require.Nil(t, got)
}

func TestInMemoryCacheManager_WrongTypeIsMiss(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("languages", DefaultExpiration, DefaultCleanupInterval)
	cache.cache.Set("languages", 123, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "languages")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_Expiry(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("languages", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "k", "v", 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_, ok := cache.Get(context.Background(), "k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestInMemoryCacheManager_DeleteAndFlush(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryCacheManager[string, string]("languages", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(ctx, "a", "1", NoExpiration)
	cache.Set(ctx, "b", "2", NoExpiration)
	cache.Set(ctx, "c", "3", NoExpiration)

	require.NoError(t, cache.Delete(ctx, "a", "b"))
	_, ok := cache.Get(ctx, "a")
	require.False(t, ok)
	_, ok = cache.Get(ctx, "c")
	require.True(t, ok)

	require.NoError(t, cache.Flush(ctx))
	_, ok = cache.Get(ctx, "c")
	require.False(t, ok)
}
