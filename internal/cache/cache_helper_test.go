package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *CacheHelper {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheHelper(client, "test:")
}

type cachedThing struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func TestCacheHelper_SetGet(t *testing.T) {
	helper := newTestCache(t)
	ctx := context.Background()

	want := cachedThing{ID: 7, Title: "Quiz"}
	require.NoError(t, helper.Set(ctx, "id:7", want, time.Minute))

	var got cachedThing
	require.NoError(t, helper.Get(ctx, "id:7", &got))
	assert.Equal(t, want, got)
}

func TestCacheHelper_GetMiss(t *testing.T) {
	helper := newTestCache(t)

	var got cachedThing
	err := helper.Get(context.Background(), "id:404", &got)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestCacheHelper_Delete(t *testing.T) {
	helper := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, helper.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, helper.Set(ctx, "b", 2, time.Minute))
	require.NoError(t, helper.Delete(ctx, "a", "b"))

	exists, err := helper.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCacheHelper_InvalidatePattern(t *testing.T) {
	helper := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, helper.Set(ctx, "assessment:1:list", "x", time.Minute))
	require.NoError(t, helper.Set(ctx, "assessment:1:stats", "y", time.Minute))
	require.NoError(t, helper.Set(ctx, "assessment:2:list", "z", time.Minute))

	require.NoError(t, helper.InvalidatePattern(ctx, "assessment:1:*"))

	for key, want := range map[string]bool{
		"assessment:1:list":  false,
		"assessment:1:stats": false,
		"assessment:2:list":  true,
	} {
		exists, err := helper.Exists(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, exists, key)
	}
}

func TestCacheHelper_NilClientDegrades(t *testing.T) {
	helper := NewCacheHelper(nil, "test:")
	ctx := context.Background()

	assert.NoError(t, helper.Set(ctx, "k", 1, time.Minute))
	assert.NoError(t, helper.Delete(ctx, "k"))
	assert.NoError(t, helper.InvalidatePattern(ctx, "*"))

	var got int
	assert.ErrorIs(t, helper.Get(ctx, "k", &got), ErrCacheNotAvailable)
}
