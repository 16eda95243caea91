package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-workers/internal/common/config"
	"match-workers/internal/common/logger"
)

type profile struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

func newMemoryCache(t *testing.T) *Cache {
	t.Helper()
	return New(NewMemoryStore(), DefaultTTLs(), logger.NewTestLogger(t))
}

func newMiniredisCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(NewRedisStore(client, "test"), DefaultTTLs(), logger.NewTestLogger(t)), mr
}

// ==========================
// Key builders
// ==========================

func TestKeys(t *testing.T) {
	assert.Equal(t, "matches:u1", MatchesKey("u1"))
	assert.Equal(t, "profile:u1", ProfileKey("u1"))
	assert.Equal(t, "network_graph:u1", NetworkGraphKey("u1"))
	assert.Equal(t, "filter_options:u1:industry", Key(DomainFilterOptions, "u1", "industry"))

	from := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("EST", -5*3600))
	to := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t,
		"calendar_events:u1:google:2026-03-01T14:00:00.000Z:2026-03-02T00:00:00.000Z",
		CalendarEventsKey("u1", "google", from, to))
}

func TestTTLsFromConfig(t *testing.T) {
	ttls := TTLsFromConfig(config.CacheTTLConfig{Matches: 60})
	assert.Equal(t, time.Minute, ttls.Matches)
	assert.Equal(t, 5*time.Minute, ttls.Default)
	assert.Equal(t, 30*time.Minute, ttls.FilterOptions)
	assert.Equal(t, 60*time.Minute, ttls.QuestionnaireSections)
	assert.Equal(t, 3*time.Minute, ttls.CalendarEvents)
}

// ==========================
// Memory backend
// ==========================

func TestMemory_SetGetDelete(t *testing.T) {
	c := newMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, ProfileKey("u1"), profile{Name: "Ada", Title: "CTO"}, 0))

	var got profile
	ok, err := c.Get(ctx, ProfileKey("u1"), &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Ada", got.Name)

	has, err := c.Has(ctx, ProfileKey("u1"))
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, c.Delete(ctx, ProfileKey("u1")))
	ok, err = c.Get(ctx, ProfileKey("u1"), &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_ExpiredEntryIsRemovedOnRead(t *testing.T) {
	store := NewMemoryStore()
	c := New(store, DefaultTTLs(), nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 50*time.Millisecond))
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 1, store.stored(), "expired entry stays until touched")

	var v string
	ok, err := c.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, store.stored())
}

func TestMemory_StatsAndClear(t *testing.T) {
	c := newMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "b", 1, 0))
	require.NoError(t, c.Set(ctx, "a", 2, 0))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, []string{"a", "b"}, stats.Keys)

	require.NoError(t, c.Clear(ctx))
	stats, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Size)
}

func TestInvalidateUserCache(t *testing.T) {
	c := newMemoryCache(t)
	ctx := context.Background()

	for _, k := range []string{ProfileKey("u1"), MatchesKey("u1"), NetworkGraphKey("u1"), MatchesKey("u2")} {
		require.NoError(t, c.Set(ctx, k, true, 0))
	}

	require.NoError(t, c.InvalidateUserCache(ctx, "u1"))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"matches:u2"}, stats.Keys)
}

// ==========================
// GetOrSet
// ==========================

func TestGetOrSet(t *testing.T) {
	c := newMemoryCache(t)
	ctx := context.Background()
	calls := 0
	fetch := func(context.Context) ([]string, error) {
		calls++
		return []string{"x", "y"}, nil
	}

	v, err := GetOrSet(ctx, c, MatchesKey("u1"), time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, v)

	v, err = GetOrSet(ctx, c, MatchesKey("u1"), time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, v)
	assert.Equal(t, 1, calls, "fetcher must not run on a hit")
}

func TestGetOrSet_FetchErrorIsNotCached(t *testing.T) {
	c := newMemoryCache(t)
	ctx := context.Background()

	_, err := GetOrSet(ctx, c, "k", 0, func(context.Context) (int, error) {
		return 0, errors.New("db down")
	})
	assert.EqualError(t, err, "db down")

	has, err := c.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestGetOrSet_StoreFailureFallsBackToFetch(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(NewRedisStore(client, "ns"), DefaultTTLs(), logger.NewTestLogger(t))
	ctx := context.Background()

	mock.ExpectGet("ns:profile:u1").SetErr(errors.New("connection refused"))
	encoded, _ := json.Marshal(profile{Name: "Ada"})
	mock.ExpectSet("ns:profile:u1", encoded, 5*time.Minute).SetVal("OK")

	got, err := GetOrSet(ctx, c, ProfileKey("u1"), 0, func(context.Context) (profile, error) {
		return profile{Name: "Ada"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Redis backend
// ==========================

func TestRedis_SetGetWithExpiry(t *testing.T) {
	c, mr := newMiniredisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 500*time.Millisecond))
	assert.True(t, mr.Exists("test:k"))

	var v string
	ok, err := c.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	mr.FastForward(time.Second)

	ok, err = c.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_ClearOnlyTouchesNamespace(t *testing.T) {
	c, mr := newMiniredisCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("other:key", "keep"))
	require.NoError(t, c.Set(ctx, MatchesKey("u1"), []int{1}, 0))
	require.NoError(t, c.Set(ctx, ProfileKey("u1"), "p", 0))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"matches:u1", "profile:u1"}, stats.Keys)

	require.NoError(t, c.Clear(ctx))
	stats, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.Empty(t, stats.Keys)
	assert.True(t, mr.Exists("other:key"))
}

func TestRedis_GetError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(NewRedisStore(client, ""), DefaultTTLs(), nil)

	mock.ExpectGet("k").SetErr(errors.New("boom"))

	var v string
	_, err := c.Get(context.Background(), "k", &v)
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	c, err := NewFromConfig(config.CacheConfig{Backend: "memory"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "memory", c.Backend())

	_, err = NewFromConfig(config.CacheConfig{Backend: "redis"}, nil, nil)
	assert.Error(t, err)

	_, err = NewFromConfig(config.CacheConfig{Backend: "memcached"}, nil, nil)
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	c, err = NewFromConfig(config.CacheConfig{Backend: "redis", Namespace: "ns"}, client, nil)
	require.NoError(t, err)
	assert.Equal(t, "redis", c.Backend())
}
