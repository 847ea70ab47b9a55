package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Memory {
	t.Helper()
	store := NewMemory(100, time.Minute)
	t.Cleanup(store.Stop)
	return store
}

func TestMemory_SetGet(t *testing.T) {
	store := newTestStore(t)

	store.Set("theme:solarpunk", "expansion", time.Second)

	value, ok := store.Get("theme:solarpunk")
	require.True(t, ok)
	assert.Equal(t, "expansion", value)
}

func TestMemory_ExpiryOnRead(t *testing.T) {
	store := newTestStore(t)

	store.Set("k", "v", 20*time.Millisecond)

	value, ok := store.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", value)

	time.Sleep(40 * time.Millisecond)

	// Sweep interval has not elapsed; lazy expiry must still apply.
	_, ok = store.Get("k")
	assert.False(t, ok)
	assert.False(t, store.Has("k"))
}

func TestMemory_GetOrSet(t *testing.T) {
	store := newTestStore(t)

	calls := 0
	factory := func() (interface{}, error) {
		calls++
		return 42, nil
	}

	value, err := store.GetOrSet("answer", factory, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	value, err = store.GetOrSet("answer", factory, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.Equal(t, 1, calls, "factory must only run on a miss")
}

func TestMemory_GetOrSet_FactoryError(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetOrSet("bad", func() (interface{}, error) {
		return nil, errors.New("upstream down")
	}, time.Minute)
	require.Error(t, err)

	assert.False(t, store.Has("bad"), "failed factory result must not be cached")
}

func TestMemory_PatternMatching(t *testing.T) {
	store := newTestStore(t)

	store.Set("social:twitter:solarpunk", 1, time.Minute)
	store.Set("social:farcaster:solarpunk", 2, time.Minute)
	store.Set("market:tokens:solarpunk", 3, time.Minute)

	keys := store.Keys("social:*")
	assert.Equal(t, []string{"social:farcaster:solarpunk", "social:twitter:solarpunk"}, keys)

	removed := store.DeleteByPattern("social:*")
	assert.Equal(t, 2, removed)
	assert.Len(t, store.Keys(""), 1)
}

func TestMemory_BatchOps(t *testing.T) {
	store := newTestStore(t)

	store.MSet(map[string]interface{}{"a": 1, "b": 2}, time.Minute)

	values := store.MGet([]string{"a", "missing", "b"})
	require.Len(t, values, 3)
	assert.Equal(t, 1, values[0])
	assert.Nil(t, values[1])
	assert.Equal(t, 2, values[2])
}

func TestMemory_CapacityEviction(t *testing.T) {
	store := NewMemory(10, time.Minute)
	defer store.Stop()

	for i := 0; i < 10; i++ {
		store.Set(string(rune('a'+i)), i, time.Minute)
		time.Sleep(time.Millisecond) // distinct insertion timestamps
	}

	// Store is full: next insert evicts the oldest 10% (one entry).
	store.Set("z", 99, time.Minute)

	assert.False(t, store.Has("a"), "oldest entry should be evicted")
	assert.True(t, store.Has("z"))
	assert.Equal(t, int64(1), store.Stats().Evictions)
}

func TestMemory_OverwriteDoesNotEvict(t *testing.T) {
	store := NewMemory(2, time.Minute)
	defer store.Stop()

	store.Set("a", 1, time.Minute)
	store.Set("b", 2, time.Minute)
	store.Set("a", 3, time.Minute)

	value, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, 3, value)
	assert.True(t, store.Has("b"))
}

func TestMemory_BackgroundSweep(t *testing.T) {
	store := NewMemory(100, 20*time.Millisecond)
	defer store.Stop()

	store.Set("short", "v", 10*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	store.mu.RLock()
	_, present := store.entries["short"]
	store.mu.RUnlock()
	assert.False(t, present, "sweep should remove expired entries without a read")
}

func TestMemory_StatsHitRatio(t *testing.T) {
	store := newTestStore(t)

	store.Set("k", "v", time.Minute)
	store.Get("k")
	store.Get("k")
	store.Get("missing")

	stats := store.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.667, stats.HitRatio, 0.01)
}
