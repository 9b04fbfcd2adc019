package querycache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestCache(cfg Config) *Cache {
	if cfg.SampleEvery == 0 {
		cfg.SampleEvery = time.Hour
	}
	return New(cfg)
}

func TestPutGetRoundTrip(t *testing.T) {
	c := newTestCache(Config{DefaultTTL: time.Minute})
	defer c.Stop()

	key := CacheKey{Query: "foo", TopK: 5}
	c.Put(key, "bar", 3)

	v, ok := c.Get(key)
	assert.True(t, ok)
	assert.Equal(t, "bar", v)
}

func TestGetMissOnUnknownKey(t *testing.T) {
	c := newTestCache(Config{})
	defer c.Stop()

	_, ok := c.Get(CacheKey{Query: "missing"})
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestGetExpiresAfterTTL(t *testing.T) {
	c := newTestCache(Config{DefaultTTL: time.Millisecond})
	defer c.Stop()

	key := CacheKey{Query: "foo"}
	c.Put(key, "bar", 1)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(key)
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().EvictedByTTL)
}

func TestPutReplacesExistingEntry(t *testing.T) {
	c := newTestCache(Config{DefaultTTL: time.Minute})
	defer c.Stop()

	key := CacheKey{Query: "foo"}
	c.Put(key, "v1", 1)
	c.Put(key, "v2", 1)

	v, ok := c.Get(key)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestPutEvictsOldestWhenOverEntryCapacity(t *testing.T) {
	c := newTestCache(Config{MaxEntries: shardCount, DefaultTTL: time.Minute})
	defer c.Stop()

	// One entry per shard allowed; inserting a second key that hashes to
	// the same shard must evict the first rather than grow unbounded.
	for i := 0; i < 50; i++ {
		c.Put(CacheKey{Query: "k", TopK: i}, i, 1)
	}
	assert.GreaterOrEqual(t, c.Stats().EvictedBySize+c.Stats().EvictedByCount, int64(1))
}

func TestInvalidateDropsMatchingEntries(t *testing.T) {
	c := newTestCache(Config{DefaultTTL: time.Minute})
	defer c.Stop()

	keyA := CacheKey{Query: "a"}
	keyB := CacheKey{Query: "b"}
	c.Put(keyA, "episode-1", 1)
	c.Put(keyB, "episode-2", 1)

	c.Invalidate(func(v any) bool { return v == "episode-1" })

	_, okA := c.Get(keyA)
	_, okB := c.Get(keyB)
	assert.False(t, okA)
	assert.True(t, okB)
	assert.Equal(t, int64(1), c.Stats().EvictedByInvalidation)
}

func TestStatsHitRate(t *testing.T) {
	c := newTestCache(Config{DefaultTTL: time.Minute})
	defer c.Stop()

	key := CacheKey{Query: "foo"}
	c.Put(key, "bar", 1)
	c.Get(key)
	c.Get(CacheKey{Query: "missing"})

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRate)
}

func TestPressureLevelTTLMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, PressureLow.ttlMultiplier())
	assert.Equal(t, 0.75, PressureMedium.ttlMultiplier())
	assert.Equal(t, 0.5, PressureHigh.ttlMultiplier())
	assert.Equal(t, 0.25, PressureCritical.ttlMultiplier())
}
