/*
Package querycache implements the retrieval query cache: an LRU+TTL cache
sharded by key hash, with a background monitor that widens or narrows
effective TTLs under memory pressure. No pack example imports a third-party
LRU library, so the per-shard ordering here is built on container/list,
the same way the standard library itself recommends building an LRU (see
container/list's doc example); metrics are atomic counters in the style of
pkg/metrics's Timer, avoiding a lock per read.
*/
package querycache

import (
	"container/list"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/memoryengine/pkg/metrics"
)

const shardCount = 16

// PressureLevel classifies sampled process memory pressure.
type PressureLevel int

const (
	PressureLow PressureLevel = iota
	PressureMedium
	PressureHigh
	PressureCritical
)

func (p PressureLevel) ttlMultiplier() float64 {
	switch p {
	case PressureMedium:
		return 0.75
	case PressureHigh:
		return 0.5
	case PressureCritical:
		return 0.25
	default:
		return 1.0
	}
}

// CacheKey fingerprints a retrieval query: the query text, a serializable
// filter, the retrieval mode, and top_k.
type CacheKey struct {
	Query  string
	Filter any
	Mode   string
	TopK   int
}

func (k CacheKey) hash() uint64 {
	body, _ := json.Marshal(k)
	sum := sha256.Sum256(body)
	return binary.BigEndian.Uint64(sum[:8])
}

// Config controls capacity, default TTL and hot/cold thresholds.
type Config struct {
	MaxEntries    int
	MaxBytes      int64
	DefaultTTL    time.Duration
	HotThreshold  int64
	ColdThreshold time.Duration
	SampleEvery   time.Duration
	Sampler       func() PressureLevel
}

func (c Config) withDefaults() Config {
	if c.MaxEntries == 0 {
		c.MaxEntries = 10_000
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = 64 << 20
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = 2 * time.Minute
	}
	if c.HotThreshold == 0 {
		c.HotThreshold = 10
	}
	if c.ColdThreshold == 0 {
		c.ColdThreshold = 5 * time.Minute
	}
	if c.SampleEvery == 0 {
		c.SampleEvery = 5 * time.Second
	}
	if c.Sampler == nil {
		c.Sampler = func() PressureLevel { return PressureLow }
	}
	return c
}

type entry struct {
	key         uint64
	value       any
	insertedAt  time.Time
	lastAccess  time.Time
	accessCount int64
	baseTTL     time.Duration
	byteSize    int64
}

type shard struct {
	mu      sync.Mutex
	order   *list.List // front = most recently used
	items   map[uint64]*list.Element
	bytes   int64
}

// Cache is the sharded LRU+TTL query cache.
type Cache struct {
	cfg    Config
	shards [shardCount]*shard

	hits       atomic.Int64
	misses     atomic.Int64
	evictSize  atomic.Int64
	evictTTL   atomic.Int64
	evictCount atomic.Int64
	evictInval atomic.Int64

	pressure atomic.Int32
	stopCh   chan struct{}
}

// New builds a Cache and starts its memory-pressure sampling monitor.
func New(cfg Config) *Cache {
	cfg = cfg.withDefaults()
	c := &Cache{cfg: cfg, stopCh: make(chan struct{})}
	for i := range c.shards {
		c.shards[i] = &shard{order: list.New(), items: make(map[uint64]*list.Element)}
	}
	go c.monitor()
	return c
}

// Stop halts the pressure-sampling monitor.
func (c *Cache) Stop() { close(c.stopCh) }

func (c *Cache) monitor() {
	ticker := time.NewTicker(c.cfg.SampleEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.pressure.Store(int32(c.cfg.Sampler()))
		case <-c.stopCh:
			return
		}
	}
}

func (c *Cache) shardFor(h uint64) *shard {
	return c.shards[h%shardCount]
}

func (c *Cache) effectiveTTL(e *entry, now time.Time) time.Duration {
	ttl := e.baseTTL
	level := PressureLevel(c.pressure.Load())
	ttl = time.Duration(float64(ttl) * level.ttlMultiplier())
	if e.accessCount >= c.cfg.HotThreshold {
		ttl *= 2
	} else if now.Sub(e.lastAccess) >= c.cfg.ColdThreshold {
		ttl = ttl / 2
	}
	return ttl
}

// Get returns the cached value for key, or (nil, false) on a miss or
// expired entry. A hit moves the entry to the front of its shard's LRU
// order.
func (c *Cache) Get(key CacheKey) (any, bool) {
	h := key.hash()
	sh := c.shardFor(h)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	el, ok := sh.items[h]
	if !ok {
		c.misses.Add(1)
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	e := el.Value.(*entry)
	now := time.Now()
	if now.Sub(e.insertedAt) >= c.effectiveTTL(e, now) {
		c.evictLocked(sh, el, "ttl_expired")
		c.misses.Add(1)
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}

	e.lastAccess = now
	e.accessCount++
	sh.order.MoveToFront(el)
	c.hits.Add(1)
	metrics.CacheHitsTotal.Inc()
	return e.value, true
}

// Put inserts or replaces the entry for key, evicting from the head of the
// shard's LRU order while the shard is at or over capacity.
func (c *Cache) Put(key CacheKey, value any, byteSize int64) {
	h := key.hash()
	sh := c.shardFor(h)
	now := time.Now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if el, ok := sh.items[h]; ok {
		e := el.Value.(*entry)
		sh.bytes -= e.byteSize
		e.value, e.byteSize, e.insertedAt, e.lastAccess = value, byteSize, now, now
		sh.bytes += byteSize
		sh.order.MoveToFront(el)
		return
	}

	e := &entry{
		key: h, value: value, insertedAt: now, lastAccess: now,
		baseTTL: c.cfg.DefaultTTL, byteSize: byteSize,
	}
	el := sh.order.PushFront(e)
	sh.items[h] = el
	sh.bytes += byteSize

	maxEntriesPerShard := c.cfg.MaxEntries / shardCount
	maxBytesPerShard := c.cfg.MaxBytes / shardCount
	for (maxEntriesPerShard > 0 && len(sh.items) > maxEntriesPerShard) ||
		(maxBytesPerShard > 0 && sh.bytes > maxBytesPerShard) {
		back := sh.order.Back()
		if back == nil {
			break
		}
		reason := "count"
		if maxBytesPerShard > 0 && sh.bytes > maxBytesPerShard {
			reason = "size"
		}
		c.evictLocked(sh, back, reason)
	}
}

// Invalidate drops every cached entry whose value matches reports true
// for. The cache itself has no notion of which ids a cached query result
// touches, so the caller (the engine façade) supplies the predicate that
// inspects each cached value.
func (c *Cache) Invalidate(matches func(value any) bool) {
	for _, sh := range c.shards {
		sh.mu.Lock()
		var toEvict []*list.Element
		for _, el := range sh.items {
			if matches(el.Value.(*entry).value) {
				toEvict = append(toEvict, el)
			}
		}
		for _, el := range toEvict {
			c.evictLocked(sh, el, "invalidation")
		}
		sh.mu.Unlock()
	}
}

func (c *Cache) evictLocked(sh *shard, el *list.Element, reason string) {
	e := el.Value.(*entry)
	sh.order.Remove(el)
	delete(sh.items, e.key)
	sh.bytes -= e.byteSize

	switch reason {
	case "ttl_expired":
		c.evictTTL.Add(1)
	case "invalidation":
		c.evictInval.Add(1)
	case "size":
		c.evictSize.Add(1)
	default:
		c.evictCount.Add(1)
	}
	metrics.CacheEvictionsTotal.WithLabelValues(reason).Inc()
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits, Misses                             int64
	EvictedBySize, EvictedByTTL              int64
	EvictedByCount, EvictedByInvalidation    int64
	HitRate                                  float64
}

// Stats reports cache counters atomically.
func (c *Cache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Hits: hits, Misses: misses,
		EvictedBySize: c.evictSize.Load(), EvictedByTTL: c.evictTTL.Load(),
		EvictedByCount: c.evictCount.Load(), EvictedByInvalidation: c.evictInval.Load(),
		HitRate: rate,
	}
}
