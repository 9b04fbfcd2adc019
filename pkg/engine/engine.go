/*
Package engine is the memory façade: the single owner of every storage
handle, cache, index, and background loop the rest of this module
implements. Nothing outside this package holds a StorageBackend, a
Graph, or a Queue directly — callers (a CLI, a transport layer) talk to
an *Engine and nothing else, the same way the teacher's cmd/warren talks
to a *manager.Manager or *worker.Worker and never touches a containerd
client directly.

Tests build independent engines via New, each with its own in-memory
durable tier (a "file:" DurableConfig.URL) and a throwaway bbolt cache
file, so engine state never leaks across test cases.
*/
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/memoryengine/pkg/capacity"
	"github.com/cuemby/memoryengine/pkg/circuitbreaker"
	"github.com/cuemby/memoryengine/pkg/config"
	"github.com/cuemby/memoryengine/pkg/embeddings"
	"github.com/cuemby/memoryengine/pkg/events"
	"github.com/cuemby/memoryengine/pkg/extract"
	"github.com/cuemby/memoryengine/pkg/graph"
	"github.com/cuemby/memoryengine/pkg/log"
	"github.com/cuemby/memoryengine/pkg/memerr"
	"github.com/cuemby/memoryengine/pkg/metrics"
	"github.com/cuemby/memoryengine/pkg/querycache"
	"github.com/cuemby/memoryengine/pkg/queue"
	"github.com/cuemby/memoryengine/pkg/quality"
	"github.com/cuemby/memoryengine/pkg/retrieval"
	"github.com/cuemby/memoryengine/pkg/spatiotemporal"
	"github.com/cuemby/memoryengine/pkg/storage"
	"github.com/cuemby/memoryengine/pkg/syncer"
	"github.com/cuemby/memoryengine/pkg/types"
)

// patternSignatureLookup is satisfied by both storage.DurableStore and its
// in-memory test stand-in. It's narrower than storage.StorageBackend
// because only the durable tier is expected to serve it.
type patternSignatureLookup interface {
	GetPatternBySignature(ctx context.Context, signature string) (*types.Pattern, error)
}

// Engine is the memory façade. One Engine instance owns one durable tier,
// one cache tier, and every in-process component built on top of them.
type Engine struct {
	cfg config.Config

	durable storage.TxBackend
	cache   *storage.CacheStore
	sync    *syncer.Syncer
	broker  *events.Broker

	breaker  *circuitbreaker.Breaker
	qcache   *querycache.Cache
	capacity *capacity.Manager
	graph    *graph.Graph
	index    *spatiotemporal.Index
	retrieve *retrieval.Retriever
	queue    *queue.Queue
	embedder embeddings.Embedder

	logger zerolog.Logger

	episodeLocksMu sync.Mutex
	episodeLocks   map[string]*sync.Mutex

	episodeCount atomicCounter
}

// atomicCounter is a plain mutex-guarded counter; the capacity manager
// only needs an approximate live count to decide whether an insert would
// overflow max_episodes, not a precise one under concurrent writers.
type atomicCounter struct {
	mu  sync.Mutex
	val int
}

func (c *atomicCounter) add(n int) {
	c.mu.Lock()
	c.val += n
	c.mu.Unlock()
}

func (c *atomicCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.val
}

// New builds an Engine from cfg: opens both storage tiers, wires the
// synchronizer, query cache, capacity manager, relationship graph,
// spatiotemporal index, hierarchical retriever, extraction queue, and
// durable-tier circuit breaker, and starts every background loop. Callers
// must call Stop when done.
func New(cfg config.Config) (*Engine, error) {
	durable, err := storage.NewDurableBackend(storage.DurableConfig{
		URL:   cfg.Database.URL,
		Token: cfg.Database.Token,
	})
	if err != nil {
		return nil, err
	}
	txDurable, ok := durable.(storage.TxBackend)
	if !ok {
		durable.Close()
		return nil, memerr.InternalInvariant("durable backend does not support transactional writes")
	}

	cache, err := storage.NewCacheStore(cfg.Database.CachePath)
	if err != nil {
		durable.Close()
		return nil, err
	}

	broker := events.NewBroker()
	broker.Start()

	sc := syncer.New(txDurable, cache, broker)
	sc.Start()

	breaker := circuitbreaker.New(circuitbreaker.Config{Name: "durable"})

	qcache := querycache.New(querycache.Config{
		DefaultTTL: time.Duration(cfg.Storage.CacheTTLSeconds) * time.Second,
		Sampler:    func() querycache.PressureLevel { return querycache.PressureLow },
	})

	capMgr := capacity.New(cfg.Storage.MaxEpisodesCache, capacity.PolicyRelevanceWeighted)

	g := graph.New()
	idx := spatiotemporal.New(spatiotemporal.GranularityDay)

	var embedder embeddings.Embedder = embeddings.NewLocalEmbedder(cfg.Embeddings.Dimension)
	if cfg.Embeddings.Enabled {
		switch embeddings.Provider(cfg.Embeddings.Provider) {
		case embeddings.ProviderLocal, "":
			// keep the local embedder
		default:
			embedder = embeddings.NewHTTPEmbedder(embeddings.HTTPConfig{
				Provider:  embeddings.Provider(cfg.Embeddings.Provider),
				Model:     cfg.Embeddings.Model,
				Dimension: cfg.Embeddings.Dimension,
				Timeout:   time.Duration(cfg.Embeddings.TimeoutSeconds) * time.Second,
			})
		}
	}

	e := &Engine{
		cfg:          cfg,
		durable:      txDurable,
		cache:        cache,
		sync:         sc,
		broker:       broker,
		breaker:      breaker,
		qcache:       qcache,
		capacity:     capMgr,
		graph:        g,
		index:        idx,
		embedder:     embedder,
		logger:       log.WithComponent("engine"),
		episodeLocks: make(map[string]*sync.Mutex),
	}
	e.retrieve = retrieval.New(idx, e.loadEpisodeForRetrieval)

	pipeline := extract.NewPipeline(extract.Deps{
		LoadEpisode:           e.loadEpisode,
		RecentDomainEpisodes:  e.recentDomainEpisodes,
		GetPatternBySignature: e.getPatternBySignature,
		PutPattern:            e.durable.PutPattern,
		PutHeuristic:          e.durable.PutHeuristic,
	})
	e.queue = queue.New(queue.Config{}, pipeline.Run)
	e.queue.Start()

	if err := e.rebuildIndexesFromDurable(context.Background()); err != nil {
		e.logger.Warn().Err(err).Msg("failed to warm indexes from durable tier at startup")
	}

	metrics.RegisterComponent("durable", true, "connected")
	metrics.RegisterComponent("synchronizer", true, "running")
	metrics.RegisterComponent("circuit_breaker", true, string(breaker.State()))
	metrics.RegisterComponent("queue", true, "running")

	return e, nil
}

// rebuildIndexesFromDurable replays every durably stored episode and
// DependsOn relationship into the in-memory graph and spatiotemporal
// index, since both are process-local and would otherwise start empty on
// every restart.
func (e *Engine) rebuildIndexesFromDurable(ctx context.Context) error {
	episodes, err := e.durable.ListEpisodes(ctx, storage.EpisodeFilter{})
	if err != nil {
		return err
	}
	for _, ep := range episodes {
		e.index.Insert(ep.Context.Domain, string(ep.TaskType), spatiotemporal.Entry{
			EpisodeID: ep.ID, Timestamp: ep.UpdatedAt, Quality: ep.QualityScore,
		})
		for _, r := range mustListRelationships(ctx, e.durable, ep.ID, storage.DirectionOutgoing) {
			if r.Type == types.RelDependsOn {
				_ = e.graph.Add(r)
			}
		}
		e.episodeCount.add(1)
	}
	return nil
}

func mustListRelationships(ctx context.Context, s storage.StorageBackend, episodeID string, dir storage.RelationshipDirection) []*types.EpisodeRelationship {
	rs, err := s.ListRelationships(ctx, episodeID, dir)
	if err != nil {
		return nil
	}
	return rs
}

// Stop halts every background loop and closes both storage tiers. Safe to
// call once; calling it twice will return an error from the second Close.
func (e *Engine) Stop() error {
	metrics.UpdateComponent("durable", false, "stopped")
	metrics.UpdateComponent("synchronizer", false, "stopped")
	metrics.UpdateComponent("circuit_breaker", false, "stopped")
	metrics.UpdateComponent("queue", false, "stopped")

	e.queue.Stop()
	e.sync.Stop()
	e.qcache.Stop()
	e.broker.Stop()
	if err := e.cache.Close(); err != nil {
		e.logger.Warn().Err(err).Msg("failed to close cache tier")
	}
	return e.durable.Close()
}

// lockFor returns the per-episode mutex serializing step appends, creating
// it on first use. Locks are never removed: episode ids are not reused, so
// the map only grows with the number of distinct episodes ever touched in
// this process's lifetime.
func (e *Engine) lockFor(episodeID string) *sync.Mutex {
	e.episodeLocksMu.Lock()
	defer e.episodeLocksMu.Unlock()
	m, ok := e.episodeLocks[episodeID]
	if !ok {
		m = &sync.Mutex{}
		e.episodeLocks[episodeID] = m
	}
	return m
}

// loadEpisode is the extraction pipeline's episode loader: cache first,
// falling back to durable on a cache miss.
func (e *Engine) loadEpisode(ctx context.Context, id string) (*types.Episode, error) {
	return e.getEpisodeThrough(ctx, id)
}

// loadEpisodeForRetrieval adapts getEpisodeThrough to the retrieval
// package's EpisodeLoader shape (identical signature; kept as a distinct
// method so the two call sites can diverge later, e.g. to add stale_ok
// degraded-mode handling independently).
func (e *Engine) loadEpisodeForRetrieval(ctx context.Context, id string) (*types.Episode, error) {
	return e.getEpisodeThrough(ctx, id)
}

func (e *Engine) getEpisodeThrough(ctx context.Context, id string) (*types.Episode, error) {
	if ep, err := e.cache.GetEpisode(ctx, id); err == nil {
		return ep, nil
	}
	var ep *types.Episode
	err := e.breaker.Execute(ctx, func(ctx context.Context) error {
		var innerErr error
		ep, innerErr = e.durable.GetEpisode(ctx, id)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return ep, nil
}

func (e *Engine) recentDomainEpisodes(ctx context.Context, domain string, limit int) ([]*types.Episode, error) {
	return e.durable.ListEpisodes(ctx, storage.EpisodeFilter{Domain: domain, OnlyComplete: true, Limit: limit})
}

func (e *Engine) getPatternBySignature(ctx context.Context, signature string) (*types.Pattern, error) {
	lookup, ok := e.durable.(patternSignatureLookup)
	if !ok {
		return nil, memerr.InternalInvariant("durable tier does not support signature lookup")
	}
	return lookup.GetPatternBySignature(ctx, signature)
}

// invalidateQueriesFor drops every cached retrieval result that could have
// included episodeID, per the broad-invalidate-on-any-mutation policy
// documented as an accepted open question (a finer per-episode dependency
// index is future work).
func (e *Engine) invalidateQueriesFor(episodeID string) {
	e.qcache.Invalidate(func(v any) bool {
		candidates, ok := v.([]retrieval.Candidate)
		if !ok {
			return false
		}
		for _, c := range candidates {
			if c.Episode != nil && c.Episode.ID == episodeID {
				return true
			}
		}
		return false
	})
}

// Quality re-exports the pre-storage gate so callers that construct their
// own episodes (e.g. a CLI importer) can pre-check before calling
// CompleteEpisode.
func (e *Engine) Quality(ep *types.Episode) (float64, error) {
	return quality.Assess(ep, e.cfg.Storage.QualityThreshold)
}

// SyncStats exposes the synchronizer's convergence counters.
func (e *Engine) SyncStats() syncer.Stats { return e.sync.Stats() }

// CacheStats exposes the query cache's hit/miss/eviction counters.
func (e *Engine) CacheStats() querycache.Stats { return e.qcache.Stats() }

// QueueStats exposes the extraction queue's throughput counters.
func (e *Engine) QueueStats() queue.Stats { return e.queue.Stats() }

// MonitoringSummary exposes the extraction queue's count/success-rate/
// avg-duration rollup, the lightweight AgentMonitor-style summary a CLI
// or metrics layer can poll without reaching into per-worker internals.
func (e *Engine) MonitoringSummary() queue.Summary { return e.queue.Summary() }

// BreakerState reports the durable tier circuit breaker's current state.
func (e *Engine) BreakerState() circuitbreaker.State { return e.breaker.State() }

// RefreshHealth recomputes each registered component's status from live
// engine state: a tripped circuit breaker, a backed-up extraction queue,
// or a synchronizer that has logged errors, instead of the one-time
// "healthy" registered at startup.
func (e *Engine) RefreshHealth() {
	breakerState := e.breaker.State()
	breakerHealthy := breakerState != circuitbreaker.StateOpen
	metrics.UpdateComponent("circuit_breaker", breakerHealthy, string(breakerState))
	metrics.UpdateComponent("durable", breakerHealthy, "circuit breaker "+string(breakerState))

	syncStats := e.sync.Stats()
	syncHealthy := syncStats.Errors == 0
	syncMsg := "no errors observed"
	if !syncHealthy {
		syncMsg = fmt.Sprintf("%d sync error(s) observed", syncStats.Errors)
	}
	metrics.UpdateComponent("synchronizer", syncHealthy, syncMsg)

	qs := e.queue.Stats()
	queueCapacity := e.queue.Capacity()
	queueHealthy := queueCapacity == 0 || int(qs.CurrentQueueSize) < queueCapacity
	metrics.UpdateComponent("queue", queueHealthy, fmt.Sprintf("depth %d/%d", qs.CurrentQueueSize, queueCapacity))
}

// Health reports the engine's overall health, recomputed from live
// component state.
func (e *Engine) Health() metrics.HealthStatus {
	e.RefreshHealth()
	return metrics.GetHealth()
}

// Readiness reports whether every critical component (durable tier,
// synchronizer, circuit breaker, extraction queue) is ready to serve.
func (e *Engine) Readiness() metrics.HealthStatus {
	e.RefreshHealth()
	return metrics.GetReadiness()
}
