/*
Package syncer keeps the durable and cache storage tiers converged. Writes
go through a two-phase commit that favors the durable tier on any
disagreement; a periodic reconcile pass (modeled on the teacher's
pkg/reconciler ticker loop) sweeps up anything the write path couldn't
finish synchronously — a failed cache write, or a durable commit that
landed after the cache copy was already compensated away.
*/
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/memoryengine/pkg/events"
	"github.com/cuemby/memoryengine/pkg/log"
	"github.com/cuemby/memoryengine/pkg/memerr"
	"github.com/cuemby/memoryengine/pkg/metrics"
	"github.com/cuemby/memoryengine/pkg/storage"
	"github.com/cuemby/memoryengine/pkg/types"
)

// Stats summarizes synchronizer activity, surfaced by the engine façade's
// status/monitoring summary.
type Stats struct {
	Synced            int64
	ConflictsResolved int64
	Errors            int64
}

// Syncer owns the two-tier write path and the background reconcile loop.
type Syncer struct {
	durable storage.TxBackend
	cache   storage.StorageBackend
	broker  *events.Broker
	logger  zerolog.Logger

	mu             sync.Mutex
	pendingDeletes []string // episode ids awaiting a compensating cache delete
	stats          Stats

	reconcileEvery time.Duration
	stopCh         chan struct{}
}

// New builds a Syncer. broker may be nil if lifecycle events aren't wired.
func New(durable storage.TxBackend, cache storage.StorageBackend, broker *events.Broker) *Syncer {
	return &Syncer{
		durable:        durable,
		cache:          cache,
		broker:         broker,
		logger:         log.WithComponent("syncer"),
		reconcileEvery: 10 * time.Second,
		stopCh:         make(chan struct{}),
	}
}

// Start begins the periodic reconcile loop.
func (s *Syncer) Start() { go s.run() }

// Stop halts the reconcile loop.
func (s *Syncer) Stop() { close(s.stopCh) }

func (s *Syncer) run() {
	ticker := time.NewTicker(s.reconcileEvery)
	defer ticker.Stop()

	s.logger.Info().Msg("syncer reconcile loop started")
	for {
		select {
		case <-ticker.C:
			if err := s.Reconcile(context.Background()); err != nil {
				s.logger.Error().Err(err).Msg("reconcile cycle failed")
			}
		case <-s.stopCh:
			s.logger.Info().Msg("syncer reconcile loop stopped")
			return
		}
	}
}

// PutEpisode runs the two-phase commit write path: stage the durable
// write inside an open transaction, best-effort write the cache tier, then
// finalize the durable commit. A durable failure aborts and bubbles up; a
// cache failure is logged and left for reconcile; a post-cache durable
// commit failure schedules a compensating cache delete.
func (s *Syncer) PutEpisode(ctx context.Context, ep *types.Episode) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SyncDuration)

	tx, err := s.durable.BeginTx(ctx)
	if err != nil {
		metrics.SyncErrorsTotal.Inc()
		return err
	}
	if err := s.durable.PutEpisodeTx(ctx, tx, ep); err != nil {
		_ = tx.Rollback(ctx)
		metrics.SyncErrorsTotal.Inc()
		return err
	}

	cacheErr := s.cache.PutEpisode(ctx, ep)
	if cacheErr != nil {
		s.logger.Warn().Err(cacheErr).Str("episode_id", ep.ID).Msg("cache write failed, will reconcile")
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.SyncErrorsTotal.Inc()
		if cacheErr == nil {
			// Cache now holds a copy the durable tier never committed;
			// compensate so the cache doesn't diverge ahead of durable.
			s.scheduleCompensatingDelete(ep.ID)
		}
		return memerr.StorageUnavailable("durable", err)
	}

	s.mu.Lock()
	s.stats.Synced++
	s.mu.Unlock()
	return nil
}

func (s *Syncer) scheduleCompensatingDelete(episodeID string) {
	s.mu.Lock()
	s.pendingDeletes = append(s.pendingDeletes, episodeID)
	s.mu.Unlock()
}

// Reconcile drains any pending compensating deletes and diffs episodes
// present in both tiers, resolving disagreements durable-wins by
// updated_at. It is safe to call concurrently with PutEpisode.
func (s *Syncer) Reconcile(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SyncDuration)

	s.drainCompensatingDeletes(ctx)

	durableEpisodes, err := s.durable.ListEpisodes(ctx, storage.EpisodeFilter{Limit: 0})
	if err != nil {
		metrics.SyncErrorsTotal.Inc()
		return err
	}

	for _, de := range durableEpisodes {
		ce, err := s.cache.GetEpisode(ctx, de.ID)
		if err != nil {
			// Missing from cache entirely: warm it.
			if err := s.cache.PutEpisode(ctx, de); err != nil {
				s.logger.Warn().Err(err).Str("episode_id", de.ID).Msg("failed to warm cache during reconcile")
				continue
			}
			s.recordSynced()
			continue
		}
		if ce.UpdatedAt.Before(de.UpdatedAt) {
			// Durable wins: overwrite the stale cache copy.
			if err := s.cache.PutEpisode(ctx, de); err != nil {
				s.logger.Warn().Err(err).Str("episode_id", de.ID).Msg("failed to reconcile stale cache entry")
				continue
			}
			s.recordConflict()
		}
	}
	return nil
}

func (s *Syncer) drainCompensatingDeletes(ctx context.Context) {
	s.mu.Lock()
	pending := s.pendingDeletes
	s.pendingDeletes = nil
	s.mu.Unlock()

	for _, id := range pending {
		if err := s.cache.DeleteEpisode(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("episode_id", id).Msg("compensating cache delete failed, retrying next cycle")
			s.scheduleCompensatingDelete(id)
			continue
		}
		s.recordSynced()
	}
}

func (s *Syncer) recordSynced() {
	s.mu.Lock()
	s.stats.Synced++
	s.mu.Unlock()
}

func (s *Syncer) recordConflict() {
	s.mu.Lock()
	s.stats.ConflictsResolved++
	s.mu.Unlock()
	metrics.SyncConflictsTotal.Inc()
	if s.broker != nil {
		s.broker.Publish(&events.Event{Type: events.EventSyncConflictResolved})
	}
}

// Stats returns a snapshot of synchronizer counters.
func (s *Syncer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// MergePattern additively merges an incoming pattern observation into
// whatever is already stored under the same signature — evidence sets
// union, success/failure counts sum — rather than one overwriting the
// other, since two extractor workers can independently observe the same
// tool sequence.
func MergePattern(existing, incoming *types.Pattern) *types.Pattern {
	if existing == nil {
		return incoming
	}
	merged := *existing
	merged.Effectiveness.Successes += incoming.Effectiveness.Successes
	merged.Effectiveness.Failures += incoming.Effectiveness.Failures
	if incoming.Effectiveness.SampleSize() > 0 {
		totalExisting := existing.Effectiveness.SampleSize()
		totalIncoming := incoming.Effectiveness.SampleSize()
		total := totalExisting + totalIncoming
		if total > 0 {
			merged.Effectiveness.AvgReward = (existing.Effectiveness.AvgReward*float64(totalExisting) +
				incoming.Effectiveness.AvgReward*float64(totalIncoming)) / float64(total)
		}
	}
	merged.Evidence = existing.Evidence.Union(incoming.Evidence)
	if incoming.UpdatedAt.After(merged.UpdatedAt) {
		merged.UpdatedAt = incoming.UpdatedAt
	}
	return &merged
}
