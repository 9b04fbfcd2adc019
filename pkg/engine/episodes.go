package engine

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cuemby/memoryengine/pkg/capacity"
	"github.com/cuemby/memoryengine/pkg/events"
	"github.com/cuemby/memoryengine/pkg/graph"
	"github.com/cuemby/memoryengine/pkg/memerr"
	"github.com/cuemby/memoryengine/pkg/metrics"
	"github.com/cuemby/memoryengine/pkg/quality"
	"github.com/cuemby/memoryengine/pkg/spatiotemporal"
	"github.com/cuemby/memoryengine/pkg/storage"
	"github.com/cuemby/memoryengine/pkg/types"
)

var validate = validator.New()

// StartEpisodeRequest is the start_episode tool's argument shape.
type StartEpisodeRequest struct {
	Description string            `validate:"required"`
	Domain      string            `validate:"required"`
	TaskType    types.TaskType     `validate:"required"`
	Complexity  types.Complexity
	ProjectPath string
	Tags        []string
}

// StartEpisode opens a new, incomplete episode. Incomplete episodes live
// only in the cache tier: they are mutable scratch state until
// CompleteEpisode commits them through the synchronizer, so there is
// nothing for the durable tier to do with them yet.
func (e *Engine) StartEpisode(ctx context.Context, req StartEpisodeRequest) (*types.Episode, error) {
	if err := validate.Struct(req); err != nil {
		return nil, memerr.InvalidInput("start_episode", err.Error())
	}
	if err := types.ValidateStartEpisode(req.Description, req.Domain); err != nil {
		return nil, err
	}

	now := time.Now()
	ep := &types.Episode{
		ID:          types.NewEpisodeID(),
		Description: req.Description,
		TaskType:    req.TaskType,
		Context: types.EpisodeContext{
			Domain:      req.Domain,
			Complexity:  req.Complexity,
			ProjectPath: req.ProjectPath,
			Tags:        append([]string(nil), req.Tags...),
		},
		StartTime:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
		AccessedAt: now,
	}
	ep.AddTags(req.Tags...)

	if err := e.cache.PutEpisode(ctx, ep); err != nil {
		return nil, err
	}
	return ep.Clone(), nil
}

// LogStep appends one execution step to an in-progress episode. Appends
// are serialized by the episode's lock so step_number stays monotonically
// increasing even under concurrent callers.
func (e *Engine) LogStep(ctx context.Context, episodeID, tool, action string, parameters map[string]any, result *types.StepResult, latencyMS int64) (*types.ExecutionStep, error) {
	lock := e.lockFor(episodeID)
	lock.Lock()
	defer lock.Unlock()

	ep, err := e.cache.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if ep.IsComplete() {
		return nil, memerr.InvalidInput("episode_id", "episode is already complete")
	}

	step := types.ExecutionStep{
		StepNumber: ep.NextStepNumber(),
		Tool:       tool,
		Action:     action,
		Parameters: parameters,
		Result:     result,
		LatencyMS:  latencyMS,
		Timestamp:  time.Now(),
	}
	ep.Steps = append(ep.Steps, step)
	ep.UpdatedAt = step.Timestamp

	if err := e.cache.PutEpisode(ctx, ep); err != nil {
		return nil, err
	}
	return &step, nil
}

// CompleteEpisode finalizes an episode with its outcome. Completing an
// already-complete episode is a no-op: outcome and end_time are left
// untouched and nil is returned, satisfying the idempotence invariant.
func (e *Engine) CompleteEpisode(ctx context.Context, episodeID string, outcome types.Outcome) error {
	lock := e.lockFor(episodeID)
	lock.Lock()
	defer lock.Unlock()

	ep, err := e.cache.GetEpisode(ctx, episodeID)
	if err != nil {
		return err
	}
	if ep.IsComplete() {
		return nil
	}

	now := time.Now()
	ep.EndTime = &now
	ep.Outcome = &outcome
	ep.UpdatedAt = now

	score, err := quality.Assess(ep, e.cfg.Storage.QualityThreshold)
	ep.QualityScore = score
	if err != nil {
		metrics.QualityRejectionsTotal.Inc()
		e.broker.Publish(&events.Event{
			Type: events.EventEpisodeRejected, Message: err.Error(),
			Metadata: map[string]string{"episode_id": episodeID},
		})
		return err
	}

	if e.embedder != nil {
		if vecs, embedErr := e.embedder.Embed(ctx, []string{ep.Description}); embedErr == nil && len(vecs) == 1 {
			ep.Embedding = vecs[0]
		}
	}

	overBy := 1
	if !e.capacity.CanStore(e.episodeCount.get(), overBy) {
		if err := e.evictForCapacity(ctx, overBy); err != nil {
			return err
		}
	}

	if err := e.sync.PutEpisode(ctx, ep); err != nil {
		return err
	}
	e.episodeCount.add(1)

	e.index.Insert(ep.Context.Domain, string(ep.TaskType), spatiotemporal.Entry{
		EpisodeID: ep.ID, Timestamp: ep.UpdatedAt, Quality: ep.QualityScore,
	})
	e.invalidateQueriesFor(ep.ID)

	metrics.EpisodesTotal.WithLabelValues(string(outcome.Status)).Inc()
	metrics.EpisodesStored.Set(float64(e.episodeCount.get()))
	e.broker.Publish(&events.Event{
		Type: events.EventEpisodeCompleted, Metadata: map[string]string{"episode_id": episodeID},
	})

	if err := e.queue.Enqueue(ep.ID); err != nil {
		e.logger.Warn().Err(err).Str("episode_id", ep.ID).Msg("extraction enqueue failed, pattern learning skipped for this episode")
	}
	return nil
}

// evictForCapacity asks the capacity manager which episodes to drop (by
// the configured policy) and deletes them from both tiers and the
// spatiotemporal index, freeing room for overBy more inserts.
func (e *Engine) evictForCapacity(ctx context.Context, overBy int) error {
	durableEpisodes, err := e.durable.ListEpisodes(ctx, storage.EpisodeFilter{})
	if err != nil {
		return err
	}
	snapshots := make([]capacity.Snapshot, 0, len(durableEpisodes))
	for _, ep := range durableEpisodes {
		snapshots = append(snapshots, capacity.SnapshotFromEpisode(ep))
	}
	ids := e.capacity.EvictIfNeeded(snapshots, overBy, time.Now())
	if len(ids) == 0 && overBy > 0 && e.cfg.Storage.MaxEpisodesCache > 0 {
		return memerr.CapacityExceeded("episodes")
	}
	for _, id := range ids {
		if err := e.DeleteEpisode(ctx, id); err != nil {
			e.logger.Warn().Err(err).Str("episode_id", id).Msg("capacity eviction delete failed")
			continue
		}
		metrics.EvictionsTotal.WithLabelValues(string(e.capacity.Policy)).Inc()
	}
	return nil
}

// GetEpisode fetches an episode, cache-first, falling back to the
// circuit-breaker-guarded durable tier. Access bookkeeping (AccessedAt,
// AccessCount) is updated best-effort in the cache tier only, since it's
// advisory input to the capacity manager, not authoritative state.
func (e *Engine) GetEpisode(ctx context.Context, episodeID string) (*types.Episode, error) {
	ep, err := e.getEpisodeThrough(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	ep.AccessedAt = time.Now()
	ep.AccessCount++
	if putErr := e.cache.PutEpisode(ctx, ep); putErr != nil {
		e.logger.Debug().Err(putErr).Str("episode_id", episodeID).Msg("access bookkeeping write failed")
	}
	return ep.Clone(), nil
}

// ListEpisodes serves list_episodes against the durable tier, the source
// of truth for cross-episode queries, guarded by the circuit breaker.
func (e *Engine) ListEpisodes(ctx context.Context, filter storage.EpisodeFilter) ([]*types.Episode, error) {
	var out []*types.Episode
	err := e.breaker.Execute(ctx, func(ctx context.Context) error {
		var innerErr error
		out, innerErr = e.durable.ListEpisodes(ctx, filter)
		return innerErr
	})
	return out, err
}

// DeleteEpisode removes an episode from both tiers, the spatiotemporal
// index, and any relationship edges touching it.
func (e *Engine) DeleteEpisode(ctx context.Context, episodeID string) error {
	lock := e.lockFor(episodeID)
	lock.Lock()
	defer lock.Unlock()

	for _, r := range e.graph.Neighbors(episodeID, graph.Both, nil) {
		rr := r
		e.graph.Remove(&rr)
		_ = e.durable.DeleteRelationship(ctx, &rr)
	}

	if err := e.durable.DeleteEpisode(ctx, episodeID); err != nil && !memerr.KindIs(err, memerr.KindNotFound) {
		return err
	}
	if err := e.cache.DeleteEpisode(ctx, episodeID); err != nil && !memerr.KindIs(err, memerr.KindNotFound) {
		e.logger.Warn().Err(err).Str("episode_id", episodeID).Msg("cache delete failed")
	}
	e.index.Delete(episodeID)
	e.invalidateQueriesFor(episodeID)
	e.episodeCount.add(-1)
	metrics.EpisodesStored.Set(float64(e.episodeCount.get()))

	e.broker.Publish(&events.Event{
		Type: events.EventEpisodeDeleted, Metadata: map[string]string{"episode_id": episodeID},
	})
	return nil
}
