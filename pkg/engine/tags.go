package engine

import (
	"context"

	"github.com/cuemby/memoryengine/pkg/storage"
	"github.com/cuemby/memoryengine/pkg/types"
)

// loadMutableEpisode fetches episodeID cache-first, falling back to the
// durable tier, and reports whether the episode is complete: an
// in-progress episode is saved back to the cache tier only, a completed
// one to both tiers through the synchronizer.
func (e *Engine) loadMutableEpisode(ctx context.Context, episodeID string) (*types.Episode, bool, error) {
	if ep, err := e.cache.GetEpisode(ctx, episodeID); err == nil {
		return ep, ep.IsComplete(), nil
	}
	ep, err := e.durable.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, false, err
	}
	return ep, ep.IsComplete(), nil
}

func (e *Engine) saveMutableEpisode(ctx context.Context, ep *types.Episode, wasComplete bool) error {
	if wasComplete {
		return e.sync.PutEpisode(ctx, ep)
	}
	return e.cache.PutEpisode(ctx, ep)
}

// AddTags normalizes and merges raw tag strings into an episode's tag set.
func (e *Engine) AddTags(ctx context.Context, episodeID string, raw ...string) ([]string, error) {
	lock := e.lockFor(episodeID)
	lock.Lock()
	defer lock.Unlock()

	ep, complete, err := e.loadMutableEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	ep.AddTags(raw...)
	if err := e.saveMutableEpisode(ctx, ep, complete); err != nil {
		return nil, err
	}
	e.invalidateQueriesFor(episodeID)
	return ep.Tags, nil
}

// RemoveTags drops the named (normalized) tags from an episode's tag set.
func (e *Engine) RemoveTags(ctx context.Context, episodeID string, raw ...string) ([]string, error) {
	lock := e.lockFor(episodeID)
	lock.Lock()
	defer lock.Unlock()

	ep, complete, err := e.loadMutableEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	ep.RemoveTags(raw...)
	if err := e.saveMutableEpisode(ctx, ep, complete); err != nil {
		return nil, err
	}
	e.invalidateQueriesFor(episodeID)
	return ep.Tags, nil
}

// SetTags replaces an episode's tag set wholesale.
func (e *Engine) SetTags(ctx context.Context, episodeID string, raw ...string) ([]string, error) {
	lock := e.lockFor(episodeID)
	lock.Lock()
	defer lock.Unlock()

	ep, complete, err := e.loadMutableEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	ep.SetTags(raw...)
	if err := e.saveMutableEpisode(ctx, ep, complete); err != nil {
		return nil, err
	}
	e.invalidateQueriesFor(episodeID)
	return ep.Tags, nil
}

// GetTags returns an episode's current (normalized) tag set.
func (e *Engine) GetTags(ctx context.Context, episodeID string) ([]string, error) {
	ep, _, err := e.loadMutableEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	return ep.Tags, nil
}

// SearchByTags returns every durable-tier episode carrying all of the
// given (normalized) tags.
func (e *Engine) SearchByTags(ctx context.Context, tags []string) ([]*types.Episode, error) {
	return e.ListEpisodes(ctx, storage.EpisodeFilter{Tags: types.NormalizeTags(tags)})
}
