package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cuemby/memoryengine/pkg/memerr"
	"github.com/cuemby/memoryengine/pkg/types"
)

// NewDurableBackend opens the durable tier described by cfg.URL. A
// "postgres://" (or any other real DSN) URL opens a pooled DurableStore; a
// "file:" URL — reserved for tests and local experimentation, per spec.md
// §6 — routes to memDurableStore, a degenerate in-memory adapter that
// satisfies the same StorageBackend contract without a running server.
func NewDurableBackend(cfg DurableConfig) (StorageBackend, error) {
	if strings.HasPrefix(cfg.URL, "file:") {
		return newMemDurableStore(), nil
	}
	return NewDurableStore(cfg)
}

// memDurableStore is a SQL-shaped, in-memory stand-in for DurableStore. It
// exists only so that synchronizer and engine tests can exercise the
// two-tier write path without a postgres instance; it is never selected in
// production (NewDurableBackend only returns it for "file:" URLs).
type memDurableStore struct {
	mu            sync.RWMutex
	episodes      map[string]*types.Episode
	patterns      map[string]*types.Pattern
	heuristics    map[string]*types.Heuristic
	relationships map[string]*types.EpisodeRelationship
}

func newMemDurableStore() *memDurableStore {
	return &memDurableStore{
		episodes:      make(map[string]*types.Episode),
		patterns:      make(map[string]*types.Pattern),
		heuristics:    make(map[string]*types.Heuristic),
		relationships: make(map[string]*types.EpisodeRelationship),
	}
}

func (s *memDurableStore) Close() error { return nil }

func (s *memDurableStore) PutEpisode(_ context.Context, ep *types.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := ep.Clone()
	s.episodes[ep.ID] = cp
	return nil
}

// PutEpisodeTx ignores the passed Tx: memDurableStore applies writes
// immediately and has no real transactional isolation to stage against.
func (s *memDurableStore) PutEpisodeTx(ctx context.Context, _ Tx, ep *types.Episode) error {
	return s.PutEpisode(ctx, ep)
}

func (s *memDurableStore) GetEpisode(_ context.Context, id string) (*types.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, ok := s.episodes[id]
	if !ok {
		return nil, memerr.NotFound("episode", id)
	}
	return ep.Clone(), nil
}

func (s *memDurableStore) ListEpisodes(_ context.Context, filter EpisodeFilter) ([]*types.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Episode
	for _, ep := range s.episodes {
		if episodeMatches(ep, filter) {
			out = append(out, ep.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return applyPage(out, filter.Offset, filter.Limit), nil
}

func (s *memDurableStore) DeleteEpisode(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.episodes, id)
	return nil
}

func (s *memDurableStore) PutPattern(_ context.Context, p *types.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.patterns[p.ID] = &cp
	return nil
}

func (s *memDurableStore) GetPattern(_ context.Context, id string) (*types.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[id]
	if !ok {
		return nil, memerr.NotFound("pattern", id)
	}
	cp := *p
	return &cp, nil
}

func (s *memDurableStore) GetPatternBySignature(_ context.Context, signature string) (*types.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.patterns {
		if p.Signature == signature {
			cp := *p
			return &cp, nil
		}
	}
	return nil, memerr.NotFound("pattern", signature)
}

func (s *memDurableStore) ListPatterns(_ context.Context, filter PatternFilter) ([]*types.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Pattern
	for _, p := range s.patterns {
		if patternMatches(p, filter) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return applyPage(out, filter.Offset, filter.Limit), nil
}

func (s *memDurableStore) PutHeuristic(_ context.Context, h *types.Heuristic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *h
	s.heuristics[h.ID] = &cp
	return nil
}

func (s *memDurableStore) GetHeuristic(_ context.Context, id string) (*types.Heuristic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.heuristics[id]
	if !ok {
		return nil, memerr.NotFound("heuristic", id)
	}
	cp := *h
	return &cp, nil
}

func (s *memDurableStore) ListHeuristics(_ context.Context) ([]*types.Heuristic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Heuristic, 0, len(s.heuristics))
	for _, h := range s.heuristics {
		cp := *h
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *memDurableStore) PutRelationship(_ context.Context, r *types.EpisodeRelationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.relationships[r.Key()] = &cp
	return nil
}

func (s *memDurableStore) ListRelationships(_ context.Context, episodeID string, dir RelationshipDirection) ([]*types.EpisodeRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.EpisodeRelationship
	for _, r := range s.relationships {
		if relationshipMatches(r, episodeID, dir) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memDurableStore) DeleteRelationship(_ context.Context, r *types.EpisodeRelationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.relationships, r.Key())
	return nil
}

// memTx is a no-op transaction: writes staged through PutEpisodeTx apply
// immediately under the store's own lock, and Commit and Rollback do
// nothing, since there is no real transactional storage underneath.
type memTx struct{ store *memDurableStore }

func (memTx) Commit(context.Context) error   { return nil }
func (memTx) Rollback(context.Context) error { return nil }

func (s *memDurableStore) BeginTx(_ context.Context) (Tx, error) {
	return memTx{store: s}, nil
}
