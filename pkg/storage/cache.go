package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/memoryengine/pkg/memerr"
	"github.com/cuemby/memoryengine/pkg/types"
)

var (
	bucketEpisodes      = []byte("episodes")
	bucketPatterns       = []byte("patterns")
	bucketHeuristics     = []byte("heuristics")
	bucketRelationships  = []byte("relationships")
)

// CacheStore implements StorageBackend on top of an embedded bbolt file. It
// is the local, warm read-through cache tier: fast, capacity-bounded, and
// allowed to lag the durable tier between reconcile passes.
type CacheStore struct {
	db *bolt.DB
}

// NewCacheStore opens (creating if absent) a bbolt-backed cache store at
// path, e.g. "./data/cache/memory.db".
func NewCacheStore(path string) (*CacheStore, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, fmt.Errorf("failed to prepare cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketEpisodes, bucketPatterns, bucketHeuristics, bucketRelationships} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &CacheStore{db: db}, nil
}

func (s *CacheStore) Close() error { return s.db.Close() }

func (s *CacheStore) PutEpisode(_ context.Context, ep *types.Episode) error {
	return s.put(bucketEpisodes, ep.ID, ep)
}

func (s *CacheStore) GetEpisode(_ context.Context, id string) (*types.Episode, error) {
	var ep types.Episode
	if err := s.get(bucketEpisodes, id, &ep); err != nil {
		return nil, err
	}
	return &ep, nil
}

func (s *CacheStore) ListEpisodes(_ context.Context, filter EpisodeFilter) ([]*types.Episode, error) {
	var out []*types.Episode
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEpisodes)
		return b.ForEach(func(_, v []byte) error {
			var ep types.Episode
			if err := json.Unmarshal(v, &ep); err != nil {
				return err
			}
			if episodeMatches(&ep, filter) {
				out = append(out, &ep)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return applyPage(out, filter.Offset, filter.Limit), nil
}

func (s *CacheStore) DeleteEpisode(_ context.Context, id string) error {
	return s.delete(bucketEpisodes, id)
}

func (s *CacheStore) PutPattern(_ context.Context, p *types.Pattern) error {
	return s.put(bucketPatterns, p.ID, p)
}

func (s *CacheStore) GetPattern(_ context.Context, id string) (*types.Pattern, error) {
	var p types.Pattern
	if err := s.get(bucketPatterns, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *CacheStore) ListPatterns(_ context.Context, filter PatternFilter) ([]*types.Pattern, error) {
	var out []*types.Pattern
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPatterns)
		return b.ForEach(func(_, v []byte) error {
			var p types.Pattern
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			if patternMatches(&p, filter) {
				out = append(out, &p)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return applyPage(out, filter.Offset, filter.Limit), nil
}

func (s *CacheStore) PutHeuristic(_ context.Context, h *types.Heuristic) error {
	return s.put(bucketHeuristics, h.ID, h)
}

func (s *CacheStore) GetHeuristic(_ context.Context, id string) (*types.Heuristic, error) {
	var h types.Heuristic
	if err := s.get(bucketHeuristics, id, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *CacheStore) ListHeuristics(_ context.Context) ([]*types.Heuristic, error) {
	var out []*types.Heuristic
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHeuristics)
		return b.ForEach(func(_, v []byte) error {
			var h types.Heuristic
			if err := json.Unmarshal(v, &h); err != nil {
				return err
			}
			out = append(out, &h)
			return nil
		})
	})
	return out, err
}

func (s *CacheStore) PutRelationship(_ context.Context, r *types.EpisodeRelationship) error {
	return s.put(bucketRelationships, r.Key(), r)
}

func (s *CacheStore) ListRelationships(_ context.Context, episodeID string, dir RelationshipDirection) ([]*types.EpisodeRelationship, error) {
	var out []*types.EpisodeRelationship
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRelationships)
		return b.ForEach(func(_, v []byte) error {
			var r types.EpisodeRelationship
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if relationshipMatches(&r, episodeID, dir) {
				out = append(out, &r)
			}
			return nil
		})
	})
	return out, err
}

func (s *CacheStore) DeleteRelationship(_ context.Context, r *types.EpisodeRelationship) error {
	return s.delete(bucketRelationships, r.Key())
}

// BeginTx returns a no-op transaction: the cache tier commits individual
// puts immediately and relies on the durable tier for 2PC ordering.
func (s *CacheStore) BeginTx(_ context.Context) (Tx, error) {
	return noopTx{}, nil
}

type noopTx struct{}

func (noopTx) Commit(context.Context) error   { return nil }
func (noopTx) Rollback(context.Context) error { return nil }

func (s *CacheStore) put(bucket []byte, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return memerr.Serialization("marshal cache entry", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *CacheStore) get(bucket []byte, key string, v any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return memerr.NotFound(string(bucket), key)
		}
		if err := json.Unmarshal(data, v); err != nil {
			return memerr.Serialization("unmarshal cache entry", err)
		}
		return nil
	})
}

func (s *CacheStore) delete(bucket []byte, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

func episodeMatches(ep *types.Episode, f EpisodeFilter) bool {
	if f.Domain != "" && ep.Context.Domain != f.Domain {
		return false
	}
	if f.TaskType != "" && ep.TaskType != f.TaskType {
		return false
	}
	if f.OnlyComplete && !ep.IsComplete() {
		return false
	}
	if f.Since != nil && ep.UpdatedAt.Before(*f.Since) {
		return false
	}
	for _, tag := range f.Tags {
		if !ep.HasTag(tag) {
			return false
		}
	}
	return true
}

func patternMatches(p *types.Pattern, f PatternFilter) bool {
	if f.PatternType != "" && p.PatternType != f.PatternType {
		return false
	}
	if f.MinSuccessRate > 0 && p.Effectiveness.SuccessRate() < f.MinSuccessRate {
		return false
	}
	return true
}

func relationshipMatches(r *types.EpisodeRelationship, episodeID string, dir RelationshipDirection) bool {
	switch dir {
	case DirectionOutgoing:
		return r.SourceID == episodeID
	case DirectionIncoming:
		return r.TargetID == episodeID
	default:
		return r.SourceID == episodeID || r.TargetID == episodeID
	}
}

func applyPage[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
