package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/memoryengine/pkg/memerr"
	"github.com/cuemby/memoryengine/pkg/types"
)

func newTestCacheStore(t *testing.T) *CacheStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := NewCacheStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCacheStorePutGetEpisode(t *testing.T) {
	s := newTestCacheStore(t)
	ctx := context.Background()

	ep := &types.Episode{ID: "e1", Description: "fix the bug", Context: types.EpisodeContext{Domain: "backend"}}
	require.NoError(t, s.PutEpisode(ctx, ep))

	got, err := s.GetEpisode(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "fix the bug", got.Description)
}

func TestCacheStoreGetMissingEpisode(t *testing.T) {
	s := newTestCacheStore(t)
	_, err := s.GetEpisode(context.Background(), "missing")
	assert.True(t, memerr.KindIs(err, memerr.KindNotFound))
}

func TestCacheStoreDeleteEpisode(t *testing.T) {
	s := newTestCacheStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutEpisode(ctx, &types.Episode{ID: "e1"}))
	require.NoError(t, s.DeleteEpisode(ctx, "e1"))

	_, err := s.GetEpisode(ctx, "e1")
	assert.True(t, memerr.KindIs(err, memerr.KindNotFound))
}

func TestCacheStoreListEpisodesFiltersAndSorts(t *testing.T) {
	s := newTestCacheStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.PutEpisode(ctx, &types.Episode{
		ID: "older", Context: types.EpisodeContext{Domain: "backend"}, UpdatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, s.PutEpisode(ctx, &types.Episode{
		ID: "newer", Context: types.EpisodeContext{Domain: "backend"}, UpdatedAt: now,
	}))
	require.NoError(t, s.PutEpisode(ctx, &types.Episode{
		ID: "other-domain", Context: types.EpisodeContext{Domain: "frontend"}, UpdatedAt: now,
	}))

	got, err := s.ListEpisodes(ctx, EpisodeFilter{Domain: "backend"})
	require.NoError(t, err)
	if assert.Len(t, got, 2) {
		assert.Equal(t, "newer", got[0].ID)
		assert.Equal(t, "older", got[1].ID)
	}
}

func TestCacheStoreListEpisodesPagination(t *testing.T) {
	s := newTestCacheStore(t)
	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.PutEpisode(ctx, &types.Episode{
			ID: string(rune('a' + i)), UpdatedAt: now.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := s.ListEpisodes(ctx, EpisodeFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestCacheStoreRelationships(t *testing.T) {
	s := newTestCacheStore(t)
	ctx := context.Background()
	r := &types.EpisodeRelationship{SourceID: "a", TargetID: "b", Type: types.RelDependsOn}
	require.NoError(t, s.PutRelationship(ctx, r))

	out, err := s.ListRelationships(ctx, "a", DirectionOutgoing)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	in, err := s.ListRelationships(ctx, "a", DirectionIncoming)
	require.NoError(t, err)
	assert.Empty(t, in)

	require.NoError(t, s.DeleteRelationship(ctx, r))
	out, err = s.ListRelationships(ctx, "a", DirectionOutgoing)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCacheStorePatternFilterByMinSuccessRate(t *testing.T) {
	s := newTestCacheStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutPattern(ctx, &types.Pattern{ID: "p1", Effectiveness: types.Effectiveness{Successes: 9, Failures: 1}}))
	require.NoError(t, s.PutPattern(ctx, &types.Pattern{ID: "p2", Effectiveness: types.Effectiveness{Successes: 1, Failures: 9}}))

	got, err := s.ListPatterns(ctx, PatternFilter{MinSuccessRate: 0.5})
	require.NoError(t, err)
	if assert.Len(t, got, 1) {
		assert.Equal(t, "p1", got[0].ID)
	}
}

func TestCacheStoreBeginTxIsNoop(t *testing.T) {
	s := newTestCacheStore(t)
	tx, err := s.BeginTx(context.Background())
	require.NoError(t, err)
	assert.NoError(t, tx.Commit(context.Background()))
}
