package spatiotemporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInsertAndQueryByDomain(t *testing.T) {
	idx := New(GranularityDay)
	now := time.Now()
	idx.Insert("backend", "debugging", Entry{EpisodeID: "e1", Timestamp: now})
	idx.Insert("frontend", "debugging", Entry{EpisodeID: "e2", Timestamp: now})

	got := idx.Query(QueryFilter{Domain: "backend"})
	if assert.Len(t, got, 1) {
		assert.Equal(t, "e1", got[0].EpisodeID)
	}
}

func TestQueryUnconstrainedReturnsAll(t *testing.T) {
	idx := New(GranularityDay)
	now := time.Now()
	idx.Insert("backend", "debugging", Entry{EpisodeID: "e1", Timestamp: now})
	idx.Insert("frontend", "testing", Entry{EpisodeID: "e2", Timestamp: now})

	assert.Len(t, idx.Query(QueryFilter{}), 2)
}

func TestQueryTimeWindow(t *testing.T) {
	idx := New(GranularityDay)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	idx.Insert("backend", "debugging", Entry{EpisodeID: "old", Timestamp: base})
	idx.Insert("backend", "debugging", Entry{EpisodeID: "new", Timestamp: base.AddDate(0, 0, 10)})

	since := base.AddDate(0, 0, 5)
	got := idx.Query(QueryFilter{Domain: "backend", Since: &since})
	if assert.Len(t, got, 1) {
		assert.Equal(t, "new", got[0].EpisodeID)
	}
}

func TestInsertMovesEpisodeOnReinsert(t *testing.T) {
	idx := New(GranularityDay)
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	idx.Insert("backend", "debugging", Entry{EpisodeID: "e1", Timestamp: t1})
	idx.Insert("backend", "debugging", Entry{EpisodeID: "e1", Timestamp: t2})

	all := idx.Query(QueryFilter{Domain: "backend"})
	assert.Len(t, all, 1)
	assert.Equal(t, t2, all[0].Timestamp)
}

func TestDelete(t *testing.T) {
	idx := New(GranularityDay)
	now := time.Now()
	idx.Insert("backend", "debugging", Entry{EpisodeID: "e1", Timestamp: now})

	assert.True(t, idx.Delete("e1"))
	assert.False(t, idx.Delete("e1"))
	assert.Empty(t, idx.Query(QueryFilter{}))
}

func TestBucketKeyGranularities(t *testing.T) {
	ts := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-03-15T14", bucketKey(ts, GranularityHour))
	assert.Equal(t, "2026-03-15", bucketKey(ts, GranularityDay))
	assert.Equal(t, "2026-03", bucketKey(ts, GranularityMonth))
}
