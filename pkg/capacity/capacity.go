/*
Package capacity decides which episodes to evict once a store is at or
over its configured maximum, under either a plain LRU policy or the
default relevance-weighted policy. It is pure with respect to the snapshot
it's given: the same snapshot always yields the same eviction set, so the
engine façade can call it speculatively before committing to a delete.
*/
package capacity

import (
	"math"
	"sort"
	"time"

	"github.com/cuemby/memoryengine/pkg/types"
)

// Policy selects the eviction ordering.
type Policy string

const (
	PolicyLRU               Policy = "lru"
	PolicyRelevanceWeighted Policy = "relevance_weighted"
)

const (
	alphaQuality  = 0.5
	betaRecency   = 0.3
	gammaFrequency = 0.2
)

// Manager enforces max_episodes under the configured policy.
type Manager struct {
	MaxEpisodes int
	Policy      Policy
}

// New builds a Manager; an empty policy defaults to RelevanceWeighted.
func New(maxEpisodes int, policy Policy) *Manager {
	if policy == "" {
		policy = PolicyRelevanceWeighted
	}
	return &Manager{MaxEpisodes: maxEpisodes, Policy: policy}
}

// CanStore reports whether n more episodes fit without eviction.
func (m *Manager) CanStore(currentCount, n int) bool {
	if m.MaxEpisodes <= 0 {
		return true
	}
	return currentCount+n <= m.MaxEpisodes
}

// Snapshot is the minimal per-episode state the eviction scorer needs.
type Snapshot struct {
	ID           string
	QualityScore float64
	AccessCount  int64
	AccessedAt   time.Time
	CreatedAt    time.Time
}

// EvictIfNeeded returns the ids to remove from snapshot so that the total
// count falls back to MaxEpisodes, given overBy additional pending
// inserts. The function is pure: it only reads snapshot and now.
func (m *Manager) EvictIfNeeded(snapshot []Snapshot, overBy int, now time.Time) []string {
	if m.MaxEpisodes <= 0 {
		return nil
	}
	target := len(snapshot) + overBy - m.MaxEpisodes
	if target <= 0 {
		return nil
	}

	ordered := make([]Snapshot, len(snapshot))
	copy(ordered, snapshot)

	switch m.Policy {
	case PolicyLRU:
		sort.Slice(ordered, func(i, j int) bool {
			return ordered[i].AccessedAt.Before(ordered[j].AccessedAt)
		})
	default:
		sort.Slice(ordered, func(i, j int) bool {
			si := relevanceScore(ordered[i], now)
			sj := relevanceScore(ordered[j], now)
			if si != sj {
				return si < sj
			}
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		})
	}

	if target > len(ordered) {
		target = len(ordered)
	}
	ids := make([]string, target)
	for i := 0; i < target; i++ {
		ids[i] = ordered[i].ID
	}
	return ids
}

func relevanceScore(s Snapshot, now time.Time) float64 {
	ageDays := now.Sub(s.CreatedAt).Hours() / 24
	recency := math.Exp(-ageDays / 30)
	frequency := math.Tanh(float64(s.AccessCount) / 10)
	return alphaQuality*s.QualityScore + betaRecency*recency + gammaFrequency*frequency
}

// SnapshotFromEpisode adapts an Episode into the scorer's minimal view.
func SnapshotFromEpisode(ep *types.Episode) Snapshot {
	return Snapshot{
		ID:           ep.ID,
		QualityScore: ep.QualityScore,
		AccessCount:  ep.AccessCount,
		AccessedAt:   ep.AccessedAt,
		CreatedAt:    ep.CreatedAt,
	}
}
