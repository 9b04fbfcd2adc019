package storage

import (
	"context"
	"time"

	"github.com/cuemby/memoryengine/pkg/types"
)

// RelationshipDirection selects which side of an edge to traverse when
// listing relationships for an episode.
type RelationshipDirection string

const (
	DirectionOutgoing RelationshipDirection = "outgoing"
	DirectionIncoming RelationshipDirection = "incoming"
	DirectionBoth     RelationshipDirection = "both"
)

// EpisodeFilter narrows list_episodes queries. Zero-value fields are
// unconstrained.
type EpisodeFilter struct {
	Domain     string
	TaskType   types.TaskType
	Tags       []string
	OnlyComplete bool
	Since      *time.Time
	Limit      int
	Offset     int
}

// PatternFilter narrows list_patterns queries.
type PatternFilter struct {
	PatternType types.PatternType
	MinSuccessRate float64
	Limit       int
	Offset      int
}

// Tx represents an open transaction against a StorageBackend. Callers must
// call exactly one of Commit or Rollback.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// StorageBackend is the capability both storage tiers implement uniformly.
type StorageBackend interface {
	PutEpisode(ctx context.Context, ep *types.Episode) error
	GetEpisode(ctx context.Context, id string) (*types.Episode, error)
	ListEpisodes(ctx context.Context, filter EpisodeFilter) ([]*types.Episode, error)
	DeleteEpisode(ctx context.Context, id string) error

	PutPattern(ctx context.Context, p *types.Pattern) error
	GetPattern(ctx context.Context, id string) (*types.Pattern, error)
	ListPatterns(ctx context.Context, filter PatternFilter) ([]*types.Pattern, error)

	PutHeuristic(ctx context.Context, h *types.Heuristic) error
	GetHeuristic(ctx context.Context, id string) (*types.Heuristic, error)
	ListHeuristics(ctx context.Context) ([]*types.Heuristic, error)

	PutRelationship(ctx context.Context, r *types.EpisodeRelationship) error
	ListRelationships(ctx context.Context, episodeID string, dir RelationshipDirection) ([]*types.EpisodeRelationship, error)
	DeleteRelationship(ctx context.Context, r *types.EpisodeRelationship) error

	BeginTx(ctx context.Context) (Tx, error)

	Close() error
}

// TxBackend is implemented by the durable tier: it can stage an episode
// write inside an explicit transaction so the synchronizer can hold the
// durable commit open across the cache tier's best-effort write, per the
// two-phase commit write path.
type TxBackend interface {
	StorageBackend
	PutEpisodeTx(ctx context.Context, tx Tx, ep *types.Episode) error
}
