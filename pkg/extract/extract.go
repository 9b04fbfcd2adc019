/*
Package extract implements the pattern extraction pipeline run by the
queue's workers: tool-sequence, error-recovery, heuristic, clustering, and
changepoint extractors, applied in that order against one freshly
completed episode plus a recent window of episodes in the same domain.

Extractors never touch storage directly — they're handed the episode data
they need and hand the Patterns/Heuristics they build (or a Pattern with a
changed decay factor) to injected closures, returning only an error. The
Pipeline wires those closures to storage (the same
Sampler-style dependency injection pkg/metrics uses) so this package never
imports pkg/storage and can be tested against fakes.
*/
package extract

import (
	"context"
	"time"

	"github.com/cuemby/memoryengine/pkg/log"
	"github.com/cuemby/memoryengine/pkg/memerr"
	"github.com/cuemby/memoryengine/pkg/metrics"
	"github.com/cuemby/memoryengine/pkg/syncer"
	"github.com/cuemby/memoryengine/pkg/types"
)

// MinPatternSuccessRate is the minimum effectiveness success rate a
// pattern must maintain to stay eligible for promotion into retrieval.
const MinPatternSuccessRate = 0.7

// Deps are the storage-shaped operations the pipeline needs, supplied by
// whatever owns the storage handles (the engine façade in production,
// fakes in tests).
type Deps struct {
	LoadEpisode         func(ctx context.Context, id string) (*types.Episode, error)
	RecentDomainEpisodes func(ctx context.Context, domain string, limit int) ([]*types.Episode, error)
	GetPatternBySignature func(ctx context.Context, signature string) (*types.Pattern, error)
	PutPattern          func(ctx context.Context, p *types.Pattern) error
	PutHeuristic        func(ctx context.Context, h *types.Heuristic) error
	Now                 func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Pipeline runs all extractors for one episode.
type Pipeline struct {
	deps Deps
}

// NewPipeline builds a Pipeline. The returned Run method has the
// queue.Extractor shape and can be passed straight to queue.New.
func NewPipeline(deps Deps) *Pipeline {
	return &Pipeline{deps: deps}
}

// Run loads episodeID and drives it through every extractor. Cancellation
// is observed between extractor phases: if ctx is done, Run returns
// without starting the next phase, and no partial pattern from the
// in-flight phase is persisted (each extractor either finishes and
// upserts, or is not called at all).
func (p *Pipeline) Run(ctx context.Context, episodeID string) error {
	logger := log.WithEpisodeID(episodeID)

	ep, err := p.deps.LoadEpisode(ctx, episodeID)
	if err != nil {
		return err
	}

	phases := []func(context.Context, *types.Episode) error{
		p.runToolSequence,
		p.runErrorRecovery,
		p.runHeuristics,
		p.runClustering,
		p.runChangepoint,
	}
	for _, phase := range phases {
		if ctx.Err() != nil {
			logger.Debug().Msg("extraction cancelled between phases")
			return nil
		}
		if err := phase(ctx, ep); err != nil {
			logger.Warn().Err(err).Msg("extraction phase failed")
		}
	}
	return nil
}

// upsertPattern merges an incoming pattern observation with whatever is
// already stored under the same signature (at-least-once processing:
// an episode may be extracted more than once, so this must be
// idempotent), then persists the merged result.
func (p *Pipeline) upsertPattern(ctx context.Context, incoming *types.Pattern) error {
	existing, err := p.deps.GetPatternBySignature(ctx, incoming.Signature)
	if err != nil && !memerr.KindIs(err, memerr.KindNotFound) {
		return err
	}
	if err != nil {
		existing = nil
	}
	merged := syncer.MergePattern(existing, incoming)
	if err := p.deps.PutPattern(ctx, merged); err != nil {
		return err
	}
	metrics.QueueProcessedTotal.WithLabelValues("pattern_upserted").Inc()
	return nil
}
