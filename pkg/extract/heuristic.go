package extract

import (
	"context"
	"fmt"

	"github.com/cuemby/memoryengine/pkg/types"
)

const (
	heuristicMinSampleSize = 2
	heuristicMinConfidence = 0.7
)

// runHeuristics aggregates outcomes across recent episodes in the same
// domain/task_type pairing and promotes a Heuristic when the sample size
// and success rate both clear their thresholds. Unlike the pattern
// extractors this one looks across episodes, not within one, so a single
// completed episode can shift a heuristic's confidence without itself
// being the sole evidence.
func (p *Pipeline) runHeuristics(ctx context.Context, ep *types.Episode) error {
	if p.deps.RecentDomainEpisodes == nil {
		return nil
	}
	recent, err := p.deps.RecentDomainEpisodes(ctx, ep.Context.Domain, 200)
	if err != nil {
		return err
	}

	groups := groupByTaskType(recent)
	for taskType, episodes := range groups {
		successes, total := 0, 0
		var evidence []string
		for _, e := range episodes {
			if e.Outcome == nil {
				continue
			}
			total++
			if e.Outcome.Status == types.OutcomeSuccess {
				successes++
			}
			evidence = append(evidence, e.ID)
		}
		if total < heuristicMinSampleSize {
			continue
		}
		rate := float64(successes) / float64(total)
		if rate < heuristicMinConfidence {
			continue
		}

		h := &types.Heuristic{
			ID:        types.NewID(),
			Condition: fmt.Sprintf("domain=%s task_type=%s", ep.Context.Domain, taskType),
			Action:    "prefer the tool sequence observed in matching patterns",
			Confidence: rate,
			Evidence:  types.Evidence{EpisodeIDs: evidence},
			CreatedAt: p.deps.now(),
			UpdatedAt: p.deps.now(),
		}
		if err := p.deps.PutHeuristic(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

func groupByTaskType(episodes []*types.Episode) map[types.TaskType][]*types.Episode {
	groups := make(map[types.TaskType][]*types.Episode)
	for _, ep := range episodes {
		groups[ep.TaskType] = append(groups[ep.TaskType], ep)
	}
	return groups
}
