package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/memoryengine/pkg/events"
	"github.com/cuemby/memoryengine/pkg/extract"
	"github.com/cuemby/memoryengine/pkg/storage"
	"github.com/cuemby/memoryengine/pkg/types"
)

// SearchPatterns returns every pattern whose signature-bearing fields
// contain query, case-insensitively. An empty query matches every
// pattern.
func (e *Engine) SearchPatterns(ctx context.Context, query string) ([]*types.Pattern, error) {
	patterns, err := e.durable.ListPatterns(ctx, storage.PatternFilter{})
	if err != nil {
		return nil, err
	}
	if query == "" {
		return patterns, nil
	}
	q := strings.ToLower(query)
	var out []*types.Pattern
	for _, p := range patterns {
		if strings.Contains(strings.ToLower(patternText(p)), q) {
			out = append(out, p)
		}
	}
	return out, nil
}

func patternText(p *types.Pattern) string {
	return strings.Join(p.Body.ToolSequence, " ") + " " +
		p.Body.Condition + " " + p.Body.Action + " " +
		p.Body.FailingTool + " " + p.Body.RecoveringTool + " " + p.Body.ErrorKind + " " + p.Body.ClusterID
}

// RecommendPatterns returns patterns that clear the minimum effectiveness
// bar, ranked by success_rate*avg_reward, capped at topN. domain and
// taskType are accepted for callers that already scope the request to a
// context but are not used to filter: types.Pattern carries no
// domain/task_type of its own to match against, only a Heuristic does,
// and heuristics describe conditions rather than tag patterns directly.
func (e *Engine) RecommendPatterns(ctx context.Context, domain string, taskType types.TaskType, topN int) ([]*types.Pattern, error) {
	patterns, err := e.durable.ListPatterns(ctx, storage.PatternFilter{MinSuccessRate: extract.MinPatternSuccessRate})
	if err != nil {
		return nil, err
	}

	sort.Slice(patterns, func(i, j int) bool {
		si := patterns[i].Effectiveness.SuccessRate() * patterns[i].Effectiveness.AvgReward
		sj := patterns[j].Effectiveness.SuccessRate() * patterns[j].Effectiveness.AvgReward
		return si > sj
	})
	if topN > 0 && topN < len(patterns) {
		patterns = patterns[:topN]
	}
	return patterns, nil
}

// AnalyzePattern returns a single pattern by id along with its derived
// success_rate and sample_size.
func (e *Engine) AnalyzePattern(ctx context.Context, id string) (*types.Pattern, error) {
	return e.durable.GetPattern(ctx, id)
}

// PatternEffectivenessReport summarizes one pattern's observed
// effectiveness for a caller that doesn't need the full pattern body.
type PatternEffectivenessReport struct {
	PatternID   string
	SuccessRate float64
	SampleSize  int64
	AvgReward   float64
	DecayFactor float64
}

// PatternEffectiveness reports a pattern's effectiveness summary.
func (e *Engine) PatternEffectiveness(ctx context.Context, id string) (*PatternEffectivenessReport, error) {
	p, err := e.durable.GetPattern(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PatternEffectivenessReport{
		PatternID:   p.ID,
		SuccessRate: p.Effectiveness.SuccessRate(),
		SampleSize:  p.Effectiveness.SampleSize(),
		AvgReward:   p.Effectiveness.AvgReward,
		DecayFactor: p.DecayFactor,
	}, nil
}

// decayStaleness is how long a pattern can go without a new observation
// before DecayPatterns starts forgetting its evidence.
const decayStaleness = 30 * 24 * time.Hour

// DecayPatterns applies time-based forgetting to every pattern whose last
// update is older than decayStaleness: its effectiveness counts are scaled
// down by its DecayFactor (defaulting to 0.5 the first time a pattern
// decays), so a tactic that stops being observed gradually loses the
// weight it carries in recommend_patterns without being deleted outright.
func (e *Engine) DecayPatterns(ctx context.Context) (int, error) {
	patterns, err := e.durable.ListPatterns(ctx, storage.PatternFilter{})
	if err != nil {
		return 0, err
	}
	now := time.Now()
	decayed := 0
	for _, p := range patterns {
		if now.Sub(p.UpdatedAt) < decayStaleness {
			continue
		}
		factor := p.DecayFactor
		if factor <= 0 {
			factor = 0.5
		}
		p.Effectiveness.Successes = int64(float64(p.Effectiveness.Successes) * factor)
		p.Effectiveness.Failures = int64(float64(p.Effectiveness.Failures) * factor)
		p.DecayFactor = factor
		p.UpdatedAt = now
		if err := e.durable.PutPattern(ctx, p); err != nil {
			e.logger.Warn().Err(err).Str("pattern_id", p.ID).Msg("failed to persist decayed pattern")
			continue
		}
		decayed++
		e.broker.Publish(&events.Event{Type: events.EventPatternDecayed, Metadata: map[string]string{"pattern_id": p.ID}})
	}
	return decayed, nil
}
