package extract

import (
	"context"
	"time"

	"github.com/cuemby/memoryengine/pkg/types"
)

const (
	toolSequenceMinLen  = 2
	toolSequenceMaxLen  = 5
	toolSequenceTopN    = 5
)

// runToolSequence scans an episode's steps for consecutive runs of
// successful tool calls of length [2,5] and emits a ToolSequence pattern
// per run, truncated to the top 5 longest runs and deduplicated by
// signature.
func (p *Pipeline) runToolSequence(ctx context.Context, ep *types.Episode) error {
	runs := toolSequenceRuns(ep)
	if len(runs) > toolSequenceTopN {
		runs = runs[:toolSequenceTopN]
	}

	seen := make(map[string]bool)
	for _, run := range runs {
		pat := newToolSequencePattern(run, ep.ID, p.deps.now())
		if seen[pat.Signature] {
			continue
		}
		seen[pat.Signature] = true
		if err := p.upsertPattern(ctx, pat); err != nil {
			return err
		}
	}
	return nil
}

// toolSequenceRuns extracts every maximal consecutive-success run of
// tool names with length in [MIN,MAX], sorted longest-first.
func toolSequenceRuns(ep *types.Episode) [][]string {
	var runs [][]string
	var current []string

	flush := func() {
		if len(current) >= toolSequenceMinLen && len(current) <= toolSequenceMaxLen {
			runs = append(runs, append([]string{}, current...))
		}
		current = nil
	}

	for _, step := range ep.Steps {
		if step.IsSuccess() {
			current = append(current, step.Tool)
		} else {
			flush()
		}
	}
	flush()

	// Longest runs first so truncation to topN keeps the most substantial.
	for i := 0; i < len(runs); i++ {
		for j := i + 1; j < len(runs); j++ {
			if len(runs[j]) > len(runs[i]) {
				runs[i], runs[j] = runs[j], runs[i]
			}
		}
	}
	return runs
}

func newToolSequencePattern(tools []string, episodeID string, now time.Time) *types.Pattern {
	body := types.PatternBody{ToolSequence: tools}
	return &types.Pattern{
		ID:          types.NewID(),
		PatternType: types.PatternToolSequence,
		Signature:   body.Signature(types.PatternToolSequence),
		Body:        body,
		Evidence:    types.Evidence{EpisodeIDs: []string{episodeID}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
