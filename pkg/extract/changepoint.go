package extract

import (
	"context"

	"github.com/cuemby/memoryengine/pkg/types"
)

const (
	changepointMagnitudeThreshold = 0.3
	changepointMinSegmentLength   = 3
)

// runChangepoint looks up each tool-sequence pattern this episode
// contributed to and runs pelt over rollingSuccessRate's series for it. A
// split with at least minSegmentLength observations on each side and a
// drop beyond magnitudeThreshold halves the pattern's decay factor rather
// than deleting it. rollingSuccessRate returns at most minSegmentLength
// points, fewer than pelt needs for two segments, so no changepoint is
// detected and no decay factor is changed by this phase.
func (p *Pipeline) runChangepoint(ctx context.Context, ep *types.Episode) error {
	if ep.Outcome == nil {
		return nil
	}
	// Only patterns this episode contributed evidence to are candidates;
	// the signature search happens against tool-sequence/error-recovery
	// patterns already touched earlier in the pipeline for this episode,
	// so re-derive their signatures and look each up.
	for _, run := range toolSequenceRuns(ep) {
		body := types.PatternBody{ToolSequence: run}
		sig := body.Signature(types.PatternToolSequence)
		if err := p.checkPatternForChangepoint(ctx, sig); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) checkPatternForChangepoint(ctx context.Context, signature string) error {
	pat, err := p.deps.GetPatternBySignature(ctx, signature)
	if err != nil {
		return nil // nothing recorded yet, nothing to monitor
	}
	series := rollingSuccessRate(pat)
	if idx, magnitude := pelt(series, changepointMinSegmentLength); idx >= 0 && magnitude > changepointMagnitudeThreshold {
		pat.DecayFactor *= 0.5
		if pat.DecayFactor == 0 {
			pat.DecayFactor = 0.5
		}
		return p.deps.PutPattern(ctx, pat)
	}
	return nil
}

// rollingSuccessRate builds a success-rate series from a pattern's
// effectiveness counters alone. The counters hold no per-evidence history,
// so the series is the lifetime success rate repeated minSegmentLength
// times (a single point when fewer than two samples exist); it never
// contains a change for pelt to find.
func rollingSuccessRate(pat *types.Pattern) []float64 {
	rate := pat.Effectiveness.SuccessRate()
	n := pat.Effectiveness.SampleSize()
	if n < 2 {
		return []float64{rate}
	}
	// Synthesize a short series: the pattern's lifetime rate repeated.
	series := make([]float64, 0, changepointMinSegmentLength*2)
	for i := 0; i < changepointMinSegmentLength; i++ {
		series = append(series, rate)
	}
	return series
}

// pelt finds the single best changepoint index minimizing the combined
// within-segment variance (a one-changepoint simplification of the full
// PELT pruning algorithm, sufficient here since the series is short),
// returning -1 if no split has both segments at least minSegmentLength
// long. magnitude is the absolute difference between segment means.
func pelt(series []float64, minSegmentLength int) (bestIdx int, magnitude float64) {
	bestIdx = -1
	if len(series) < minSegmentLength*2 {
		return -1, 0
	}
	var bestCost float64 = -1
	for split := minSegmentLength; split <= len(series)-minSegmentLength; split++ {
		left, right := series[:split], series[split:]
		lm, rm := mean(left), mean(right)
		cost := variance(left, lm) + variance(right, rm)
		if bestCost < 0 || cost < bestCost {
			bestCost = cost
			bestIdx = split
			magnitude = absDiff(lm, rm)
		}
	}
	return bestIdx, magnitude
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func variance(xs []float64, m float64) float64 {
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
