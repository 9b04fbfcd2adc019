/*
Package quality gates episode storage: a weighted feature score decides
whether a completed episode clears the configured quality_threshold, and a
separate adaptive reward multiplier scales pattern effectiveness updates
by how efficient the episode was, so a correct-but-slow trace contributes
less reinforcement than a correct-and-fast one.
*/
package quality

import (
	"github.com/cuemby/memoryengine/pkg/memerr"
	"github.com/cuemby/memoryengine/pkg/types"
)

// DefaultThreshold is applied unless the caller configures another.
const DefaultThreshold = 0.7

const (
	minReasonableSteps = 2
	maxReasonableSteps = 50
)

// Score computes the pre-storage quality score for a completed episode.
func Score(ep *types.Episode) float64 {
	const (
		wStepFit     = 0.2
		wToolRatio   = 0.15
		wRecovery    = 0.15
		wOutcome     = 0.25
		wReflection  = 0.1
		wLatency     = 0.15
	)

	score := wStepFit*stepCountFit(ep) +
		wToolRatio*uniqueToolRatio(ep) +
		wRecovery*recoveryBonus(ep) +
		wOutcome*outcomeWeight(ep) +
		wReflection*reflectionPresent(ep) +
		wLatency*latencyEfficiency(ep)
	return clamp01(score)
}

// Assess scores the episode and returns LowQuality if it falls below
// threshold.
func Assess(ep *types.Episode, threshold float64) (float64, error) {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	score := Score(ep)
	if score < threshold {
		return score, memerr.LowQuality(score, threshold)
	}
	return score, nil
}

func stepCountFit(ep *types.Episode) float64 {
	n := len(ep.Steps)
	if n < minReasonableSteps || n > maxReasonableSteps {
		return 0
	}
	return 1
}

func uniqueToolRatio(ep *types.Episode) float64 {
	if len(ep.Steps) == 0 {
		return 0
	}
	seen := make(map[string]bool)
	for _, s := range ep.Steps {
		seen[s.Tool] = true
	}
	return float64(len(seen)) / float64(len(ep.Steps))
}

func recoveryBonus(ep *types.Episode) float64 {
	for i := 0; i+1 < len(ep.Steps); i++ {
		if ep.Steps[i].IsFailure() && ep.Steps[i+1].IsSuccess() {
			return 1
		}
	}
	return 0
}

func outcomeWeight(ep *types.Episode) float64 {
	if ep.Outcome == nil {
		return 0
	}
	return ep.Outcome.Weight()
}

func reflectionPresent(ep *types.Episode) float64 {
	if ep.Reflection == nil {
		return 0
	}
	if len(ep.Reflection.Successes) > 0 || len(ep.Reflection.Improvements) > 0 || len(ep.Reflection.Insights) > 0 {
		return 1
	}
	return 0
}

func latencyEfficiency(ep *types.Episode) float64 {
	if len(ep.Steps) == 0 {
		return 0
	}
	var totalMS int64
	for _, s := range ep.Steps {
		totalMS += s.LatencyMS
	}
	avgMS := float64(totalMS) / float64(len(ep.Steps))
	// Efficient around 2s/step; degrade smoothly out to 20s/step.
	const idealMS, worstMS = 2000.0, 20000.0
	if avgMS <= idealMS {
		return 1
	}
	if avgMS >= worstMS {
		return 0
	}
	return 1 - (avgMS-idealMS)/(worstMS-idealMS)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// EfficientStepCount is the step count around which step_factor is
// centered in the reward multiplier.
const EfficientStepCount = 10

// RewardMultiplier computes the adaptive reward multiplier in [0.5, 1.5]
// used to scale pattern effectiveness contributions: base_outcome_weight
// times a piecewise-linear duration factor times an analogous step
// factor.
func RewardMultiplier(ep *types.Episode) float64 {
	base := outcomeWeight(ep)
	duration := durationSeconds(ep)
	return clampRange(base*durationFactor(duration)*stepFactor(len(ep.Steps)), 0.5, 1.5)
}

func durationSeconds(ep *types.Episode) float64 {
	if ep.EndTime == nil {
		return 0
	}
	return ep.EndTime.Sub(ep.StartTime).Seconds()
}

// durationFactor is 1.5 at <=60s, 1.0 at 180s, 0.5 at >=600s, piecewise
// linear between the named points.
func durationFactor(seconds float64) float64 {
	switch {
	case seconds <= 60:
		return 1.5
	case seconds <= 180:
		return lerp(seconds, 60, 180, 1.5, 1.0)
	case seconds <= 600:
		return lerp(seconds, 180, 600, 1.0, 0.5)
	default:
		return 0.5
	}
}

// stepFactor mirrors durationFactor around EFFICIENT_STEP_COUNT: fewer
// steps than ideal is treated as efficient (1.5), growing to 0.5 at 5x
// the ideal count.
func stepFactor(steps int) float64 {
	n := float64(steps)
	ideal := float64(EfficientStepCount)
	switch {
	case n <= ideal:
		return 1.5
	case n <= ideal*3:
		return lerp(n, ideal, ideal*3, 1.5, 1.0)
	case n <= ideal*5:
		return lerp(n, ideal*3, ideal*5, 1.0, 0.5)
	default:
		return 0.5
	}
}

func lerp(x, x0, x1, y0, y1 float64) float64 {
	if x1 == x0 {
		return y0
	}
	t := (x - x0) / (x1 - x0)
	return y0 + t*(y1-y0)
}

func clampRange(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
