package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/memoryengine/pkg/memerr"
	"github.com/cuemby/memoryengine/pkg/types"
)

func goodEpisode() *types.Episode {
	start := time.Now()
	end := start.Add(90 * time.Second)
	return &types.Episode{
		StartTime: start,
		EndTime:   &end,
		Steps: []types.ExecutionStep{
			{StepNumber: 1, Tool: "read", LatencyMS: 1000, Result: &types.StepResult{Status: types.StepSuccess}},
			{StepNumber: 2, Tool: "edit", LatencyMS: 1500, Result: &types.StepResult{Status: types.StepFailure}},
			{StepNumber: 3, Tool: "edit", LatencyMS: 1000, Result: &types.StepResult{Status: types.StepSuccess}},
		},
		Outcome: &types.Outcome{Status: types.OutcomeSuccess},
		Reflection: &types.Reflection{
			Insights: []string{"fixed on retry"},
		},
	}
}

func TestScoreEmptyEpisodeIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Score(&types.Episode{}))
}

func TestScoreRewardsRecoveryAndReflection(t *testing.T) {
	score := Score(goodEpisode())
	assert.Greater(t, score, 0.5)
	assert.LessOrEqual(t, score, 1.0)
}

func TestAssessBelowThresholdReturnsLowQuality(t *testing.T) {
	score, err := Assess(&types.Episode{}, 0.5)
	assert.Equal(t, 0.0, score)
	assert.Error(t, err)
	assert.True(t, memerr.KindIs(err, memerr.KindLowQuality))
}

func TestAssessDefaultsThresholdWhenZero(t *testing.T) {
	score, err := Assess(goodEpisode(), 0)
	assert.NoError(t, err)
	assert.Greater(t, score, DefaultThreshold-0.5)
}

func TestRewardMultiplierClampedRange(t *testing.T) {
	ep := goodEpisode()
	m := RewardMultiplier(ep)
	assert.GreaterOrEqual(t, m, 0.5)
	assert.LessOrEqual(t, m, 1.5)
}

func TestRewardMultiplierClampsHighForZeroDurationFewSteps(t *testing.T) {
	// No EndTime means duration is 0 (<=60s => factor 1.5); zero steps is
	// well under EfficientStepCount, also factor 1.5; outcome weight 1.0
	// pushes the product above the 1.5 ceiling, so it clamps there.
	ep := &types.Episode{Outcome: &types.Outcome{Status: types.OutcomeSuccess}}
	assert.Equal(t, 1.5, RewardMultiplier(ep))
}

func TestRewardMultiplierClampsToFloorForFailureOutcome(t *testing.T) {
	ep := &types.Episode{Outcome: &types.Outcome{Status: types.OutcomeFailure}}
	// base 0.1 * duration 1.5 * step 1.5 = 0.225, clamps up to floor 0.5.
	assert.Equal(t, 0.5, RewardMultiplier(ep))
}

func TestDurationFactorPiecewiseLinear(t *testing.T) {
	assert.Equal(t, 1.5, durationFactor(30))
	assert.Equal(t, 1.0, durationFactor(180))
	assert.Equal(t, 0.5, durationFactor(600))
	assert.InDelta(t, 1.25, durationFactor(120), 0.01)
}

func TestStepFactorPiecewiseLinear(t *testing.T) {
	assert.Equal(t, 1.5, stepFactor(5))
	assert.Equal(t, 1.0, stepFactor(30))
	assert.Equal(t, 0.5, stepFactor(50))
}
