package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/memoryengine/pkg/types"
)

func TestSearchPatternsEmptyQueryReturnsAll(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.durable.PutPattern(context.Background(), &types.Pattern{
		ID: "p1", Body: types.PatternBody{ToolSequence: []string{"bash", "edit"}},
	}))

	got, err := e.SearchPatterns(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSearchPatternsMatchesToolSequenceCaseInsensitively(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.durable.PutPattern(context.Background(), &types.Pattern{
		ID: "p1", Body: types.PatternBody{ToolSequence: []string{"Bash", "Edit"}},
	}))
	require.NoError(t, e.durable.PutPattern(context.Background(), &types.Pattern{
		ID: "p2", Body: types.PatternBody{ToolSequence: []string{"read"}},
	}))

	got, err := e.SearchPatterns(context.Background(), "bash")
	require.NoError(t, err)
	if assert.Len(t, got, 1) {
		assert.Equal(t, "p1", got[0].ID)
	}
}

func TestRecommendPatternsFiltersBelowSuccessRateAndRanksByReward(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.durable.PutPattern(ctx, &types.Pattern{
		ID: "weak", Effectiveness: types.Effectiveness{Successes: 1, Failures: 9},
	}))
	require.NoError(t, e.durable.PutPattern(ctx, &types.Pattern{
		ID: "low-reward", Effectiveness: types.Effectiveness{Successes: 9, Failures: 1, AvgReward: 0.3},
	}))
	require.NoError(t, e.durable.PutPattern(ctx, &types.Pattern{
		ID: "high-reward", Effectiveness: types.Effectiveness{Successes: 9, Failures: 1, AvgReward: 0.9},
	}))

	got, err := e.RecommendPatterns(ctx, "backend", types.TaskDebugging, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "high-reward", got[0].ID)
	assert.Equal(t, "low-reward", got[1].ID)
}

func TestRecommendPatternsCapsAtTopN(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, e.durable.PutPattern(ctx, &types.Pattern{
			ID: string(rune('a' + i)), Effectiveness: types.Effectiveness{Successes: 9, Failures: 1, AvgReward: 0.5},
		}))
	}

	got, err := e.RecommendPatterns(ctx, "backend", types.TaskDebugging, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestAnalyzePatternReturnsSingleRecord(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.durable.PutPattern(context.Background(), &types.Pattern{ID: "p1"}))

	got, err := e.AnalyzePattern(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
}

func TestAnalyzePatternUnknownIDReturnsError(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.AnalyzePattern(context.Background(), "missing")
	assert.Error(t, err)
}

func TestPatternEffectivenessSummarizesWithoutFullBody(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.durable.PutPattern(context.Background(), &types.Pattern{
		ID:            "p1",
		Effectiveness: types.Effectiveness{Successes: 8, Failures: 2, AvgReward: 0.75},
		DecayFactor:   0.5,
	}))

	report, err := e.PatternEffectiveness(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 0.8, report.SuccessRate)
	assert.Equal(t, int64(10), report.SampleSize)
	assert.Equal(t, 0.75, report.AvgReward)
	assert.Equal(t, 0.5, report.DecayFactor)
}

func TestDecayPatternsScalesDownStaleEvidence(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.durable.PutPattern(context.Background(), &types.Pattern{
		ID:            "stale",
		Effectiveness: types.Effectiveness{Successes: 10, Failures: 10},
		UpdatedAt:     time.Now().Add(-60 * 24 * time.Hour),
	}))
	require.NoError(t, e.durable.PutPattern(context.Background(), &types.Pattern{
		ID:            "fresh",
		Effectiveness: types.Effectiveness{Successes: 10, Failures: 10},
		UpdatedAt:     time.Now(),
	}))

	n, err := e.DecayPatterns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := e.durable.GetPattern(context.Background(), "stale")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Effectiveness.Successes)
	assert.Equal(t, int64(5), got.Effectiveness.Failures)
	assert.Equal(t, 0.5, got.DecayFactor)

	untouched, err := e.durable.GetPattern(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, int64(10), untouched.Effectiveness.Successes)
}
