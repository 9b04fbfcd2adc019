package engine

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/memoryengine/pkg/config"
	"github.com/cuemby/memoryengine/pkg/memerr"
	"github.com/cuemby/memoryengine/pkg/storage"
	"github.com/cuemby/memoryengine/pkg/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Database.URL = "file:" + t.Name()
	cfg.Database.CachePath = filepath.Join(t.TempDir(), "cache.db")
	cfg.Storage.MaxEpisodesCache = 0 // unbounded unless a test overrides it

	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { e.Stop() })
	return e
}

func startedEpisode(t *testing.T, e *Engine) *types.Episode {
	t.Helper()
	ep, err := e.StartEpisode(context.Background(), StartEpisodeRequest{
		Description: "fix the flaky test",
		Domain:      "backend",
		TaskType:    types.TaskDebugging,
	})
	require.NoError(t, err)
	return ep
}

// completeSuccessfully logs a step sequence deliberately shaped to clear
// the default quality gate: distinct tools (full unique-tool-ratio) with a
// failure immediately followed by a success (the recovery bonus), low
// latency, and a successful outcome.
func completeSuccessfully(t *testing.T, e *Engine, episodeID string) {
	t.Helper()
	steps := []struct {
		tool   string
		status types.StepStatus
	}{
		{"bash", types.StepSuccess},
		{"edit", types.StepFailure},
		{"test", types.StepSuccess},
	}
	for _, s := range steps {
		_, err := e.LogStep(context.Background(), episodeID, s.tool, "run", nil,
			&types.StepResult{Status: s.status}, 200)
		require.NoError(t, err)
	}
	_, tagErr := e.AddTags(context.Background(), episodeID) // no-op, exercises the path
	require.NoError(t, tagErr)
	require.NoError(t, e.CompleteEpisode(context.Background(), episodeID, types.Outcome{
		Status: types.OutcomeSuccess, Verdict: "tests pass",
	}))
}

func TestStartEpisodeValidatesRequiredFields(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.StartEpisode(context.Background(), StartEpisodeRequest{})
	assert.True(t, memerr.KindIs(err, memerr.KindInvalidInput))
}

func TestStartEpisodeRejectsOversizedDescription(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.StartEpisode(context.Background(), StartEpisodeRequest{
		Description: strings.Repeat("x", 4097), Domain: "backend", TaskType: types.TaskDebugging,
	})
	assert.True(t, memerr.KindIs(err, memerr.KindInvalidInput))
}

func TestStartEpisodeNormalizesTags(t *testing.T) {
	e := newTestEngine(t)
	ep, err := e.StartEpisode(context.Background(), StartEpisodeRequest{
		Description: "d", Domain: "backend", TaskType: types.TaskDebugging,
		Tags: []string{"Go", "go"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, ep.Tags)
}

func TestLogStepRejectsCompleteEpisode(t *testing.T) {
	e := newTestEngine(t)
	ep := startedEpisode(t, e)
	completeSuccessfully(t, e, ep.ID)

	_, err := e.LogStep(context.Background(), ep.ID, "bash", "x", nil, nil, 0)
	assert.True(t, memerr.KindIs(err, memerr.KindInvalidInput))
}

func TestLogStepStepNumbersIncreaseMonotonically(t *testing.T) {
	e := newTestEngine(t)
	ep := startedEpisode(t, e)

	s1, err := e.LogStep(context.Background(), ep.ID, "read", "a", nil, nil, 0)
	require.NoError(t, err)
	s2, err := e.LogStep(context.Background(), ep.ID, "edit", "b", nil, nil, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, s1.StepNumber)
	assert.Equal(t, 2, s2.StepNumber)
}

func TestCompleteEpisodeIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	ep := startedEpisode(t, e)
	completeSuccessfully(t, e, ep.ID)

	// A second completion is a no-op, not an error, and outcome is untouched.
	err := e.CompleteEpisode(context.Background(), ep.ID, types.Outcome{Status: types.OutcomeFailure})
	require.NoError(t, err)

	got, err := e.GetEpisode(context.Background(), ep.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeSuccess, got.Outcome.Status)
}

func TestCompleteEpisodeRejectsLowQuality(t *testing.T) {
	e := newTestEngine(t)
	ep := startedEpisode(t, e)

	// No steps, no reflection: well under the default quality threshold.
	err := e.CompleteEpisode(context.Background(), ep.ID, types.Outcome{Status: types.OutcomeFailure})
	assert.True(t, memerr.KindIs(err, memerr.KindLowQuality))
}

func TestCompleteEpisodePersistsToDurableTier(t *testing.T) {
	e := newTestEngine(t)
	ep := startedEpisode(t, e)
	completeSuccessfully(t, e, ep.ID)

	listed, err := e.ListEpisodes(context.Background(), storage.EpisodeFilter{Domain: "backend"})
	require.NoError(t, err)
	assert.Len(t, listed, 1)
	assert.Equal(t, ep.ID, listed[0].ID)
}

func TestGetEpisodeNotFound(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.GetEpisode(context.Background(), "does-not-exist")
	assert.True(t, memerr.KindIs(err, memerr.KindNotFound))
}

func TestGetEpisodeTracksAccessBookkeeping(t *testing.T) {
	e := newTestEngine(t)
	ep := startedEpisode(t, e)
	completeSuccessfully(t, e, ep.ID)

	got, err := e.GetEpisode(context.Background(), ep.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.AccessCount)

	got2, err := e.GetEpisode(context.Background(), ep.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got2.AccessCount)
}

func TestDeleteEpisodeRemovesFromBothTiersAndGraph(t *testing.T) {
	e := newTestEngine(t)
	a := startedEpisode(t, e)
	completeSuccessfully(t, e, a.ID)
	b := startedEpisode(t, e)
	completeSuccessfully(t, e, b.ID)

	require.NoError(t, e.AddRelationship(context.Background(), a.ID, b.ID, types.RelDependsOn, 1, ""))

	require.NoError(t, e.DeleteEpisode(context.Background(), a.ID))

	_, err := e.GetEpisode(context.Background(), a.ID)
	assert.True(t, memerr.KindIs(err, memerr.KindNotFound))
	assert.Empty(t, e.GetRelationships(b.ID, storage.DirectionBoth, nil))
}

func TestDeleteEpisodeOfUnknownIDIsNotAnError(t *testing.T) {
	e := newTestEngine(t)
	assert.NoError(t, e.DeleteEpisode(context.Background(), "never-existed"))
}

func TestAddRelationshipRejectsCycle(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	a := startedEpisode(t, e)
	b := startedEpisode(t, e)

	require.NoError(t, e.AddRelationship(ctx, a.ID, b.ID, types.RelDependsOn, 1, ""))
	err := e.AddRelationship(ctx, b.ID, a.ID, types.RelDependsOn, 1, "")
	assert.True(t, memerr.KindIs(err, memerr.KindCycleDetected))
}

func TestTopologicalOrderOverDependsOn(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	a := startedEpisode(t, e)
	b := startedEpisode(t, e)
	require.NoError(t, e.AddRelationship(ctx, a.ID, b.ID, types.RelDependsOn, 1, ""))

	order, err := e.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, order)
}

func TestBatchExecuteSequentialRunsInDependencyOrder(t *testing.T) {
	e := newTestEngine(t)
	ep := startedEpisode(t, e)

	// Pre-log a failure immediately followed by a success on distinct
	// tools, so the recovery bonus and unique-tool-ratio both land; the
	// batch's own log_step keeps every tool distinct, clearing the default
	// quality gate once "complete" runs.
	_, err := e.LogStep(context.Background(), ep.ID, "bash", "setup", nil, &types.StepResult{Status: types.StepFailure}, 100)
	require.NoError(t, err)
	_, err = e.LogStep(context.Background(), ep.ID, "edit", "retry", nil, &types.StepResult{Status: types.StepSuccess}, 100)
	require.NoError(t, err)

	ops := []BatchOperation{
		{ID: "complete", Tool: "complete_episode", Arguments: map[string]any{
			"episode_id": ep.ID, "outcome": types.Outcome{Status: types.OutcomeSuccess},
		}, DependsOn: []string{"log"}},
		{ID: "log", Tool: "log_step", Arguments: map[string]any{
			"episode_id": ep.ID, "tool": "read", "action": "run",
			"result": &types.StepResult{Status: types.StepSuccess},
		}},
	}

	results, err := e.BatchExecute(context.Background(), ops, BatchSequential)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]BatchResult{}
	for _, r := range results {
		byID[r.ID] = r
	}
	assert.NoError(t, byID["log"].Err)
	assert.NoError(t, byID["complete"].Err)
}

func TestBatchExecuteRejectsCyclicBatch(t *testing.T) {
	e := newTestEngine(t)
	ops := []BatchOperation{
		{ID: "a", Tool: "get_episode", DependsOn: []string{"b"}},
		{ID: "b", Tool: "get_episode", DependsOn: []string{"a"}},
	}
	_, err := e.BatchExecute(context.Background(), ops, BatchSequential)
	assert.True(t, memerr.KindIs(err, memerr.KindInvalidBatch))
}

func TestBatchExecuteSkipsDependentsOfFailedOps(t *testing.T) {
	e := newTestEngine(t)
	ops := []BatchOperation{
		{ID: "missing", Tool: "get_episode", Arguments: map[string]any{"episode_id": "nope"}},
		{ID: "dependent", Tool: "get_episode", Arguments: map[string]any{"episode_id": "nope"}, DependsOn: []string{"missing"}},
	}
	results, err := e.BatchExecute(context.Background(), ops, BatchSequential)
	require.NoError(t, err)

	byID := map[string]BatchResult{}
	for _, r := range results {
		byID[r.ID] = r
	}
	assert.Error(t, byID["missing"].Err)
	assert.True(t, memerr.KindIs(byID["dependent"].Err, memerr.KindInvalidInput))
}

func TestCapacityEvictionDeletesOldestWhenOverLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Database.URL = "file:" + t.Name()
	cfg.Database.CachePath = filepath.Join(t.TempDir(), "cache.db")
	cfg.Storage.MaxEpisodesCache = 1

	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { e.Stop() })

	first := startedEpisode(t, e)
	completeSuccessfully(t, e, first.ID)
	time.Sleep(2 * time.Millisecond)

	second := startedEpisode(t, e)
	completeSuccessfully(t, e, second.ID)

	listed, err := e.ListEpisodes(context.Background(), storage.EpisodeFilter{})
	require.NoError(t, err)
	assert.Len(t, listed, 1)
	assert.Equal(t, second.ID, listed[0].ID)
}
