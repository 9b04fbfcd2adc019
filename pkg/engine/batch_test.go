package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/memoryengine/pkg/memerr"
)

func TestBatchExecuteRejectsUnknownDependency(t *testing.T) {
	e := newTestEngine(t)
	ops := []BatchOperation{
		{ID: "a", Tool: "get_episode", DependsOn: []string{"ghost"}},
	}
	_, err := e.BatchExecute(context.Background(), ops, BatchSequential)
	assert.True(t, memerr.KindIs(err, memerr.KindInvalidBatch))
}

func TestBatchExecuteParallelRunsIndependentOpsInOneWave(t *testing.T) {
	e := newTestEngine(t)
	ep := startedEpisode(t, e)
	completeSuccessfully(t, e, ep.ID)
	other := startedEpisode(t, e)
	completeSuccessfully(t, e, other.ID)

	ops := []BatchOperation{
		{ID: "first", Tool: "get_episode", Arguments: map[string]any{"episode_id": ep.ID}},
		{ID: "second", Tool: "get_episode", Arguments: map[string]any{"episode_id": other.ID}},
	}
	results, err := e.BatchExecute(context.Background(), ops, BatchParallel)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

func TestBatchExecutePreservesTopologicalOrderInResults(t *testing.T) {
	e := newTestEngine(t)
	ops := []BatchOperation{
		{ID: "b", Tool: "get_episode", Arguments: map[string]any{"episode_id": "nope"}, DependsOn: []string{"a"}},
		{ID: "a", Tool: "get_episode", Arguments: map[string]any{"episode_id": "nope"}},
	}
	results, err := e.BatchExecute(context.Background(), ops, BatchSequential)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
}
