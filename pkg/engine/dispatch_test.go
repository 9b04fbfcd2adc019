package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/memoryengine/pkg/types"
)

func TestArgStringMissingKeyReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", argString(map[string]any{}, "missing"))
}

func TestArgInt64AcceptsNumericWireTypes(t *testing.T) {
	assert.Equal(t, int64(5), argInt64(map[string]any{"n": float64(5)}, "n"))
	assert.Equal(t, int64(5), argInt64(map[string]any{"n": 5}, "n"))
	assert.Equal(t, int64(5), argInt64(map[string]any{"n": int64(5)}, "n"))
	assert.Equal(t, int64(0), argInt64(map[string]any{"n": "not a number"}, "n"))
}

func TestArgFloat64AcceptsNumericWireTypes(t *testing.T) {
	assert.Equal(t, 1.5, argFloat64(map[string]any{"n": 1.5}, "n"))
	assert.Equal(t, float64(2), argFloat64(map[string]any{"n": 2}, "n"))
	assert.Equal(t, float64(0), argFloat64(map[string]any{"n": nil}, "n"))
}

func TestArgStringSliceAcceptsBothWireShapes(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, argStringSlice(map[string]any{"tags": []string{"a", "b"}}, "tags"))
	assert.Equal(t, []string{"a", "b"}, argStringSlice(map[string]any{"tags": []any{"a", "b"}}, "tags"))
	assert.Nil(t, argStringSlice(map[string]any{}, "tags"))
}

func TestDispatchBatchOpUnknownToolIsInvalidInput(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.dispatchBatchOp(context.Background(), BatchOperation{Tool: "not_a_real_tool"})
	assert.Error(t, err)
}

func TestDispatchBatchOpStartEpisode(t *testing.T) {
	e := newTestEngine(t)
	got, err := e.dispatchBatchOp(context.Background(), BatchOperation{
		Tool: "start_episode",
		Arguments: map[string]any{
			"description": "d", "domain": "backend", "task_type": "debugging",
			"tags": []any{"Go", "go"},
		},
	})
	require.NoError(t, err)
	ep, ok := got.(*types.Episode)
	require.True(t, ok)
	assert.Equal(t, []string{"go"}, ep.Tags)
}
