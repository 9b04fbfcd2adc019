package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddTagsNormalizesAndMergesOnInProgressEpisode(t *testing.T) {
	e := newTestEngine(t)
	ep := startedEpisode(t, e)

	tags, err := e.AddTags(context.Background(), ep.ID, "Go", "go", "Debugging")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"go", "debugging"}, tags)
}

func TestAddTagsOnCompletedEpisodePersistsThroughDurableTier(t *testing.T) {
	e := newTestEngine(t)
	ep := startedEpisode(t, e)
	completeSuccessfully(t, e, ep.ID)

	tags, err := e.AddTags(context.Background(), ep.ID, "regression")
	require.NoError(t, err)
	assert.Contains(t, tags, "regression")

	got, err := e.GetEpisode(context.Background(), ep.ID)
	require.NoError(t, err)
	assert.Contains(t, got.Tags, "regression")
}

func TestRemoveTagsDropsNamedTags(t *testing.T) {
	e := newTestEngine(t)
	ep := startedEpisode(t, e)
	_, err := e.AddTags(context.Background(), ep.ID, "go", "flaky")
	require.NoError(t, err)

	tags, err := e.RemoveTags(context.Background(), ep.ID, "flaky")
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, tags)
}

func TestSetTagsReplacesWholesale(t *testing.T) {
	e := newTestEngine(t)
	ep := startedEpisode(t, e)
	_, err := e.AddTags(context.Background(), ep.ID, "go", "flaky")
	require.NoError(t, err)

	tags, err := e.SetTags(context.Background(), ep.ID, "rewritten")
	require.NoError(t, err)
	assert.Equal(t, []string{"rewritten"}, tags)
}

func TestGetTagsReturnsCurrentSet(t *testing.T) {
	e := newTestEngine(t)
	ep := startedEpisode(t, e)
	_, err := e.AddTags(context.Background(), ep.ID, "go")
	require.NoError(t, err)

	tags, err := e.GetTags(context.Background(), ep.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, tags)
}

func TestGetTagsUnknownEpisodeReturnsError(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.GetTags(context.Background(), "missing")
	assert.Error(t, err)
}

func TestSearchByTagsFindsCompletedEpisodesWithAllTags(t *testing.T) {
	e := newTestEngine(t)
	ep := startedEpisode(t, e)
	completeSuccessfully(t, e, ep.ID)
	_, err := e.AddTags(context.Background(), ep.ID, "regression", "urgent")
	require.NoError(t, err)

	other := startedEpisode(t, e)
	completeSuccessfully(t, e, other.ID)
	_, err = e.AddTags(context.Background(), other.ID, "regression")
	require.NoError(t, err)

	got, err := e.SearchByTags(context.Background(), []string{"regression", "urgent"})
	require.NoError(t, err)
	if assert.Len(t, got, 1) {
		assert.Equal(t, ep.ID, got[0].ID)
	}
}
