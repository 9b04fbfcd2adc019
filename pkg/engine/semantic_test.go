package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/memoryengine/pkg/embeddings"
)

func TestTestEmbeddingsReportsVectorDimension(t *testing.T) {
	e := newTestEngine(t)
	vec, err := e.TestEmbeddings(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, e.embedder.Dimension(), len(vec))
}

func TestConfigureEmbeddingsSwapsActiveEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"embedding":[1,2,3]}]}`))
	}))
	defer srv.Close()

	e := newTestEngine(t)
	e.ConfigureEmbeddings(embeddings.HTTPConfig{Endpoint: srv.URL, Dimension: 3})

	vec, err := e.TestEmbeddings(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}

func TestQuerySemanticMemoryReturnsCompletedEpisodes(t *testing.T) {
	e := newTestEngine(t)
	ep := startedEpisode(t, e)
	completeSuccessfully(t, e, ep.ID)

	candidates, err := e.QuerySemanticMemory(context.Background(), SemanticQuery{
		Domain: "backend", TopK: 5,
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, ep.ID, candidates[0].Episode.ID)
}

func TestQuerySemanticMemoryCachesRepeatQueries(t *testing.T) {
	e := newTestEngine(t)
	ep := startedEpisode(t, e)
	completeSuccessfully(t, e, ep.ID)

	first, err := e.QuerySemanticMemory(context.Background(), SemanticQuery{Domain: "backend", TopK: 5})
	require.NoError(t, err)

	second := startedEpisode(t, e)
	completeSuccessfully(t, e, second.ID)

	cached, err := e.QuerySemanticMemory(context.Background(), SemanticQuery{Domain: "backend", TopK: 5})
	require.NoError(t, err)
	assert.Equal(t, first, cached)
}
