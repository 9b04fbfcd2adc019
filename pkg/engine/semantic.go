package engine

import (
	"context"
	"time"

	"github.com/cuemby/memoryengine/pkg/embeddings"
	"github.com/cuemby/memoryengine/pkg/memerr"
	"github.com/cuemby/memoryengine/pkg/metrics"
	"github.com/cuemby/memoryengine/pkg/querycache"
	"github.com/cuemby/memoryengine/pkg/retrieval"
)

// ConfigureEmbeddings swaps the engine's active Embedder at runtime,
// e.g. to move from the local deterministic fallback to a configured HTTP
// provider once credentials become available.
func (e *Engine) ConfigureEmbeddings(cfg embeddings.HTTPConfig) {
	e.embedder = embeddings.NewHTTPEmbedder(cfg)
}

// TestEmbeddings round-trips a single text through the active embedder and
// reports the resulting vector's dimension, so a caller can sanity-check a
// newly configured provider before relying on it.
func (e *Engine) TestEmbeddings(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, memerr.InternalInvariant("embedder returned an unexpected vector count")
	}
	return vecs[0], nil
}

// SemanticQuery is the query_semantic_memory tool's argument shape.
type SemanticQuery struct {
	Text            string
	Domain          string
	TaskType        string
	Since           *time.Time
	Until           *time.Time
	TopK            int
	DiversityLambda float64
}

// QuerySemanticMemory embeds the query text (if non-empty), runs the
// hierarchical retriever, and caches the result set under a key derived
// from the query shape so repeat queries skip retrieval entirely until an
// intervening mutation invalidates the entry.
func (e *Engine) QuerySemanticMemory(ctx context.Context, q SemanticQuery) ([]retrieval.Candidate, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RetrievalDuration)

	key := querycache.CacheKey{
		Query: q.Text, TopK: q.TopK, Mode: "semantic",
		Filter: struct {
			Domain, TaskType string
			Lambda           float64
		}{q.Domain, q.TaskType, q.DiversityLambda},
	}
	if cached, ok := e.qcache.Get(key); ok {
		if candidates, ok := cached.([]retrieval.Candidate); ok {
			return candidates, nil
		}
	}

	var embedding []float32
	if q.Text != "" {
		if vecs, err := e.embedder.Embed(ctx, []string{q.Text}); err == nil && len(vecs) == 1 {
			embedding = vecs[0]
		}
	}

	candidates, err := e.retrieve.Retrieve(ctx, retrieval.Query{
		Text: q.Text, Embedding: embedding, Domain: q.Domain, TaskType: q.TaskType,
		Since: q.Since, Until: q.Until, TopK: q.TopK, DiversityLambda: q.DiversityLambda,
	})
	if err != nil {
		return nil, err
	}

	e.qcache.Put(key, candidates, int64(len(candidates)*256))
	metrics.RetrievalResultsTotal.Add(float64(len(candidates)))
	return candidates, nil
}
