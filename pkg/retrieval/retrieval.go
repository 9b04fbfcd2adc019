/*
Package retrieval implements the coarse-to-fine hierarchical retriever:
prune the spatiotemporal index to candidate leaves, score each candidate
by a weighted blend of semantic/keyword/recency/quality signals, merge and
cut to a working set, then pick the final top_k by maximal marginal
relevance so results trade off relevance against diversity instead of
returning near-duplicates.
*/
package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/memoryengine/pkg/spatiotemporal"
	"github.com/cuemby/memoryengine/pkg/types"
)

// Weights are the relevance-score blend defaults from the retrieval
// contract.
type Weights struct {
	Semantic float64
	Keyword  float64
	Recency  float64
	Quality  float64
}

func defaultWeights() Weights {
	return Weights{Semantic: 0.5, Keyword: 0.2, Recency: 0.15, Quality: 0.15}
}

// Query describes a retrieval request.
type Query struct {
	Text            string
	Embedding       []float32
	Domain          string
	TaskType        string
	Since           *time.Time
	Until           *time.Time
	TopK            int
	DiversityLambda float64
}

func (q Query) lambda() float64 {
	if q.DiversityLambda == 0 {
		return 0.7
	}
	return q.DiversityLambda
}

// Candidate is a scored episode ready for MMR selection.
type Candidate struct {
	Episode   *types.Episode
	Relevance float64
}

// EpisodeLoader resolves a spatiotemporal entry into its full episode,
// supplied by the engine façade (cache-first, per the retrieval data
// flow).
type EpisodeLoader func(ctx context.Context, episodeID string) (*types.Episode, error)

// Retriever runs coarse filtering over an Index, scores candidates, and
// applies MMR diversity selection.
type Retriever struct {
	index   *spatiotemporal.Index
	load    EpisodeLoader
	weights Weights
}

// New builds a Retriever over idx, resolving candidate ids via load.
func New(idx *spatiotemporal.Index, load EpisodeLoader) *Retriever {
	return &Retriever{index: idx, load: load, weights: defaultWeights()}
}

const mergeCutoffCap = 256

func mergeCutoff(topK int) int {
	n := 4 * topK
	if n > mergeCutoffCap {
		return mergeCutoffCap
	}
	if n < 1 {
		return mergeCutoffCap
	}
	return n
}

// Retrieve runs the full coarse-filter → score → merge-cutoff → MMR
// pipeline and returns up to q.TopK episodes.
func (r *Retriever) Retrieve(ctx context.Context, q Query) ([]Candidate, error) {
	entries := r.index.Query(spatiotemporal.QueryFilter{
		Domain: q.Domain, TaskType: q.TaskType, Since: q.Since, Until: q.Until,
	})

	now := time.Now()
	candidates := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		ep, err := r.load(ctx, e.EpisodeID)
		if err != nil {
			continue // a vanished/cache-miss id is skipped, not fatal
		}
		score := r.score(q, ep, now)
		candidates = append(candidates, Candidate{Episode: ep, Relevance: score})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Relevance > candidates[j].Relevance })
	cutoff := mergeCutoff(q.TopK)
	if cutoff < len(candidates) {
		candidates = candidates[:cutoff]
	}

	return mmrSelect(candidates, q.TopK, q.lambda()), nil
}

func (r *Retriever) score(q Query, ep *types.Episode, now time.Time) float64 {
	semantic := semanticSimilarity(q.Embedding, ep.Embedding)
	keyword := keywordScore(q.Text, ep)
	recency := math.Exp(-now.Sub(ep.UpdatedAt).Hours() / 24 / 30)
	quality := ep.QualityScore

	if len(q.Embedding) == 0 || len(ep.Embedding) == 0 {
		// No embeddings on one side: fold semantic weight into keyword so
		// the score still sums to the same total weight.
		return (r.weights.Semantic+r.weights.Keyword)*keyword + r.weights.Recency*recency + r.weights.Quality*quality
	}
	return r.weights.Semantic*semantic + r.weights.Keyword*keyword +
		r.weights.Recency*recency + r.weights.Quality*quality
}

func semanticSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func keywordScore(query string, ep *types.Episode) float64 {
	if query == "" {
		return 0
	}
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0
	}
	haystack := strings.ToLower(ep.Description)
	matches := 0
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			matches++
		}
	}
	return float64(matches) / float64(len(terms))
}

// mmrSelect greedily picks candidates maximizing
// lambda*relevance(e) - (1-lambda)*max_similarity(e, selected), until
// topK items are chosen or candidates are exhausted. Ties break on higher
// quality_score then lower id.
func mmrSelect(candidates []Candidate, topK int, lambda float64) []Candidate {
	if topK <= 0 || len(candidates) == 0 {
		return nil
	}
	remaining := append([]Candidate{}, candidates...)
	var selected []Candidate

	for len(selected) < topK && len(remaining) > 0 {
		bestIdx := -1
		var bestScore float64
		for i, c := range remaining {
			maxSim := 0.0
			for _, s := range selected {
				sim := candidateSimilarity(c.Episode, s.Episode)
				if sim > maxSim {
					maxSim = sim
				}
			}
			mmr := lambda*c.Relevance - (1-lambda)*maxSim
			if bestIdx == -1 || mmr > bestScore ||
				(mmr == bestScore && tieBreakLess(c.Episode, remaining[bestIdx].Episode)) {
				bestIdx, bestScore = i, mmr
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func tieBreakLess(a, b *types.Episode) bool {
	if a.QualityScore != b.QualityScore {
		return a.QualityScore > b.QualityScore
	}
	return a.ID < b.ID
}

func candidateSimilarity(a, b *types.Episode) float64 {
	if len(a.Embedding) > 0 && len(b.Embedding) > 0 {
		return semanticSimilarity(a.Embedding, b.Embedding)
	}
	return jaccard(tagsAndTools(a), tagsAndTools(b))
}

func tagsAndTools(ep *types.Episode) map[string]bool {
	set := make(map[string]bool)
	for _, t := range ep.Tags {
		set[t] = true
	}
	for _, step := range ep.Steps {
		set[step.Tool] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection, union := 0, 0
	seen := make(map[string]bool)
	for k := range a {
		seen[k] = true
	}
	for k := range b {
		seen[k] = true
	}
	for k := range seen {
		union++
		if a[k] && b[k] {
			intersection++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
