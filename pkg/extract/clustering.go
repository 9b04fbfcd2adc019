package extract

import (
	"context"
	"math"

	"github.com/cuemby/memoryengine/pkg/types"
)

const (
	clusterK            = 4
	clusterMaxIterations = 25
	dbscanEps            = 0.35
	dbscanMinPoints      = 2
)

// featureVector is a coarse per-episode signature: one dimension per
// distinct tool name seen across the window (count of uses, normalized),
// plus a trailing outcome-weight dimension.
type featureVector struct {
	episodeID string
	dims      []float64
}

// runClustering groups recent episodes in the same domain by a k-means
// pass over tool-usage + outcome feature vectors, emitting a ContextBased
// pattern per cluster centroid. DBSCAN runs over the same points first to
// mark noise (low-density outliers). Noise points still take part in the
// k-means pass, and so in the centroids, but are left out of each
// cluster's evidence, so a cluster made only of noise emits no pattern.
func (p *Pipeline) runClustering(ctx context.Context, ep *types.Episode) error {
	if p.deps.RecentDomainEpisodes == nil {
		return nil
	}
	recent, err := p.deps.RecentDomainEpisodes(ctx, ep.Context.Domain, 200)
	if err != nil {
		return err
	}
	if len(recent) < clusterK*2 {
		return nil
	}

	vocab := buildToolVocabulary(recent)
	points := make([]featureVector, 0, len(recent))
	for _, e := range recent {
		points = append(points, episodeFeatureVector(e, vocab))
	}

	noise := dbscanNoise(points)
	clusters := kMeans(points, clusterK)

	for _, cluster := range clusters {
		var evidence []string
		for _, idx := range cluster {
			if noise[points[idx].episodeID] {
				continue
			}
			evidence = append(evidence, points[idx].episodeID)
		}
		if len(evidence) == 0 {
			continue
		}
		pat := &types.Pattern{
			ID:          types.NewID(),
			PatternType: types.PatternContextBased,
			Body:        types.PatternBody{ClusterID: clusterLabel(evidence)},
			Evidence:    types.Evidence{EpisodeIDs: evidence},
			CreatedAt:   p.deps.now(),
			UpdatedAt:   p.deps.now(),
		}
		pat.Signature = pat.Body.Signature(types.PatternContextBased)
		if err := p.upsertPattern(ctx, pat); err != nil {
			return err
		}
	}
	return nil
}

func clusterLabel(evidence []string) string {
	if len(evidence) == 0 {
		return ""
	}
	return evidence[0]
}

func buildToolVocabulary(episodes []*types.Episode) map[string]int {
	vocab := make(map[string]int)
	for _, ep := range episodes {
		for _, step := range ep.Steps {
			if _, ok := vocab[step.Tool]; !ok {
				vocab[step.Tool] = len(vocab)
			}
		}
	}
	return vocab
}

func episodeFeatureVector(ep *types.Episode, vocab map[string]int) featureVector {
	dims := make([]float64, len(vocab)+1)
	for _, step := range ep.Steps {
		if idx, ok := vocab[step.Tool]; ok {
			dims[idx]++
		}
	}
	if n := float64(len(ep.Steps)); n > 0 {
		for i := range dims[:len(vocab)] {
			dims[i] /= n
		}
	}
	if ep.Outcome != nil {
		dims[len(vocab)] = ep.Outcome.Weight()
	}
	return featureVector{episodeID: ep.ID, dims: dims}
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// kMeans runs a bounded number of Lloyd's-algorithm iterations and returns
// the indices of points assigned to each of k clusters.
func kMeans(points []featureVector, k int) [][]int {
	if len(points) == 0 {
		return nil
	}
	if k > len(points) {
		k = len(points)
	}
	dim := len(points[0].dims)
	centroids := make([][]float64, k)
	for i := range centroids {
		centroids[i] = append([]float64{}, points[i*len(points)/k].dims...)
	}

	assignment := make([]int, len(points))
	for iter := 0; iter < clusterMaxIterations; iter++ {
		changed := false
		for i, pt := range points {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				d := euclidean(pt.dims, centroid)
				if d < bestDist {
					best, bestDist = c, d
				}
			}
			if assignment[i] != best {
				assignment[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}
		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, pt := range points {
			c := assignment[i]
			counts[c]++
			for d := 0; d < dim; d++ {
				sums[c][d] += pt.dims[d]
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := 0; d < dim; d++ {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	clusters := make([][]int, k)
	for i, c := range assignment {
		clusters[c] = append(clusters[c], i)
	}
	return clusters
}

// dbscanNoise flags points with fewer than dbscanMinPoints neighbors
// within dbscanEps as noise, returning a set keyed by episode id.
func dbscanNoise(points []featureVector) map[string]bool {
	noise := make(map[string]bool)
	for i, p := range points {
		neighbors := 0
		for j, q := range points {
			if i == j {
				continue
			}
			if euclidean(p.dims, q.dims) <= dbscanEps {
				neighbors++
			}
		}
		if neighbors < dbscanMinPoints {
			noise[p.episodeID] = true
		}
	}
	return noise
}
