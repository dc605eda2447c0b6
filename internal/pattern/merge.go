package pattern

import (
	"context"
	"math"

	"surf-core/internal/coreapi"
	"surf-core/internal/vectormemory"
)

// mergeSimilar collapses patterns whose description embeddings have cosine
// similarity above threshold into one, summing occurrences and keeping the
// higher similarity_score (§4.7's optional semantic merge). embed may be nil,
// in which case patterns are returned unmerged.
func mergeSimilar(ctx context.Context, patterns []coreapi.DetectedPattern, embed vectormemory.Embedder, threshold float64) []coreapi.DetectedPattern {
	if embed == nil || len(patterns) < 2 {
		return patterns
	}

	vecs := make([][]float32, len(patterns))
	for i, p := range patterns {
		v, err := embed(ctx, p.Description)
		if err != nil {
			return patterns
		}
		vecs[i] = v
	}

	merged := make([]bool, len(patterns))
	var out []coreapi.DetectedPattern
	for i := range patterns {
		if merged[i] {
			continue
		}
		acc := patterns[i]
		for j := i + 1; j < len(patterns); j++ {
			if merged[j] || patterns[j].Type != acc.Type {
				continue
			}
			sim := cosineSimilarity(vecs[i], vecs[j])
			if sim <= threshold {
				continue
			}
			merged[j] = true
			acc.Occurrences += patterns[j].Occurrences
			if patterns[j].SimilarityScore > acc.SimilarityScore {
				acc.SimilarityScore = patterns[j].SimilarityScore
			}
			acc.SampleEvents = sample(append(append([]coreapi.Event{}, acc.SampleEvents...), patterns[j].SampleEvents...))
		}
		out = append(out, acc)
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
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
