package vectormemory

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const defaultDims = 64

// HashEmbedder is a deterministic, dependency-free Embedder: it hashes each
// token into one of a fixed number of buckets and L2-normalizes the result.
// It is not semantically rich, but it is stable and fast, which is what the
// pattern engine's merge step needs when no
// external embedding model is configured. Swap in a model-backed Embedder in
// production by constructing Store with a different Embedder.
func HashEmbedder(dims int) Embedder {
	if dims <= 0 {
		dims = defaultDims
	}
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dims)
		for _, tok := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(tok))
			vec[int(h.Sum32())%dims]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm == 0 {
			return vec, nil
		}
		norm = math.Sqrt(norm)
		for i, v := range vec {
			vec[i] = float32(float64(v) / norm)
		}
		return vec, nil
	}
}
