package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
)

// HashEmbedder produces deterministic pseudo-random unit vectors from
// text. Identical texts embed to identical vectors (cosine similarity
// 1.0); unrelated texts land near zero. This gives integration tests
// full control over similarity without a network call: searching for a
// chunk's exact text is guaranteed to clear any threshold.
type HashEmbedder struct {
	// Dimension of produced vectors. Zero means 1536.
	Dimension int
}

func (e *HashEmbedder) Configured() bool { return true }

func (e *HashEmbedder) Embed(_ context.Context, text string) []float32 {
	dim := e.Dimension
	if dim <= 0 {
		dim = 1536
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	rng := rand.New(rand.NewPCG(seed, seed))
	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		v := rng.Float64()*2 - 1
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
