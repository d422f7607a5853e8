package embedding

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrVersionMismatch   = errors.New("embeddings come from different model versions")
	ErrDimensionMismatch = errors.New("embeddings have different dimensions")
)

// Embedding is a unit-length face descriptor tagged with the model version that produced it.
type Embedding struct {
	Vector  []float32
	Version string
}

// L2Normalize returns v scaled to unit length.
// The second result is false for empty, zero or non-finite vectors.
func L2Normalize(v []float32) ([]float32, bool) {
	if len(v) == 0 {
		return nil, false
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm < 1e-10 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, false
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, true
}

// CosineDistance computes the cosine distance between two vectors
// Returns a value between 0 (identical) and 2 (opposite)
// Cosine distance = 1 - cosine similarity
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0 // Maximum distance for invalid input
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0 // Maximum distance for zero vectors
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	similarity = max(-1, min(1, similarity))

	return 1 - similarity
}

// Distance returns the cosine distance between two embeddings of the same model.
func Distance(a, b Embedding) (float64, error) {
	if a.Version != b.Version {
		return 0, fmt.Errorf("%w: %q vs %q", ErrVersionMismatch, a.Version, b.Version)
	}
	if len(a.Vector) != len(b.Vector) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a.Vector), len(b.Vector))
	}
	return CosineDistance(a.Vector, b.Vector), nil
}
