// Package hashing provides an offline embedder based on feature hashing.
//
// Each lowercase word is hashed into one of a fixed number of buckets with a
// hash-derived sign, and the bucket counts are normalized to a unit vector.
// Texts sharing vocabulary land close together under cosine similarity,
// which is enough for keyword-level recall without model files.
package hashing

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory"
)

// DefaultDimensions matches all-MiniLM-L6-v2 so stores can swap embedders
// without re-creating collections.
const DefaultDimensions = 384

// Embedder hashes words into a fixed-size vector.
type Embedder struct {
	dimensions int
}

// New creates an embedder. dimensions <= 0 selects DefaultDimensions.
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

// Embed creates a deterministic embedding from text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embedding := make([]float32, e.dimensions)
	words := memory.Tokenize(text)
	if len(words) == 0 {
		// Text without words maps to a fixed unit vector so stores that
		// normalize never see a zero vector.
		embedding[0] = 1
		return embedding, nil
	}
	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(word))
		sum := h.Sum64()

		idx := int(sum % uint64(e.dimensions))
		if sum&(1<<63) != 0 {
			embedding[idx]--
		} else {
			embedding[idx]++
		}
	}

	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// normalize converts embedding to unit vector.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}

	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
