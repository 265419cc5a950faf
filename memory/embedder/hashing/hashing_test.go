package hashing_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory/embedder/hashing"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestEmbed_DeterministicUnitVector(t *testing.T) {
	e := hashing.New(0)
	assert.Equal(t, hashing.DefaultDimensions, e.Dimensions())

	a, err := e.Embed(context.Background(), "Contract breach remedies")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "contract BREACH remedies!")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, math.Sqrt(cosine(a, a)), 1e-5)
}

func TestEmbed_SharedVocabularyIsCloser(t *testing.T) {
	e := hashing.New(256)
	ctx := context.Background()

	query, _ := e.Embed(ctx, "quarterly revenue report")
	near, _ := e.Embed(ctx, "the quarterly revenue report for 2024")
	far, _ := e.Embed(ctx, "hiking boots and tents")

	assert.Greater(t, cosine(query, near), cosine(query, far))
}

func TestEmbed_EmptyText(t *testing.T) {
	vec, err := hashing.New(4).Embed(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0}, vec)
}
