package nlu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedder_DeterministicAndNormalized(t *testing.T) {
	e := NewHashEmbedder(32)
	v1, err := e.Embed("show me attractions in cairo")
	require.NoError(t, err)
	v2, err := e.Embed("show me attractions in cairo")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 32)

	var sumSquares float64
	for _, x := range v1 {
		sumSquares += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sumSquares, 0.01)
}

func TestHashEmbedder_DiffersByContent(t *testing.T) {
	e := NewHashEmbedder(32)
	v1, _ := e.Embed("book a hotel")
	v2, _ := e.Embed("find a restaurant")
	assert.NotEqual(t, v1, v2)
}

func TestCosineSimilarity_IdenticalVectors(t *testing.T) {
	v := []float32{1, 0, 0}
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarity_OrthogonalVectors(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-9)
}

func TestCosineSimilarity_MismatchedLength(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 2}))
}
