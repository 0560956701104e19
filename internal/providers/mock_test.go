package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echograph/internal/similarity"
)

func TestMockEmbedIsDeterministicAndUnitLength(t *testing.T) {
	p := NewMockProvider(64)
	a, info, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"Encrypt data at rest", "Encrypt data at rest"}})
	require.NoError(t, err)
	assert.Equal(t, "mock-embed-64", info.Model)
	require.Len(t, a, 2)
	assert.Equal(t, a[0], a[1])

	var sum float64
	for _, x := range a[0] {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestMockEmbedSharedVocabularyScoresHigher(t *testing.T) {
	p := NewMockProvider(256)
	vecs, _, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{
		"customer data must be encrypted at rest",
		"Encrypt customer data at rest.",
		"quarterly marketing newsletter schedule",
	}})
	require.NoError(t, err)
	m, err := similarity.Cosine(vecs[:1], vecs[1:])
	require.NoError(t, err)
	assert.Greater(t, m.At(0, 0), 0.4)
	assert.Greater(t, m.At(0, 0), m.At(0, 1))
}

func TestMockEmbedEmptyTextIsZeroVector(t *testing.T) {
	vecs, _, err := NewMockProvider(8).Embed(context.Background(), EmbedRequest{Inputs: []string{""}, Dimension: 4})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 0}, vecs[0])
}

func TestMockEmbedHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewMockProvider(8).Embed(ctx, EmbedRequest{Inputs: []string{"x"}})
	require.ErrorIs(t, err, context.Canceled)
}
