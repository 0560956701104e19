package similarity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echograph/internal/util"
)

func TestCosineKnownValues(t *testing.T) {
	a := [][]float32{{1, 0}, {0, 2}, {1, 1}}
	b := [][]float32{{3, 0}, {0, -1}}

	m, err := Cosine(a, b)
	require.NoError(t, err)
	r, c := m.Dims()
	require.Equal(t, 3, r)
	require.Equal(t, 2, c)

	assert.InDelta(t, 1.0, m.At(0, 0), 1e-9)
	assert.InDelta(t, 0.0, m.At(0, 1), 1e-9)
	assert.InDelta(t, 0.0, m.At(1, 0), 1e-9)
	assert.InDelta(t, -1.0, m.At(1, 1), 1e-9)
	assert.InDelta(t, math.Sqrt2/2, m.At(2, 0), 1e-9)
	assert.InDelta(t, -math.Sqrt2/2, m.At(2, 1), 1e-9)
}

func TestCosineSymmetryAndRange(t *testing.T) {
	a := [][]float32{{0.2, 0.7, -0.1}, {1, 1, 1}, {-3, 0.5, 2}}
	b := [][]float32{{0.9, 0.1, 0.4}, {-0.2, -0.2, 5}}

	ab, err := Cosine(a, b)
	require.NoError(t, err)
	ba, err := Cosine(b, a)
	require.NoError(t, err)

	for i := range a {
		for j := range b {
			assert.InDelta(t, ab.At(i, j), ba.At(j, i), 1e-12)
			assert.GreaterOrEqual(t, ab.At(i, j), -1-1e-9)
			assert.LessOrEqual(t, ab.At(i, j), 1+1e-9)
		}
	}
}

func TestCosineZeroVectorYieldsZeros(t *testing.T) {
	a := [][]float32{{0, 0, 0}, {1, 2, 3}}
	b := [][]float32{{1, 0, 0}, {0, 0, 0}}

	m, err := Cosine(a, b)
	require.NoError(t, err)
	for _, v := range Row(m, 0) {
		assert.False(t, math.IsNaN(v))
		assert.Equal(t, 0.0, v)
	}
	for i := range 2 {
		assert.Equal(t, 0.0, m.At(i, 1))
	}
	assert.InDelta(t, 1/math.Sqrt(14), m.At(1, 0), 1e-9)
}

func TestCosineEmptyInputs(t *testing.T) {
	m, err := Cosine(nil, [][]float32{{1}})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestCosineDimensionMismatch(t *testing.T) {
	_, err := Cosine([][]float32{{1, 2}}, [][]float32{{1, 2, 3}})
	require.ErrorIs(t, err, util.ErrDimensionMismatch)
}
