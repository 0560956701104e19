// Package similarity computes dense cosine similarity matrices.
package similarity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"echograph/internal/util"
)

// normFloor keeps zero vectors from dividing by zero; their similarities come out as 0.
const normFloor = 1e-9

// Cosine returns the n×m matrix whose (i, j) entry is the cosine similarity of
// a[i] and b[j]. All rows must share one dimension. An empty side yields a nil matrix.
func Cosine(a, b [][]float32) (*mat.Dense, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, nil
	}
	dim := len(a[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: empty vector", util.ErrDimensionMismatch)
	}
	am, err := normalizedRows(a, dim)
	if err != nil {
		return nil, fmt.Errorf("left batch: %w", err)
	}
	bm, err := normalizedRows(b, dim)
	if err != nil {
		return nil, fmt.Errorf("right batch: %w", err)
	}
	var out mat.Dense
	out.Mul(am, bm.T())
	return &out, nil
}

// normalizedRows packs vectors into a matrix with every row divided by
// max(norm, normFloor).
func normalizedRows(vectors [][]float32, dim int) (*mat.Dense, error) {
	data := make([]float64, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", util.ErrDimensionMismatch, i, len(v), dim)
		}
		for _, x := range v {
			data = append(data, float64(x))
		}
	}
	m := mat.NewDense(len(vectors), dim, data)
	for i := 0; i < len(vectors); i++ {
		row := m.RowView(i).(*mat.VecDense)
		n := math.Max(mat.Norm(row, 2), normFloor)
		row.ScaleVec(1/n, row)
	}
	return m, nil
}

// Row copies row i of m.
func Row(m *mat.Dense, i int) []float64 {
	return mat.Row(nil, i, m)
}
