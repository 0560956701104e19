package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// MockProvider hashes lowercase word tokens into a fixed number of buckets.
// Texts sharing vocabulary get high cosine similarity, which keeps local runs meaningful.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 384
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "mock", Key: "mock"}
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	info.Model = fmt.Sprintf("mock-embed-%d", dim)
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		if err := ctx.Err(); err != nil {
			return nil, info, err
		}
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, info, nil
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	tokens := strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := sha256.Sum256([]byte(tok))
		bucket := binary.BigEndian.Uint32(h[:4]) % uint32(dim)
		if h[4]&1 == 0 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
