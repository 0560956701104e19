package vector

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"

	"echograph/internal/matching"
	"echograph/internal/similarity"
)

// MemoryIndex is an exact in-process index for local runs and tests.
type MemoryIndex struct {
	mu     sync.RWMutex
	points map[int64]Point
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{points: make(map[int64]Point)}
}

func (m *MemoryIndex) Upsert(_ context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		m.points[p.ID] = Point{ID: p.ID, Vector: slices.Clone(p.Vector), Payload: maps.Clone(p.Payload)}
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, vec []float32, limit int, filter map[string]string) ([]matching.Neighbor, error) {
	if err := checkFilter(filter); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	m.mu.RLock()
	candidates := make([]Point, 0, len(m.points))
	for _, p := range m.points {
		if matchesFilter(p.Payload, filter) {
			candidates = append(candidates, p)
		}
	}
	m.mu.RUnlock()
	if len(candidates) == 0 {
		return nil, ctx.Err()
	}

	vecs := make([][]float32, len(candidates))
	for i, p := range candidates {
		vecs[i] = p.Vector
	}
	scores, err := similarity.Cosine([][]float32{vec}, vecs)
	if err != nil {
		return nil, fmt.Errorf("score memory index: %w", err)
	}
	row := similarity.Row(scores, 0)
	out := make([]matching.Neighbor, len(candidates))
	for i, p := range candidates {
		out[i] = matching.Neighbor{ID: strconv.FormatInt(p.ID, 10), Score: row[i], Payload: maps.Clone(p.Payload)}
	}
	slices.SortFunc(out, func(a, b matching.Neighbor) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(fmt.Sprint(a.Payload["id"]), fmt.Sprint(b.Payload["id"]))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesFilter(payload map[string]any, filter map[string]string) bool {
	for k, want := range filter {
		if got, _ := payload[k].(string); got != want {
			return false
		}
	}
	return true
}
