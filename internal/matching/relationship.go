package matching

import (
	"context"
	"fmt"
	"strconv"
)

// DefaultPayloadConfidence is used when an index payload carries no confidence.
const DefaultPayloadConfidence = 0.5

const defaultSearchLimit = 5

// Neighbor is one scored hit from a vector index.
type Neighbor struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// VectorIndex is any nearest-neighbor store that can search by vector and
// return scored payloads.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, limit int, filter map[string]string) ([]Neighbor, error)
}

type GuidelineChunk struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

type MatchResult struct {
	GuidelineID  string  `json:"guideline_id"`
	RegulationID string  `json:"regulation_id"`
	Score        float64 `json:"score"`
	Rationale    string  `json:"rationale"`
	Confidence   float64 `json:"confidence"`
}

// EmbeddingLookup returns the vector stored for a guideline chunk id.
type EmbeddingLookup func(ctx context.Context, id string) ([]float32, error)

// RationaleFunc explains why a chunk matched a neighbor payload.
type RationaleFunc func(chunk GuidelineChunk, payload map[string]any) string

// RelationshipMatcher queries a persistent vector index per guideline chunk
// instead of building a full similarity matrix.
type RelationshipMatcher struct {
	Index  VectorIndex
	Limit  int
	Filter map[string]string
}

func NewRelationshipMatcher(index VectorIndex, limit int) *RelationshipMatcher {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return &RelationshipMatcher{Index: index, Limit: limit}
}

// Match searches the index once per chunk and returns one result per neighbor,
// in chunk order then index rank order. Confidence comes from the neighbor
// payload, not from the score.
func (m *RelationshipMatcher) Match(ctx context.Context, chunks []GuidelineChunk, lookup EmbeddingLookup, rationale RationaleFunc) ([]MatchResult, error) {
	if rationale == nil {
		rationale = PayloadRationale
	}
	limit := m.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	results := make([]MatchResult, 0, len(chunks)*limit)
	for _, chunk := range chunks {
		vec, err := lookup(ctx, chunk.ID)
		if err != nil {
			return nil, fmt.Errorf("lookup embedding for %s: %w", chunk.ID, err)
		}
		neighbors, err := m.Index.Search(ctx, vec, limit, m.Filter)
		if err != nil {
			return nil, fmt.Errorf("search neighbors for %s: %w", chunk.ID, err)
		}
		for _, n := range neighbors {
			results = append(results, MatchResult{
				GuidelineID:  chunk.ID,
				RegulationID: payloadString(n.Payload, "id"),
				Score:        n.Score,
				Rationale:    rationale(chunk, n.Payload),
				Confidence:   payloadFloat(n.Payload, "confidence", DefaultPayloadConfidence),
			})
		}
	}
	return results, nil
}

// PayloadRationale is the default RationaleFunc, built on SummarizeRationale.
func PayloadRationale(chunk GuidelineChunk, payload map[string]any) string {
	return SummarizeRationale(
		Label{ID: chunk.ID, Title: chunk.Title},
		Label{ID: payloadString(payload, "id"), Title: payloadString(payload, "title")},
	)
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func payloadFloat(payload map[string]any, key string, fallback float64) float64 {
	switch x := payload[key].(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f
		}
	}
	return fallback
}
