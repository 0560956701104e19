// Package vector holds the nearest-neighbor indexes regulations are searched in.
package vector

import (
	"context"
	"fmt"
	"strings"

	"echograph/internal/matching"
	"echograph/internal/models"
	"echograph/internal/util"
)

// Point is one regulation section stored in an index.
type Point struct {
	ID      int64
	Vector  []float32
	Payload map[string]any
}

// Index is a matching.VectorIndex that can also be filled.
type Index interface {
	matching.VectorIndex
	Upsert(ctx context.Context, points []Point) error
}

// Filter keys every index understands.
const (
	FilterRegion         = "region"
	FilterRegulationType = "regulation_type"
	FilterLanguage       = "language"
)

// RegulationPoint builds the point and payload indexed for a regulation section.
func RegulationPoint(r models.RegulationSection, vec []float32) Point {
	return Point{
		ID:     r.ID,
		Vector: vec,
		Payload: map[string]any{
			"id":                 r.ExternalID,
			"title":              r.Title,
			FilterRegion:         r.Region,
			FilterRegulationType: r.RegulationType,
			FilterLanguage:       r.Language,
		},
	}
}

func checkFilter(filter map[string]string) error {
	for k := range filter {
		switch k {
		case FilterRegion, FilterRegulationType, FilterLanguage:
		default:
			return fmt.Errorf("filter key %q: %w", k, util.ErrInvalidArgument)
		}
	}
	return nil
}

func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%f", x))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
