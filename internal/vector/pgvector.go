package vector

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"echograph/internal/matching"
)

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGIndex stores regulation embeddings in the regulation_sections.embedding pgvector column.
type PGIndex struct {
	q Queryer
}

func NewPGIndex(q Queryer) *PGIndex {
	return &PGIndex{q: q}
}

func (p *PGIndex) Upsert(ctx context.Context, points []Point) error {
	for _, pt := range points {
		tag, err := p.q.Exec(ctx, `UPDATE regulation_sections SET embedding = $2::vector WHERE id = $1`, pt.ID, ToLiteral(pt.Vector))
		if err != nil {
			return fmt.Errorf("store embedding for regulation %d: %w", pt.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("store embedding: regulation %d does not exist", pt.ID)
		}
	}
	return nil
}

func (p *PGIndex) Search(ctx context.Context, vec []float32, limit int, filter map[string]string) ([]matching.Neighbor, error) {
	if err := checkFilter(filter); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	query, args := searchSQL(ToLiteral(vec), limit, filter)
	rows, err := p.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	out := make([]matching.Neighbor, 0, limit)
	for rows.Next() {
		var (
			id                               int64
			externalID, title, region, rtype string
			language                         string
			score                            float64
		)
		if err := rows.Scan(&id, &externalID, &title, &region, &rtype, &language, &score); err != nil {
			return nil, fmt.Errorf("scan vector result: %w", err)
		}
		out = append(out, matching.Neighbor{
			ID:    strconv.FormatInt(id, 10),
			Score: score,
			Payload: map[string]any{
				"id":                 externalID,
				"title":              title,
				FilterRegion:         region,
				FilterRegulationType: rtype,
				FilterLanguage:       language,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return out, nil
}

// searchSQL builds the cosine-distance query. Filter keys are emitted in sorted
// order so the placeholder numbering is stable.
func searchSQL(vecLiteral string, limit int, filter map[string]string) (string, []any) {
	args := []any{vecLiteral, limit}
	filterSQL := ""
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		args = append(args, filter[k])
		filterSQL += fmt.Sprintf(" AND %s = $%d", k, len(args))
	}
	return `
SELECT id, external_id, title, region, regulation_type, language,
       1 - (embedding <=> $1::vector) AS score
FROM regulation_sections
WHERE embedding IS NOT NULL` + filterSQL + `
ORDER BY embedding <=> $1::vector, external_id ASC
LIMIT $2`, args
}
