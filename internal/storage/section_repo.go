package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"echograph/internal/models"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertGuideline(ctx context.Context, q querier, g models.GuidelineSection) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
INSERT INTO cloud_guideline_sections (external_id, title, body, language)
VALUES ($1, $2, $3, $4)
RETURNING id`, g.ExternalID, g.Title, g.Body, g.Language).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert guideline %s: %w", g.ExternalID, err)
	}
	return id, nil
}

func insertRegulation(ctx context.Context, q querier, r models.RegulationSection) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
INSERT INTO regulation_sections (external_id, title, body, region, regulation_type, language)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`, r.ExternalID, r.Title, r.Body, r.Region, r.RegulationType, r.Language).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert regulation %s: %w", r.ExternalID, err)
	}
	return id, nil
}

func listGuidelines(ctx context.Context, q querier, f models.GuidelineFilter) ([]models.GuidelineSection, error) {
	sql := `SELECT id, external_id, title, body, language FROM cloud_guideline_sections`
	args := []any{}
	if strings.TrimSpace(f.Language) != "" {
		sql += ` WHERE language = $1`
		args = append(args, f.Language)
	}
	rows, err := q.Query(ctx, sql+` ORDER BY id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list guidelines: %w", err)
	}
	defer rows.Close()
	out := make([]models.GuidelineSection, 0)
	for rows.Next() {
		var g models.GuidelineSection
		if err := rows.Scan(&g.ID, &g.ExternalID, &g.Title, &g.Body, &g.Language); err != nil {
			return nil, fmt.Errorf("scan guideline: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guidelines: %w", err)
	}
	return out, nil
}

func listRegulations(ctx context.Context, q querier, f models.RegulationFilter) ([]models.RegulationSection, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if strings.TrimSpace(f.Region) != "" {
		args = append(args, f.Region)
		where = append(where, fmt.Sprintf("region = $%d", len(args)))
	}
	if strings.TrimSpace(f.RegulationType) != "" {
		args = append(args, f.RegulationType)
		where = append(where, fmt.Sprintf("regulation_type = $%d", len(args)))
	}
	sql := `SELECT id, external_id, title, body, region, regulation_type, language FROM regulation_sections`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	rows, err := q.Query(ctx, sql+` ORDER BY id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list regulations: %w", err)
	}
	defer rows.Close()
	out := make([]models.RegulationSection, 0)
	for rows.Next() {
		var r models.RegulationSection
		if err := rows.Scan(&r.ID, &r.ExternalID, &r.Title, &r.Body, &r.Region, &r.RegulationType, &r.Language); err != nil {
			return nil, fmt.Errorf("scan regulation: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regulations: %w", err)
	}
	return out, nil
}

func idsByExternal(ctx context.Context, q querier, table string, externalIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(externalIDs))
	if len(externalIDs) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `SELECT external_id, id FROM `+table+` WHERE external_id = ANY($1)`, externalIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve %s ids: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var ext string
		var id int64
		if err := rows.Scan(&ext, &id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", table, err)
		}
		out[ext] = id
	}
	return out, rows.Err()
}
