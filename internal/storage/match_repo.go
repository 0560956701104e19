package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"echograph/internal/models"
	"echograph/internal/util"
)

const matchColumns = `id, guideline_id, regulation_id, score, confidence, rationale,
       guideline_excerpt, regulation_excerpt,
       guideline_span_start, guideline_span_end, regulation_span_start, regulation_span_end,
       status, reviewer, reviewer_notes, created_at, updated_at`

func insertMatch(ctx context.Context, q querier, m models.Match) (int64, error) {
	gs, ge := SpanColumns(m.GuidelineSpan)
	rs, re := SpanColumns(m.RegulationSpan)
	status := m.Status
	if status == "" {
		status = models.MatchStatusPending
	}
	var id int64
	err := q.QueryRow(ctx, `
INSERT INTO matches (guideline_id, regulation_id, score, confidence, rationale,
                     guideline_excerpt, regulation_excerpt,
                     guideline_span_start, guideline_span_end, regulation_span_start, regulation_span_end,
                     status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id`,
		m.GuidelineID, m.RegulationID, m.Score, m.Confidence, m.Rationale,
		m.GuidelineExcerpt, m.RegulationExcerpt, gs, ge, rs, re, status,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert match %d/%d: %w", m.GuidelineID, m.RegulationID, err)
	}
	return id, nil
}

func listMatchesByGuideline(ctx context.Context, q querier, guidelineID int64, status string) ([]models.Match, error) {
	sql := `SELECT ` + matchColumns + ` FROM matches WHERE guideline_id = $1`
	args := []any{guidelineID}
	if status != "" {
		sql += ` AND status = $2`
		args = append(args, status)
	}
	rows, err := q.Query(ctx, sql+` ORDER BY score DESC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()
	out := make([]models.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return out, nil
}

func updateMatch(ctx context.Context, q querier, id int64, upd models.MatchUpdate) (models.Match, error) {
	row := q.QueryRow(ctx, `
UPDATE matches
SET status = COALESCE($2, status),
    reviewer = COALESCE($3, reviewer),
    reviewer_notes = COALESCE($4, reviewer_notes),
    updated_at = NOW()
WHERE id = $1
RETURNING `+matchColumns, id, upd.Status, upd.Reviewer, upd.ReviewerNotes)
	m, err := scanMatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Match{}, fmt.Errorf("match %d: %w", id, util.ErrNotFound)
	}
	return m, err
}

func scanMatch(row pgx.Row) (models.Match, error) {
	var m models.Match
	var gs, ge, rs, re *int
	if err := row.Scan(
		&m.ID, &m.GuidelineID, &m.RegulationID, &m.Score, &m.Confidence, &m.Rationale,
		&m.GuidelineExcerpt, &m.RegulationExcerpt, &gs, &ge, &rs, &re,
		&m.Status, &m.Reviewer, &m.ReviewerNotes, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Match{}, err
		}
		return models.Match{}, fmt.Errorf("scan match: %w", err)
	}
	m.GuidelineSpan = SpanFromColumns(gs, ge)
	m.RegulationSpan = SpanFromColumns(rs, re)
	return m, nil
}

// SpanColumns splits a span into nullable start/end columns.
func SpanColumns(s *models.Span) (*int, *int) {
	if s == nil {
		return nil, nil
	}
	start, end := s.Start, s.End
	return &start, &end
}

func SpanFromColumns(start, end *int) *models.Span {
	if start == nil || end == nil {
		return nil
	}
	return &models.Span{Start: *start, End: *end}
}
