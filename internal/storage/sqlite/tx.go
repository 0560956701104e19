package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"echograph/internal/models"
	"echograph/internal/storage"
)

const matchColumns = `id, guideline_id, regulation_id, score, confidence, rationale,
	guideline_excerpt, regulation_excerpt,
	guideline_span_start, guideline_span_end, regulation_span_start, regulation_span_end,
	status, reviewer, reviewer_notes, created_at, updated_at`

type matchRow struct {
	ID                  int64          `db:"id"`
	GuidelineID         int64          `db:"guideline_id"`
	RegulationID        int64          `db:"regulation_id"`
	Score               float64        `db:"score"`
	Confidence          float64        `db:"confidence"`
	Rationale           string         `db:"rationale"`
	GuidelineExcerpt    sql.NullString `db:"guideline_excerpt"`
	RegulationExcerpt   sql.NullString `db:"regulation_excerpt"`
	GuidelineSpanStart  *int           `db:"guideline_span_start"`
	GuidelineSpanEnd    *int           `db:"guideline_span_end"`
	RegulationSpanStart *int           `db:"regulation_span_start"`
	RegulationSpanEnd   *int           `db:"regulation_span_end"`
	Status              string         `db:"status"`
	Reviewer            sql.NullString `db:"reviewer"`
	ReviewerNotes       sql.NullString `db:"reviewer_notes"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func (r matchRow) toModel() models.Match {
	return models.Match{
		ID:                r.ID,
		GuidelineID:       r.GuidelineID,
		RegulationID:      r.RegulationID,
		Score:             r.Score,
		Confidence:        r.Confidence,
		Rationale:         r.Rationale,
		GuidelineExcerpt:  nullable(r.GuidelineExcerpt),
		RegulationExcerpt: nullable(r.RegulationExcerpt),
		GuidelineSpan:     storage.SpanFromColumns(r.GuidelineSpanStart, r.GuidelineSpanEnd),
		RegulationSpan:    storage.SpanFromColumns(r.RegulationSpanStart, r.RegulationSpanEnd),
		Status:            r.Status,
		Reviewer:          nullable(r.Reviewer),
		ReviewerNotes:     nullable(r.ReviewerNotes),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

type sqliteTx struct {
	tx  *sqlx.Tx
	now func() time.Time
}

func (t *sqliteTx) InsertGuideline(ctx context.Context, g models.GuidelineSection) (int64, error) {
	var id int64
	err := t.tx.GetContext(ctx, &id, `
INSERT INTO cloud_guideline_sections (external_id, title, body, language)
VALUES (?, ?, ?, ?)
RETURNING id`, g.ExternalID, g.Title, g.Body, g.Language)
	if err != nil {
		return 0, fmt.Errorf("insert guideline %s: %w", g.ExternalID, err)
	}
	return id, nil
}

func (t *sqliteTx) InsertRegulation(ctx context.Context, r models.RegulationSection) (int64, error) {
	var id int64
	err := t.tx.GetContext(ctx, &id, `
INSERT INTO regulation_sections (external_id, title, body, region, regulation_type, language)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`, r.ExternalID, r.Title, r.Body, r.Region, r.RegulationType, r.Language)
	if err != nil {
		return 0, fmt.Errorf("insert regulation %s: %w", r.ExternalID, err)
	}
	return id, nil
}

func (t *sqliteTx) ListGuidelines(ctx context.Context) ([]models.GuidelineSection, error) {
	return listGuidelines(ctx, t.tx, models.GuidelineFilter{})
}

func (t *sqliteTx) ListRegulations(ctx context.Context) ([]models.RegulationSection, error) {
	return listRegulations(ctx, t.tx, models.RegulationFilter{})
}

func (t *sqliteTx) InsertMatch(ctx context.Context, m models.Match) (int64, error) {
	gs, ge := storage.SpanColumns(m.GuidelineSpan)
	rs, re := storage.SpanColumns(m.RegulationSpan)
	status := m.Status
	if status == "" {
		status = models.MatchStatusPending
	}
	now := t.now()
	var id int64
	err := t.tx.GetContext(ctx, &id, `
INSERT INTO matches (guideline_id, regulation_id, score, confidence, rationale,
	guideline_excerpt, regulation_excerpt,
	guideline_span_start, guideline_span_end, regulation_span_start, regulation_span_end,
	status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`,
		m.GuidelineID, m.RegulationID, m.Score, m.Confidence, m.Rationale,
		m.GuidelineExcerpt, m.RegulationExcerpt, gs, ge, rs, re, status, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert match %d/%d: %w", m.GuidelineID, m.RegulationID, err)
	}
	return id, nil
}

func (t *sqliteTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Rollback is a no-op after Commit.
func (t *sqliteTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
