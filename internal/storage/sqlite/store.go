// Package sqlite is the single-file store used for local runs and the CLI.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"echograph/internal/models"
	"echograph/internal/storage"
	"echograph/internal/util"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS cloud_guideline_sections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT 'en'
	)`,
	`CREATE TABLE IF NOT EXISTS regulation_sections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		region TEXT NOT NULL,
		regulation_type TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT 'en'
	)`,
	`CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guideline_id INTEGER NOT NULL REFERENCES cloud_guideline_sections(id),
		regulation_id INTEGER NOT NULL REFERENCES regulation_sections(id),
		score REAL NOT NULL,
		confidence REAL NOT NULL,
		rationale TEXT NOT NULL,
		guideline_excerpt TEXT,
		regulation_excerpt TEXT,
		guideline_span_start INTEGER,
		guideline_span_end INTEGER,
		regulation_span_start INTEGER,
		regulation_span_end INTEGER,
		status TEXT NOT NULL DEFAULT 'pending',
		reviewer TEXT,
		reviewer_notes TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS matches_guideline_idx ON matches (guideline_id, status)`,
	`CREATE TABLE IF NOT EXISTS batch_runs (
		run_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		match_count INTEGER NOT NULL DEFAULT 0,
		report_path TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
}

// Store implements storage.Store, storage.Catalog and storage.BatchRuns on SQLite.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open connects to the database file at path. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := util.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Store) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &sqliteTx{tx: tx, now: s.now}, nil
}

func (s *Store) ListGuidelines(ctx context.Context, f models.GuidelineFilter) ([]models.GuidelineSection, error) {
	return listGuidelines(ctx, s.db, f)
}

func (s *Store) ListRegulations(ctx context.Context, f models.RegulationFilter) ([]models.RegulationSection, error) {
	return listRegulations(ctx, s.db, f)
}

func (s *Store) ListMatchesByGuideline(ctx context.Context, guidelineID int64, status string) ([]models.Match, error) {
	q := `SELECT ` + matchColumns + ` FROM matches WHERE guideline_id = ?`
	args := []any{guidelineID}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	var rows []matchRow
	if err := s.db.SelectContext(ctx, &rows, q+` ORDER BY score DESC, id ASC`, args...); err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	out := make([]models.Match, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *Store) UpdateMatch(ctx context.Context, id int64, upd models.MatchUpdate) (models.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Match{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	res, err := tx.ExecContext(ctx, `
UPDATE matches
SET status = COALESCE(?, status),
    reviewer = COALESCE(?, reviewer),
    reviewer_notes = COALESCE(?, reviewer_notes),
    updated_at = ?
WHERE id = ?`, upd.Status, upd.Reviewer, upd.ReviewerNotes, s.now(), id)
	if err != nil {
		return models.Match{}, fmt.Errorf("update match: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Match{}, fmt.Errorf("match %d: %w", id, util.ErrNotFound)
	}
	var row matchRow
	if err := tx.GetContext(ctx, &row, `SELECT `+matchColumns+` FROM matches WHERE id = ?`, id); err != nil {
		return models.Match{}, fmt.Errorf("reload match: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Match{}, fmt.Errorf("commit match update: %w", err)
	}
	return row.toModel(), nil
}

func (s *Store) GuidelineIDsByExternal(ctx context.Context, externalIDs []string) (map[string]int64, error) {
	return s.idsByExternal(ctx, "cloud_guideline_sections", externalIDs)
}

func (s *Store) RegulationIDsByExternal(ctx context.Context, externalIDs []string) (map[string]int64, error) {
	return s.idsByExternal(ctx, "regulation_sections", externalIDs)
}

func (s *Store) idsByExternal(ctx context.Context, table string, externalIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(externalIDs))
	if len(externalIDs) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(`SELECT external_id, id FROM `+table+` WHERE external_id IN (?)`, externalIDs)
	if err != nil {
		return nil, fmt.Errorf("build %s id lookup: %w", table, err)
	}
	var rows []struct {
		ExternalID string `db:"external_id"`
		ID         int64  `db:"id"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("resolve %s ids: %w", table, err)
	}
	for _, r := range rows {
		out[r.ExternalID] = r.ID
	}
	return out, nil
}

func (s *Store) CreateRun(ctx context.Context, runID string) error {
	now := s.now()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO batch_runs (run_id, status, created_at, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (run_id) DO NOTHING`, runID, storage.RunStatusPending, now, now)
	if err != nil {
		return fmt.Errorf("create batch run: %w", err)
	}
	return nil
}

func (s *Store) UpdateRun(ctx context.Context, runID, status string, matchCount int, reportPath string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE batch_runs
SET status = ?, match_count = ?, report_path = COALESCE(NULLIF(?, ''), report_path), updated_at = ?
WHERE run_id = ?`, status, matchCount, reportPath, s.now(), runID)
	if err != nil {
		return fmt.Errorf("update batch run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("batch run %s: %w", runID, util.ErrNotFound)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (models.BatchRun, error) {
	var row struct {
		RunID      string         `db:"run_id"`
		Status     string         `db:"status"`
		MatchCount int            `db:"match_count"`
		ReportPath sql.NullString `db:"report_path"`
		CreatedAt  time.Time      `db:"created_at"`
		UpdatedAt  time.Time      `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &row, `
SELECT run_id, status, match_count, report_path, created_at, updated_at
FROM batch_runs WHERE run_id = ?`, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BatchRun{}, fmt.Errorf("batch run %s: %w", runID, util.ErrNotFound)
	}
	if err != nil {
		return models.BatchRun{}, fmt.Errorf("get batch run: %w", err)
	}
	return models.BatchRun{
		RunID:      row.RunID,
		Status:     row.Status,
		MatchCount: row.MatchCount,
		ReportPath: row.ReportPath.String,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

func listGuidelines(ctx context.Context, q sqlx.QueryerContext, f models.GuidelineFilter) ([]models.GuidelineSection, error) {
	query := `SELECT id, external_id, title, body, language FROM cloud_guideline_sections`
	args := []any{}
	if strings.TrimSpace(f.Language) != "" {
		query += ` WHERE language = ?`
		args = append(args, f.Language)
	}
	out := make([]models.GuidelineSection, 0)
	if err := sqlx.SelectContext(ctx, q, &out, query+` ORDER BY id ASC`, args...); err != nil {
		return nil, fmt.Errorf("list guidelines: %w", err)
	}
	return out, nil
}

func listRegulations(ctx context.Context, q sqlx.QueryerContext, f models.RegulationFilter) ([]models.RegulationSection, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if strings.TrimSpace(f.Region) != "" {
		where = append(where, "region = ?")
		args = append(args, f.Region)
	}
	if strings.TrimSpace(f.RegulationType) != "" {
		where = append(where, "regulation_type = ?")
		args = append(args, f.RegulationType)
	}
	query := `SELECT id, external_id, title, body, region, regulation_type, language FROM regulation_sections`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	out := make([]models.RegulationSection, 0)
	if err := sqlx.SelectContext(ctx, q, &out, query+` ORDER BY id ASC`, args...); err != nil {
		return nil, fmt.Errorf("list regulations: %w", err)
	}
	return out, nil
}
