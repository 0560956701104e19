package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"echograph/internal/models"
)

// PGStore is the Postgres implementation of Store and Catalog.
type PGStore struct {
	db *DB
}

func NewPGStore(db *DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

func (s *PGStore) ListGuidelines(ctx context.Context, f models.GuidelineFilter) ([]models.GuidelineSection, error) {
	return listGuidelines(ctx, s.db.Pool, f)
}

func (s *PGStore) ListRegulations(ctx context.Context, f models.RegulationFilter) ([]models.RegulationSection, error) {
	return listRegulations(ctx, s.db.Pool, f)
}

func (s *PGStore) ListMatchesByGuideline(ctx context.Context, guidelineID int64, status string) ([]models.Match, error) {
	return listMatchesByGuideline(ctx, s.db.Pool, guidelineID, status)
}

func (s *PGStore) UpdateMatch(ctx context.Context, id int64, upd models.MatchUpdate) (models.Match, error) {
	return updateMatch(ctx, s.db.Pool, id, upd)
}

func (s *PGStore) GuidelineIDsByExternal(ctx context.Context, externalIDs []string) (map[string]int64, error) {
	return idsByExternal(ctx, s.db.Pool, "cloud_guideline_sections", externalIDs)
}

func (s *PGStore) RegulationIDsByExternal(ctx context.Context, externalIDs []string) (map[string]int64, error) {
	return idsByExternal(ctx, s.db.Pool, "regulation_sections", externalIDs)
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) InsertGuideline(ctx context.Context, g models.GuidelineSection) (int64, error) {
	return insertGuideline(ctx, t.tx, g)
}

func (t *pgTx) InsertRegulation(ctx context.Context, r models.RegulationSection) (int64, error) {
	return insertRegulation(ctx, t.tx, r)
}

func (t *pgTx) ListGuidelines(ctx context.Context) ([]models.GuidelineSection, error) {
	return listGuidelines(ctx, t.tx, models.GuidelineFilter{})
}

func (t *pgTx) ListRegulations(ctx context.Context) ([]models.RegulationSection, error) {
	return listRegulations(ctx, t.tx, models.RegulationFilter{})
}

func (t *pgTx) InsertMatch(ctx context.Context, m models.Match) (int64, error) {
	return insertMatch(ctx, t.tx, m)
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Rollback is a no-op after Commit.
func (t *pgTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
