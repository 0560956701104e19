package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"echograph/internal/models"
	"echograph/internal/util"
)

type BatchRunRepo struct {
	db *DB
}

func NewBatchRunRepo(db *DB) *BatchRunRepo {
	return &BatchRunRepo{db: db}
}

func (r *BatchRunRepo) CreateRun(ctx context.Context, runID string) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO batch_runs (run_id, status)
VALUES ($1, $2)
ON CONFLICT (run_id) DO NOTHING`, runID, RunStatusPending)
	if err != nil {
		return fmt.Errorf("create batch run: %w", err)
	}
	return nil
}

func (r *BatchRunRepo) UpdateRun(ctx context.Context, runID, status string, matchCount int, reportPath string) error {
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE batch_runs
SET status=$2, match_count=$3, report_path=COALESCE(NULLIF($4,''), report_path), updated_at=NOW()
WHERE run_id=$1`, runID, status, matchCount, reportPath)
	if err != nil {
		return fmt.Errorf("update batch run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("batch run %s: %w", runID, util.ErrNotFound)
	}
	return nil
}

func (r *BatchRunRepo) GetRun(ctx context.Context, runID string) (models.BatchRun, error) {
	var run models.BatchRun
	err := r.db.Pool.QueryRow(ctx, `
SELECT run_id, status, match_count, COALESCE(report_path,''), created_at, updated_at
FROM batch_runs WHERE run_id=$1`, runID).
		Scan(&run.RunID, &run.Status, &run.MatchCount, &run.ReportPath, &run.CreatedAt, &run.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.BatchRun{}, fmt.Errorf("batch run %s: %w", runID, util.ErrNotFound)
	}
	if err != nil {
		return models.BatchRun{}, fmt.Errorf("get batch run: %w", err)
	}
	return run, nil
}
