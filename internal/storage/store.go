package storage

import (
	"context"

	"echograph/internal/models"
)

// Store opens the transactions an upload runs in.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is one upload's unit of work. Insert methods return the generated id
// immediately so matches can reference sections created earlier in the same Tx.
type Tx interface {
	InsertGuideline(ctx context.Context, g models.GuidelineSection) (int64, error)
	InsertRegulation(ctx context.Context, r models.RegulationSection) (int64, error)
	ListGuidelines(ctx context.Context) ([]models.GuidelineSection, error)
	ListRegulations(ctx context.Context) ([]models.RegulationSection, error)
	InsertMatch(ctx context.Context, m models.Match) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Catalog serves the review API and the batch matcher.
type Catalog interface {
	ListGuidelines(ctx context.Context, f models.GuidelineFilter) ([]models.GuidelineSection, error)
	ListRegulations(ctx context.Context, f models.RegulationFilter) ([]models.RegulationSection, error)
	ListMatchesByGuideline(ctx context.Context, guidelineID int64, status string) ([]models.Match, error)
	UpdateMatch(ctx context.Context, id int64, upd models.MatchUpdate) (models.Match, error)
	GuidelineIDsByExternal(ctx context.Context, externalIDs []string) (map[string]int64, error)
	RegulationIDsByExternal(ctx context.Context, externalIDs []string) (map[string]int64, error)
}

// BatchRuns tracks batch matching runs.
type BatchRuns interface {
	CreateRun(ctx context.Context, runID string) error
	UpdateRun(ctx context.Context, runID, status string, matchCount int, reportPath string) error
	GetRun(ctx context.Context, runID string) (models.BatchRun, error)
}

const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)
