package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echograph/internal/models"
	"echograph/internal/storage"
	"echograph/internal/util"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "echograph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seed(t *testing.T, s *Store) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	regID, err := tx.InsertRegulation(ctx, models.RegulationSection{ExternalID: "gdpr-32", Title: "GDPR Art. 32", Body: "Security of processing", Region: "eu", RegulationType: "law", Language: "en"})
	require.NoError(t, err)
	_, err = tx.InsertRegulation(ctx, models.RegulationSection{ExternalID: "hipaa-1", Title: "HIPAA", Body: "Safeguards", Region: "us", RegulationType: "law", Language: "en"})
	require.NoError(t, err)
	gID, err := tx.InsertGuideline(ctx, models.GuidelineSection{ExternalID: "cloud-1", Title: "Cloud (Section 1)", Body: "Encrypt storage", Language: "en"})
	require.NoError(t, err)

	excerpt := "Encrypt storage"
	_, err = tx.InsertMatch(ctx, models.Match{
		GuidelineID: gID, RegulationID: regID, Score: 0.81, Confidence: 0.81, Rationale: "overlap",
		GuidelineExcerpt: &excerpt, GuidelineSpan: &models.Span{Start: 0, End: 15},
		RegulationSpan: &models.Span{Start: 0, End: 22},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	return gID, regID
}

func TestUploadTransactionAndListing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	gID, regID := seed(t, s)

	regs, err := s.ListRegulations(ctx, models.RegulationFilter{Region: "eu"})
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, regID, regs[0].ID)

	all, err := s.ListRegulations(ctx, models.RegulationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	gs, err := s.ListGuidelines(ctx, models.GuidelineFilter{Language: "de"})
	require.NoError(t, err)
	assert.Empty(t, gs)

	matches, err := s.ListMatchesByGuideline(ctx, gID, "")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, models.MatchStatusPending, m.Status)
	assert.Equal(t, "Encrypt storage", *m.GuidelineExcerpt)
	assert.Nil(t, m.RegulationExcerpt)
	assert.Equal(t, &models.Span{Start: 0, End: 22}, m.RegulationSpan)
	assert.False(t, m.CreatedAt.IsZero())
}

func TestRollbackDiscardsEverything(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.InsertGuideline(ctx, models.GuidelineSection{ExternalID: "doc-1", Title: "Doc (Section 1)", Body: "x", Language: "en"})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	gs, err := s.ListGuidelines(ctx, models.GuidelineFilter{})
	require.NoError(t, err)
	assert.Empty(t, gs)
}

func TestDuplicateExternalIDFails(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)
	ctx := context.Background()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()
	_, err = tx.InsertGuideline(ctx, models.GuidelineSection{ExternalID: "cloud-1", Title: "again", Body: "x", Language: "en"})
	require.Error(t, err)
}

func TestUpdateMatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	gID, _ := seed(t, s)
	before, err := s.ListMatchesByGuideline(ctx, gID, "")
	require.NoError(t, err)

	status, reviewer := models.MatchStatusAccepted, "alice"
	got, err := s.UpdateMatch(ctx, before[0].ID, models.MatchUpdate{Status: &status, Reviewer: &reviewer})
	require.NoError(t, err)
	assert.Equal(t, status, got.Status)
	assert.Equal(t, "alice", *got.Reviewer)
	assert.Nil(t, got.ReviewerNotes)
	assert.False(t, got.UpdatedAt.Before(before[0].UpdatedAt))

	notes := "checked"
	got, err = s.UpdateMatch(ctx, before[0].ID, models.MatchUpdate{ReviewerNotes: &notes})
	require.NoError(t, err)
	assert.Equal(t, status, got.Status)
	assert.Equal(t, "checked", *got.ReviewerNotes)

	pending, err := s.ListMatchesByGuideline(ctx, gID, models.MatchStatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = s.UpdateMatch(ctx, 404, models.MatchUpdate{Status: &status})
	require.ErrorIs(t, err, util.ErrNotFound)
}

func TestIDsByExternal(t *testing.T) {
	s := openTestStore(t)
	gID, regID := seed(t, s)
	ctx := context.Background()

	gids, err := s.GuidelineIDsByExternal(ctx, []string{"cloud-1", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"cloud-1": gID}, gids)

	rids, err := s.RegulationIDsByExternal(ctx, []string{"gdpr-32"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"gdpr-32": regID}, rids)

	empty, err := s.RegulationIDsByExternal(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBatchRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, "run-1"))
	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, storage.RunStatusPending, run.Status)

	require.NoError(t, s.UpdateRun(ctx, "run-1", storage.RunStatusCompleted, 4, "out/batch/run-1/matches.json"))
	run, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 4, run.MatchCount)
	assert.Equal(t, "out/batch/run-1/matches.json", run.ReportPath)

	require.ErrorIs(t, s.UpdateRun(ctx, "nope", storage.RunStatusFailed, 0, ""), util.ErrNotFound)
	_, err = s.GetRun(ctx, "nope")
	require.ErrorIs(t, err, util.ErrNotFound)
}

func TestStoreSatisfiesInterfaces(t *testing.T) {
	var _ storage.Store = (*Store)(nil)
	var _ storage.Catalog = (*Store)(nil)
	var _ storage.BatchRuns = (*Store)(nil)
}
