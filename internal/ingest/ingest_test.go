package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echograph/internal/models"
	"echograph/internal/storage"
	"echograph/internal/storage/sqlite"
	"echograph/internal/util"
)

// constEmbedder maps every text to the same vector unless a text is listed in orthogonal.
type constEmbedder struct {
	orthogonal map[string]bool
	err        error
	calls      int
}

func (e *constEmbedder) EmbedPair(_ context.Context, left, right []string) ([][]float32, [][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, nil, e.err
	}
	return e.vecs(left), e.vecs(right), nil
}

func (e *constEmbedder) vecs(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if e.orthogonal[t] {
			out[i] = []float32{0, 1}
			continue
		}
		out[i] = []float32{1, 0}
	}
	return out
}

func textOf(s string) ExtractFunc {
	return func(context.Context, string) (string, error) { return s, nil }
}

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedRegulations(t *testing.T, s storage.Store, bodies ...string) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	for i, b := range bodies {
		_, err := tx.InsertRegulation(ctx, models.RegulationSection{
			ExternalID: "reg-" + string(rune('a'+i)), Title: "Regulation " + string(rune('A'+i)),
			Body: b, Region: "eu", RegulationType: "law", Language: "en",
		})
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit(ctx))
}

func TestIngestGuidelineCreatesSectionsAndMatches(t *testing.T) {
	store := newStore(t)
	seedRegulations(t, store, "Security of processing.", "Records of processing activities.")
	text := strings.TrimSpace(strings.Repeat("abcdefghi ", 200))

	ing := New(store, &constEmbedder{}, Options{Extract: textOf(text)}, zerolog.Nop())
	got, err := ing.IngestDocument(context.Background(), Request{
		FilePath: "/uploads/cloud-guide.pdf", Category: "Guideline", Title: "Cloud Guide", Language: "en",
	})
	require.NoError(t, err)
	assert.Equal(t, models.UploadSummary{SectionsCreated: 3, MatchesCreated: 6}, got)

	gs, err := store.ListGuidelines(context.Background(), models.GuidelineFilter{})
	require.NoError(t, err)
	require.Len(t, gs, 3)
	assert.Equal(t, "cloud-guide-1", gs[0].ExternalID)
	assert.Equal(t, "Cloud Guide (Section 3)", gs[2].Title)

	matches, err := store.ListMatchesByGuideline(context.Background(), gs[1].ID, "")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.GreaterOrEqual(t, m.Score, 0.55)
		assert.Equal(t, models.MatchStatusPending, m.Status)
		assert.Equal(t, &models.Span{Start: 800, End: 1599}, m.GuidelineSpan)
		assert.Equal(t, 0, m.RegulationSpan.Start)
		assert.Contains(t, m.Rationale, "Guideline 'Cloud Guide (Section 2)' aligns with regulation 'Regulation ")
	}
	assert.Equal(t, &models.Span{Start: 0, End: 23}, matches[0].RegulationSpan)
}

func TestIngestRegulationOrientsMatches(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	gID, err := tx.InsertGuideline(ctx, models.GuidelineSection{ExternalID: "cloud-1", Title: "Cloud (Section 1)", Body: "Encrypt customer data.", Language: "en"})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	ing := New(store, &constEmbedder{}, Options{Extract: textOf("  Personal data shall be encrypted.  ")}, zerolog.Nop())
	got, err := ing.IngestDocument(ctx, Request{FilePath: "gdpr.txt", Category: "regulation", Title: "GDPR"})
	require.NoError(t, err)
	assert.Equal(t, models.UploadSummary{SectionsCreated: 1, MatchesCreated: 1}, got)

	regs, err := store.ListRegulations(ctx, models.RegulationFilter{Region: "uploaded", RegulationType: "custom"})
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "gdpr-1", regs[0].ExternalID)
	assert.Equal(t, "en", regs[0].Language)

	matches, err := store.ListMatchesByGuideline(ctx, gID, "")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, regs[0].ID, m.RegulationID)
	assert.Equal(t, &models.Span{Start: 0, End: 22}, m.GuidelineSpan)
	assert.Equal(t, &models.Span{Start: 0, End: 33}, m.RegulationSpan)
	assert.Equal(t, "Personal data shall be encrypted.", *m.RegulationExcerpt)
	assert.Equal(t, "Guideline 'Cloud (Section 1)' aligns with regulation 'GDPR (Section 1)' based on thematic overlap and shared control objectives.", m.Rationale)
}

func TestIngestEmptyDocument(t *testing.T) {
	store := newStore(t)
	emb := &constEmbedder{}
	ing := New(store, emb, Options{Extract: textOf(" \n\u00ad\t ")}, zerolog.Nop())

	got, err := ing.IngestDocument(context.Background(), Request{FilePath: "blank.pdf", Category: "guideline", Title: "Blank"})
	require.NoError(t, err)
	assert.Equal(t, models.UploadSummary{}, got)
	assert.Zero(t, emb.calls)

	gs, err := store.ListGuidelines(context.Background(), models.GuidelineFilter{})
	require.NoError(t, err)
	assert.Empty(t, gs)
}

func TestIngestWithoutCounterparts(t *testing.T) {
	store := newStore(t)
	emb := &constEmbedder{}
	ing := New(store, emb, Options{Extract: textOf("Rotate keys yearly.")}, zerolog.Nop())

	got, err := ing.IngestDocument(context.Background(), Request{FilePath: "keys.docx", Category: "guideline", Title: "Keys"})
	require.NoError(t, err)
	assert.Equal(t, models.UploadSummary{SectionsCreated: 1}, got)
	assert.Zero(t, emb.calls)
}

func TestIngestRejectsUnknownCategoryFirst(t *testing.T) {
	store := newStore(t)
	extracted := false
	ing := New(store, &constEmbedder{}, Options{Extract: func(context.Context, string) (string, error) {
		extracted = true
		return "text", nil
	}}, zerolog.Nop())

	_, err := ing.IngestDocument(context.Background(), Request{FilePath: "x.txt", Category: "law", Title: "X"})
	require.ErrorIs(t, err, util.ErrInvalidArgument)
	assert.False(t, extracted)
}

func TestIngestThresholdFiltersMatches(t *testing.T) {
	store := newStore(t)
	seedRegulations(t, store, "Unrelated retention rule.")
	emb := &constEmbedder{orthogonal: map[string]bool{"Unrelated retention rule.": true}}
	ing := New(store, emb, Options{Extract: textOf("Encrypt backups.")}, zerolog.Nop())

	got, err := ing.IngestDocument(context.Background(), Request{FilePath: "b.txt", Category: "guideline", Title: "B"})
	require.NoError(t, err)
	assert.Equal(t, models.UploadSummary{SectionsCreated: 1, MatchesCreated: 0}, got)
}

func TestIngestZeroThresholdKeepsZeroScores(t *testing.T) {
	store := newStore(t)
	seedRegulations(t, store, "Unrelated retention rule.")
	emb := &constEmbedder{orthogonal: map[string]bool{"Unrelated retention rule.": true}}
	ing := New(store, emb, Options{Extract: textOf("Encrypt backups.")}, zerolog.Nop())

	got, err := ing.IngestDocument(context.Background(), Request{
		FilePath: "z.txt", Category: "guideline", Title: "Z", SimilarityThreshold: Threshold(0), TopK: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, models.UploadSummary{SectionsCreated: 1, MatchesCreated: 1}, got)

	gs, err := store.ListGuidelines(context.Background(), models.GuidelineFilter{})
	require.NoError(t, err)
	require.Len(t, gs, 1)
	matches, err := store.ListMatchesByGuideline(context.Background(), gs[0].ID, "")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Zero(t, matches[0].Score)
}

func TestIngestTopKLimitsMatchesPerSection(t *testing.T) {
	store := newStore(t)
	seedRegulations(t, store, "one", "two", "three", "four")
	ing := New(store, &constEmbedder{}, Options{Extract: textOf("guideline text")}, zerolog.Nop())

	got, err := ing.IngestDocument(context.Background(), Request{FilePath: "g.txt", Category: "guideline", Title: "G", TopK: 2, SimilarityThreshold: Threshold(0.9)})
	require.NoError(t, err)
	assert.Equal(t, 2, got.MatchesCreated)
}

type failingMatchStore struct {
	storage.Store
}

type failingMatchTx struct {
	storage.Tx
}

func (s failingMatchStore) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return failingMatchTx{Tx: tx}, nil
}

func (failingMatchTx) InsertMatch(context.Context, models.Match) (int64, error) {
	return 0, errors.New("disk full")
}

func TestIngestRollsBackOnFailure(t *testing.T) {
	store := newStore(t)
	seedRegulations(t, store, "Security of processing.")
	ing := New(failingMatchStore{Store: store}, &constEmbedder{}, Options{Extract: textOf("Encrypt data.")}, zerolog.Nop())

	_, err := ing.IngestDocument(context.Background(), Request{FilePath: "g.txt", Category: "guideline", Title: "G"})
	require.ErrorContains(t, err, "disk full")

	gs, err := store.ListGuidelines(context.Background(), models.GuidelineFilter{})
	require.NoError(t, err)
	assert.Empty(t, gs)
}

func TestIngestEmbeddingFailureRollsBack(t *testing.T) {
	store := newStore(t)
	seedRegulations(t, store, "Security of processing.")
	ing := New(store, &constEmbedder{err: errors.New("provider down")}, Options{Extract: textOf("Encrypt data.")}, zerolog.Nop())

	_, err := ing.IngestDocument(context.Background(), Request{FilePath: "g.txt", Category: "guideline", Title: "G"})
	require.ErrorContains(t, err, "provider down")

	gs, err := store.ListGuidelines(context.Background(), models.GuidelineFilter{})
	require.NoError(t, err)
	assert.Empty(t, gs)
}

func TestIngestParagraphModes(t *testing.T) {
	raw := "Access control.\n\nKey rotation."

	preserved := New(newStore(t), &constEmbedder{}, Options{PreserveParagraphs: true, Extract: textOf(raw)}, zerolog.Nop())
	got, err := preserved.IngestDocument(context.Background(), Request{FilePath: "p.txt", Category: "guideline", Title: "P"})
	require.NoError(t, err)
	assert.Equal(t, 2, got.SectionsCreated)

	collapsed := New(newStore(t), &constEmbedder{}, Options{Extract: textOf(raw)}, zerolog.Nop())
	got, err = collapsed.IngestDocument(context.Background(), Request{FilePath: "p.txt", Category: "guideline", Title: "P"})
	require.NoError(t, err)
	assert.Equal(t, 1, got.SectionsCreated)
}

func TestIngestDuplicateExternalIDFails(t *testing.T) {
	store := newStore(t)
	ing := New(store, &constEmbedder{}, Options{Extract: textOf("Same file.")}, zerolog.Nop())
	req := Request{FilePath: "dup.txt", Category: "guideline", Title: "Dup"}

	_, err := ing.IngestDocument(context.Background(), req)
	require.NoError(t, err)
	_, err = ing.IngestDocument(context.Background(), req)
	require.Error(t, err)

	gs, err := store.ListGuidelines(context.Background(), models.GuidelineFilter{})
	require.NoError(t, err)
	assert.Len(t, gs, 1)
}
