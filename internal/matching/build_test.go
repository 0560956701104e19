package matching

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echograph/internal/models"
)

func TestBuildMatchesNewGuidelines(t *testing.T) {
	sections := []NewSection{
		{ID: 10, ExternalID: "cloud-1", Title: "Cloud (Section 1)", Segment: models.Segment{Text: "Encrypt storage.", Start: 0, End: 16}},
		{ID: 11, ExternalID: "cloud-2", Title: "Cloud (Section 2)", Segment: models.Segment{Text: "Rotate keys.", Start: 18, End: 30}},
	}
	body := strings.Repeat("r", 600)
	candidates := []Candidate{
		{ID: 1, ExternalID: "reg-1", Title: "Art. 32", Body: body},
		{ID: 2, ExternalID: "reg-2", Title: "", Body: "Short body"},
	}
	scores := [][]float64{{0.9, 0.2}, {0.6, 0.7}}

	got, err := BuildMatches(NewGuidelines, sections, candidates, func(s, c int) float64 { return scores[s][c] }, Options{Threshold: 0.55, TopK: 5, ExcerptLimit: 480})
	require.NoError(t, err)
	require.Len(t, got, 3)

	first := got[0]
	assert.Equal(t, int64(10), first.GuidelineID)
	assert.Equal(t, int64(1), first.RegulationID)
	assert.Equal(t, 0.9, first.Score)
	assert.Equal(t, 0.9, first.Confidence)
	assert.Equal(t, models.MatchStatusPending, first.Status)
	assert.Equal(t, "Encrypt storage.", *first.GuidelineExcerpt)
	assert.Equal(t, strings.Repeat("r", 480)+"…", *first.RegulationExcerpt)
	assert.Equal(t, models.Span{Start: 0, End: 16}, *first.GuidelineSpan)
	assert.Equal(t, models.Span{Start: 0, End: 600}, *first.RegulationSpan)
	assert.Equal(t, "Guideline 'Cloud (Section 1)' aligns with regulation 'Art. 32' based on thematic overlap and shared control objectives.", first.Rationale)

	assert.Equal(t, int64(11), got[1].GuidelineID)
	assert.Equal(t, int64(2), got[1].RegulationID)
	assert.Contains(t, got[1].Rationale, "regulation 'reg-2'")
	assert.Equal(t, "Short body", *got[1].RegulationExcerpt)
	assert.Equal(t, int64(1), got[2].RegulationID)
}

func TestBuildMatchesNewRegulations(t *testing.T) {
	sections := []NewSection{{ID: 7, ExternalID: "gdpr-1", Title: "GDPR (Section 1)", Segment: models.Segment{Text: "Security of processing.", Start: 5, End: 28}}}
	candidates := []Candidate{{ID: 3, ExternalID: "cloud-1", Title: "Cloud (Section 1)", Body: "Encrypt storage."}}

	got, err := BuildMatches(NewRegulations, sections, candidates, func(int, int) float64 { return 0.8 }, Options{Threshold: 0.55, TopK: 5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	m := got[0]
	assert.Equal(t, int64(3), m.GuidelineID)
	assert.Equal(t, int64(7), m.RegulationID)
	assert.Equal(t, "Encrypt storage.", *m.GuidelineExcerpt)
	assert.Equal(t, "Security of processing.", *m.RegulationExcerpt)
	assert.Equal(t, models.Span{Start: 0, End: 16}, *m.GuidelineSpan)
	assert.Equal(t, models.Span{Start: 5, End: 28}, *m.RegulationSpan)
	assert.Equal(t, "Guideline 'Cloud (Section 1)' aligns with regulation 'GDPR (Section 1)' based on thematic overlap and shared control objectives.", m.Rationale)
}

func TestBuildMatchesNoCandidates(t *testing.T) {
	got, err := BuildMatches(NewGuidelines, []NewSection{{ID: 1}}, nil, nil, Options{TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, got)
}
