package matching

import (
	"fmt"

	"echograph/internal/models"
	"echograph/internal/util"
)

// Direction says which side of a match was just ingested and segmented.
type Direction int

const (
	// NewGuidelines matches freshly segmented guideline sections against existing regulations.
	NewGuidelines Direction = iota
	// NewRegulations matches freshly segmented regulation sections against existing guidelines.
	NewRegulations
)

// NewSection is a persisted section together with the segment it was cut from.
type NewSection struct {
	ID         int64
	ExternalID string
	Title      string
	Segment    models.Segment
}

// Candidate is an existing section on the other side, compared by its whole body.
type Candidate struct {
	ID         int64
	ExternalID string
	Title      string
	Body       string
}

// Options tune match selection.
type Options struct {
	Threshold    float64
	TopK         int
	ExcerptLimit int
}

// BuildMatches ranks every candidate for each new section and returns pending
// match records. score(s, c) is the similarity of sections[s] and candidates[c].
func BuildMatches(dir Direction, sections []NewSection, candidates []Candidate, score func(s, c int) float64, opts Options) ([]models.Match, error) {
	if len(sections) == 0 || len(candidates) == 0 {
		return nil, nil
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ExternalID
	}
	out := make([]models.Match, 0, len(sections))
	scores := make([]float64, len(candidates))
	for s, sec := range sections {
		for c := range candidates {
			scores[c] = score(s, c)
		}
		ranked, err := Rank(scores, ids, opts.Threshold, opts.TopK)
		if err != nil {
			return nil, fmt.Errorf("rank section %s: %w", sec.ExternalID, err)
		}
		for _, r := range ranked {
			out = append(out, buildMatch(dir, sec, candidates[r.Index], r.Score, opts.ExcerptLimit))
		}
	}
	return out, nil
}

func buildMatch(dir Direction, sec NewSection, cand Candidate, score float64, excerptLimit int) models.Match {
	newLabel := Label{ID: sec.ExternalID, Title: sec.Title}
	candLabel := Label{ID: cand.ExternalID, Title: cand.Title}
	newExcerpt := util.ClipExcerpt(sec.Segment.Text, excerptLimit)
	candExcerpt := util.ClipExcerpt(cand.Body, excerptLimit)
	newSpan := &models.Span{Start: sec.Segment.Start, End: sec.Segment.End}
	candSpan := &models.Span{Start: 0, End: util.RuneLen(cand.Body)}

	m := models.Match{
		Score:      score,
		Confidence: ConfidenceFromScore(score),
		Status:     models.MatchStatusPending,
	}
	if dir == NewGuidelines {
		m.GuidelineID, m.RegulationID = sec.ID, cand.ID
		m.Rationale = SummarizeRationale(newLabel, candLabel)
		m.GuidelineExcerpt, m.RegulationExcerpt = &newExcerpt, &candExcerpt
		m.GuidelineSpan, m.RegulationSpan = newSpan, candSpan
		return m
	}
	m.GuidelineID, m.RegulationID = cand.ID, sec.ID
	m.Rationale = SummarizeRationale(candLabel, newLabel)
	m.GuidelineExcerpt, m.RegulationExcerpt = &candExcerpt, &newExcerpt
	m.GuidelineSpan, m.RegulationSpan = candSpan, newSpan
	return m
}
