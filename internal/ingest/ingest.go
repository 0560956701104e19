// Package ingest turns one uploaded document into sections and candidate matches.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"echograph/internal/extract"
	"echograph/internal/matching"
	"echograph/internal/models"
	"echograph/internal/similarity"
	"echograph/internal/storage"
	"echograph/internal/util"
)

const (
	DefaultSimilarityThreshold = 0.55
	DefaultTopK                = 5

	uploadedRegion         = "uploaded"
	uploadedRegulationType = "custom"
)

type Request struct {
	FilePath         string
	Category         string
	Title            string
	Language         string
	MaxSegmentLength int
	// SimilarityThreshold is the minimum score for a match. Nil means
	// DefaultSimilarityThreshold; zero and negative values are taken as given.
	SimilarityThreshold *float64
	TopK                int
}

// Threshold returns a SimilarityThreshold value for t.
func Threshold(t float64) *float64 {
	return &t
}

// Embedder embeds two batches at once.
type Embedder interface {
	EmbedPair(ctx context.Context, left, right []string) ([][]float32, [][]float32, error)
}

// ExtractFunc reads the text of an uploaded file.
type ExtractFunc func(ctx context.Context, path string) (string, error)

type Options struct {
	// PreserveParagraphs keeps blank-line paragraph breaks through normalization
	// so they become segment boundaries.
	PreserveParagraphs bool
	ExcerptLimit       int
	Extract            ExtractFunc
}

type Ingestor struct {
	store    storage.Store
	embedder Embedder
	opts     Options
	log      zerolog.Logger
}

func New(store storage.Store, embedder Embedder, opts Options, log zerolog.Logger) *Ingestor {
	if opts.Extract == nil {
		opts.Extract = extract.Text
	}
	if opts.ExcerptLimit <= 0 {
		opts.ExcerptLimit = util.DefaultExcerptLimit
	}
	return &Ingestor{store: store, embedder: embedder, opts: opts, log: log.With().Str("component", "ingest").Logger()}
}

// IngestDocument extracts, normalizes and segments the file, persists one
// section per segment and proposes matches against the other side's existing
// sections. Sections and matches commit together or not at all.
func (i *Ingestor) IngestDocument(ctx context.Context, req Request) (models.UploadSummary, error) {
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		return models.UploadSummary{}, fmt.Errorf("%w: %v", util.ErrInvalidArgument, err)
	}
	req = withDefaults(req)
	log := i.log.With().Str("file", filepath.Base(req.FilePath)).Str("category", string(category)).Logger()

	raw, err := i.opts.Extract(ctx, req.FilePath)
	if err != nil {
		return models.UploadSummary{}, fmt.Errorf("extract %s: %w", filepath.Base(req.FilePath), err)
	}
	normalized := util.NormalizeText(raw)
	if i.opts.PreserveParagraphs {
		normalized = util.NormalizeParagraphs(raw)
	}
	if normalized == "" {
		log.Info().Msg("no extractable text")
		return models.UploadSummary{}, nil
	}
	segments := util.SegmentText(normalized, req.MaxSegmentLength)
	if len(segments) == 0 {
		return models.UploadSummary{}, nil
	}

	tx, err := i.store.BeginTx(ctx)
	if err != nil {
		return models.UploadSummary{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	stem := strings.TrimSuffix(filepath.Base(req.FilePath), filepath.Ext(req.FilePath))
	sections := make([]matching.NewSection, 0, len(segments))
	for n, seg := range segments {
		sec := matching.NewSection{
			ExternalID: fmt.Sprintf("%s-%d", stem, n+1),
			Title:      fmt.Sprintf("%s (Section %d)", req.Title, n+1),
			Segment:    seg,
		}
		if category == models.CategoryGuideline {
			sec.ID, err = tx.InsertGuideline(ctx, models.GuidelineSection{
				ExternalID: sec.ExternalID, Title: sec.Title, Body: seg.Text, Language: req.Language,
			})
		} else {
			sec.ID, err = tx.InsertRegulation(ctx, models.RegulationSection{
				ExternalID: sec.ExternalID, Title: sec.Title, Body: seg.Text,
				Region: uploadedRegion, RegulationType: uploadedRegulationType, Language: req.Language,
			})
		}
		if err != nil {
			return models.UploadSummary{}, err
		}
		sections = append(sections, sec)
	}

	matches, err := i.buildMatches(ctx, tx, category, sections, req)
	if err != nil {
		return models.UploadSummary{}, err
	}
	for _, m := range matches {
		if _, err := tx.InsertMatch(ctx, m); err != nil {
			return models.UploadSummary{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return models.UploadSummary{}, err
	}

	summary := models.UploadSummary{SectionsCreated: len(sections), MatchesCreated: len(matches)}
	log.Info().Int("sections", summary.SectionsCreated).Int("matches", summary.MatchesCreated).Msg("document ingested")
	return summary, nil
}

func (i *Ingestor) buildMatches(ctx context.Context, tx storage.Tx, category models.Category, sections []matching.NewSection, req Request) ([]models.Match, error) {
	candidates, err := listCandidates(ctx, tx, category)
	if err != nil || len(candidates) == 0 {
		return nil, err
	}

	sectionTexts := make([]string, len(sections))
	for n, s := range sections {
		sectionTexts[n] = s.Segment.Text
	}
	candidateTexts := make([]string, len(candidates))
	for n, c := range candidates {
		candidateTexts[n] = c.Body
	}
	sectionVecs, candidateVecs, err := i.embedder.EmbedPair(ctx, sectionTexts, candidateTexts)
	if err != nil {
		return nil, fmt.Errorf("embed sections: %w", err)
	}

	// The score matrix is always guidelines by regulations.
	var (
		scores *mat.Dense
		score  func(s, c int) float64
		dir    matching.Direction
	)
	if category == models.CategoryGuideline {
		scores, err = similarity.Cosine(sectionVecs, candidateVecs)
		score = func(s, c int) float64 { return scores.At(s, c) }
		dir = matching.NewGuidelines
	} else {
		scores, err = similarity.Cosine(candidateVecs, sectionVecs)
		score = func(s, c int) float64 { return scores.At(c, s) }
		dir = matching.NewRegulations
	}
	if err != nil {
		return nil, fmt.Errorf("score sections: %w", err)
	}
	return matching.BuildMatches(dir, sections, candidates, score, matching.Options{
		Threshold:    *req.SimilarityThreshold,
		TopK:         req.TopK,
		ExcerptLimit: i.opts.ExcerptLimit,
	})
}

func listCandidates(ctx context.Context, tx storage.Tx, category models.Category) ([]matching.Candidate, error) {
	if category == models.CategoryGuideline {
		regs, err := tx.ListRegulations(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]matching.Candidate, len(regs))
		for n, r := range regs {
			out[n] = matching.Candidate{ID: r.ID, ExternalID: r.ExternalID, Title: r.Title, Body: r.Body}
		}
		return out, nil
	}
	gs, err := tx.ListGuidelines(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]matching.Candidate, len(gs))
	for n, g := range gs {
		out[n] = matching.Candidate{ID: g.ID, ExternalID: g.ExternalID, Title: g.Title, Body: g.Body}
	}
	return out, nil
}

func withDefaults(req Request) Request {
	if req.MaxSegmentLength <= 0 {
		req.MaxSegmentLength = util.DefaultMaxSegmentLength
	}
	if req.SimilarityThreshold == nil {
		req.SimilarityThreshold = Threshold(DefaultSimilarityThreshold)
	}
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}
	if strings.TrimSpace(req.Language) == "" {
		req.Language = "en"
	}
	return req
}
