package activities

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"echograph/internal/config"
	"echograph/internal/matching"
	"echograph/internal/models"
	"echograph/internal/providers"
	"echograph/internal/storage"
	"echograph/internal/util"
	"echograph/internal/vector"
)

const embedBatchSize = 64

// Deps are the stores and index the batch activities run against.
type Deps struct {
	Store     storage.Store
	Catalog   storage.Catalog
	Runs      storage.BatchRuns
	Index     vector.Index
	Providers *providers.Manager
}

type Activities struct {
	cfg       config.Config
	store     storage.Store
	catalog   storage.Catalog
	runs      storage.BatchRuns
	index     vector.Index
	providers *providers.Manager
	log       zerolog.Logger
	now       func() time.Time
}

func New(cfg config.Config, deps Deps, log zerolog.Logger) (*Activities, error) {
	if deps.Store == nil || deps.Catalog == nil || deps.Runs == nil || deps.Index == nil {
		return nil, fmt.Errorf("activities dependencies: %w", util.ErrInvalidArgument)
	}
	pm := deps.Providers
	if pm == nil {
		var err error
		pm, err = providers.NewManager(cfg.EmbedProviders, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
	}
	return &Activities{
		cfg:       cfg,
		store:     deps.Store,
		catalog:   deps.Catalog,
		runs:      deps.Runs,
		index:     deps.Index,
		providers: pm,
		log:       log.With().Str("component", "activities").Logger(),
		now:       time.Now,
	}, nil
}

func (a *Activities) ListGuidelineChunksActivity(ctx context.Context, in ListGuidelineChunksInput) (ListGuidelineChunksOutput, error) {
	sections, err := a.catalog.ListGuidelines(ctx, models.GuidelineFilter{Language: in.Language})
	if err != nil {
		return ListGuidelineChunksOutput{}, err
	}
	chunks := make([]ChunkItem, 0, len(sections))
	for _, s := range sections {
		chunks = append(chunks, ChunkItem{ID: s.ExternalID, Title: s.Title, Text: s.Body})
	}
	return ListGuidelineChunksOutput{Chunks: chunks}, nil
}

// IndexRegulationsActivity embeds regulation bodies with one provider and
// upserts them into the vector index.
func (a *Activities) IndexRegulationsActivity(ctx context.Context, in IndexRegulationsInput) (IndexRegulationsOutput, error) {
	regs, err := a.catalog.ListRegulations(ctx, models.RegulationFilter{Region: in.Region})
	if err != nil {
		return IndexRegulationsOutput{}, err
	}
	provider, ref := a.providers.EmbedProviderByIndex(in.ProviderIndex)
	var out IndexRegulationsOutput
	for batch := range slices.Chunk(regs, embedBatchSize) {
		inputs := make([]string, 0, len(batch))
		for _, r := range batch {
			inputs = append(inputs, r.Body)
		}
		vectors, info, err := provider.Embed(ctx, providers.EmbedRequest{
			Operation: "index_regulations",
			Inputs:    inputs,
			Dimension: a.providers.Dimension(),
		})
		if err != nil {
			return IndexRegulationsOutput{}, fmt.Errorf("embed regulations via %s: %w", ref.Raw, err)
		}
		if len(vectors) != len(batch) {
			return IndexRegulationsOutput{}, fmt.Errorf("embed regulations via %s: got %d vectors for %d inputs", ref.Raw, len(vectors), len(batch))
		}
		points := make([]vector.Point, 0, len(batch))
		for i, r := range batch {
			points = append(points, vector.RegulationPoint(r, vectors[i]))
		}
		if err := a.index.Upsert(ctx, points); err != nil {
			return IndexRegulationsOutput{}, fmt.Errorf("upsert regulation vectors: %w", err)
		}
		out.Indexed += len(points)
		out.ProviderName, out.Model = info.Name, info.Model
	}
	a.log.Info().Str("run_id", in.RunID).Int("indexed", out.Indexed).Str("provider", ref.Raw).Msg("regulations indexed")
	return out, nil
}

func (a *Activities) EmbedChunksActivity(ctx context.Context, in EmbedChunksInput) (EmbedChunksOutput, error) {
	if in.ProviderRef != "" {
		idx := a.providers.FindEmbedProviderIndex(in.ProviderRef)
		if idx < 0 {
			return EmbedChunksOutput{}, fmt.Errorf("embed provider ref not configured in worker: %s", in.ProviderRef)
		}
		in.ProviderIndex = idx
	}
	inputs := make([]string, 0, len(in.Input))
	for _, c := range in.Input {
		inputs = append(inputs, c.Text)
	}
	provider, _ := a.providers.EmbedProviderByIndex(in.ProviderIndex)
	vectors, info, err := provider.Embed(ctx, providers.EmbedRequest{
		Operation: in.Operation,
		Inputs:    inputs,
		Dimension: a.providers.Dimension(),
	})
	if err != nil {
		return EmbedChunksOutput{}, err
	}
	return EmbedChunksOutput{
		Vectors:      vectors,
		ProviderName: info.Name,
		Model:        info.Model,
	}, nil
}

func (a *Activities) MatchGuidelinesActivity(ctx context.Context, in MatchGuidelinesInput) (MatchGuidelinesOutput, error) {
	if len(in.Chunks) != len(in.Vectors) {
		return MatchGuidelinesOutput{}, fmt.Errorf("%d chunks but %d vectors: %w", len(in.Chunks), len(in.Vectors), util.ErrInvalidArgument)
	}
	byID := make(map[string][]float32, len(in.Chunks))
	chunks := make([]matching.GuidelineChunk, 0, len(in.Chunks))
	for i, c := range in.Chunks {
		byID[c.ID] = in.Vectors[i]
		chunks = append(chunks, matching.GuidelineChunk{ID: c.ID, Title: c.Title})
	}
	lookup := func(_ context.Context, id string) ([]float32, error) {
		v, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("chunk %s: %w", id, util.ErrNotFound)
		}
		return v, nil
	}
	limit := in.Limit
	if limit <= 0 {
		limit = a.cfg.MatchLimit
	}
	m := matching.NewRelationshipMatcher(a.index, limit)
	if in.Region != "" {
		m.Filter = map[string]string{vector.FilterRegion: in.Region}
	}
	results, err := m.Match(ctx, chunks, lookup, matching.PayloadRationale)
	if err != nil {
		return MatchGuidelinesOutput{}, err
	}
	return MatchGuidelinesOutput{Results: results}, nil
}

// PersistMatchResultsActivity stores batch results as pending matches in one
// transaction. Results whose sections no longer resolve are skipped.
func (a *Activities) PersistMatchResultsActivity(ctx context.Context, in PersistMatchResultsInput) (PersistMatchResultsOutput, error) {
	if len(in.Results) == 0 {
		return PersistMatchResultsOutput{}, nil
	}
	gExt := make([]string, 0, len(in.Results))
	rExt := make([]string, 0, len(in.Results))
	for _, r := range in.Results {
		gExt = append(gExt, r.GuidelineID)
		rExt = append(rExt, r.RegulationID)
	}
	gIDs, err := a.catalog.GuidelineIDsByExternal(ctx, uniqueNonEmpty(gExt))
	if err != nil {
		return PersistMatchResultsOutput{}, err
	}
	rIDs, err := a.catalog.RegulationIDsByExternal(ctx, uniqueNonEmpty(rExt))
	if err != nil {
		return PersistMatchResultsOutput{}, err
	}

	tx, err := a.store.BeginTx(ctx)
	if err != nil {
		return PersistMatchResultsOutput{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var out PersistMatchResultsOutput
	for _, r := range in.Results {
		gid, gok := gIDs[r.GuidelineID]
		rid, rok := rIDs[r.RegulationID]
		if !gok || !rok {
			out.Skipped++
			continue
		}
		if _, err := tx.InsertMatch(ctx, models.Match{
			GuidelineID:  gid,
			RegulationID: rid,
			Score:        r.Score,
			Confidence:   r.Confidence,
			Rationale:    r.Rationale,
			Status:       models.MatchStatusPending,
		}); err != nil {
			return PersistMatchResultsOutput{}, fmt.Errorf("insert batch match %s/%s: %w", r.GuidelineID, r.RegulationID, err)
		}
		out.Inserted++
	}
	if err := tx.Commit(ctx); err != nil {
		return PersistMatchResultsOutput{}, err
	}
	a.log.Info().Str("run_id", in.RunID).Int("inserted", out.Inserted).Int("skipped", out.Skipped).Msg("batch matches persisted")
	return out, nil
}

func (a *Activities) WriteMatchReportActivity(_ context.Context, in WriteMatchReportInput) (WriteMatchReportOutput, error) {
	path := filepath.Join(a.cfg.DataOutRoot, "batch", in.RunID, "matches.json")
	report := MatchReport{
		RunID:       in.RunID,
		GeneratedAt: a.now().UTC().Format(time.RFC3339),
		Inserted:    in.Inserted,
		Skipped:     in.Skipped,
		Matches:     in.Results,
	}
	if report.Matches == nil {
		report.Matches = []matching.MatchResult{}
	}
	if err := util.WriteJSONAtomic(path, report); err != nil {
		return WriteMatchReportOutput{}, err
	}
	return WriteMatchReportOutput{Path: path}, nil
}

// UpdateBatchRunActivity records run progress, creating the row for runs
// that were started outside the API.
func (a *Activities) UpdateBatchRunActivity(ctx context.Context, in UpdateBatchRunInput) error {
	if err := a.runs.CreateRun(ctx, in.RunID); err != nil {
		return err
	}
	return a.runs.UpdateRun(ctx, in.RunID, in.Status, in.MatchCount, in.ReportPath)
}

func uniqueNonEmpty(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
