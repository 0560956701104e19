package activities

import (
	"context"
	"errors"
	"fmt"

	"echograph/internal/storage"
)

type RunBatchInput struct {
	RunID    string
	Language string
	Region   string
	Limit    int
}

type RunBatchOutput struct {
	Chunks     int
	Indexed    int
	Matches    int
	Inserted   int
	Skipped    int
	ReportPath string
}

// RunBatch performs a batch match in-process, walking the activities in the
// same order as the batch workflow. Providers are tried in preferred order and
// the first one that indexes the regulations also embeds the guidelines.
func (a *Activities) RunBatch(ctx context.Context, in RunBatchInput) (out RunBatchOutput, err error) {
	if err := a.UpdateBatchRunActivity(ctx, UpdateBatchRunInput{RunID: in.RunID, Status: storage.RunStatusRunning}); err != nil {
		return RunBatchOutput{}, err
	}
	defer func() {
		if err != nil {
			_ = a.runs.UpdateRun(context.WithoutCancel(ctx), in.RunID, storage.RunStatusFailed, 0, "")
		}
	}()

	list, err := a.ListGuidelineChunksActivity(ctx, ListGuidelineChunksInput{Language: in.Language})
	if err != nil {
		return RunBatchOutput{}, err
	}
	out.Chunks = len(list.Chunks)

	var matched MatchGuidelinesOutput
	if len(list.Chunks) > 0 {
		var (
			embedded EmbedChunksOutput
			errs     []error
			ok       bool
		)
		for _, idx := range a.providers.PreferredEmbedOrder() {
			indexed, ierr := a.IndexRegulationsActivity(ctx, IndexRegulationsInput{RunID: in.RunID, Region: in.Region, ProviderIndex: idx})
			if ierr != nil {
				errs = append(errs, fmt.Errorf("provider %d: %w", idx, ierr))
				a.log.Warn().Err(ierr).Int("provider_index", idx).Msg("index regulations failed, trying next provider")
				continue
			}
			embedded, ierr = a.EmbedChunksActivity(ctx, EmbedChunksInput{Operation: "embed_guidelines", RunID: in.RunID, ProviderIndex: idx, Input: list.Chunks})
			if ierr != nil {
				errs = append(errs, fmt.Errorf("provider %d: %w", idx, ierr))
				continue
			}
			out.Indexed = indexed.Indexed
			ok = true
			break
		}
		if !ok {
			return RunBatchOutput{}, fmt.Errorf("all embed providers failed: %w", errors.Join(errs...))
		}
		matched, err = a.MatchGuidelinesActivity(ctx, MatchGuidelinesInput{Chunks: list.Chunks, Vectors: embedded.Vectors, Region: in.Region, Limit: in.Limit})
		if err != nil {
			return RunBatchOutput{}, err
		}
	}
	out.Matches = len(matched.Results)

	persisted, err := a.PersistMatchResultsActivity(ctx, PersistMatchResultsInput{RunID: in.RunID, Results: matched.Results})
	if err != nil {
		return RunBatchOutput{}, err
	}
	out.Inserted, out.Skipped = persisted.Inserted, persisted.Skipped

	report, err := a.WriteMatchReportActivity(ctx, WriteMatchReportInput{RunID: in.RunID, Results: matched.Results, Inserted: persisted.Inserted, Skipped: persisted.Skipped})
	if err != nil {
		return RunBatchOutput{}, err
	}
	out.ReportPath = report.Path

	if err := a.UpdateBatchRunActivity(ctx, UpdateBatchRunInput{RunID: in.RunID, Status: storage.RunStatusCompleted, MatchCount: out.Inserted, ReportPath: out.ReportPath}); err != nil {
		return RunBatchOutput{}, err
	}
	return out, nil
}
