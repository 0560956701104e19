package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"echograph/internal/activities"
	"echograph/internal/providers"
	"echograph/internal/storage"
)

const QueryGetBatchProgress = "GetBatchProgress"

type providerState struct {
	disabledUntil map[int]time.Time
	retries       map[string]int
}

func newProviderState() providerState {
	return providerState{disabledUntil: map[int]time.Time{}, retries: map[string]int{}}
}

// BatchMatchWorkflow indexes every regulation, embeds every guideline section
// with the same provider and stores the nearest regulations as pending matches.
func BatchMatchWorkflow(ctx workflow.Context, input BatchMatchInput) (BatchMatchResult, error) {
	status := BatchProgress{
		RunID:       input.RunID,
		CurrentStep: "init",
		Status:      storage.RunStatusRunning,
		Steps:       map[string]string{},
		RetryCounts: map[string]int{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetBatchProgress, func() (BatchProgress, error) {
		return status, nil
	}); err != nil {
		return BatchMatchResult{}, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	cooldown := durationOrDefault(input.CooldownSeconds, 900)
	providerCount := defaultCount(input.EmbedProviders)
	state := newProviderState()

	begin := func(step string) {
		status.CurrentStep = step
		status.Steps[step] = "processing"
	}
	done := func() { status.Steps[status.CurrentStep] = "done" }
	fail := func(err error) (BatchMatchResult, error) {
		status.Status = storage.RunStatusFailed
		status.FailReason = err.Error()
		status.Steps[status.CurrentStep] = "failed"
		_ = workflow.ExecuteActivity(ctx, "UpdateBatchRunActivity", activities.UpdateBatchRunInput{
			RunID:  input.RunID,
			Status: storage.RunStatusFailed,
		}).Get(ctx, nil)
		return BatchMatchResult{}, err
	}

	begin("start_run")
	if err := workflow.ExecuteActivity(ctx, "UpdateBatchRunActivity", activities.UpdateBatchRunInput{RunID: input.RunID, Status: storage.RunStatusRunning}).Get(ctx, nil); err != nil {
		return BatchMatchResult{}, err
	}
	done()

	begin("list_guidelines")
	var listOut activities.ListGuidelineChunksOutput
	if err := workflow.ExecuteActivity(ctx, "ListGuidelineChunksActivity", activities.ListGuidelineChunksInput{Language: input.Language}).Get(ctx, &listOut); err != nil {
		return fail(err)
	}
	status.Chunks = len(listOut.Chunks)
	done()

	var results activities.MatchGuidelinesOutput
	if len(listOut.Chunks) > 0 {
		begin("index_regulations")
		indexOut, providerIdx, err := callWithFailover(ctx, &state, providerCount, cooldown, "index", status.RetryCounts, preferredIndex(input.PreferredEmbedProviderIndex), false,
			func(idx int) (activities.IndexRegulationsOutput, error) {
				var out activities.IndexRegulationsOutput
				err := workflow.ExecuteActivity(ctx, "IndexRegulationsActivity", activities.IndexRegulationsInput{RunID: input.RunID, Region: input.Region, ProviderIndex: idx}).Get(ctx, &out)
				return out, err
			})
		if err != nil {
			return fail(err)
		}
		status.Indexed = indexOut.Indexed
		status.Providers = append(status.Providers, indexOut.ProviderName)
		done()

		// Chunks must land in the same vector space as the index.
		begin("embed_chunks")
		embedOut, _, err := callWithFailover(ctx, &state, providerCount, cooldown, "embed", status.RetryCounts, providerIdx, true,
			func(idx int) (activities.EmbedChunksOutput, error) {
				var out activities.EmbedChunksOutput
				err := workflow.ExecuteActivity(ctx, "EmbedChunksActivity", activities.EmbedChunksInput{Operation: "embed_guidelines", RunID: input.RunID, ProviderIndex: idx, Input: listOut.Chunks}).Get(ctx, &out)
				return out, err
			})
		if err != nil {
			return fail(err)
		}
		done()

		begin("match_guidelines")
		if err := workflow.ExecuteActivity(ctx, "MatchGuidelinesActivity", activities.MatchGuidelinesInput{
			Chunks:  listOut.Chunks,
			Vectors: embedOut.Vectors,
			Region:  input.Region,
			Limit:   input.Limit,
		}).Get(ctx, &results); err != nil {
			return fail(err)
		}
		status.Matches = len(results.Results)
		done()
	}

	begin("persist_matches")
	var persistOut activities.PersistMatchResultsOutput
	if err := workflow.ExecuteActivity(ctx, "PersistMatchResultsActivity", activities.PersistMatchResultsInput{RunID: input.RunID, Results: results.Results}).Get(ctx, &persistOut); err != nil {
		return fail(err)
	}
	status.Inserted = persistOut.Inserted
	done()

	begin("write_report")
	var reportOut activities.WriteMatchReportOutput
	if err := workflow.ExecuteActivity(ctx, "WriteMatchReportActivity", activities.WriteMatchReportInput{
		RunID:    input.RunID,
		Results:  results.Results,
		Inserted: persistOut.Inserted,
		Skipped:  persistOut.Skipped,
	}).Get(ctx, &reportOut); err != nil {
		return fail(err)
	}
	status.ReportPath = reportOut.Path
	done()

	begin("finish_run")
	if err := workflow.ExecuteActivity(ctx, "UpdateBatchRunActivity", activities.UpdateBatchRunInput{
		RunID:      input.RunID,
		Status:     storage.RunStatusCompleted,
		MatchCount: persistOut.Inserted,
		ReportPath: reportOut.Path,
	}).Get(ctx, nil); err != nil {
		return BatchMatchResult{}, err
	}
	done()
	status.CurrentStep = "done"
	status.Status = storage.RunStatusCompleted
	return BatchMatchResult{
		RunID:      input.RunID,
		Status:     status.Status,
		Matches:    status.Matches,
		Inserted:   persistOut.Inserted,
		ReportPath: reportOut.Path,
	}, nil
}

// callWithFailover runs call against providers in turn until one succeeds.
// Quota errors disable a provider for cooldown; rate and transient errors are
// retried on the same provider a couple of times first. With strict set only
// preferredIdx is tried. It returns the index of the provider that succeeded.
func callWithFailover[T any](ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, op string, retryCounts map[string]int, preferredIdx int, strict bool, call func(idx int) (T, error)) (T, int, error) {
	var zero T
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	var lastErr error
	maxAttempts := providerCount * 4
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	if strict && preferredIdx >= 0 {
		maxAttempts = 4
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		idx := 0
		if strict && preferredIdx >= 0 {
			idx = preferredIdx
		} else if preferredIdx >= 0 {
			idx = (preferredIdx + attempt) % providerCount
		} else {
			idx = attempt % providerCount
		}
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		out, err := call(idx)
		if err == nil {
			return out, idx, nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		workflow.GetLogger(ctx).Warn("embed provider call failed", "op", op, "provider_index", idx, "error_type", string(errType), "error", err)
		key := fmt.Sprintf("%s-%d", op, idx)
		retryCounts[key]++
		state.retries[key] = retryCounts[key]
		switch errType {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case providers.ErrorRate:
			if retryCounts[key] <= 2 {
				_ = workflow.Sleep(ctx, time.Duration(retryCounts[key]*2)*time.Second)
				if !strict {
					attempt--
				}
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		case providers.ErrorTransient:
			if retryCounts[key] <= 2 {
				_ = workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				if !strict {
					attempt--
				}
			}
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all embed providers exhausted for %s", op)
	}
	return zero, -1, lastErr
}

func isProviderDisabled(ctx workflow.Context, state *providerState, idx int) bool {
	until, ok := state.disabledUntil[idx]
	if !ok {
		return false
	}
	return workflow.Now(ctx).Before(until)
}

func disableProviderUntil(ctx workflow.Context, state *providerState, idx int, d time.Duration) {
	state.disabledUntil[idx] = workflow.Now(ctx).Add(d)
}

func preferredIndex(i int) int {
	if i < 0 {
		return -1
	}
	return i
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func defaultCount(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
