package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"echograph/internal/activities"
	"echograph/internal/providers"
)

type matchFlags struct {
	language string
	region   string
	limit    int
	runID    string
}

func newMatchCmd() *cobra.Command {
	var f matchFlags
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match every guideline section against the regulation index",
		Long: `Indexes regulation sections in the configured vector index, searches it for each
guideline section and stores the neighbors as pending matches. Runs in-process
without Temporal and writes a JSON report under the data output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMatch(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.language, "language", "", "only match guidelines in this language")
	cmd.Flags().StringVar(&f.region, "region", "", "only match regulations from this region")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "neighbors per guideline section")
	cmd.Flags().StringVar(&f.runID, "run-id", "", "batch run id (generated when empty)")
	return cmd
}

func runMatch(cmd *cobra.Command, f matchFlags) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	pm, err := providers.NewManager(rt.cfg.EmbedProviders, rt.cfg.EmbedDim)
	if err != nil {
		return err
	}
	b := rt.backend
	acts, err := activities.New(rt.cfg, activities.Deps{Store: b.Store, Catalog: b.Catalog, Runs: b.Runs, Index: b.Index, Providers: pm}, rt.log)
	if err != nil {
		return err
	}
	runID := f.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	out, err := acts.RunBatch(ctx, activities.RunBatchInput{RunID: runID, Language: f.language, Region: f.region, Limit: f.limit})
	if err != nil {
		return fmt.Errorf("batch run %s: %w", runID, err)
	}
	cmd.Printf("%s %d guideline sections, %d regulations indexed, %d matches stored (%d skipped)\n%s %s\n",
		okText("run "+runID+":"), out.Chunks, out.Indexed, out.Inserted, out.Skipped, labelText("report:"), out.ReportPath)
	return nil
}
