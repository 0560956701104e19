package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"echograph/internal/embedding"
	"echograph/internal/ingest"
	"echograph/internal/util"
)

type ingestFlags struct {
	category         string
	title            string
	language         string
	maxSegmentLength int
	threshold        float64
	topK             int
	json             bool
}

func newIngestCmd() *cobra.Command {
	var f ingestFlags
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Segment a document, store its sections and propose matches",
		Long: `Extracts text from a PDF, DOCX or plain-text file, splits it into sections and
matches every new section against the existing sections of the other category.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.category, "category", "", "guideline or regulation")
	cmd.Flags().StringVar(&f.title, "title", "", "document title used for section titles")
	cmd.Flags().StringVar(&f.language, "language", "en", "document language")
	cmd.Flags().IntVar(&f.maxSegmentLength, "max-segment-length", 0, "maximum section length in characters")
	cmd.Flags().Float64Var(&f.threshold, "threshold", 0, "minimum cosine similarity for a match (config default when unset)")
	cmd.Flags().IntVar(&f.topK, "top-k", 0, "maximum matches per section")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the summary as JSON")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func runIngest(cmd *cobra.Command, path string, f ingestFlags) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	embedder, err := embedding.NewService(embedding.ManagerFactory(rt.cfg.EmbedProviders, rt.cfg.EmbedDim), embedding.Options{
		Workers:           rt.cfg.EmbedWorkers,
		CacheSize:         rt.cfg.EmbedCacheSize,
		Dimension:         rt.cfg.EmbedDim,
		RequestsPerSecond: rt.cfg.EmbedRPS,
	}, rt.log)
	if err != nil {
		return err
	}
	req := ingest.Request{
		FilePath:            path,
		Category:            f.category,
		Title:               f.title,
		Language:            f.language,
		MaxSegmentLength:    orInt(f.maxSegmentLength, rt.cfg.MaxSegmentLength),
		SimilarityThreshold: ingest.Threshold(rt.cfg.SimilarityThreshold),
		TopK:                orInt(f.topK, rt.cfg.TopK),
	}
	if cmd.Flags().Changed("threshold") {
		req.SimilarityThreshold = ingest.Threshold(f.threshold)
	}
	summary, err := ingest.New(rt.backend.Store, embedder, ingest.Options{PreserveParagraphs: rt.cfg.PreserveParagraphs}, rt.log).IngestDocument(ctx, req)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", path, err)
	}
	if summary.SectionsCreated == 0 {
		rt.log.Warn().Err(util.ErrNoExtractableText).Str("file", path).Msg("nothing ingested")
	}
	if f.json {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	cmd.Printf("%s %d\n%s  %d\n", labelText("sections created:"), summary.SectionsCreated, labelText("matches created:"), summary.MatchesCreated)
	return nil
}

func orInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
