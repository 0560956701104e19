package activities

import "echograph/internal/matching"

// ChunkItem is a guideline section as it travels between batch activities.
type ChunkItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

type ListGuidelineChunksInput struct {
	Language string `json:"language,omitempty"`
}

type ListGuidelineChunksOutput struct {
	Chunks []ChunkItem `json:"chunks"`
}

type IndexRegulationsInput struct {
	RunID         string `json:"run_id"`
	Region        string `json:"region,omitempty"`
	ProviderIndex int    `json:"provider_index"`
}

type IndexRegulationsOutput struct {
	Indexed      int    `json:"indexed"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
}

type EmbedChunksInput struct {
	Operation     string      `json:"operation"`
	RunID         string      `json:"run_id"`
	ProviderIndex int         `json:"provider_index"`
	ProviderRef   string      `json:"provider_ref,omitempty"`
	Input         []ChunkItem `json:"input"`
}

type EmbedChunksOutput struct {
	Vectors      [][]float32 `json:"vectors"`
	ProviderName string      `json:"provider_name"`
	Model        string      `json:"model"`
}

type MatchGuidelinesInput struct {
	Chunks  []ChunkItem `json:"chunks"`
	Vectors [][]float32 `json:"vectors"`
	Region  string      `json:"region,omitempty"`
	Limit   int         `json:"limit"`
}

type MatchGuidelinesOutput struct {
	Results []matching.MatchResult `json:"results"`
}

type PersistMatchResultsInput struct {
	RunID   string                 `json:"run_id"`
	Results []matching.MatchResult `json:"results"`
}

type PersistMatchResultsOutput struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

type WriteMatchReportInput struct {
	RunID    string                 `json:"run_id"`
	Results  []matching.MatchResult `json:"results"`
	Inserted int                    `json:"inserted"`
	Skipped  int                    `json:"skipped"`
}

type WriteMatchReportOutput struct {
	Path string `json:"path"`
}

type UpdateBatchRunInput struct {
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	MatchCount int    `json:"match_count"`
	ReportPath string `json:"report_path,omitempty"`
}

// MatchReport is the JSON document written for every finished batch run.
type MatchReport struct {
	RunID       string                 `json:"run_id"`
	GeneratedAt string                 `json:"generated_at"`
	Inserted    int                    `json:"inserted"`
	Skipped     int                    `json:"skipped"`
	Matches     []matching.MatchResult `json:"matches"`
}
