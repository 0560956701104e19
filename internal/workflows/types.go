package workflows

type BatchMatchInput struct {
	RunID                       string `json:"run_id"`
	Language                    string `json:"language,omitempty"`
	Region                      string `json:"region,omitempty"`
	Limit                       int    `json:"limit,omitempty"`
	EmbedProviders              int    `json:"embed_providers"`
	PreferredEmbedProviderIndex int    `json:"preferred_embed_provider_index"`
	CooldownSeconds             int    `json:"cooldown_seconds"`
}

type BatchProgress struct {
	RunID       string            `json:"run_id"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	Steps       map[string]string `json:"steps"`
	RetryCounts map[string]int    `json:"retry_counts"`
	Providers   []string          `json:"providers,omitempty"`
	Chunks      int               `json:"chunks"`
	Indexed     int               `json:"indexed"`
	Matches     int               `json:"matches"`
	Inserted    int               `json:"inserted"`
	ReportPath  string            `json:"report_path,omitempty"`
	FailReason  string            `json:"fail_reason,omitempty"`
}

type BatchMatchResult struct {
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	Matches    int    `json:"matches"`
	Inserted   int    `json:"inserted"`
	ReportPath string `json:"report_path"`
}
