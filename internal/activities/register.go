package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ListGuidelineChunksActivity)
	w.RegisterActivity(a.IndexRegulationsActivity)
	w.RegisterActivity(a.EmbedChunksActivity)
	w.RegisterActivity(a.MatchGuidelinesActivity)
	w.RegisterActivity(a.PersistMatchResultsActivity)
	w.RegisterActivity(a.WriteMatchReportActivity)
	w.RegisterActivity(a.UpdateBatchRunActivity)
}
