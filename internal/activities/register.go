package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ComputeFingerprintActivity)
	w.RegisterActivity(a.CheckDuplicateActivity)
	w.RegisterActivity(a.RegisterDocumentActivity)
	w.RegisterActivity(a.UpdateDocumentStatusActivity)
	w.RegisterActivity(a.ExtractTextActivity)
	w.RegisterActivity(a.PrepareChunksActivity)
	w.RegisterActivity(a.ClassifyChunkActivity)
	w.RegisterActivity(a.ConsolidateFindingsActivity)
	w.RegisterActivity(a.PersistAlertsActivity)
	w.RegisterActivity(a.WriteAnalysisArtifactsActivity)
	w.RegisterActivity(a.UpdateJobStatusActivity)
	w.RegisterActivity(a.UpdateJobProgressActivity)
	w.RegisterActivity(a.GetJobStatusActivity)
}
