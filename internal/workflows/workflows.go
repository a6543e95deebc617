package workflows

import (
	"strings"
	"time"

	"agendawatch/internal/activities"
	"agendawatch/internal/analysis"
	"agendawatch/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	QueryGetDocumentProgress = "GetDocumentProgress"
	QueryGetIngestProgress   = "GetIngestProgress"
)

const (
	ResultDuplicate = "duplicate"
	ResultAnalyzed  = "analyzed"
	ResultFailed    = "failed"
	ResultCancelled = "cancelled"
)

// DocumentAnalysisWorkflow runs the whole pipeline for one document:
// fingerprint dedup, text extraction, paragraph chunking, strictly
// sequential per-chunk classification, consolidation, alert persistence.
// Chunk-level failures degrade coverage; only extraction and persistence
// failures are fatal for the document.
func DocumentAnalysisWorkflow(ctx workflow.Context, input DocumentAnalysisInput) (DocumentAnalysisResult, error) {
	progress := DocumentProgress{CurrentStep: "init", Status: "processing", Steps: map[string]string{}}
	if err := workflow.SetQueryHandler(ctx, QueryGetDocumentProgress, func() (DocumentProgress, error) {
		return progress, nil
	}); err != nil {
		return DocumentAnalysisResult{}, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	progress.CurrentStep = "fingerprint"
	progress.Steps[progress.CurrentStep] = "processing"
	var fp activities.ComputeFingerprintOutput
	if err := workflow.ExecuteActivity(ctx, "ComputeFingerprintActivity", activities.ComputeFingerprintInput{StorageKey: input.StorageKey}).Get(ctx, &fp); err != nil {
		return DocumentAnalysisResult{Status: ResultFailed, FailReason: err.Error()}, nil
	}
	progress.Fingerprint = fp.Fingerprint
	progress.Steps[progress.CurrentStep] = "done"

	// Dedup before any chunking or classification: identical bytes are the
	// same logical document and must not produce a second alert set.
	progress.CurrentStep = "dedup_check"
	progress.Steps[progress.CurrentStep] = "processing"
	var dup activities.CheckDuplicateOutput
	if err := workflow.ExecuteActivity(ctx, "CheckDuplicateActivity", activities.CheckDuplicateInput{Fingerprint: fp.Fingerprint}).Get(ctx, &dup); err != nil {
		return DocumentAnalysisResult{Status: ResultFailed, Fingerprint: fp.Fingerprint, FailReason: err.Error()}, nil
	}
	progress.Steps[progress.CurrentStep] = "done"
	if dup.Duplicate && !input.Force {
		progress.Status = ResultDuplicate
		return DocumentAnalysisResult{Status: ResultDuplicate, Fingerprint: fp.Fingerprint}, nil
	}

	if err := workflow.ExecuteActivity(ctx, "RegisterDocumentActivity", activities.RegisterDocumentInput{
		Fingerprint:  fp.Fingerprint,
		CompanyID:    input.CompanyID,
		Municipality: input.Municipality,
		MeetingRef:   input.MeetingRef,
		StorageKey:   input.StorageKey,
		Status:       models.DocumentStatusDiscovered,
	}).Get(ctx, nil); err != nil {
		return DocumentAnalysisResult{Status: ResultFailed, Fingerprint: fp.Fingerprint, FailReason: err.Error()}, nil
	}

	progress.CurrentStep = "extract_text"
	progress.Steps[progress.CurrentStep] = "processing"
	_ = workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{Fingerprint: fp.Fingerprint, Status: models.DocumentStatusChunking}).Get(ctx, nil)
	var textOut activities.ExtractTextOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractTextActivity", activities.ExtractTextInput{StorageKey: input.StorageKey}).Get(ctx, &textOut); err != nil {
		reason := "document could not be analyzed: no extractable text"
		if !isNoTextError(err) {
			reason = err.Error()
		}
		progress.Status = ResultFailed
		progress.Steps[progress.CurrentStep] = "failed"
		_ = workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{Fingerprint: fp.Fingerprint, Status: models.DocumentStatusError, FailReason: reason}).Get(ctx, nil)
		return DocumentAnalysisResult{Status: ResultFailed, Fingerprint: fp.Fingerprint, FailReason: reason}, nil
	}
	progress.Steps[progress.CurrentStep] = "done"

	progress.CurrentStep = "prepare_chunks"
	progress.Steps[progress.CurrentStep] = "processing"
	var chunksOut activities.PrepareChunksOutput
	if err := workflow.ExecuteActivity(ctx, "PrepareChunksActivity", activities.PrepareChunksInput{Municipality: input.Municipality, Text: textOut.Text}).Get(ctx, &chunksOut); err != nil {
		_ = workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{Fingerprint: fp.Fingerprint, Status: models.DocumentStatusError, FailReason: err.Error()}).Get(ctx, nil)
		return DocumentAnalysisResult{Status: ResultFailed, Fingerprint: fp.Fingerprint, FailReason: err.Error()}, nil
	}
	progress.ChunksTotal = len(chunksOut.Chunks)
	progress.Steps[progress.CurrentStep] = "done"

	_ = workflow.ExecuteActivity(ctx, "RegisterDocumentActivity", activities.RegisterDocumentInput{
		Fingerprint:  fp.Fingerprint,
		CompanyID:    input.CompanyID,
		Municipality: input.Municipality,
		MeetingRef:   input.MeetingRef,
		StorageKey:   input.StorageKey,
		TextLength:   len(textOut.Text),
		ChunkCount:   len(chunksOut.Chunks),
		Status:       models.DocumentStatusAnalyzing,
	}).Get(ctx, nil)

	// Classification runs chunk by chunk, strictly sequentially: the external
	// service's rate limit is the binding constraint, not local compute.
	classifyCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	progress.CurrentStep = "classify_chunks"
	progress.Steps[progress.CurrentStep] = "processing"
	findings := make([]analysis.Finding, 0, len(chunksOut.Chunks))
	flagged := 0
	degraded := 0
	for _, chunk := range chunksOut.Chunks {
		var out activities.ClassifyChunkOutput
		err := workflow.ExecuteActivity(classifyCtx, "ClassifyChunkActivity", activities.ClassifyChunkInput{
			Municipality: input.Municipality,
			Chunk:        chunk,
			TotalChunks:  len(chunksOut.Chunks),
		}).Get(ctx, &out)
		if err != nil {
			// Absorbed: one chunk's failure must not block the rest. The
			// errored chunk still gets a finding so the artifacts record
			// which chunk/page lost coverage, not just how many.
			degraded++
			progress.DegradedChunks = degraded
			progress.ChunksProcessed++
			findings = append(findings, analysis.Finding{ChunkIndex: chunk.Index, Page: chunk.Page, Err: err.Error()})
			continue
		}
		if out.Finding.Err != "" {
			degraded++
			progress.DegradedChunks = degraded
			findings = append(findings, out.Finding)
		} else if out.Finding.Flagged {
			flagged++
			progress.FlaggedChunks = flagged
			findings = append(findings, out.Finding)
		}
		progress.ChunksProcessed++
	}
	progress.Steps[progress.CurrentStep] = "done"

	progress.CurrentStep = "consolidate"
	progress.Steps[progress.CurrentStep] = "processing"
	var consolidated activities.ConsolidateFindingsOutput
	if err := workflow.ExecuteActivity(classifyCtx, "ConsolidateFindingsActivity", activities.ConsolidateFindingsInput{Findings: findings}).Get(ctx, &consolidated); err != nil {
		_ = workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{Fingerprint: fp.Fingerprint, Status: models.DocumentStatusError, FailReason: err.Error()}).Get(ctx, nil)
		return DocumentAnalysisResult{Status: ResultFailed, Fingerprint: fp.Fingerprint, FailReason: err.Error()}, nil
	}
	progress.Steps[progress.CurrentStep] = "done"

	progress.CurrentStep = "persist_alerts"
	progress.Steps[progress.CurrentStep] = "processing"
	var persisted activities.PersistAlertsOutput
	if err := workflow.ExecuteActivity(ctx, "PersistAlertsActivity", activities.PersistAlertsInput{
		CompanyID:   input.CompanyID,
		Fingerprint: fp.Fingerprint,
		PropertyID:  input.PropertyID,
		Alerts:      consolidated.Alerts,
	}).Get(ctx, &persisted); err != nil {
		progress.Status = ResultFailed
		progress.Steps[progress.CurrentStep] = "failed"
		_ = workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{Fingerprint: fp.Fingerprint, Status: models.DocumentStatusError, FailReason: err.Error()}).Get(ctx, nil)
		return DocumentAnalysisResult{Status: ResultFailed, Fingerprint: fp.Fingerprint, FailReason: err.Error()}, nil
	}
	progress.Steps[progress.CurrentStep] = "done"

	pages := make([]int, 0, len(consolidated.Alerts))
	for _, a := range consolidated.Alerts {
		pages = append(pages, a.PrimaryPage)
	}
	_ = workflow.ExecuteActivity(ctx, "WriteAnalysisArtifactsActivity", activities.WriteAnalysisArtifactsInput{
		Fingerprint: fp.Fingerprint,
		Summary:     consolidated.Summary,
		Findings:    findings,
		Metadata: map[string]any{
			"fingerprint":          fp.Fingerprint,
			"municipality":         input.Municipality,
			"chunks_processed":     len(chunksOut.Chunks),
			"flagged_chunks":       flagged,
			"degraded_chunk_count": degraded,
			"alert_count":          len(persisted.AlertIDs),
			"page_locations":       pages,
			"generated_at":         workflow.Now(ctx),
		},
	}).Get(ctx, nil)

	if err := workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{Fingerprint: fp.Fingerprint, Status: models.DocumentStatusAnalyzed}).Get(ctx, nil); err != nil {
		return DocumentAnalysisResult{Status: ResultFailed, Fingerprint: fp.Fingerprint, FailReason: err.Error()}, nil
	}
	progress.CurrentStep = "done"
	progress.Status = ResultAnalyzed

	return DocumentAnalysisResult{
		Status:             ResultAnalyzed,
		Fingerprint:        fp.Fingerprint,
		Summary:            consolidated.Summary,
		ChunksProcessed:    len(chunksOut.Chunks),
		FlaggedChunks:      flagged,
		DegradedChunkCount: degraded,
		AlertCount:         len(persisted.AlertIDs),
		PageLocations:      pages,
	}, nil
}

// AgendaIngestWorkflow fans a batch of agenda documents out to
// DocumentAnalysisWorkflow children with bounded concurrency and keeps the
// polled job record current.
func AgendaIngestWorkflow(ctx workflow.Context, input AgendaIngestInput) (string, error) {
	progress := AgendaIngestProgress{
		JobID:         input.JobID,
		Total:         len(input.StorageKeys),
		PerDocument:   map[string]string{},
		ChildWorkflow: map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetIngestProgress, func() (AgendaIngestProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	_ = workflow.ExecuteActivity(ctx, "UpdateJobStatusActivity", activities.UpdateJobStatusInput{JobID: input.JobID, Status: models.JobStatusProcessing}).Get(ctx, nil)

	maxChildren := input.MaxConcurrentChildren
	if maxChildren <= 0 {
		maxChildren = 3
	}

	keys := input.StorageKeys
	for i := 0; i < len(keys); i += maxChildren {
		// A cancelled job stops launching children; running ones finish and
		// their results are simply discarded against the cancelled job.
		var jobStatus activities.GetJobStatusOutput
		if err := workflow.ExecuteActivity(ctx, "GetJobStatusActivity", activities.GetJobStatusInput{JobID: input.JobID}).Get(ctx, &jobStatus); err == nil && jobStatus.Status == models.JobStatusCancelled {
			return ResultCancelled, nil
		}

		end := i + maxChildren
		if end > len(keys) {
			end = len(keys)
		}
		futures := make([]workflow.ChildWorkflowFuture, 0, end-i)
		batchKeys := make([]string, 0, end-i)
		for _, key := range keys[i:end] {
			progress.PerDocument[key] = "processing"
			workflowID := "document-" + sanitizeID(input.JobID) + "-" + sanitizeID(key)
			childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{WorkflowID: workflowID})
			f := workflow.ExecuteChildWorkflow(childCtx, DocumentAnalysisWorkflow, DocumentAnalysisInput{
				CompanyID:    input.CompanyID,
				Municipality: input.Municipality,
				StorageKey:   key,
			})
			futures = append(futures, f)
			batchKeys = append(batchKeys, key)
			progress.ChildWorkflow[key] = workflowID
		}

		for idx, f := range futures {
			var result DocumentAnalysisResult
			err := f.Get(ctx, &result)
			key := batchKeys[idx]
			progress.Processed++
			if err != nil || result.Status == ResultFailed {
				progress.Errors++
				progress.PerDocument[key] = ResultFailed
			} else {
				progress.PerDocument[key] = result.Status
			}
		}

		pct := 0
		if progress.Total > 0 {
			pct = progress.Processed * 100 / progress.Total
		}
		_ = workflow.ExecuteActivity(ctx, "UpdateJobProgressActivity", activities.UpdateJobProgressInput{
			JobID:              input.JobID,
			Progress:           pct,
			TotalDocuments:     progress.Total,
			ProcessedDocuments: progress.Processed,
			ErrorCount:         progress.Errors,
		}).Get(ctx, nil)
	}

	final := models.JobStatusCompleted
	if progress.Total > 0 && progress.Errors == progress.Total {
		final = models.JobStatusFailed
	}
	_ = workflow.ExecuteActivity(ctx, "UpdateJobStatusActivity", activities.UpdateJobStatusInput{JobID: input.JobID, Status: final}).Get(ctx, nil)
	return final, nil
}

func isNoTextError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no extractable text")
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}
