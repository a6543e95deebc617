package workflows

import (
	"context"
	"errors"
	"testing"

	"agendawatch/internal/activities"
	"agendawatch/internal/analysis"
	"agendawatch/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func registerDocumentActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "ComputeFingerprintActivity", func(context.Context, activities.ComputeFingerprintInput) (activities.ComputeFingerprintOutput, error) {
		return activities.ComputeFingerprintOutput{}, nil
	})
	registerActivityName(env, "CheckDuplicateActivity", func(context.Context, activities.CheckDuplicateInput) (activities.CheckDuplicateOutput, error) {
		return activities.CheckDuplicateOutput{}, nil
	})
	registerActivityName(env, "RegisterDocumentActivity", func(context.Context, activities.RegisterDocumentInput) error { return nil })
	registerActivityName(env, "UpdateDocumentStatusActivity", func(context.Context, activities.UpdateDocumentStatusInput) error { return nil })
	registerActivityName(env, "ExtractTextActivity", func(context.Context, activities.ExtractTextInput) (activities.ExtractTextOutput, error) {
		return activities.ExtractTextOutput{}, nil
	})
	registerActivityName(env, "PrepareChunksActivity", func(context.Context, activities.PrepareChunksInput) (activities.PrepareChunksOutput, error) {
		return activities.PrepareChunksOutput{}, nil
	})
	registerActivityName(env, "ClassifyChunkActivity", func(context.Context, activities.ClassifyChunkInput) (activities.ClassifyChunkOutput, error) {
		return activities.ClassifyChunkOutput{}, nil
	})
	// Consolidation runs for real: grouping is pure and part of what these
	// workflow tests verify end to end.
	registerActivityName(env, "ConsolidateFindingsActivity", func(_ context.Context, in activities.ConsolidateFindingsInput) (activities.ConsolidateFindingsOutput, error) {
		alerts := analysis.ConsolidateLocal(in.Findings)
		return activities.ConsolidateFindingsOutput{Alerts: alerts, Summary: analysis.Summary(alerts)}, nil
	})
	registerActivityName(env, "PersistAlertsActivity", func(context.Context, activities.PersistAlertsInput) (activities.PersistAlertsOutput, error) {
		return activities.PersistAlertsOutput{}, nil
	})
	registerActivityName(env, "WriteAnalysisArtifactsActivity", func(context.Context, activities.WriteAnalysisArtifactsInput) error { return nil })
}

func TestDocumentAnalysisWorkflowCleanDocument(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentAnalysisWorkflow)
	registerDocumentActivities(env)

	chunks := make([]activities.ChunkItem, 5)
	for i := range chunks {
		chunks[i] = activities.ChunkItem{Index: i, Text: "routine business", Page: i*13 + 1}
	}
	env.OnActivity("ComputeFingerprintActivity", mock.Anything, mock.Anything).Return(activities.ComputeFingerprintOutput{Fingerprint: "fp-clean"}, nil)
	env.OnActivity("CheckDuplicateActivity", mock.Anything, mock.Anything).Return(activities.CheckDuplicateOutput{Duplicate: false}, nil)
	env.OnActivity("RegisterDocumentActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("UpdateDocumentStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{Text: "routine business"}, nil)
	env.OnActivity("PrepareChunksActivity", mock.Anything, mock.Anything).Return(activities.PrepareChunksOutput{Chunks: chunks}, nil)
	env.OnActivity("ClassifyChunkActivity", mock.Anything, mock.Anything).Return(activities.ClassifyChunkOutput{Finding: analysis.Finding{}}, nil)
	env.OnActivity("PersistAlertsActivity", mock.Anything, mock.Anything).Return(activities.PersistAlertsOutput{}, nil)
	env.OnActivity("WriteAnalysisArtifactsActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(DocumentAnalysisWorkflow, DocumentAnalysisInput{CompanyID: "co", Municipality: "springfield", StorageKey: "agendas/co/a.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out DocumentAnalysisResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, ResultAnalyzed, out.Status)
	require.Equal(t, 5, out.ChunksProcessed)
	require.Equal(t, 0, out.FlaggedChunks)
	require.Equal(t, 0, out.DegradedChunkCount)
	require.Equal(t, 0, out.AlertCount)
	require.Equal(t, analysis.NoItemsFlagged, out.Summary)
}

func TestDocumentAnalysisWorkflowMergesItemAcrossChunks(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentAnalysisWorkflow)
	registerDocumentActivities(env)

	chunks := []activities.ChunkItem{
		{Index: 0, Text: "alpha", Page: 2},
		{Index: 1, Text: "beta", Page: 5},
		{Index: 2, Text: "gamma", Page: 9},
	}
	env.OnActivity("ComputeFingerprintActivity", mock.Anything, mock.Anything).Return(activities.ComputeFingerprintOutput{Fingerprint: "fp-merge"}, nil)
	env.OnActivity("CheckDuplicateActivity", mock.Anything, mock.Anything).Return(activities.CheckDuplicateOutput{Duplicate: false}, nil)
	env.OnActivity("RegisterDocumentActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("UpdateDocumentStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{Text: "alpha\n\nbeta\n\ngamma"}, nil)
	env.OnActivity("PrepareChunksActivity", mock.Anything, mock.Anything).Return(activities.PrepareChunksOutput{Chunks: chunks}, nil)
	env.OnActivity("ClassifyChunkActivity", mock.Anything, activities.ClassifyChunkInput{Municipality: "springfield", Chunk: chunks[0], TotalChunks: 3}).
		Return(activities.ClassifyChunkOutput{Finding: analysis.Finding{
			ChunkIndex: 0, Page: 2, Flagged: true, ItemNumber: "6.5",
			Title:     "Rezoning application",
			Rationale: "URGENT ACTION REQUIRED: Item 6.5 proposes rezoning adjacent to a monitored property.",
		}}, nil)
	env.OnActivity("ClassifyChunkActivity", mock.Anything, activities.ClassifyChunkInput{Municipality: "springfield", Chunk: chunks[1], TotalChunks: 3}).
		Return(activities.ClassifyChunkOutput{Finding: analysis.Finding{
			ChunkIndex: 1, Page: 5, Flagged: true, ItemNumber: "6.5",
			Title:     "Rezoning application",
			Rationale: "URGENT ACTION REQUIRED: Item 6.5 continues with a public hearing date, recommend filing an objection before the deadline.",
		}}, nil)
	env.OnActivity("ClassifyChunkActivity", mock.Anything, activities.ClassifyChunkInput{Municipality: "springfield", Chunk: chunks[2], TotalChunks: 3}).
		Return(activities.ClassifyChunkOutput{Finding: analysis.Finding{ChunkIndex: 2, Page: 9}}, nil)
	env.OnActivity("PersistAlertsActivity", mock.Anything, mock.Anything).Return(activities.PersistAlertsOutput{AlertIDs: []string{"a1"}}, nil)
	env.OnActivity("WriteAnalysisArtifactsActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(DocumentAnalysisWorkflow, DocumentAnalysisInput{CompanyID: "co", Municipality: "springfield", StorageKey: "agendas/co/b.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out DocumentAnalysisResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, ResultAnalyzed, out.Status)
	require.Equal(t, 2, out.FlaggedChunks)
	require.Equal(t, 1, out.AlertCount)
	// The first mention of the item anchors the page.
	require.Equal(t, []int{2}, out.PageLocations)
}

func TestDocumentAnalysisWorkflowAbsorbsChunkFailure(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentAnalysisWorkflow)
	registerDocumentActivities(env)

	chunks := make([]activities.ChunkItem, 5)
	texts := []string{"a", "b", "c", "d", "e"}
	for i := range chunks {
		chunks[i] = activities.ChunkItem{Index: i, Text: texts[i], Page: i + 1}
	}
	env.OnActivity("ComputeFingerprintActivity", mock.Anything, mock.Anything).Return(activities.ComputeFingerprintOutput{Fingerprint: "fp-degraded"}, nil)
	env.OnActivity("CheckDuplicateActivity", mock.Anything, mock.Anything).Return(activities.CheckDuplicateOutput{Duplicate: false}, nil)
	env.OnActivity("RegisterDocumentActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("UpdateDocumentStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{Text: "a\n\nb\n\nc\n\nd\n\ne"}, nil)
	env.OnActivity("PrepareChunksActivity", mock.Anything, mock.Anything).Return(activities.PrepareChunksOutput{Chunks: chunks}, nil)
	for i, chunk := range chunks {
		in := activities.ClassifyChunkInput{Municipality: "springfield", Chunk: chunk, TotalChunks: 5}
		switch i {
		case 2:
			env.OnActivity("ClassifyChunkActivity", mock.Anything, in).Return(activities.ClassifyChunkOutput{}, errors.New("provider unavailable"))
		case 4:
			env.OnActivity("ClassifyChunkActivity", mock.Anything, in).Return(activities.ClassifyChunkOutput{Finding: analysis.Finding{
				ChunkIndex: 4, Page: 5, Flagged: true, ItemNumber: "12",
				Rationale: "URGENT ACTION REQUIRED: Item 12 schedules a demolition permit hearing.",
			}}, nil)
		default:
			env.OnActivity("ClassifyChunkActivity", mock.Anything, in).Return(activities.ClassifyChunkOutput{Finding: analysis.Finding{ChunkIndex: i, Page: i + 1}}, nil)
		}
	}
	env.OnActivity("PersistAlertsActivity", mock.Anything, mock.Anything).Return(activities.PersistAlertsOutput{AlertIDs: []string{"a1"}}, nil)
	var artifacts activities.WriteAnalysisArtifactsInput
	env.OnActivity("WriteAnalysisArtifactsActivity", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		artifacts = args.Get(1).(activities.WriteAnalysisArtifactsInput)
	}).Return(nil)

	env.ExecuteWorkflow(DocumentAnalysisWorkflow, DocumentAnalysisInput{CompanyID: "co", Municipality: "springfield", StorageKey: "agendas/co/c.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out DocumentAnalysisResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, ResultAnalyzed, out.Status)
	require.Equal(t, 5, out.ChunksProcessed)
	require.Equal(t, 1, out.DegradedChunkCount)
	require.Equal(t, 1, out.FlaggedChunks)
	require.Equal(t, 1, out.AlertCount)

	// The failed chunk is still traceable in the artifacts: one flagged
	// finding plus one error-marked finding for chunk 2.
	require.Len(t, artifacts.Findings, 2)
	var degraded *analysis.Finding
	for i := range artifacts.Findings {
		if artifacts.Findings[i].ChunkIndex == 2 {
			degraded = &artifacts.Findings[i]
		}
	}
	require.NotNil(t, degraded)
	require.False(t, degraded.Flagged)
	require.Equal(t, 3, degraded.Page)
	require.Contains(t, degraded.Err, "provider unavailable")
}

func TestDocumentAnalysisWorkflowDuplicateShortCircuits(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentAnalysisWorkflow)

	extracted := false
	registerActivityName(env, "ComputeFingerprintActivity", func(context.Context, activities.ComputeFingerprintInput) (activities.ComputeFingerprintOutput, error) {
		return activities.ComputeFingerprintOutput{}, nil
	})
	registerActivityName(env, "CheckDuplicateActivity", func(context.Context, activities.CheckDuplicateInput) (activities.CheckDuplicateOutput, error) {
		return activities.CheckDuplicateOutput{}, nil
	})
	registerActivityName(env, "ExtractTextActivity", func(context.Context, activities.ExtractTextInput) (activities.ExtractTextOutput, error) {
		extracted = true
		return activities.ExtractTextOutput{}, nil
	})
	env.OnActivity("ComputeFingerprintActivity", mock.Anything, mock.Anything).Return(activities.ComputeFingerprintOutput{Fingerprint: "fp-dup"}, nil)
	env.OnActivity("CheckDuplicateActivity", mock.Anything, activities.CheckDuplicateInput{Fingerprint: "fp-dup"}).Return(activities.CheckDuplicateOutput{Duplicate: true}, nil)

	env.ExecuteWorkflow(DocumentAnalysisWorkflow, DocumentAnalysisInput{CompanyID: "co", Municipality: "springfield", StorageKey: "agendas/co/d.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out DocumentAnalysisResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, ResultDuplicate, out.Status)
	require.Equal(t, "fp-dup", out.Fingerprint)
	require.Equal(t, 0, out.AlertCount)
	require.False(t, extracted)
}

func TestDocumentAnalysisWorkflowNoTextFailsGracefully(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentAnalysisWorkflow)
	registerDocumentActivities(env)

	env.OnActivity("ComputeFingerprintActivity", mock.Anything, mock.Anything).Return(activities.ComputeFingerprintOutput{Fingerprint: "fp-scan"}, nil)
	env.OnActivity("CheckDuplicateActivity", mock.Anything, mock.Anything).Return(activities.CheckDuplicateOutput{Duplicate: false}, nil)
	env.OnActivity("RegisterDocumentActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("UpdateDocumentStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{}, errors.New("no extractable text in document"))

	env.ExecuteWorkflow(DocumentAnalysisWorkflow, DocumentAnalysisInput{CompanyID: "co", Municipality: "springfield", StorageKey: "agendas/co/scan.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out DocumentAnalysisResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, ResultFailed, out.Status)
	require.Contains(t, out.FailReason, "no extractable text")
}

func registerIngestActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "UpdateJobStatusActivity", func(context.Context, activities.UpdateJobStatusInput) error { return nil })
	registerActivityName(env, "UpdateJobProgressActivity", func(context.Context, activities.UpdateJobProgressInput) error { return nil })
	registerActivityName(env, "GetJobStatusActivity", func(context.Context, activities.GetJobStatusInput) (activities.GetJobStatusOutput, error) {
		return activities.GetJobStatusOutput{}, nil
	})
}

func TestAgendaIngestWorkflowCompletes(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(AgendaIngestWorkflow)
	env.RegisterWorkflow(DocumentAnalysisWorkflow)
	registerIngestActivities(env)

	env.OnActivity("UpdateJobStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("UpdateJobProgressActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("GetJobStatusActivity", mock.Anything, mock.Anything).Return(activities.GetJobStatusOutput{Status: models.JobStatusProcessing}, nil)
	env.OnWorkflow(DocumentAnalysisWorkflow, mock.Anything, mock.Anything).Return(DocumentAnalysisResult{Status: ResultAnalyzed}, nil)

	env.ExecuteWorkflow(AgendaIngestWorkflow, AgendaIngestInput{
		JobID:                 "job1",
		CompanyID:             "co",
		Municipality:          "springfield",
		StorageKeys:           []string{"agendas/co/1.pdf", "agendas/co/2.pdf", "agendas/co/3.pdf", "agendas/co/4.pdf"},
		MaxConcurrentChildren: 2,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, models.JobStatusCompleted, out)
}

func TestAgendaIngestWorkflowStopsWhenCancelled(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(AgendaIngestWorkflow)
	env.RegisterWorkflow(DocumentAnalysisWorkflow)
	registerIngestActivities(env)

	launched := false
	env.OnActivity("UpdateJobStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("GetJobStatusActivity", mock.Anything, mock.Anything).Return(activities.GetJobStatusOutput{Status: models.JobStatusCancelled}, nil)
	env.OnWorkflow(DocumentAnalysisWorkflow, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		launched = true
	}).Return(DocumentAnalysisResult{Status: ResultAnalyzed}, nil)

	env.ExecuteWorkflow(AgendaIngestWorkflow, AgendaIngestInput{
		JobID:        "job2",
		CompanyID:    "co",
		Municipality: "springfield",
		StorageKeys:  []string{"agendas/co/1.pdf", "agendas/co/2.pdf"},
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, ResultCancelled, out)
	require.False(t, launched)
}

func TestAgendaIngestWorkflowAllFailuresMarksJobFailed(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(AgendaIngestWorkflow)
	env.RegisterWorkflow(DocumentAnalysisWorkflow)
	registerIngestActivities(env)

	var finalStatus string
	env.OnActivity("UpdateJobStatusActivity", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		finalStatus = args.Get(1).(activities.UpdateJobStatusInput).Status
	}).Return(nil)
	env.OnActivity("UpdateJobProgressActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("GetJobStatusActivity", mock.Anything, mock.Anything).Return(activities.GetJobStatusOutput{Status: models.JobStatusProcessing}, nil)
	env.OnWorkflow(DocumentAnalysisWorkflow, mock.Anything, mock.Anything).Return(DocumentAnalysisResult{Status: ResultFailed, FailReason: "no extractable text"}, nil)

	env.ExecuteWorkflow(AgendaIngestWorkflow, AgendaIngestInput{
		JobID:        "job3",
		CompanyID:    "co",
		Municipality: "springfield",
		StorageKeys:  []string{"agendas/co/1.pdf", "agendas/co/2.pdf"},
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, models.JobStatusFailed, out)
	require.Equal(t, models.JobStatusFailed, finalStatus)
}
