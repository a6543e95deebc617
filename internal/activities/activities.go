package activities

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"agendawatch/internal/alerts"
	"agendawatch/internal/analysis"
	"agendawatch/internal/blobstore"
	"agendawatch/internal/config"
	"agendawatch/internal/models"
	"agendawatch/internal/storage"
	"agendawatch/internal/util"

	"github.com/ledongthuc/pdf"
)

type Activities struct {
	cfg        config.Config
	docRepo    *storage.DocumentRepo
	alertRepo  *storage.AlertRepo
	auditRepo  *storage.AuditRepo
	jobRepo    *storage.JobRepo
	lifecycle  *alerts.Lifecycle
	blobs      blobstore.Store
	registry   *analysis.Registry
	client     *analysis.Client
	classifier *analysis.Classifier
}

func New(cfg config.Config, db *storage.DB, blobs blobstore.Store, registry *analysis.Registry, client *analysis.Client) *Activities {
	alertRepo := storage.NewAlertRepo(db)
	return &Activities{
		cfg:        cfg,
		docRepo:    storage.NewDocumentRepo(db),
		alertRepo:  alertRepo,
		auditRepo:  storage.NewAuditRepo(db),
		jobRepo:    storage.NewJobRepo(db),
		lifecycle:  alerts.NewLifecycle(alertRepo),
		blobs:      blobs,
		registry:   registry,
		client:     client,
		classifier: analysis.NewClassifier(client, cfg.CriteriaBudgetChars),
	}
}

func (a *Activities) ComputeFingerprintActivity(ctx context.Context, in ComputeFingerprintInput) (ComputeFingerprintOutput, error) {
	b, err := a.blobs.Get(ctx, in.StorageKey)
	if err != nil {
		return ComputeFingerprintOutput{}, fmt.Errorf("fetch document blob: %w", err)
	}
	return ComputeFingerprintOutput{Fingerprint: util.Fingerprint(b), SizeBytes: int64(len(b))}, nil
}

func (a *Activities) CheckDuplicateActivity(ctx context.Context, in CheckDuplicateInput) (CheckDuplicateOutput, error) {
	dup, err := a.docRepo.IsDuplicate(ctx, in.Fingerprint)
	if err != nil {
		return CheckDuplicateOutput{}, err
	}
	return CheckDuplicateOutput{Duplicate: dup}, nil
}

func (a *Activities) RegisterDocumentActivity(ctx context.Context, in RegisterDocumentInput) error {
	return a.docRepo.UpsertDocument(ctx, models.Document{
		Fingerprint:  in.Fingerprint,
		CompanyID:    in.CompanyID,
		Municipality: in.Municipality,
		MeetingRef:   in.MeetingRef,
		StorageKey:   in.StorageKey,
		TextLength:   in.TextLength,
		ChunkCount:   in.ChunkCount,
		Status:       in.Status,
		FailReason:   in.FailReason,
	})
}

func (a *Activities) UpdateDocumentStatusActivity(ctx context.Context, in UpdateDocumentStatusInput) error {
	actor := in.Actor
	if actor == "" {
		actor = "pipeline"
	}
	return a.docRepo.UpdateDocumentStatus(ctx, in.Fingerprint, in.Status, in.FailReason, actor)
}

// ExtractTextActivity treats PDF extraction as a black-box text producer.
// Empty output means the document could not be analyzed, never "clean".
func (a *Activities) ExtractTextActivity(ctx context.Context, in ExtractTextInput) (ExtractTextOutput, error) {
	b, err := a.blobs.Get(ctx, in.StorageKey)
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("fetch document blob: %w", err)
	}
	tmp, err := os.CreateTemp("", "agenda-*.pdf")
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("create temp pdf: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return ExtractTextOutput{}, fmt.Errorf("write temp pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return ExtractTextOutput{}, fmt.Errorf("close temp pdf: %w", err)
	}

	f, r, err := pdf.Open(tmp.Name())
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	reader, err := r.GetPlainText()
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return ExtractTextOutput{}, fmt.Errorf("read extracted text: %w", err)
	}
	text := util.SanitizeText(strings.TrimSpace(buf.String()))
	if text == "" {
		return ExtractTextOutput{}, util.ErrNoExtractableText
	}
	return ExtractTextOutput{Text: text}, nil
}

// PrepareChunksActivity decides between single-submission and chunked mode
// and splits along paragraph boundaries, attaching page estimates.
func (a *Activities) PrepareChunksActivity(ctx context.Context, in PrepareChunksInput) (PrepareChunksOutput, error) {
	criteria, err := a.registry.Criteria(ctx, in.Municipality)
	if err != nil {
		return PrepareChunksOutput{}, err
	}
	var parts []string
	if len(in.Text)+len(criteria) <= a.cfg.ChunkedModeMinChars {
		parts = []string{in.Text}
	} else {
		parts = util.SplitSections(in.Text, a.cfg.ChunkBudgetChars)
	}
	chunks := make([]ChunkItem, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, ChunkItem{
			Index: i,
			Text:  p,
			Page:  util.EstimatePage(i, len(parts), len(in.Text), a.cfg.CharsPerPage),
		})
	}
	return PrepareChunksOutput{Chunks: chunks}, nil
}

// ClassifyChunkActivity never fails the workflow: a classification error is
// recorded on the finding and surfaces as degraded coverage.
func (a *Activities) ClassifyChunkActivity(ctx context.Context, in ClassifyChunkInput) (ClassifyChunkOutput, error) {
	criteria, err := a.registry.Criteria(ctx, in.Municipality)
	if err != nil {
		return ClassifyChunkOutput{}, err
	}
	profile := a.registry.Profile(in.Municipality)
	finding := a.classifier.ClassifyChunk(ctx, analysis.ChunkSubmission{
		Municipality:    in.Municipality,
		PropertyContext: profile.PropertyContext,
		Criteria:        criteria,
		ChunkText:       in.Chunk.Text,
		ChunkIndex:      in.Chunk.Index,
		TotalChunks:     in.TotalChunks,
		Page:            in.Chunk.Page,
	})
	return ClassifyChunkOutput{Finding: finding}, nil
}

func (a *Activities) ConsolidateFindingsActivity(ctx context.Context, in ConsolidateFindingsInput) (ConsolidateFindingsOutput, error) {
	consolidated := analysis.Consolidate(ctx, a.client, in.Findings)
	return ConsolidateFindingsOutput{Alerts: consolidated, Summary: analysis.Summary(consolidated)}, nil
}

func (a *Activities) PersistAlertsActivity(ctx context.Context, in PersistAlertsInput) (PersistAlertsOutput, error) {
	actor := in.Actor
	if actor == "" {
		actor = "pipeline"
	}
	rows, err := a.lifecycle.CreateFromConsolidated(ctx, in.CompanyID, in.Fingerprint, in.PropertyID, in.Alerts, actor)
	if err != nil {
		return PersistAlertsOutput{}, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.AlertID)
	}
	return PersistAlertsOutput{AlertIDs: ids}, nil
}

func (a *Activities) WriteAnalysisArtifactsActivity(ctx context.Context, in WriteAnalysisArtifactsInput) error {
	_ = ctx
	base := filepath.Join(a.cfg.ArtifactRoot, "documents", in.Fingerprint)
	if err := util.EnsureDir(base); err != nil {
		return err
	}
	if err := util.WriteTextAtomic(filepath.Join(base, "summary.txt"), in.Summary); err != nil {
		return err
	}
	rows := make([]any, 0, len(in.Findings))
	for _, f := range in.Findings {
		rows = append(rows, f)
	}
	if err := util.WriteJSONLinesAtomic(filepath.Join(base, "findings.jsonl"), rows); err != nil {
		return err
	}
	return util.WriteJSONAtomic(filepath.Join(base, "analysis.json"), in.Metadata)
}

func (a *Activities) UpdateJobStatusActivity(ctx context.Context, in UpdateJobStatusInput) error {
	return a.jobRepo.UpdateJobStatus(ctx, in.JobID, in.Status)
}

func (a *Activities) UpdateJobProgressActivity(ctx context.Context, in UpdateJobProgressInput) error {
	return a.jobRepo.UpdateJobProgress(ctx, in.JobID, in.Progress, in.TotalDocuments, in.ProcessedDocuments, in.ErrorCount)
}

func (a *Activities) GetJobStatusActivity(ctx context.Context, in GetJobStatusInput) (GetJobStatusOutput, error) {
	j, err := a.jobRepo.GetJob(ctx, in.JobID)
	if err != nil {
		return GetJobStatusOutput{}, err
	}
	return GetJobStatusOutput{Status: j.Status}, nil
}
