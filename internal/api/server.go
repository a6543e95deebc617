package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"agendawatch/internal/alerts"
	"agendawatch/internal/blobstore"
	"agendawatch/internal/config"
	"agendawatch/internal/models"
	"agendawatch/internal/storage"
	"agendawatch/internal/util"
	"agendawatch/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

type Server struct {
	cfg       config.Config
	db        *storage.DB
	docRepo   *storage.DocumentRepo
	alertRepo *storage.AlertRepo
	auditRepo *storage.AuditRepo
	jobRepo   *storage.JobRepo
	lifecycle *alerts.Lifecycle
	blobs     blobstore.Store
	temporal  tclient.Client
}

func NewServer(cfg config.Config) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	blobs, err := blobstore.NewFilesystemStore(cfg.BlobRoot)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}
	alertRepo := storage.NewAlertRepo(db)
	return &Server{
		cfg:       cfg,
		db:        db,
		docRepo:   storage.NewDocumentRepo(db),
		alertRepo: alertRepo,
		auditRepo: storage.NewAuditRepo(db),
		jobRepo:   storage.NewJobRepo(db),
		lifecycle: alerts.NewLifecycle(alertRepo),
		blobs:     blobs,
		temporal:  tc,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/documents", s.handleDocuments)
	mux.HandleFunc("/documents/", s.handleDocumentsScoped)
	mux.HandleFunc("/alerts", s.handleAlerts)
	mux.HandleFunc("/alerts/", s.handleAlertsScoped)
	mux.HandleFunc("/jobs", s.handleJobs)
	mux.HandleFunc("/jobs/", s.handleJobsScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleIngest accepts a batch of agenda PDFs, stages them in the blob store
// and starts one ingest job that fans out per-document analyses.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if err := r.ParseMultipartForm(128 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	companyID := strings.TrimSpace(r.FormValue("company_id"))
	municipality := strings.TrimSpace(r.FormValue("municipality"))
	if companyID == "" || municipality == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("company_id and municipality are required"))
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		if single, ok := firstSingleFile(r.MultipartForm.File); ok {
			files = append(files, single)
		}
	}
	if len(files) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}

	jobID := uuid.NewString()
	keys := make([]string, 0, len(files))
	for _, fh := range files {
		if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
			continue
		}
		key, err := s.stageUpload(r.Context(), companyID, jobID, fh)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}

	if err := s.jobRepo.CreateJob(r.Context(), models.IngestJob{
		JobID:          jobID,
		CompanyID:      companyID,
		Municipality:   municipality,
		TotalDocuments: len(keys),
	}); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       "ingest-" + jobID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.AgendaIngestWorkflow, workflows.AgendaIngestInput{
		JobID:                 jobID,
		CompanyID:             companyID,
		Municipality:          municipality,
		StorageKeys:           keys,
		MaxConcurrentChildren: s.cfg.IngestMaxChildren,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      jobID,
		"workflow_id": we.GetID(),
		"run_id":      we.GetRunID(),
		"documents":   len(keys),
	})
}

// handleAnalyze starts analysis for a single already-staged document.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		CompanyID    string `json:"company_id"`
		Municipality string `json:"municipality"`
		MeetingRef   string `json:"meeting_ref"`
		PropertyID   string `json:"property_id"`
		StorageKey   string `json:"storage_key"`
		Force        bool   `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.CompanyID = strings.TrimSpace(req.CompanyID)
	req.Municipality = strings.TrimSpace(req.Municipality)
	req.StorageKey = strings.TrimSpace(req.StorageKey)
	if req.CompanyID == "" || req.Municipality == "" || req.StorageKey == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("company_id, municipality and storage_key are required"))
		return
	}
	exists, err := s.blobs.Exists(r.Context(), req.StorageKey)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if !exists {
		writeErr(w, http.StatusNotFound, fmt.Errorf("storage key not found"))
		return
	}

	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:        "analyze-" + uuid.NewString(),
		TaskQueue: s.cfg.TemporalTaskQueue,
	}, workflows.DocumentAnalysisWorkflow, workflows.DocumentAnalysisInput{
		CompanyID:    req.CompanyID,
		Municipality: req.Municipality,
		MeetingRef:   req.MeetingRef,
		PropertyID:   req.PropertyID,
		StorageKey:   req.StorageKey,
		Force:        req.Force,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	companyID := strings.TrimSpace(r.URL.Query().Get("company_id"))
	if companyID == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("company_id is required"))
		return
	}
	docs, err := s.docRepo.ListDocumentsByCompany(r.Context(), companyID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleDocumentsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/documents/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	fingerprint := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		doc, err := s.docRepo.GetDocument(r.Context(), fingerprint)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
		return
	}

	switch parts[1] {
	case "alerts":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		rows, err := s.alertRepo.ListAlertsByDocument(r.Context(), fingerprint)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"alerts": rows})
	case "audit":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		entries, err := s.auditRepo.ListByDocument(r.Context(), fingerprint)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	case "reprocess":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		doc, err := s.docRepo.GetDocument(r.Context(), fingerprint)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
			ID:                                       "reprocess-" + fingerprint,
			TaskQueue:                                s.cfg.TemporalTaskQueue,
			WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
			WorkflowExecutionErrorWhenAlreadyStarted: true,
		}, workflows.DocumentAnalysisWorkflow, workflows.DocumentAnalysisInput{
			CompanyID:    doc.CompanyID,
			Municipality: doc.Municipality,
			MeetingRef:   doc.MeetingRef,
			StorageKey:   doc.StorageKey,
			Force:        true,
		})
		if err != nil {
			writeErr(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	companyID := strings.TrimSpace(r.URL.Query().Get("company_id"))
	if companyID == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("company_id is required"))
		return
	}
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	rows, err := s.alertRepo.ListAlerts(r.Context(), companyID, status)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": rows})
}

func (s *Server) handleAlertsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/alerts/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	alertID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		a, err := s.alertRepo.GetAlert(r.Context(), alertID)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
		return
	}

	switch parts[1] {
	case "status":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var req struct {
			Status string `json:"status"`
			Actor  string `json:"actor"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		req.Status = strings.TrimSpace(req.Status)
		req.Actor = strings.TrimSpace(req.Actor)
		if req.Status == "" || req.Actor == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("status and actor are required"))
			return
		}
		a, err := s.lifecycle.Transition(r.Context(), alertID, req.Status, req.Actor)
		if err != nil {
			if strings.Contains(err.Error(), "invalid transition") || strings.Contains(err.Error(), "unknown review status") {
				writeErr(w, http.StatusConflict, err)
				return
			}
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	case "reopen":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var req struct {
			Actor string `json:"actor"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		if strings.TrimSpace(req.Actor) == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("actor is required"))
			return
		}
		a, err := s.lifecycle.Reopen(r.Context(), alertID, req.Actor)
		if err != nil {
			if strings.Contains(err.Error(), "invalid transition") {
				writeErr(w, http.StatusConflict, err)
				return
			}
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	case "comments":
		switch r.Method {
		case http.MethodGet:
			rows, err := s.alertRepo.ListComments(r.Context(), alertID)
			if err != nil {
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"comments": rows})
		case http.MethodPost:
			var req struct {
				Author string `json:"author"`
				Body   string `json:"body"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
				return
			}
			if strings.TrimSpace(req.Author) == "" || strings.TrimSpace(req.Body) == "" {
				writeErr(w, http.StatusBadRequest, fmt.Errorf("author and body are required"))
				return
			}
			c, err := s.lifecycle.Comment(r.Context(), alertID, req.Author, req.Body)
			if err != nil {
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusCreated, c)
		default:
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		}
	case "audit":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		entries, err := s.auditRepo.ListByAlert(r.Context(), alertID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	companyID := strings.TrimSpace(r.URL.Query().Get("company_id"))
	if companyID == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("company_id is required"))
		return
	}
	rows, err := s.jobRepo.ListJobs(r.Context(), companyID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": rows})
}

func (s *Server) handleJobsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/jobs/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	jobID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		j, err := s.jobRepo.GetJob(r.Context(), jobID)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, j)
		return
	}

	switch parts[1] {
	case "progress":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var prog workflows.AgendaIngestProgress
		resp, err := s.temporal.QueryWorkflow(r.Context(), "ingest-"+jobID, "", workflows.QueryGetIngestProgress)
		if err != nil {
			// Fallback to the job row when no live workflow query is available.
			j, jErr := s.jobRepo.GetJob(r.Context(), jobID)
			if jErr != nil {
				writeErr(w, http.StatusNotFound, jErr)
				return
			}
			writeJSON(w, http.StatusOK, workflows.AgendaIngestProgress{
				JobID:     jobID,
				Total:     j.TotalDocuments,
				Processed: j.ProcessedDocuments,
				Errors:    j.ErrorCount,
			})
			return
		}
		if err := resp.Get(&prog); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, prog)
	case "cancel":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		if err := s.jobRepo.CancelJob(r.Context(), jobID); err != nil {
			writeErr(w, http.StatusConflict, err)
			return
		}
		j, err := s.jobRepo.GetJob(r.Context(), jobID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, j)
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) stageUpload(ctx context.Context, companyID, jobID string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	b, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	key := filepath.ToSlash(util.SafeJoin(filepath.Join("agendas", companyID, jobID), fh.Filename))
	if _, err := s.blobs.Put(ctx, key, b); err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	return key, nil
}

func firstSingleFile(m map[string][]*multipart.FileHeader) (*multipart.FileHeader, bool) {
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "AW-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "AW-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "AW-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "AW-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "AW-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "AW-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "AW-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "AW-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusBadGateway:
		code = "AW-API-5020"
		msg = "Upstream provider unavailable. Retry shortly."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		low := strings.ToLower(err.Error())
		switch {
		case strings.Contains(low, "company_id and municipality are required"):
			msg = "Both company and municipality are required."
		case strings.Contains(low, "company_id, municipality and storage_key are required"):
			msg = "Company, municipality and storage key are required."
		case strings.Contains(low, "company_id is required"):
			msg = "Company is required."
		case strings.Contains(low, "status and actor are required"):
			msg = "Both status and actor are required."
		case strings.Contains(low, "actor is required"):
			msg = "Actor is required."
		case strings.Contains(low, "author and body are required"):
			msg = "Both author and body are required."
		case strings.Contains(low, "no files provided"):
			msg = "No PDF files were provided."
		case strings.Contains(low, "invalid transition"), strings.Contains(low, "unknown review status"):
			msg = "Alert cannot move to the requested review status."
		case strings.Contains(low, "already finished"):
			msg = "Job has already finished and cannot be cancelled."
		case strings.Contains(low, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
