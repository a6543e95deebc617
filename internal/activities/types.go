package activities

import "agendawatch/internal/analysis"

type ComputeFingerprintInput struct {
	StorageKey string `json:"storage_key"`
}

type ComputeFingerprintOutput struct {
	Fingerprint string `json:"fingerprint"`
	SizeBytes   int64  `json:"size_bytes"`
}

type CheckDuplicateInput struct {
	Fingerprint string `json:"fingerprint"`
}

type CheckDuplicateOutput struct {
	Duplicate bool `json:"duplicate"`
}

type RegisterDocumentInput struct {
	Fingerprint  string `json:"fingerprint"`
	CompanyID    string `json:"company_id"`
	Municipality string `json:"municipality"`
	MeetingRef   string `json:"meeting_ref"`
	StorageKey   string `json:"storage_key"`
	TextLength   int    `json:"text_length"`
	ChunkCount   int    `json:"chunk_count"`
	Status       string `json:"status"`
	FailReason   string `json:"fail_reason"`
}

type UpdateDocumentStatusInput struct {
	Fingerprint string `json:"fingerprint"`
	Status      string `json:"status"`
	FailReason  string `json:"fail_reason"`
	Actor       string `json:"actor"`
}

type ExtractTextInput struct {
	StorageKey string `json:"storage_key"`
}

type ExtractTextOutput struct {
	Text string `json:"text"`
}

type PrepareChunksInput struct {
	Municipality string `json:"municipality"`
	Text         string `json:"text"`
}

type ChunkItem struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Page  int    `json:"page"`
}

type PrepareChunksOutput struct {
	Chunks []ChunkItem `json:"chunks"`
}

type ClassifyChunkInput struct {
	Municipality string `json:"municipality"`
	Chunk        ChunkItem
	TotalChunks  int `json:"total_chunks"`
}

type ClassifyChunkOutput struct {
	Finding analysis.Finding `json:"finding"`
}

type ConsolidateFindingsInput struct {
	Findings []analysis.Finding `json:"findings"`
}

type ConsolidateFindingsOutput struct {
	Alerts  []analysis.ConsolidatedAlert `json:"alerts"`
	Summary string                       `json:"summary"`
}

type PersistAlertsInput struct {
	CompanyID   string                       `json:"company_id"`
	Fingerprint string                       `json:"fingerprint"`
	PropertyID  string                       `json:"property_id"`
	Alerts      []analysis.ConsolidatedAlert `json:"alerts"`
	Actor       string                       `json:"actor"`
}

type PersistAlertsOutput struct {
	AlertIDs []string `json:"alert_ids"`
}

type WriteAnalysisArtifactsInput struct {
	Fingerprint string             `json:"fingerprint"`
	Summary     string             `json:"summary"`
	Findings    []analysis.Finding `json:"findings"`
	Metadata    map[string]any     `json:"metadata"`
}

type UpdateJobStatusInput struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type UpdateJobProgressInput struct {
	JobID              string `json:"job_id"`
	Progress           int    `json:"progress"`
	TotalDocuments     int    `json:"total_documents"`
	ProcessedDocuments int    `json:"processed_documents"`
	ErrorCount         int    `json:"error_count"`
}

type GetJobStatusInput struct {
	JobID string `json:"job_id"`
}

type GetJobStatusOutput struct {
	Status string `json:"status"`
}
