package workflows

type DocumentAnalysisInput struct {
	CompanyID    string `json:"company_id"`
	Municipality string `json:"municipality"`
	MeetingRef   string `json:"meeting_ref,omitempty"`
	PropertyID   string `json:"property_id,omitempty"`
	StorageKey   string `json:"storage_key"`
	// Force skips the duplicate short-circuit; set by the reprocess path.
	Force bool `json:"force,omitempty"`
}

type DocumentAnalysisResult struct {
	Status             string `json:"status"`
	Fingerprint        string `json:"fingerprint"`
	Summary            string `json:"summary,omitempty"`
	ChunksProcessed    int    `json:"chunks_processed"`
	FlaggedChunks      int    `json:"flagged_chunks"`
	DegradedChunkCount int    `json:"degraded_chunk_count"`
	AlertCount         int    `json:"alert_count"`
	PageLocations      []int  `json:"page_locations,omitempty"`
	FailReason         string `json:"fail_reason,omitempty"`
}

type DocumentProgress struct {
	Fingerprint     string            `json:"fingerprint"`
	CurrentStep     string            `json:"current_step"`
	Status          string            `json:"status"`
	ChunksTotal     int               `json:"chunks_total"`
	ChunksProcessed int               `json:"chunks_processed"`
	FlaggedChunks   int               `json:"flagged_chunks"`
	DegradedChunks  int               `json:"degraded_chunks"`
	Steps           map[string]string `json:"steps"`
}

type AgendaIngestInput struct {
	JobID                 string   `json:"job_id"`
	CompanyID             string   `json:"company_id"`
	Municipality          string   `json:"municipality"`
	StorageKeys           []string `json:"storage_keys"`
	MaxConcurrentChildren int      `json:"max_concurrent_children"`
}

type AgendaIngestProgress struct {
	JobID         string            `json:"job_id"`
	Total         int               `json:"total"`
	Processed     int               `json:"processed"`
	Errors        int               `json:"errors"`
	PerDocument   map[string]string `json:"per_document_status"`
	ChildWorkflow map[string]string `json:"child_workflow_ids,omitempty"`
}
