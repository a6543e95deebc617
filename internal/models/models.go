package models

import "time"

// Document statuses advance discovered -> chunking -> analyzing -> analyzed.
// error is the only retry-eligible terminal state; reprocessing resets to
// discovered.
const (
	DocumentStatusDiscovered = "discovered"
	DocumentStatusChunking   = "chunking"
	DocumentStatusAnalyzing  = "analyzing"
	DocumentStatusAnalyzed   = "analyzed"
	DocumentStatusError      = "error"
)

const (
	ReviewStatusPending       = "pending"
	ReviewStatusReviewing     = "reviewing"
	ReviewStatusResolved      = "resolved"
	ReviewStatusFalsePositive = "false_positive"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

// Document identity is the content fingerprint: two documents with identical
// bytes are the same logical document.
type Document struct {
	Fingerprint  string    `json:"fingerprint"`
	CompanyID    string    `json:"company_id"`
	Municipality string    `json:"municipality"`
	MeetingRef   string    `json:"meeting_ref,omitempty"`
	StorageKey   string    `json:"storage_key,omitempty"`
	TextLength   int       `json:"text_length"`
	ChunkCount   int       `json:"chunk_count"`
	Status       string    `json:"status"`
	FailReason   string    `json:"fail_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Alert struct {
	AlertID      string     `json:"alert_id"`
	CompanyID    string     `json:"company_id"`
	Fingerprint  string     `json:"fingerprint"`
	PropertyID   string     `json:"property_id,omitempty"`
	Title        string     `json:"title"`
	Summary      string     `json:"summary"`
	ItemNumber   string     `json:"item_number,omitempty"`
	PrimaryPage  int        `json:"primary_page"`
	Relevance    float64    `json:"relevance"`
	SourceChunks []int      `json:"source_chunks"`
	ReviewStatus string     `json:"review_status"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type AlertComment struct {
	CommentID string    `json:"comment_id"`
	AlertID   string    `json:"alert_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditTrailEntry is append-only; exactly one is written for every document
// status change and every alert transition, in the same transaction as the
// change itself.
type AuditTrailEntry struct {
	EntryID     string         `json:"entry_id"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	AlertID     string         `json:"alert_id,omitempty"`
	Actor       string         `json:"actor"`
	Action      string         `json:"action"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

type IngestJob struct {
	JobID              string     `json:"job_id"`
	CompanyID          string     `json:"company_id"`
	Municipality       string     `json:"municipality"`
	Status             string     `json:"status"`
	Progress           int        `json:"progress"`
	TotalDocuments     int        `json:"total_documents"`
	ProcessedDocuments int        `json:"processed_documents"`
	ErrorCount         int        `json:"error_count"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}
