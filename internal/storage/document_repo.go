package storage

import (
	"context"
	"errors"
	"fmt"

	"agendawatch/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) UpsertDocument(ctx context.Context, d models.Document) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO documents (fingerprint, company_id, municipality, meeting_ref, storage_key, text_length, chunk_count, status, fail_reason)
VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), $6, $7, $8, NULLIF($9,''))
ON CONFLICT (fingerprint)
DO UPDATE SET
  meeting_ref = COALESCE(EXCLUDED.meeting_ref, documents.meeting_ref),
  storage_key = COALESCE(EXCLUDED.storage_key, documents.storage_key),
  text_length = EXCLUDED.text_length,
  chunk_count = EXCLUDED.chunk_count,
  status = EXCLUDED.status,
  fail_reason = EXCLUDED.fail_reason,
  updated_at = NOW()`,
		d.Fingerprint, d.CompanyID, d.Municipality, d.MeetingRef, d.StorageKey, d.TextLength, d.ChunkCount, d.Status, d.FailReason,
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// UpdateDocumentStatus advances the document state machine and appends the
// matching audit trail entry in the same transaction.
func (r *DocumentRepo) UpdateDocumentStatus(ctx context.Context, fingerprint, status, failReason, actor string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx document status: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `UPDATE documents SET status=$2, fail_reason=NULLIF($3,''), updated_at=NOW() WHERE fingerprint=$1`, fingerprint, status, failReason)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update document status: fingerprint %s not found", fingerprint)
	}
	if err := insertAuditEntry(ctx, tx, models.AuditTrailEntry{
		EntryID:     uuid.NewString(),
		Fingerprint: fingerprint,
		Actor:       actor,
		Action:      "document_status_updated",
		Details:     map[string]any{"new_status": status, "fail_reason": failReason},
	}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit document status tx: %w", err)
	}
	return nil
}

// IsDuplicate reports whether a document with this fingerprint has already
// completed analysis; re-ingestion of identical bytes short-circuits on it.
func (r *DocumentRepo) IsDuplicate(ctx context.Context, fingerprint string) (bool, error) {
	var status string
	err := r.db.Pool.QueryRow(ctx, `SELECT status FROM documents WHERE fingerprint=$1`, fingerprint).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup fingerprint: %w", err)
	}
	return status == models.DocumentStatusAnalyzed, nil
}

func (r *DocumentRepo) GetDocument(ctx context.Context, fingerprint string) (models.Document, error) {
	var d models.Document
	err := r.db.Pool.QueryRow(ctx, `
SELECT fingerprint, company_id, municipality, COALESCE(meeting_ref,''), COALESCE(storage_key,''),
       text_length, chunk_count, status, COALESCE(fail_reason,''), created_at, updated_at
FROM documents WHERE fingerprint=$1`, fingerprint).
		Scan(&d.Fingerprint, &d.CompanyID, &d.Municipality, &d.MeetingRef, &d.StorageKey, &d.TextLength, &d.ChunkCount, &d.Status, &d.FailReason, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return models.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (r *DocumentRepo) ListDocumentsByCompany(ctx context.Context, companyID string) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT fingerprint, company_id, municipality, COALESCE(meeting_ref,''), COALESCE(storage_key,''),
       text_length, chunk_count, status, COALESCE(fail_reason,''), created_at, updated_at
FROM documents
WHERE company_id=$1
ORDER BY created_at DESC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	out := make([]models.Document, 0)
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.Fingerprint, &d.CompanyID, &d.Municipality, &d.MeetingRef, &d.StorageKey, &d.TextLength, &d.ChunkCount, &d.Status, &d.FailReason, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}
