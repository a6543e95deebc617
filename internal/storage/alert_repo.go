package storage

import (
	"context"
	"fmt"
	"time"

	"agendawatch/internal/models"

	"github.com/google/uuid"
)

type AlertRepo struct {
	db *DB
}

func NewAlertRepo(db *DB) *AlertRepo {
	return &AlertRepo{db: db}
}

// CreateAlerts persists one consolidated alert set for a document. All rows
// plus their creation audit entries commit in a single transaction: either
// the whole alert set exists or none of it does.
func (r *AlertRepo) CreateAlerts(ctx context.Context, alerts []models.Alert, actor string) error {
	if len(alerts) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx create alerts: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, a := range alerts {
		_, err := tx.Exec(ctx, `
INSERT INTO alerts (alert_id, company_id, fingerprint, property_id, title, summary, item_number, primary_page, relevance, source_chunks, review_status)
VALUES ($1, $2, $3, NULLIF($4,''), $5, $6, NULLIF($7,''), $8, $9, $10, $11)`,
			a.AlertID, a.CompanyID, a.Fingerprint, a.PropertyID, a.Title, a.Summary, a.ItemNumber, a.PrimaryPage, a.Relevance, a.SourceChunks, models.ReviewStatusPending,
		)
		if err != nil {
			return fmt.Errorf("insert alert %s: %w", a.AlertID, err)
		}
		if err := insertAuditEntry(ctx, tx, models.AuditTrailEntry{
			EntryID:     uuid.NewString(),
			Fingerprint: a.Fingerprint,
			AlertID:     a.AlertID,
			Actor:       actor,
			Action:      "alert_created",
			Details:     map[string]any{"item_number": a.ItemNumber, "primary_page": a.PrimaryPage, "source_chunks": a.SourceChunks},
		}); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create alerts tx: %w", err)
	}
	return nil
}

// TransitionStatus moves an alert through the review state machine. The
// current status is read under a row lock, validated via allowed, and the
// update plus its audit entry commit atomically, so concurrent reviewer
// actions on the same alert cannot produce a lost update.
func (r *AlertRepo) TransitionStatus(ctx context.Context, alertID, to, actor string, allowed func(from, to string) error) (models.Alert, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return models.Alert{}, fmt.Errorf("begin tx alert transition: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := applyTransition(ctx, tx, alertID, to, actor, allowed); err != nil {
		return models.Alert{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Alert{}, fmt.Errorf("commit alert transition tx: %w", err)
	}
	return r.GetAlert(ctx, alertID)
}

// applyTransition is the in-transaction half of TransitionStatus: lock the
// row, validate the move, write the new status, and record exactly one audit
// entry. resolved_at is set when entering a terminal status and cleared on
// reopen.
func applyTransition(ctx context.Context, tx dbTx, alertID, to, actor string, allowed func(from, to string) error) error {
	var from string
	if err := tx.QueryRow(ctx, `SELECT review_status FROM alerts WHERE alert_id=$1 FOR UPDATE`, alertID).Scan(&from); err != nil {
		return fmt.Errorf("lock alert %s: %w", alertID, err)
	}
	if err := allowed(from, to); err != nil {
		return err
	}

	var resolvedAt *time.Time
	if to == models.ReviewStatusResolved || to == models.ReviewStatusFalsePositive {
		now := time.Now().UTC()
		resolvedAt = &now
	}
	_, err := tx.Exec(ctx, `UPDATE alerts SET review_status=$2, resolved_at=$3, updated_at=NOW() WHERE alert_id=$1`, alertID, to, resolvedAt)
	if err != nil {
		return fmt.Errorf("update alert status: %w", err)
	}
	return insertAuditEntry(ctx, tx, models.AuditTrailEntry{
		EntryID: uuid.NewString(),
		AlertID: alertID,
		Actor:   actor,
		Action:  "alert_status_updated",
		Details: map[string]any{"previous_status": from, "new_status": to},
	})
}

func (r *AlertRepo) GetAlert(ctx context.Context, alertID string) (models.Alert, error) {
	var a models.Alert
	err := r.db.Pool.QueryRow(ctx, `
SELECT alert_id, company_id, fingerprint, COALESCE(property_id,''), title, summary, COALESCE(item_number,''),
       primary_page, relevance, source_chunks, review_status, resolved_at, created_at, updated_at
FROM alerts WHERE alert_id=$1`, alertID).
		Scan(&a.AlertID, &a.CompanyID, &a.Fingerprint, &a.PropertyID, &a.Title, &a.Summary, &a.ItemNumber, &a.PrimaryPage, &a.Relevance, &a.SourceChunks, &a.ReviewStatus, &a.ResolvedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return models.Alert{}, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

func (r *AlertRepo) ListAlerts(ctx context.Context, companyID, status string) ([]models.Alert, error) {
	query := `
SELECT alert_id, company_id, fingerprint, COALESCE(property_id,''), title, summary, COALESCE(item_number,''),
       primary_page, relevance, source_chunks, review_status, resolved_at, created_at, updated_at
FROM alerts
WHERE company_id=$1`
	args := []any{companyID}
	if status != "" {
		query += ` AND review_status=$2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()
	out := make([]models.Alert, 0)
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.AlertID, &a.CompanyID, &a.Fingerprint, &a.PropertyID, &a.Title, &a.Summary, &a.ItemNumber, &a.PrimaryPage, &a.Relevance, &a.SourceChunks, &a.ReviewStatus, &a.ResolvedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return out, nil
}

func (r *AlertRepo) ListAlertsByDocument(ctx context.Context, fingerprint string) ([]models.Alert, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT alert_id, company_id, fingerprint, COALESCE(property_id,''), title, summary, COALESCE(item_number,''),
       primary_page, relevance, source_chunks, review_status, resolved_at, created_at, updated_at
FROM alerts WHERE fingerprint=$1 ORDER BY primary_page ASC`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("list alerts by document: %w", err)
	}
	defer rows.Close()
	out := make([]models.Alert, 0)
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.AlertID, &a.CompanyID, &a.Fingerprint, &a.PropertyID, &a.Title, &a.Summary, &a.ItemNumber, &a.PrimaryPage, &a.Relevance, &a.SourceChunks, &a.ReviewStatus, &a.ResolvedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan alert by document: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AlertRepo) AddComment(ctx context.Context, c models.AlertComment) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO alert_comments (comment_id, alert_id, author, body)
VALUES ($1, $2, $3, $4)`, c.CommentID, c.AlertID, c.Author, c.Body)
	if err != nil {
		return fmt.Errorf("insert alert comment: %w", err)
	}
	return nil
}

func (r *AlertRepo) ListComments(ctx context.Context, alertID string) ([]models.AlertComment, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT comment_id, alert_id, author, body, created_at
FROM alert_comments WHERE alert_id=$1 ORDER BY created_at ASC`, alertID)
	if err != nil {
		return nil, fmt.Errorf("list alert comments: %w", err)
	}
	defer rows.Close()
	out := make([]models.AlertComment, 0)
	for rows.Next() {
		var c models.AlertComment
		if err := rows.Scan(&c.CommentID, &c.AlertID, &c.Author, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
