package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"agendawatch/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type AuditRepo struct {
	db *DB
}

func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// dbTx is the subset of pgx.Tx the repos run statements through. Tests
// substitute a recorder to observe what a transaction writes.
type dbTx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// insertAuditEntry writes one append-only entry inside the caller's
// transaction so the entry commits or rolls back with the state change it
// records.
func insertAuditEntry(ctx context.Context, tx dbTx, e models.AuditTrailEntry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	_, err = tx.Exec(ctx, `
INSERT INTO audit_trails (entry_id, fingerprint, alert_id, actor, action, details)
VALUES ($1, NULLIF($2,''), NULLIF($3,'')::uuid, $4, $5, $6)`,
		e.EntryID, e.Fingerprint, e.AlertID, e.Actor, e.Action, details)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepo) ListByDocument(ctx context.Context, fingerprint string) ([]models.AuditTrailEntry, error) {
	return r.list(ctx, `
SELECT entry_id, COALESCE(fingerprint,''), COALESCE(alert_id::text,''), actor, action, details, created_at
FROM audit_trails WHERE fingerprint=$1 ORDER BY created_at ASC`, fingerprint)
}

func (r *AuditRepo) ListByAlert(ctx context.Context, alertID string) ([]models.AuditTrailEntry, error) {
	return r.list(ctx, `
SELECT entry_id, COALESCE(fingerprint,''), COALESCE(alert_id::text,''), actor, action, details, created_at
FROM audit_trails WHERE alert_id=$1 ORDER BY created_at ASC`, alertID)
}

func (r *AuditRepo) list(ctx context.Context, query string, arg any) ([]models.AuditTrailEntry, error) {
	rows, err := r.db.Pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()
	out := make([]models.AuditTrailEntry, 0)
	for rows.Next() {
		var e models.AuditTrailEntry
		var details []byte
		if err := rows.Scan(&e.EntryID, &e.Fingerprint, &e.AlertID, &e.Actor, &e.Action, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}
