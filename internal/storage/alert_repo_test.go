package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"agendawatch/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type recordedStmt struct {
	sql  string
	args []any
}

// recordingTx satisfies dbTx and captures every statement a transaction body
// issues, standing in for a live Postgres transaction.
type recordingTx struct {
	status string
	stmts  []recordedStmt
}

func (t *recordingTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.stmts = append(t.stmts, recordedStmt{sql: sql, args: args})
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (t *recordingTx) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	return statusRow{status: t.status}
}

type statusRow struct{ status string }

func (r statusRow) Scan(dest ...any) error {
	*(dest[0].(*string)) = r.status
	return nil
}

func allowAll(_, _ string) error { return nil }

func auditInserts(stmts []recordedStmt) []recordedStmt {
	var out []recordedStmt
	for _, s := range stmts {
		if strings.Contains(s.sql, "INSERT INTO audit_trails") {
			out = append(out, s)
		}
	}
	return out
}

func updateStmt(t *testing.T, stmts []recordedStmt) recordedStmt {
	t.Helper()
	for _, s := range stmts {
		if strings.Contains(s.sql, "UPDATE alerts") {
			return s
		}
	}
	t.Fatal("no alert update statement recorded")
	return recordedStmt{}
}

func TestApplyTransitionWritesExactlyOneAuditEntry(t *testing.T) {
	tx := &recordingTx{status: models.ReviewStatusPending}
	if err := applyTransition(context.Background(), tx, "alert-1", models.ReviewStatusReviewing, "reviewer@example.com", allowAll); err != nil {
		t.Fatalf("applyTransition: %v", err)
	}
	audits := auditInserts(tx.stmts)
	if len(audits) != 1 {
		t.Fatalf("expected exactly 1 audit insert, got %d", len(audits))
	}
	if action := audits[0].args[4]; action != "alert_status_updated" {
		t.Fatalf("audit action = %v, want alert_status_updated", action)
	}
}

func TestApplyTransitionSetsResolvedAtOnTerminalStatus(t *testing.T) {
	for _, terminal := range []string{models.ReviewStatusResolved, models.ReviewStatusFalsePositive} {
		tx := &recordingTx{status: models.ReviewStatusReviewing}
		if err := applyTransition(context.Background(), tx, "alert-1", terminal, "reviewer@example.com", allowAll); err != nil {
			t.Fatalf("transition to %s: %v", terminal, err)
		}
		update := updateStmt(t, tx.stmts)
		resolvedAt, ok := update.args[2].(*time.Time)
		if !ok || resolvedAt == nil {
			t.Fatalf("transition to %s should set resolved_at, got %v", terminal, update.args[2])
		}
	}
}

func TestApplyTransitionClearsResolvedAtOnReopen(t *testing.T) {
	tx := &recordingTx{status: models.ReviewStatusResolved}
	if err := applyTransition(context.Background(), tx, "alert-1", models.ReviewStatusPending, "reviewer@example.com", allowAll); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	update := updateStmt(t, tx.stmts)
	if resolvedAt, ok := update.args[2].(*time.Time); !ok || resolvedAt != nil {
		t.Fatalf("reopen should clear resolved_at, got %v", update.args[2])
	}
	if audits := auditInserts(tx.stmts); len(audits) != 1 {
		t.Fatalf("reopen should write exactly 1 audit insert, got %d", len(audits))
	}
}

func TestApplyTransitionRejectedWritesNothing(t *testing.T) {
	tx := &recordingTx{status: models.ReviewStatusResolved}
	denied := errors.New("transition not allowed")
	err := applyTransition(context.Background(), tx, "alert-1", models.ReviewStatusFalsePositive, "reviewer@example.com",
		func(_, _ string) error { return denied })
	if !errors.Is(err, denied) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(tx.stmts) != 0 {
		t.Fatalf("rejected transition must not write, recorded %d statements", len(tx.stmts))
	}
}
