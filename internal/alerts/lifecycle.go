package alerts

import (
	"context"
	"fmt"

	"agendawatch/internal/analysis"
	"agendawatch/internal/models"
	"agendawatch/internal/storage"

	"github.com/google/uuid"
)

// transitions is the review state machine. pending may go straight to a
// terminal state (single-step review) or through reviewing; terminal states
// only move via the administrative reopen back to pending.
var transitions = map[string][]string{
	models.ReviewStatusPending:       {models.ReviewStatusReviewing, models.ReviewStatusResolved, models.ReviewStatusFalsePositive},
	models.ReviewStatusReviewing:     {models.ReviewStatusResolved, models.ReviewStatusFalsePositive},
	models.ReviewStatusResolved:      {models.ReviewStatusPending},
	models.ReviewStatusFalsePositive: {models.ReviewStatusPending},
}

// CanTransition validates one review-status move.
func CanTransition(from, to string) error {
	allowed, ok := transitions[from]
	if !ok {
		return fmt.Errorf("unknown review status %q", from)
	}
	for _, t := range allowed {
		if t == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s", from, to)
}

// Lifecycle turns consolidated findings into persisted alerts and advances
// them through review. Every mutation carries its audit entry in the same
// transaction (the repo enforces that).
type Lifecycle struct {
	repo *storage.AlertRepo
}

func NewLifecycle(repo *storage.AlertRepo) *Lifecycle {
	return &Lifecycle{repo: repo}
}

// CreateFromConsolidated persists one alert per consolidated finding, all
// starting in pending.
func (l *Lifecycle) CreateFromConsolidated(ctx context.Context, companyID, fingerprint, propertyID string, consolidated []analysis.ConsolidatedAlert, actor string) ([]models.Alert, error) {
	rows := make([]models.Alert, 0, len(consolidated))
	for _, c := range consolidated {
		rows = append(rows, models.Alert{
			AlertID:      uuid.NewString(),
			CompanyID:    companyID,
			Fingerprint:  fingerprint,
			PropertyID:   propertyID,
			Title:        c.Title,
			Summary:      c.Rationale,
			ItemNumber:   c.ItemNumber,
			PrimaryPage:  c.PrimaryPage,
			Relevance:    c.Relevance,
			SourceChunks: c.SourceChunks,
			ReviewStatus: models.ReviewStatusPending,
		})
	}
	if err := l.repo.CreateAlerts(ctx, rows, actor); err != nil {
		return nil, err
	}
	return rows, nil
}

// Transition advances one alert, guarding the move with the state machine.
func (l *Lifecycle) Transition(ctx context.Context, alertID, to, actor string) (models.Alert, error) {
	return l.repo.TransitionStatus(ctx, alertID, to, actor, CanTransition)
}

// Reopen is the administrative path returning a terminal alert to pending.
func (l *Lifecycle) Reopen(ctx context.Context, alertID, actor string) (models.Alert, error) {
	return l.repo.TransitionStatus(ctx, alertID, models.ReviewStatusPending, actor, CanTransition)
}

// Comment attaches reviewer commentary without touching the state machine.
func (l *Lifecycle) Comment(ctx context.Context, alertID, author, body string) (models.AlertComment, error) {
	c := models.AlertComment{
		CommentID: uuid.NewString(),
		AlertID:   alertID,
		Author:    author,
		Body:      body,
	}
	if err := l.repo.AddComment(ctx, c); err != nil {
		return models.AlertComment{}, err
	}
	return c, nil
}
