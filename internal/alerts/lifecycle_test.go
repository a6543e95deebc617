package alerts

import (
	"testing"

	"agendawatch/internal/models"
)

func TestCanTransitionAllowsReviewPaths(t *testing.T) {
	allowed := [][2]string{
		{models.ReviewStatusPending, models.ReviewStatusReviewing},
		{models.ReviewStatusPending, models.ReviewStatusResolved},
		{models.ReviewStatusPending, models.ReviewStatusFalsePositive},
		{models.ReviewStatusReviewing, models.ReviewStatusResolved},
		{models.ReviewStatusReviewing, models.ReviewStatusFalsePositive},
		{models.ReviewStatusResolved, models.ReviewStatusPending},
		{models.ReviewStatusFalsePositive, models.ReviewStatusPending},
	}
	for _, pair := range allowed {
		if err := CanTransition(pair[0], pair[1]); err != nil {
			t.Fatalf("%s -> %s should be allowed: %v", pair[0], pair[1], err)
		}
	}
}

func TestCanTransitionRejectsTerminalCrossovers(t *testing.T) {
	forbidden := [][2]string{
		{models.ReviewStatusResolved, models.ReviewStatusFalsePositive},
		{models.ReviewStatusFalsePositive, models.ReviewStatusResolved},
		{models.ReviewStatusResolved, models.ReviewStatusReviewing},
		{models.ReviewStatusReviewing, models.ReviewStatusPending},
	}
	for _, pair := range forbidden {
		if err := CanTransition(pair[0], pair[1]); err == nil {
			t.Fatalf("%s -> %s should be rejected", pair[0], pair[1])
		}
	}
}

func TestCanTransitionUnknownStatus(t *testing.T) {
	if err := CanTransition("archived", models.ReviewStatusPending); err == nil {
		t.Fatal("unknown status should be rejected")
	}
}
