package providers

import (
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota":           ErrorQuota,
		"429 rate":                     ErrorRate,
		"openai generate error 429":    ErrorRate,
		"too many requests":            ErrorRate,
		"context too long":             ErrorContext,
		"timeout":                      ErrorTransient,
		"service temporarily down":     ErrorTransient,
		"bad request":                  ErrorPermanent,
		"openai key missing for alias": ErrorPermanent,
	}
	for msg, want := range cases {
		if got := ClassifyError(errors.New(msg)); got != want {
			t.Fatalf("classify %q: got %s want %s", msg, got, want)
		}
	}
	if got := ClassifyError(nil); got != "" {
		t.Fatalf("nil error should classify to empty, got %s", got)
	}
}
