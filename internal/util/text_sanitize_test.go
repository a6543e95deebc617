package util

import "testing"

func TestSanitizeTextRemovesNulAndControls(t *testing.T) {
	in := "Item 6.5\x00 Rezoning\x01\x02\n\tPublic hearing"
	out := SanitizeText(in)
	if out != "Item 6.5 Rezoning\n\tPublic hearing" {
		t.Fatalf("unexpected sanitized output: %q", out)
	}
}

func TestSanitizeTextKeepsParagraphBreaks(t *testing.T) {
	in := "Call to order\r\n\r\nItem 1. Minutes\n\nAdjournment"
	out := SanitizeText(in)
	if out != in {
		t.Fatalf("paragraph structure must survive sanitizing: %q", out)
	}
}

func TestSanitizeTextEmpty(t *testing.T) {
	if out := SanitizeText(""); out != "" {
		t.Fatalf("expected empty, got %q", out)
	}
	if out := SanitizeText("\x00\x01"); out != "" {
		t.Fatalf("expected empty after stripping controls, got %q", out)
	}
}
