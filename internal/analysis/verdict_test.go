package analysis

import "testing"

func TestParseVerdictStructuredFlagged(t *testing.T) {
	v := ParseVerdict(`{"verdict":"flagged","item_number":"6.5","title":"Rezoning","rationale":"URGENT ACTION REQUIRED: rezoning hearing scheduled."}`)
	if !v.Flagged {
		t.Fatal("expected flagged verdict")
	}
	if v.ItemNumber != "6.5" || v.Title != "Rezoning" {
		t.Fatalf("unexpected verdict: %+v", v)
	}
}

func TestParseVerdictStructuredClean(t *testing.T) {
	v := ParseVerdict(`{"verdict":"clean"}`)
	if v.Flagged {
		t.Fatal("expected clean verdict")
	}
}

func TestParseVerdictCodeFence(t *testing.T) {
	v := ParseVerdict("```json\n{\"verdict\":\"flagged\",\"rationale\":\"URGENT ACTION REQUIRED: Item 3 demolition permit.\"}\n```")
	if !v.Flagged {
		t.Fatal("expected flagged verdict from fenced JSON")
	}
	if v.ItemNumber != "3" {
		t.Fatalf("expected item number recovered from rationale, got %q", v.ItemNumber)
	}
}

func TestParseVerdictSentinelFallback(t *testing.T) {
	v := ParseVerdict("URGENT ACTION REQUIRED: Item 12 schedules a variance hearing next week.")
	if !v.Flagged {
		t.Fatal("expected flagged verdict via sentinel")
	}
	if v.ItemNumber != "12" {
		t.Fatalf("expected item 12, got %q", v.ItemNumber)
	}

	v = ParseVerdict("After review, no items were flagged in this part.")
	if v.Flagged {
		t.Fatal("expected clean verdict via sentinel")
	}
}

func TestParseVerdictAmbiguousProseIsClean(t *testing.T) {
	// Neither sentinel present: prose drift must not invent an alert.
	v := ParseVerdict("The council discussed general business.")
	if v.Flagged {
		t.Fatal("expected not flagged")
	}
}

func TestExtractItemNumber(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"Item 6.5 proposes a rezoning", "6.5"},
		{"see item 12 for details", "12"},
		{"Items 3 and 4", ""},
		{"Section 6(b) covers variances", ""},
		{"no numbering here", ""},
	}
	for _, c := range cases {
		if got := ExtractItemNumber(c.text); got != c.want {
			t.Fatalf("ExtractItemNumber(%q) = %q, want %q", c.text, got, c.want)
		}
	}
}
