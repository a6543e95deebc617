package analysis

import (
	"strings"
	"testing"
)

func TestBuildPromptTruncatesCriteria(t *testing.T) {
	c := NewClassifier(nil, 100)
	long := strings.Repeat("criteria ", 50)
	prompt := c.buildPrompt(ChunkSubmission{
		Municipality: "springfield",
		Criteria:     long,
		ChunkText:    "agenda body",
		ChunkIndex:   1,
		TotalChunks:  4,
	})
	if !strings.Contains(prompt, "[truncated]") {
		t.Fatal("expected truncation marker in prompt")
	}
	if strings.Contains(prompt, long) {
		t.Fatal("criteria should have been cut to the budget")
	}
	if !strings.Contains(prompt, "part 2/4") {
		t.Fatalf("expected chunk position in prompt:\n%s", prompt)
	}
}

func TestBuildPromptKeepsShortCriteriaIntact(t *testing.T) {
	c := NewClassifier(nil, 100)
	prompt := c.buildPrompt(ChunkSubmission{
		Municipality: "springfield",
		Criteria:     "flag rezonings",
		ChunkText:    "agenda body",
		TotalChunks:  1,
	})
	if strings.Contains(prompt, "[truncated]") {
		t.Fatal("short criteria must not be truncated")
	}
	if !strings.Contains(prompt, "flag rezonings") {
		t.Fatal("criteria missing from prompt")
	}
}
