package providers

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

// MockProvider returns deterministic classifier output so the pipeline can
// run end to end without external credentials.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

var mockItemPattern = regexp.MustCompile(`(?i)Item\s+(\d+(?:\.\d+)?)`)

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-analyst-v1", Key: "mock"}
	op := strings.ToLower(req.Operation)
	switch {
	case strings.Contains(op, "classify"):
		lower := strings.ToLower(req.Prompt)
		if strings.Contains(lower, "rezoning") || strings.Contains(lower, "variance") || strings.Contains(lower, "demolition") {
			item := ""
			if match := mockItemPattern.FindStringSubmatch(req.Prompt); match != nil {
				item = match[1]
			}
			verdict, _ := json.Marshal(map[string]string{
				"verdict":     "flagged",
				"item_number": item,
				"title":       "Mock flagged agenda item",
				"rationale":   "URGENT ACTION REQUIRED: Item " + item + " affects a monitored property. Deterministic mock rationale.",
			})
			return GenerateResponse{Text: string(verdict)}, info, nil
		}
		verdict, _ := json.Marshal(map[string]string{"verdict": "clean"})
		return GenerateResponse{Text: string(verdict)}, info, nil
	case strings.Contains(op, "consolidate"):
		// Pick the longest finding block, mirroring the local fallback, so
		// repeated runs stay stable.
		longest := ""
		for _, part := range strings.Split(req.Prompt, "\n\n---FINDING---\n\n") {
			if len(part) > len(longest) {
				longest = part
			}
		}
		return GenerateResponse{Text: strings.TrimSpace(longest)}, info, nil
	default:
		return GenerateResponse{Text: "Mock response."}, info, nil
	}
}
