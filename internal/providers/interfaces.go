package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

// GenerateRequest is one submission to the external analysis service: a
// system prompt, a user prompt, and an explicit model. The pipeline picks the
// model (primary vs. fallback); providers must not silently substitute.
type GenerateRequest struct {
	Operation string `json:"operation"`
	Model     string `json:"model"`
	System    string `json:"system"`
	Prompt    string `json:"prompt"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}
