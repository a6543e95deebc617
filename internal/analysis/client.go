package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agendawatch/internal/providers"

	"golang.org/x/time/rate"
)

// ClassificationFailure marks a submission that failed on both the primary
// and the fallback model. It is absorbed per chunk, never fatal for the
// document.
type ClassificationFailure struct {
	Operation string
	Err       error
}

func (e *ClassificationFailure) Error() string {
	return fmt.Sprintf("classification failed for %s: %v", e.Operation, e.Err)
}

func (e *ClassificationFailure) Unwrap() error { return e.Err }

// Client is the uniform adapter in front of the external analysis service.
// It owns model selection (primary with a lower-cost fallback), a shared
// token-bucket limiter across all in-flight submissions, and exponential
// backoff on explicit rate-limit responses.
type Client struct {
	manager       *providers.Manager
	limiter       *rate.Limiter
	primaryModel  string
	fallbackModel string
}

func NewClient(manager *providers.Manager, primaryModel, fallbackModel string, requestsPerMinute float64, burst int) *Client {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 20
	}
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		manager:       manager,
		limiter:       rate.NewLimiter(rate.Limit(requestsPerMinute/60.0), burst),
		primaryModel:  primaryModel,
		fallbackModel: fallbackModel,
	}
}

// Submit runs one prompt pair through the service. The primary model is tried
// first; an error or empty response falls back to the secondary model, and
// within each model the configured providers are tried in order. Rate limit
// errors back off exponentially before each retry.
func (c *Client) Submit(ctx context.Context, operation, system, prompt string) (string, providers.ProviderInfo, error) {
	var lastErr error
	var lastInfo providers.ProviderInfo
	for _, model := range []string{c.primaryModel, c.fallbackModel} {
		if model == "" {
			continue
		}
		for i := 0; i < c.manager.Count(); i++ {
			provider, _ := c.manager.ByIndex(i)
			text, info, err := c.submitModel(ctx, provider, operation, model, system, prompt)
			lastInfo = info
			if err == nil && strings.TrimSpace(text) != "" {
				return text, info, nil
			}
			if err == nil {
				err = fmt.Errorf("model %s returned empty output", model)
			}
			lastErr = err
			if ctx.Err() != nil {
				return "", lastInfo, &ClassificationFailure{Operation: operation, Err: lastErr}
			}
		}
	}
	return "", lastInfo, &ClassificationFailure{Operation: operation, Err: lastErr}
}

func (c *Client) submitModel(ctx context.Context, provider providers.LLMProvider, operation, model, system, prompt string) (string, providers.ProviderInfo, error) {
	var lastErr error
	var lastInfo providers.ProviderInfo
	for attempt := 0; attempt < 3; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", lastInfo, err
		}
		resp, info, err := provider.Generate(ctx, providers.GenerateRequest{
			Operation: operation,
			Model:     model,
			System:    system,
			Prompt:    prompt,
		})
		lastInfo = info
		if err == nil {
			return resp.Text, info, nil
		}
		lastErr = err
		if providers.ClassifyError(err) != providers.ErrorRate {
			break
		}
		backoff := time.Duration(1<<attempt) * 2 * time.Second
		select {
		case <-ctx.Done():
			return "", lastInfo, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return "", lastInfo, lastErr
}
