// Package ai drives the three configured model roles: the tagged-output
// translator, the plain-output translator, and the yes/no validator. All
// roles speak to an OpenAI-compatible endpoint, typically a local model
// server.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Completer is the minimal surface the pipeline needs from a model
// backend. Tests substitute scripted fakes.
type Completer interface {
	Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// ErrModelUnavailable wraps connectivity failures that survived retries.
var ErrModelUnavailable = errors.New("model service unavailable")

// Client is the production Completer backed by go-openai.
type Client struct {
	api        *openai.Client
	logger     *zap.Logger
	retries    int
	retryDelay time.Duration
}

// NewClient builds a client for the given endpoint. An empty baseURL
// uses the default OpenAI endpoint.
func NewClient(apiKey, baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:        openai.NewClientWithConfig(cfg),
		logger:     logger,
		retries:    2,
		retryDelay: 500 * time.Millisecond,
	}
}

// Complete issues one chat completion. Connectivity errors are retried a
// small fixed number of times; a hard API error (client-side rejection)
// aborts immediately.
func (c *Client) Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("model %s returned no choices", model)
			}
			return resp.Choices[0].Message.Content, nil
		}

		if isHardAPIError(err) {
			c.logger.Error("model call rejected", zap.String("model", model), zap.Error(err))
			return "", err
		}
		c.logger.Warn("model call failed, retrying",
			zap.String("model", model), zap.Int("attempt", attempt+1), zap.Error(err))
		lastErr = err
	}
	return "", fmt.Errorf("%w: %v", ErrModelUnavailable, lastErr)
}

// isHardAPIError distinguishes a 4xx rejection from transient
// connectivity trouble. Only the former is not worth retrying.
func isHardAPIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500
	}
	return false
}
