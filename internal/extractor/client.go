package extractor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"incidentetl/internal/config"
	"incidentetl/internal/logger"
)

// Completion errors.
var (
	ErrNoChoices = errors.New("completion returned no choices")
)

// Completer sends one system and one user message and returns the reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Ensure Client implements Completer.
var _ Completer = (*Client)(nil)

// Client is a chat-completion client for an OpenAI compatible endpoint.
type Client struct {
	api     *openai.Client
	model   string
	retry   config.RetryPolicy
	limiter *rate.Limiter
	logger  *logger.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client from the llm section of the configuration.
func NewClient(cfg config.LLMConfig, log *logger.Logger) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Retry.GetTimeout()}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		model:   cfg.Model,
		retry:   cfg.Retry,
		limiter: limiter,
		logger:  log,
		sleep:   sleepContext,
	}
}

// Complete implements Completer. Rate limited and server-busy responses are
// retried with exponential backoff.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		// A zero temperature is dropped from the request body by omitempty.
		Temperature: math.SmallestNonzeroFloat32,
	}

	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", ErrNoChoices
			}

			return resp.Choices[0].Message.Content, nil
		}

		lastErr = fmt.Errorf("completion failed (attempt %d/%d): %w", attempt, c.retry.MaxAttempts, err)

		if ctx.Err() != nil || !isRetryable(err) || attempt == c.retry.MaxAttempts {
			break
		}

		delay := c.retry.GetRetryDelay(attempt + 1)
		if c.logger != nil {
			c.logger.Debug("Retrying completion", "attempt", attempt, "delay", delay, "error", err)
		}

		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

// isRetryable determines if we should retry based on the HTTP status code.
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return isRetryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return isRetryableStatus(reqErr.HTTPStatusCode)
	}

	return false
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
