package azure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"go.uber.org/zap"
)

const narrativePrompt = `You write short, encouraging adherence summaries for a medication reminder app.
Use plain language, at most four sentences, no medical advice beyond taking medication as prescribed.`

// AdherenceFacts are the figures a report narrative is written from
type AdherenceFacts struct {
	PatientName   string
	Period        string
	AdherenceRate float64
	CurrentStreak int
	LongestStreak int
	Taken         int
	Missed        int
	Skipped       int
	Delayed       int
	Medications   []string
}

// OpenAIClient wraps Azure OpenAI SDK with retry logic and logging
type OpenAIClient struct {
	client     *openai.Client
	deployment string
	logger     *zap.Logger
	maxRetries int
	baseDelay  time.Duration
	// completeFn performs one request; tests replace it
	completeFn func(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
}

// NewOpenAIClient creates a new Azure OpenAI client using the openai-go SDK with Azure extensions
func NewOpenAIClient(endpoint, apiKey, deployment string, logger *zap.Logger) (*OpenAIClient, error) {
	if endpoint == "" || apiKey == "" || deployment == "" {
		return nil, fmt.Errorf("endpoint, apiKey, and deployment are required")
	}

	client := openai.NewClient(
		azure.WithEndpoint(endpoint, "2024-08-01-preview"),
		azure.WithAPIKey(apiKey),
	)

	c := &OpenAIClient{
		client:     &client,
		deployment: deployment,
		logger:     logger,
		maxRetries: 3,
		baseDelay:  time.Second,
	}
	c.completeFn = c.complete
	return c, nil
}

// SummarizeAdherence writes a short narrative paragraph for an adherence report
func (c *OpenAIClient) SummarizeAdherence(ctx context.Context, facts AdherenceFacts) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient: %s\n", facts.PatientName)
	fmt.Fprintf(&b, "Period: %s\n", facts.Period)
	fmt.Fprintf(&b, "Adherence rate: %.1f%%\n", facts.AdherenceRate)
	fmt.Fprintf(&b, "Doses taken: %d, missed: %d, skipped: %d, delayed: %d\n",
		facts.Taken, facts.Missed, facts.Skipped, facts.Delayed)
	fmt.Fprintf(&b, "Current streak: %d days, longest streak: %d days\n", facts.CurrentStreak, facts.LongestStreak)
	if len(facts.Medications) > 0 {
		fmt.Fprintf(&b, "Medications: %s\n", strings.Join(facts.Medications, ", "))
	}

	text, err := c.Complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(narrativePrompt),
		openai.UserMessage(b.String()),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Complete sends a chat completion request to Azure OpenAI with retry logic
func (c *OpenAIClient) Complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("at least one message is required")
	}

	startTime := time.Now()
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<uint(attempt-1))
			c.logger.Info("retrying Azure OpenAI request",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := c.completeFn(ctx, messages)
		if err == nil {
			c.logger.Info("Azure OpenAI request completed",
				zap.Duration("processing_time", time.Since(startTime)),
				zap.Int("attempts", attempt+1),
			)
			return result, nil
		}

		lastErr = err
		if ctx.Err() != nil || !c.isRetryable(err) {
			c.logger.Error("non-retryable Azure OpenAI error",
				zap.Error(err),
				zap.Int("attempt", attempt+1),
			)
			break
		}

		c.logger.Warn("Azure OpenAI request failed, will retry",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
		)
	}

	c.logger.Error("Azure OpenAI request failed",
		zap.Error(lastErr),
		zap.Duration("total_time", time.Since(startTime)),
		zap.Int("max_retries", c.maxRetries),
	)

	return "", fmt.Errorf("Azure OpenAI request failed: %w", lastErr)
}

// complete performs a single chat completion request
func (c *OpenAIClient) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	requestStart := time.Now()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.deployment),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from Azure OpenAI")
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty content in response")
	}

	c.logger.Info("Azure OpenAI token usage",
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int64("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("request_time", time.Since(requestStart)),
	)

	return content, nil
}

// isRetryable determines if an error should trigger a retry. Authentication
// and malformed requests fail immediately.
func (c *OpenAIClient) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, permanent := range []string{"authentication", "unauthorized", "401", "invalid", "bad request", "400"} {
		if strings.Contains(errStr, permanent) {
			return false
		}
	}
	return true
}
