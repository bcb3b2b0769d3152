package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"weekplan/internal/config"
	"weekplan/internal/types"
)

// CompletionClient produces a schedule draft from an assembled prompt.
// Implemented by CompletionHTTPClient; mocked in planner tests.
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// chatMessage is one entry in the chat-completions conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFormat requests strict JSON output from the model.
type responseFormat struct {
	Type string `json:"type"`
}

// chatCompletionRequest is the request body for the chat-completions API.
type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// chatCompletionResponse is the subset of the response body we consume.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// CompletionHTTPClient implements CompletionClient by making direct HTTP
// calls to an OpenAI-compatible chat-completions API through BaseClient.
// This routes all requests through the service's resilience infrastructure
// (circuit breaker, retries, error mapping) and makes testing with httptest
// straightforward.
type CompletionHTTPClient struct {
	base        *BaseClient
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// NewCompletionClient creates a new CompletionHTTPClient. The httpClient
// timeout should come from CompletionConfig.Timeout; generation can take
// tens of seconds.
func NewCompletionClient(
	httpClient *http.Client,
	cfg config.CompletionConfig,
	logger *slog.Logger,
) *CompletionHTTPClient {
	if logger == nil {
		logger = slog.Default()
	}

	// No retries: a failed generation falls back to the heuristic schedule
	// rather than stacking model calls inside one request.
	base := NewBaseClient(
		httpClient,
		"completion",
		RetryPolicy{
			MaxRetries: 0,
			MinWait:    1 * time.Second,
			MaxWait:    10 * time.Second,
		},
		"weekplan/1.0",
	)

	return &CompletionHTTPClient{
		base:        base,
		apiKey:      cfg.APIKey.Unmask(),
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// NewCompletionClientWithBase creates a CompletionHTTPClient with a
// pre-configured BaseClient. Used by tests to control retry behavior.
func NewCompletionClientWithBase(
	base *BaseClient,
	cfg config.CompletionConfig,
	logger *slog.Logger,
) *CompletionHTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompletionHTTPClient{
		base:        base,
		apiKey:      cfg.APIKey.Unmask(),
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// Complete sends the assembled prompts to the model and returns the raw text
// of the first choice. JSON response mode is requested; the normalizer still
// treats the output as untrusted.
func (c *CompletionHTTPClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to serialize completion request",
			err,
		)
	}

	url := c.baseURL + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create completion request",
			err,
		)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.InfoContext(ctx, "requesting schedule completion",
		"model", c.model,
		"prompt_chars", len(userPrompt),
	)

	resp, err := c.base.Do(req)
	if err != nil {
		return "", c.wrapError("Complete", err)
	}
	defer resp.Body.Close()

	// Handle non-2xx responses that made it past the BaseClient retry logic.
	// BaseClient returns 4xx responses (other than 429) as-is without error.
	if resp.StatusCode >= 400 {
		return "", c.handleErrorResponse(resp, "Complete")
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", types.NewAppError(
			types.ErrCodeUpstreamCompletion,
			"failed to decode completion response",
			err,
		)
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", types.NewAppError(
			types.ErrCodeUpstreamCompletion,
			"completion response contained no choices",
			nil,
		)
	}

	c.logger.InfoContext(ctx, "schedule completion received",
		"finish_reason", completion.Choices[0].FinishReason,
		"content_chars", len(completion.Choices[0].Message.Content),
	)

	return completion.Choices[0].Message.Content, nil
}

// handleErrorResponse reads and logs the error body from a non-2xx response,
// then returns an appropriate AppError.
func (c *CompletionHTTPClient) handleErrorResponse(resp *http.Response, operation string) *types.AppError {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	bodyStr := string(bodyBytes)

	c.logger.Error("completion API error",
		"operation", operation,
		"status_code", resp.StatusCode,
		"response_body", bodyStr,
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return types.NewAppError(
			types.ErrCodeUpstreamCompletion,
			"completion provider authentication failed (401)",
			fmt.Errorf("completion %s returned 401: %s", operation, bodyStr),
		)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return types.NewAppError(
			types.ErrCodeUpstreamCompletion,
			fmt.Sprintf("completion provider client error (%d)", resp.StatusCode),
			fmt.Errorf("completion %s returned %d: %s", operation, resp.StatusCode, bodyStr),
		)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamCompletion,
			fmt.Sprintf("completion provider server error (%d)", resp.StatusCode),
			fmt.Errorf("completion %s returned %d: %s", operation, resp.StatusCode, bodyStr),
		)
	}
}

// wrapError converts errors from BaseClient.Do into completion errors.
func (c *CompletionHTTPClient) wrapError(operation string, err error) error {
	// If it's already an AppError, enhance the message but preserve the code.
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return types.NewAppError(
			appErr.Code,
			fmt.Sprintf("completion %s: %s", operation, appErr.Message),
			appErr.Err,
		)
	}

	return types.NewAppError(
		types.ErrCodeUpstreamCompletion,
		fmt.Sprintf("completion %s failed", operation),
		err,
	)
}

// Compile-time interface compliance check.
var _ CompletionClient = (*CompletionHTTPClient)(nil)
