package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/helixir/literature-assistant/internal/observability"
)

const (
	// anthropicAPIVersion is the Anthropic API version header value.
	anthropicAPIVersion = "2023-06-01"

	// defaultAnthropicMaxTokens is the default max tokens for the Messages API response.
	defaultAnthropicMaxTokens = 1024
)

// messagesRequest is the request body for the Anthropic Messages API.
type messagesRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

// anthropicMessage represents a single message in the Anthropic Messages API.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// contentBlock represents a content block in the Anthropic Messages API response.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// messagesResponse is the response body from the Anthropic Messages API.
type messagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      anthropicUsage `json:"usage"`
}

// anthropicUsage contains token usage information from the Anthropic API.
type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// anthropicAPIErrorDetail represents the nested error object in an Anthropic API error response.
type anthropicAPIErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// anthropicErrorResponse wraps the error payload from the Anthropic API.
type anthropicErrorResponse struct {
	Type  string                  `json:"type"`
	Error anthropicAPIErrorDetail `json:"error"`
}

// AnthropicAnalyzer implements Analyzer using the Anthropic Messages API.
type AnthropicAnalyzer struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
	metrics     *observability.Metrics
}

var _ Analyzer = (*AnthropicAnalyzer)(nil)

// AnthropicConfig holds the parameters needed to create an Anthropic analyzer.
// This is defined in the nlu package to avoid importing the config package.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key.
	APIKey string
	// Model is the model identifier (e.g., "claude-3-sonnet-20240229").
	Model string
	// BaseURL is the API base URL.
	BaseURL string
}

// NewAnthropicAnalyzer creates a new AnthropicAnalyzer with the given configuration.
// The timeout parameter controls the HTTP client timeout for API calls.
// The maxRetries parameter controls how many times transient errors are retried.
// metrics may be nil.
func NewAnthropicAnalyzer(cfg AnthropicConfig, temperature float64, timeout time.Duration, maxRetries int, metrics *observability.Metrics) *AnthropicAnalyzer {
	return &AnthropicAnalyzer{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		temperature: temperature,
		maxRetries:  maxRetries,
		retryDelay:  time.Second,
		metrics:     metrics,
	}
}

// Classify decides whether the query is medical and whether it needs
// clarification, using the Anthropic Messages API.
//
// Transient HTTP errors (status 429 and 5xx) are retried up to maxRetries
// times with exponential backoff. Context cancellation is respected between
// retries.
func (p *AnthropicAnalyzer) Classify(ctx context.Context, query string) (*Classification, error) {
	systemPrompt, userPrompt := BuildClassificationPrompt(query)

	content, model, err := p.complete(ctx, operationClassify, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	var parsed classificationResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("anthropic: failed to parse classification response: %w", err)
	}

	if parsed.IsAmbiguous && strings.TrimSpace(parsed.ClarifyingQuestion) == "" {
		return nil, fmt.Errorf("anthropic: ambiguous verdict without clarifying question")
	}

	return &Classification{
		IsMedical:          parsed.IsMedical,
		IsAmbiguous:        parsed.IsAmbiguous,
		ClarifyingQuestion: parsed.ClarifyingQuestion,
		Model:              model,
	}, nil
}

// Expand produces up to maxTerms related search terms for the query.
func (p *AnthropicAnalyzer) Expand(ctx context.Context, query string, maxTerms int) (*Expansion, error) {
	systemPrompt, userPrompt := BuildExpansionPrompt(query, maxTerms)

	content, model, err := p.complete(ctx, operationExpand, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	var parsed expansionResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("anthropic: failed to parse expansion response: %w", err)
	}

	if len(parsed.Terms) == 0 {
		return nil, fmt.Errorf("anthropic: model returned no terms")
	}

	if len(parsed.Terms) > maxTerms {
		parsed.Terms = parsed.Terms[:maxTerms]
	}

	return &Expansion{
		Terms:     parsed.Terms,
		Reasoning: parsed.Reasoning,
		Model:     model,
	}, nil
}

// Provider returns the provider name.
func (p *AnthropicAnalyzer) Provider() string {
	return "anthropic"
}

// Model returns the model identifier being used.
func (p *AnthropicAnalyzer) Model() string {
	return p.model
}

// complete sends a Messages API request and returns the first text content
// block, retrying transient errors up to maxRetries times. Every API attempt
// is counted under the given operation label.
func (p *AnthropicAnalyzer) complete(ctx context.Context, operation, systemPrompt, userPrompt string) (content, model string, err error) {
	apiReq := messagesRequest{
		Model:     p.model,
		MaxTokens: defaultAnthropicMaxTokens,
		System:    systemPrompt,
		Messages: []anthropicMessage{
			{
				Role:    "user",
				Content: userPrompt,
			},
		},
		Temperature: p.temperature,
	}

	var resp *messagesResponse
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return "", "", fmt.Errorf("anthropic: context cancelled during retry: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, lastErr = p.sendRequest(ctx, apiReq)
		p.countRequest(operation, lastErr)
		if lastErr == nil {
			break
		}

		// Only retry on transient errors.
		if !isTransientError(lastErr) {
			return "", "", lastErr
		}
	}

	if lastErr != nil {
		return "", "", fmt.Errorf("anthropic: all %d retries exhausted: %w", p.maxRetries, lastErr)
	}

	if len(resp.Content) == 0 {
		return "", "", fmt.Errorf("anthropic: response contains no content blocks")
	}

	// Find the first text content block.
	var textContent string
	for _, block := range resp.Content {
		if block.Type == "text" {
			textContent = block.Text
			break
		}
	}

	if textContent == "" {
		return "", "", fmt.Errorf("anthropic: response contains no text content blocks")
	}

	return textContent, resp.Model, nil
}

// countRequest records one API attempt and, when err is non-nil, one failure.
func (p *AnthropicAnalyzer) countRequest(operation string, err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.NLURequestsTotal.WithLabelValues(operation, p.model).Inc()
	if err != nil {
		p.metrics.NLURequestsFailed.WithLabelValues(operation, p.model).Inc()
	}
}

// sendRequest sends a single request to the Anthropic Messages API and returns
// the parsed response or an error.
func (p *AnthropicAnalyzer) sendRequest(ctx context.Context, apiReq messagesRequest) (*messagesResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to marshal request: %w", err)
	}

	endpoint := p.baseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		// Network errors are considered transient and eligible for retry.
		return nil, &APIError{
			Provider:   "anthropic",
			StatusCode: 0,
			Message:    fmt.Sprintf("request failed: %v", err),
			Type:       "network_error",
		}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return nil, &APIError{
			Provider:   "anthropic",
			StatusCode: 0,
			Message:    fmt.Sprintf("failed to read response body: %v", err),
			Type:       "network_error",
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseAnthropicAPIError(httpResp.StatusCode, respBody)
	}

	var resp messagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("anthropic: failed to unmarshal response: %w", err)
	}

	return &resp, nil
}

// parseAnthropicAPIError parses an Anthropic API error from the response status code and body.
func parseAnthropicAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   "anthropic",
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp anthropicErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
	}

	return apiErr
}
