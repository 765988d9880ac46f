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

// Default values for the OpenAI provider.
const (
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultOpenAIModel      = "gpt-4-turbo"
	defaultOpenAIMaxTokens  = 1024
	defaultOpenAIRetryDelay = 2 * time.Second
)

// chatRequest represents the OpenAI Chat Completions API request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// chatMessage represents a single message in the chat conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFormat specifies the output format for the API response.
type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse represents the OpenAI Chat Completions API response body.
type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// chatChoice represents a single completion choice.
type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// chatUsage contains token usage information.
type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// openAIErrorResponse represents an error response from the OpenAI API.
type openAIErrorResponse struct {
	Error openAIErrorDetail `json:"error"`
}

// openAIErrorDetail contains error details from the OpenAI API.
type openAIErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// OpenAIAnalyzer implements Analyzer using the OpenAI Chat Completions API.
type OpenAIAnalyzer struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
	metrics     *observability.Metrics
}

var _ Analyzer = (*OpenAIAnalyzer)(nil)

// OpenAIConfig holds the parameters needed to create an OpenAI analyzer.
// This is defined in the nlu package to avoid importing the config package.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the model identifier (e.g., "gpt-4-turbo").
	Model string
	// BaseURL is the API base URL (empty means default).
	BaseURL string
}

// NewOpenAIAnalyzer creates a new OpenAI query analyzer.
//
// The analyzer uses the OpenAI Chat Completions API with JSON response format
// for structured classification and term expansion. It handles retry logic for
// transient API errors. metrics may be nil.
func NewOpenAIAnalyzer(cfg OpenAIConfig, temperature float64, timeout time.Duration, maxRetries int, metrics *observability.Metrics) *OpenAIAnalyzer {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	if maxRetries < 0 {
		maxRetries = 0
	}

	return &OpenAIAnalyzer{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiKey:      cfg.APIKey,
		model:       model,
		baseURL:     baseURL,
		temperature: temperature,
		maxRetries:  maxRetries,
		retryDelay:  defaultOpenAIRetryDelay,
		metrics:     metrics,
	}
}

// Classify decides whether the query is medical and whether it needs
// clarification, using the Chat Completions API with JSON response format.
// Transient errors (5xx, 429, network failures) are retried up to maxRetries
// times with linear backoff.
func (p *OpenAIAnalyzer) Classify(ctx context.Context, query string) (*Classification, error) {
	systemPrompt, userPrompt := BuildClassificationPrompt(query)

	content, err := p.complete(ctx, operationClassify, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	var parsed classificationResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("openai: failed to parse classification response: %w", err)
	}

	if parsed.IsAmbiguous && strings.TrimSpace(parsed.ClarifyingQuestion) == "" {
		return nil, fmt.Errorf("openai: ambiguous verdict without clarifying question")
	}

	return &Classification{
		IsMedical:          parsed.IsMedical,
		IsAmbiguous:        parsed.IsAmbiguous,
		ClarifyingQuestion: parsed.ClarifyingQuestion,
		Model:              p.model,
	}, nil
}

// Expand produces up to maxTerms related search terms for the query.
func (p *OpenAIAnalyzer) Expand(ctx context.Context, query string, maxTerms int) (*Expansion, error) {
	systemPrompt, userPrompt := BuildExpansionPrompt(query, maxTerms)

	content, err := p.complete(ctx, operationExpand, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	var parsed expansionResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("openai: failed to parse expansion response: %w", err)
	}

	if len(parsed.Terms) == 0 {
		return nil, fmt.Errorf("openai: model returned no terms")
	}

	if len(parsed.Terms) > maxTerms {
		parsed.Terms = parsed.Terms[:maxTerms]
	}

	return &Expansion{
		Terms:     parsed.Terms,
		Reasoning: parsed.Reasoning,
		Model:     p.model,
	}, nil
}

// Provider returns the name of the provider.
func (p *OpenAIAnalyzer) Provider() string {
	return "openai"
}

// Model returns the model identifier being used.
func (p *OpenAIAnalyzer) Model() string {
	return p.model
}

// complete sends a chat completion request and returns the first choice's
// content, retrying transient errors up to maxRetries times. Every API
// attempt is counted under the given operation label.
func (p *OpenAIAnalyzer) complete(ctx context.Context, operation, systemPrompt, userPrompt string) (string, error) {
	chatReq := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: p.temperature,
		MaxTokens:   defaultOpenAIMaxTokens,
		ResponseFormat: &responseFormat{
			Type: "json_object",
		},
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("openai: context cancelled during retry wait: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		content, err := p.doRequest(ctx, chatReq)
		p.countRequest(operation, err)
		if err == nil {
			return content, nil
		}

		// Only retry on transient errors (5xx, 429).
		if !isTransientError(err) {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("openai: exhausted %d retries: %w", p.maxRetries, lastErr)
}

// countRequest records one API attempt and, when err is non-nil, one failure.
func (p *OpenAIAnalyzer) countRequest(operation string, err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.NLURequestsTotal.WithLabelValues(operation, p.model).Inc()
	if err != nil {
		p.metrics.NLURequestsFailed.WithLabelValues(operation, p.model).Inc()
	}
}

// doRequest performs a single API request to the OpenAI Chat Completions endpoint.
func (p *OpenAIAnalyzer) doRequest(ctx context.Context, chatReq chatRequest) (string, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return "", fmt.Errorf("openai: failed to marshal request: %w", err)
	}

	endpoint := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		// Network errors are considered transient and eligible for retry.
		return "", &APIError{
			Provider:   "openai",
			StatusCode: 0,
			Message:    fmt.Sprintf("request failed: %v", err),
			Type:       "network_error",
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("openai: failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", parseOpenAIAPIError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("openai: failed to unmarshal response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// parseOpenAIAPIError parses an OpenAI API error from the response status code and body.
func parseOpenAIAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   "openai",
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp openAIErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
		apiErr.Code = errResp.Error.Code
	}

	return apiErr
}
