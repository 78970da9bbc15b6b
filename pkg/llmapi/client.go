// Package llmapi provides an OpenAI-compatible chat client with tool calling,
// retry logic, and concurrent request handling.
package llmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// Client is an OpenAI-compatible API client with retry support.
type Client struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client

	// Retry configuration
	MaxRetries   int
	RetryDelay   time.Duration
	RetryBackoff float64 // Multiplier for exponential backoff
}

// NewClient creates a new client with the given configuration.
func NewClient(apiKey, baseURL, model string) *Client {
	return &Client{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   model,
		HTTPClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		MaxRetries:   3,
		RetryDelay:   2 * time.Second,
		RetryBackoff: 2.0,
	}
}

// NewClientFromConfig creates a new client from APIConfig.
func NewClientFromConfig(config *APIConfig) *Client {
	return NewClient(config.APIKey, config.BaseURL, config.Model)
}

// Message represents a chat message. Assistant messages may carry tool calls;
// tool messages answer one call via ToolCallID.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is one function invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the function and carries its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool declares one callable function to the model.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction is the schema half of a Tool declaration.
type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ChatRequest represents a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Tools       []Tool    `json:"tools,omitempty"`
	ToolChoice  string    `json:"tool_choice,omitempty"`
}

// Choice represents a response choice.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatResponse represents a chat completion response.
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// APIError represents an API error response.
type APIError struct {
	ErrorInfo struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
	StatusCode int `json:"-"` // HTTP status code
}

// Complete sends a plain user prompt and returns the response content.
func (c *Client) Complete(prompt string, timeout time.Duration) (string, error) {
	return c.CompleteWithSystem("", prompt, timeout)
}

// CompleteWithSystem sends a request with both system and user messages.
func (c *Client) CompleteWithSystem(systemPrompt, userPrompt string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.CompleteWithContext(ctx, systemPrompt, userPrompt)
}

// CompleteWithContext sends a request using the provided context.
func (c *Client) CompleteWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var messages []Message
	if systemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: userPrompt})

	return c.CompleteMessages(ctx, messages)
}

// CompleteMessages sends custom messages and returns the first choice's text.
func (c *Client) CompleteMessages(ctx context.Context, messages []Message) (string, error) {
	resp, err := c.Chat(ctx, ChatRequest{
		Model:       c.Model,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

// Chat sends a full chat request, including any tool declarations, and
// returns the complete response. The model defaults to the client's when the
// request leaves it empty. Retries apply to transient failures.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = c.Model
	}
	if len(req.Tools) > 0 && req.ToolChoice == "" {
		req.ToolChoice = "auto"
	}
	return c.doRequestWithRetry(ctx, req)
}

// doRequestWithRetry executes the API request with retry logic for transient errors.
func (c *Client) doRequestWithRetry(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.RetryDelay) * math.Pow(c.RetryBackoff, float64(attempt-1)))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				// Continue with retry
			}
		}

		result, err := c.doRequest(ctx, req)
		if err == nil {
			return result, nil
		}

		// Check if error is retryable
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if !isRetryable(apiErr.StatusCode) {
				return nil, err
			}
			lastErr = err
			continue
		}

		// Network errors are retryable
		lastErr = err
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable returns true if the HTTP status code indicates a retryable error.
func isRetryable(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	default:
		return false
	}
}

// doRequest executes a single API request.
func (c *Client) doRequest(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(body, apiErr) == nil && apiErr.ErrorInfo.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s: %w", resp.StatusCode, apiErr.ErrorInfo.Message, apiErr)
		}
		apiErr.ErrorInfo.Message = fmt.Sprintf("status %d", resp.StatusCode)
		return nil, fmt.Errorf("API error: status %d: %w", resp.StatusCode, apiErr)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}

	return &chatResp, nil
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.ErrorInfo.Message)
}
