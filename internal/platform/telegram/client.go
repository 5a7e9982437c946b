package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.telegram.org"

// Client is a minimal Bot API client for the calls the channel gateway needs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// APIError is a Bot API response with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram %s: %d %s (retry after %s)", e.Method, e.Code, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// TooManyRequests reports a flood-control rejection.
func (e *APIError) TooManyRequests() bool {
	return e.Code == http.StatusTooManyRequests
}

// Backoff is the retry_after delay sent with a flood-control rejection.
func (e *APIError) Backoff() time.Duration {
	return e.RetryAfter
}

type responseParameters struct {
	RetryAfter int `json:"retry_after,omitempty"`
}

type tgResponse[T any] struct {
	Ok          bool                `json:"ok"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  *responseParameters `json:"parameters,omitempty"`
	Result      T                   `json:"result"`
}

type message struct {
	MessageID int64 `json:"message_id"`
}

// call posts params as JSON to the Bot API method and decodes the result.
func call[T any](ctx context.Context, c *Client, method string, params any) (T, error) {
	var zero T

	body, err := json.Marshal(params)
	if err != nil {
		return zero, fmt.Errorf("encode %s: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("failed to read response: %w", err)
	}

	var result tgResponse[T]
	if err := json.Unmarshal(raw, &result); err != nil {
		return zero, fmt.Errorf("failed to parse %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !result.Ok {
		apiErr := &APIError{Method: method, Code: result.ErrorCode, Description: result.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if result.Parameters != nil && result.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(result.Parameters.RetryAfter) * time.Second
		}
		return zero, apiErr
	}
	return result.Result, nil
}
