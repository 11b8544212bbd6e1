// Package backend is the REST client for the scheduling backend.
//
// Every endpoint answers with the same envelope:
//
//	{"successful": true, "data": ..., "message": "..."}
//
// A 401 means the bearer token is no longer valid and is reported as
// auth.ErrCredentialInvalid so the identity provider can drop it.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/schedadmin/schedadmin/internal/auth"
)

const maxResponseBytes = 4 << 20

// ErrRequestFailed is wrapped by every APIError
var ErrRequestFailed = errors.New("backend request failed")

// Envelope is the response shape shared by all endpoints
type Envelope struct {
	Successful bool            `json:"successful"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
}

// APIError is a request the backend answered with successful=false or an
// error status
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend request failed (status %d)", e.Status)
	}
	return fmt.Sprintf("backend request failed (status %d): %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return ErrRequestFailed
}

// Message extracts a user-facing message from err, falling back to fallback
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// Client represents an HTTP client for the scheduling backend
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// BaseURL returns the backend root URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends the request and decodes the envelope's data into out (when non-nil).
// It returns the envelope message.
func (c *Client) do(ctx context.Context, method, path, token string, query url.Values, body, out any) (string, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var env Envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode == http.StatusUnauthorized {
		return "", fmt.Errorf("%w: %s", auth.ErrCredentialInvalid, strings.TrimSpace(env.Message))
	}
	if decodeErr != nil {
		if resp.StatusCode >= 400 {
			return "", &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return "", fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if resp.StatusCode >= 400 || !env.Successful {
		return "", &APIError{Status: resp.StatusCode, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return env.Message, nil
}
