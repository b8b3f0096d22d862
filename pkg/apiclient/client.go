// Package apiclient provides a client for the relayd control-plane API,
// used by the status command.
package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the relayd API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client for baseURL (e.g. "http://127.0.0.1:8080").
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithTimeout returns a copy of the client using timeout for every request.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	return &Client{
		baseURL:    c.baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// envelope is the JSON body of every non-problem response.
type envelope struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// get performs a GET request and decodes the envelope's data into result.
// The envelope itself is returned so callers can inspect the status field.
func (c *Client) get(path string, result any) (*envelope, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseError(resp.StatusCode, body)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return nil, fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return &env, nil
}

// parseError builds an APIError from a problem document, an envelope with an
// error field, or a raw body, in that order.
func parseError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var fields struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &fields) == nil {
		switch {
		case fields.Detail != "":
			apiErr.Title = fields.Title
			apiErr.Message = fields.Detail
		case fields.Title != "":
			apiErr.Title = fields.Title
			apiErr.Message = fields.Title
		case fields.Error != "":
			apiErr.Message = fields.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
		if len(body) > 0 {
			apiErr.Message = string(body)
		}
	}
	return apiErr
}
