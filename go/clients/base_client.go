package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxResponseSize caps how much of a response body is read.
const DefaultMaxResponseSize = 1 << 20

// StatusError is returned when the remote side answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned status code: %d, response: %s", e.StatusCode, e.Body)
}

// ErrResponseTooLarge is returned when a response body exceeds the configured limit.
var ErrResponseTooLarge = errors.New("response body too large")

type BaseClient struct {
	baseURL         string
	client          *http.Client
	headers         map[string]string
	maxResponseSize int64
}

func NewBaseClient(baseURL string) *BaseClient {
	return &BaseClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers:         make(map[string]string),
		maxResponseSize: DefaultMaxResponseSize,
	}
}

func (c *BaseClient) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *BaseClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

func (c *BaseClient) SetMaxResponseSize(n int64) {
	c.maxResponseSize = n
}

// SetHTTPClient swaps the underlying transport client, mostly for tests.
func (c *BaseClient) SetHTTPClient(client *http.Client) {
	c.client = client
}

func (c *BaseClient) BaseURL() string {
	return c.baseURL
}

// Do sends a request and returns the status code and body regardless of the
// status. Only transport and read failures are returned as errors.
func (c *BaseClient) Do(ctx context.Context, method, endpoint string, body []byte, headers map[string]string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(responseBody)) > c.maxResponseSize {
		return resp.StatusCode, nil, ErrResponseTooLarge
	}

	return resp.StatusCode, responseBody, nil
}

// MakeRequest is Do plus a 2xx check.
func (c *BaseClient) MakeRequest(ctx context.Context, method, endpoint string, body []byte, headers map[string]string) ([]byte, error) {
	status, responseBody, err := c.Do(ctx, method, endpoint, body, headers)
	if err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		return nil, &StatusError{StatusCode: status, Body: string(responseBody)}
	}

	return responseBody, nil
}

func (c *BaseClient) Get(ctx context.Context, endpoint string) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodGet, endpoint, nil, nil)
}

func (c *BaseClient) PostJSON(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodPost, endpoint, body, map[string]string{
		"Content-Type": "application/json",
	})
}
