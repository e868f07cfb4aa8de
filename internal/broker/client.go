package broker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/camuig/pie-watch/internal/logger"
)

const DefaultBaseURL = "https://live.trading212.com/api/v0"

// maxBodySize caps how much of a response is read; the rest is discarded.
const maxBodySize = 4 << 20

// Client talks to the brokerage pie endpoints. It keeps no local state and
// never retries; retry policy belongs to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	timeout    time.Duration
	logger     *logger.Logger
}

// NewClient creates a client sending token verbatim in the Authorization header.
// Every remote call is bounded by timeout.
func NewClient(baseURL, token string, timeout time.Duration, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		timeout:    timeout,
		logger:     log,
	}
}

// get performs an authorized GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Path: path, Body: string(body)}
	}

	c.logger.Debug("remote response", "path", path, "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}
