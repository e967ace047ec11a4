package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zinc-sig/easysweep/internal/logging"
)

// Client posts JSON documents to a webhook endpoint.
type Client struct {
	httpClient  *http.Client
	config      *Config
	retryConfig *RetryConfig
	logger      *slog.Logger
}

// NewClient fills in the POST method, a 30s overall timeout and the default
// retry policy where they are unset. A nil logger discards.
func NewClient(config *Config, retryConfig *RetryConfig, logger *slog.Logger) *Client {
	if config.Method == "" {
		config.Method = http.MethodPost
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second, // Per-request timeout
		},
		config:      config,
		retryConfig: retryConfig,
		logger:      logger.With("webhook", config.URL),
	}
}

// Send sends the payload to the webhook with retry logic
func (c *Client) Send(ctx context.Context, payload any) error {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var lastErr error

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := calculateBackoff(attempt, c.retryConfig)
			c.logger.Debug("retrying webhook", "attempt", attempt, "max_retries", c.retryConfig.MaxRetries, "delay", delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("webhook timeout after %d attempts: %w", attempt, ctx.Err())
			}
		}

		statusCode, err := c.sendRequest(ctx, jsonPayload)

		if err == nil && statusCode >= 200 && statusCode < 300 {
			c.logger.Debug("webhook sent", "status", statusCode)
			return nil
		}

		if err != nil {
			lastErr = fmt.Errorf("attempt %d failed: %w", attempt+1, err)
		} else {
			lastErr = fmt.Errorf("attempt %d failed with status %d", attempt+1, statusCode)
		}

		if statusCode > 0 && !isRetryableStatus(statusCode) {
			c.logger.Debug("non-retryable webhook status", "status", statusCode)
			return lastErr
		}
		if ctx.Err() != nil {
			return fmt.Errorf("webhook timeout after %d attempts: %w", attempt+1, lastErr)
		}
	}

	return fmt.Errorf("webhook failed after %d attempts: %w", c.retryConfig.MaxRetries+1, lastErr)
}

func (c *Client) sendRequest(ctx context.Context, payload []byte) (int, error) {
	var body io.Reader
	if c.config.Method != http.MethodGet {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, c.config.Method, c.config.URL, body)
	if err != nil {
		return 0, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	switch c.config.AuthType {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
	case "api-key":
		req.Header.Set("X-API-Key", c.config.AuthToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain response body to reuse connection
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
