package webhook

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zinc-sig/easysweep/internal/kvconfig"
)

// Config holds webhook endpoint configuration
type Config struct {
	URL       string            // Webhook endpoint URL
	Method    string            // HTTP method (default: POST)
	Headers   map[string]string // Custom headers
	Timeout   time.Duration     // Overall timeout for all retries
	AuthType  string            // Authentication type: none, bearer, api-key
	AuthToken string            // Authentication token
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries   int           // Maximum retry attempts (default: 3)
	InitialDelay time.Duration // Initial delay between retries (default: 1s)
	MaxDelay     time.Duration // Maximum delay (default: 30s)
	Multiplier   float64       // Backoff multiplier (default: 2.0)
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

var methods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// FromMap reads a merged configuration object: url, method, headers,
// timeout, auth_type, auth_token, retries and retry_delay. It returns nil
// configs when no url is set.
func FromMap(m map[string]any) (*Config, *RetryConfig, error) {
	url, ok := kvconfig.String(m, "url")
	if !ok {
		return nil, nil, nil
	}

	timeout, err := duration(m, "timeout", 30*time.Second)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid webhook timeout duration: %w", err)
	}
	retryDelay, err := duration(m, "retry_delay", 1*time.Second)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid webhook retry delay: %w", err)
	}

	method := strings.ToUpper(kvconfig.StringOr(m, "method", http.MethodPost))
	if !methods[method] {
		return nil, nil, fmt.Errorf("unsupported webhook method %s", method)
	}

	authType := kvconfig.StringOr(m, "auth_type", "none")
	switch authType {
	case "none", "bearer", "api-key":
	default:
		return nil, nil, fmt.Errorf("unsupported webhook auth type %s", authType)
	}

	retries := kvconfig.Int(m, "retries", 3)
	if retries < 0 {
		return nil, nil, fmt.Errorf("webhook retries must not be negative")
	}

	config := &Config{
		URL:       url,
		Method:    method,
		Headers:   kvconfig.StringMap(m, "headers"),
		Timeout:   timeout,
		AuthType:  authType,
		AuthToken: kvconfig.StringOr(m, "auth_token", ""),
	}
	retry := &RetryConfig{
		MaxRetries:   retries,
		InitialDelay: retryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	return config, retry, nil
}

func duration(m map[string]any, key string, def time.Duration) (time.Duration, error) {
	s, ok := kvconfig.String(m, key)
	if !ok {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
