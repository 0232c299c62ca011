package portalclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/portal"
)

const (
	// DefaultTimeout is the per-request timeout. A submission waits for the
	// device to join, so it is generous.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the default number of retry attempts
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the initial delay between attempts
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay caps exponential backoff
	DefaultMaxRetryDelay = 15 * time.Second
)

// Client talks to a running provisioning portal
type Client struct {
	// BaseURL is the portal base URL (e.g., "http://192.168.4.1:8080")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// MaxRetries is the number of retries after the first attempt
	MaxRetries int

	// RetryDelay is the initial delay between attempts
	RetryDelay time.Duration

	// MaxRetryDelay caps the delay when backing off
	MaxRetryDelay time.Duration

	// UseExponentialBackoff doubles the delay after each failed attempt
	UseExponentialBackoff bool
}

// New creates a client for the portal at baseURL
func New(baseURL string) *Client {
	return &Client{
		BaseURL:               strings.TrimRight(baseURL, "/"),
		HTTPClient:            &http.Client{Timeout: DefaultTimeout},
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
	}
}

// SetRetry configures retry behaviour
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// Params fetches the portal's fields and their current values
func (c *Client) Params(ctx context.Context) (*portal.ParamsResponse, error) {
	var out portal.ParamsResponse
	err := c.retry(ctx, "GET /params", func() error {
		return c.do(ctx, http.MethodGet, "/params", nil, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit sends credentials and parameter values and waits until the device
// has joined the network or failed to
func (c *Client) Submit(ctx context.Context, req portal.SaveRequest) (*portal.SaveResponse, error) {
	if req.SSID == "" {
		return nil, &ClientError{Type: ErrTypeRejected, Message: "ssid is required"}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var out portal.SaveResponse
	err = c.retry(ctx, "POST /save", func() error {
		return c.do(ctx, http.MethodPost, "/save", body, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// retry runs attempt until it succeeds, fails with a non-retryable error or
// runs out of retries
func (c *Client) retry(ctx context.Context, op string, attempt func() error) error {
	var lastErr error
	delay := c.RetryDelay

	for i := 0; i <= c.MaxRetries; i++ {
		if i > 0 {
			logging.Debug("Retrying portal request",
				zap.String("op", op),
				zap.Int("attempt", i+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			if c.UseExponentialBackoff {
				delay *= 2
				if c.MaxRetryDelay > 0 && delay > c.MaxRetryDelay {
					delay = c.MaxRetryDelay
				}
			}
		}

		err := attempt()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return err
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return classifyNetworkError("failed to create request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return classifyNetworkError(method+" "+path+" failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyNetworkError("failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var sr portal.SaveResponse
		_ = json.Unmarshal(data, &sr)
		return statusError(resp.StatusCode, sr.Error)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return newParseError("failed to parse portal response", err)
	}
	return nil
}
