package newsdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/connector"
)

const maxRetries = 3

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

type client struct {
	host       string
	apiKey     string
	httpClient *http.Client
	limiter    *connector.HostLimiter
	logger     *zap.Logger
}

// fetchPage performs one logical page request. Transport errors, 429 and
// 5xx responses are retried up to maxRetries times with exponential
// delay (1s, 2s, 4s); a Retry-After header on a 429 overrides the
// computed delay. A logical page counts as one call regardless of how
// many retries it took.
func (c *client) fetchPage(ctx context.Context, query url.Values) (*apiResponse, error) {
	fullURL := c.host + "/api/1/latest?" + query.Encode()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt, lastErr)
			c.logger.Warn("page request failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.doRequest(ctx, fullURL)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", maxRetries+1, lastErr)
}

func (c *client) doRequest(ctx context.Context, fullURL string) (*apiResponse, error) {
	if err := c.limiter.WaitURL(ctx, fullURL); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-ACCESS-KEY", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &transportError{err: err}
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &rateLimitedError{
				apiErr:     apiErr,
				retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			}
		}
		return nil, apiErr
	}
	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Status != "" && parsed.Status != "success" {
		return nil, &APIError{Status: resp.StatusCode, Body: "provider status " + parsed.Status}
	}
	return &parsed, nil
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

type rateLimitedError struct {
	apiErr     *APIError
	retryAfter time.Duration
}

func (e *rateLimitedError) Error() string { return e.apiErr.Error() }

func retryable(err error) bool {
	switch v := err.(type) {
	case *transportError, *rateLimitedError:
		return true
	case *APIError:
		return v.Status >= 500
	}
	return false
}

func backoffDelay(attempt int, lastErr error) time.Duration {
	if rl, ok := lastErr.(*rateLimitedError); ok && rl.retryAfter > 0 {
		return rl.retryAfter
	}
	return time.Duration(1<<(attempt-1)) * time.Second
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
