package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/libbyreads/internal/shared"
)

// maxBodyBytes caps how much of a catalog response is read.
const maxBodyBytes = 4 << 20

// RateLimitError is returned when a catalog answers 429 (or 503 with Retry-After).
// It unwraps to [shared.ErrRateLimited].
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration // zero when the server gave no hint
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: status %d, retry after %s", shared.ErrRateLimited, e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("%s: status %d", shared.ErrRateLimited, e.StatusCode)
}

func (e *RateLimitError) Unwrap() error { return shared.ErrRateLimited }

// RetryAfter extracts the server's Retry-After hint from err, if any.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

// getJSON performs one GET request and decodes the JSON body into out.
//
// Transport failures and unexpected statuses wrap [shared.ErrNetwork], throttling
// responses are [*RateLimitError], and undecodable bodies wrap [shared.ErrParse].
func getJSON(ctx context.Context, client *http.Client, rawURL, userAgent string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %w", shared.ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	if err := shared.DecodeJSON(body, out); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: reading body: %w", shared.ErrNetwork, ctx.Err())
		}
		return fmt.Errorf("%w: %w", shared.ErrParse, err)
	}

	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{StatusCode: resp.StatusCode, RetryAfter: retryAfter}
	case resp.StatusCode == http.StatusServiceUnavailable && retryAfter > 0:
		return &RateLimitError{StatusCode: resp.StatusCode, RetryAfter: retryAfter}
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	msg := strings.TrimSpace(string(snippet))
	if msg == "" {
		return fmt.Errorf("%w: status %d", shared.ErrNetwork, resp.StatusCode)
	}
	return fmt.Errorf("%w: status %d: %s", shared.ErrNetwork, resp.StatusCode, msg)
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
