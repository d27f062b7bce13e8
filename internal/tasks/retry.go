package tasks

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/desertthunder/libbyreads/internal/services"
	"github.com/desertthunder/libbyreads/internal/shared"
)

const (
	defaultMaxAttempts         = 3
	defaultBaseDelay           = 500 * time.Millisecond
	defaultMaxDelay            = 10 * time.Second
	defaultRateLimitMultiplier = 4.0
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeDelay is returned when a base or max delay is negative.
	ErrNegativeDelay = errors.New("delays must not be negative")

	// ErrInvalidMultiplier is returned when the rate limit multiplier is below 1.
	ErrInvalidMultiplier = errors.New("rate limit multiplier must be at least 1")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// RetryPolicy decides whether a failed search is tried again and how long to wait first.
//
// Schedule (default): 500ms, 1s, 2s ... capped at 10s. Rate-limited attempts wait
// baseDelay*multiplier*2^n or the server's Retry-After, whichever is longer, under the same cap.
type RetryPolicy struct {
	maxAttempts         int
	baseDelay           time.Duration
	maxDelay            time.Duration
	rateLimitMultiplier float64
	jitterFactor        float64
}

// RetryOption configures a [RetryPolicy] using the functional options pattern.
type RetryOption func(*RetryPolicy) error

// NewRetryPolicy applies options over the defaults.
func NewRetryPolicy(options ...RetryOption) (RetryPolicy, error) {
	p := RetryPolicy{
		maxAttempts:         defaultMaxAttempts,
		baseDelay:           defaultBaseDelay,
		maxDelay:            defaultMaxDelay,
		rateLimitMultiplier: defaultRateLimitMultiplier,
	}
	for _, option := range options {
		if err := option(&p); err != nil {
			return RetryPolicy{}, err
		}
	}
	if p.maxDelay < p.baseDelay {
		p.maxDelay = p.baseDelay
	}
	return p, nil
}

// RetryPolicyFromConfig builds a policy from the [engine] config section. Zero values keep defaults.
func RetryPolicyFromConfig(c shared.EngineConfig) (RetryPolicy, error) {
	var opts []RetryOption
	if c.MaxAttempts != 0 {
		opts = append(opts, WithMaxAttempts(c.MaxAttempts))
	}
	if c.BaseDelay != 0 {
		opts = append(opts, WithBaseDelay(c.BaseDelay))
	}
	if c.MaxDelay != 0 {
		opts = append(opts, WithMaxDelay(c.MaxDelay))
	}
	if c.RateLimitMultiplier != 0 {
		opts = append(opts, WithRateLimitMultiplier(c.RateLimitMultiplier))
	}
	if c.Jitter != 0 {
		opts = append(opts, WithJitterFactor(c.Jitter))
	}

	p, err := NewRetryPolicy(opts...)
	if err != nil {
		return RetryPolicy{}, fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
	}
	return p, nil
}

// MaxAttempts returns the total number of searches allowed per lookup, the first included.
func (p RetryPolicy) MaxAttempts() int { return p.maxAttempts }

// Retryable reports whether err is worth another attempt.
//
// Network and rate limit failures are transient. Parse failures mean the catalog
// answered with something we cannot read, and asking again returns the same thing.
func (p RetryPolicy) Retryable(err error) bool {
	if err == nil || errors.Is(err, shared.ErrTimeout) {
		return false
	}
	return errors.Is(err, shared.ErrRateLimited) || errors.Is(err, shared.ErrNetwork)
}

// Backoff returns the wait before retry number retry (0 for the first retry) after err.
func (p RetryPolicy) Backoff(retry int, err error) time.Duration {
	delay := float64(p.baseDelay) * float64(uint64(1)<<min(retry, 32))
	if errors.Is(err, shared.ErrRateLimited) {
		delay *= p.rateLimitMultiplier
		if hint := services.RetryAfter(err); float64(hint) > delay {
			delay = float64(hint)
		}
	}
	if p.jitterFactor > 0 {
		delay += rand.Float64() * delay * p.jitterFactor
	}
	if delay > float64(p.maxDelay) {
		return p.maxDelay
	}
	return time.Duration(delay)
}

// WithMaxAttempts sets the maximum number of attempts, the first one included.
func WithMaxAttempts(attempts int) RetryOption {
	return func(p *RetryPolicy) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, etc.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(p *RetryPolicy) error {
		if delay < 0 {
			return ErrNegativeDelay
		}
		p.baseDelay = delay
		return nil
	}
}

// WithMaxDelay caps every computed delay, Retry-After hints included.
func WithMaxDelay(delay time.Duration) RetryOption {
	return func(p *RetryPolicy) error {
		if delay < 0 {
			return ErrNegativeDelay
		}
		p.maxDelay = delay
		return nil
	}
}

// WithRateLimitMultiplier stretches the delay after a rate limited response.
func WithRateLimitMultiplier(m float64) RetryOption {
	return func(p *RetryPolicy) error {
		if m < 1 {
			return ErrInvalidMultiplier
		}
		p.rateLimitMultiplier = m
		return nil
	}
}

// WithJitterFactor adds up to factor*delay of random jitter.
// Valid range: 0.0 (no jitter) to 1.0 (100% jitter).
func WithJitterFactor(factor float64) RetryOption {
	return func(p *RetryPolicy) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}
		p.jitterFactor = factor
		return nil
	}
}
