package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/desertthunder/libbyreads/internal/matcher"
	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/services"
	"github.com/desertthunder/libbyreads/internal/shared"
)

// LibraryWorker resolves books against a single library target.
//
// It owns the target's rate limiter, so every lookup against the target, from any
// run sharing this worker, draws on the same token bucket.
type LibraryWorker struct {
	target  models.LibraryTarget
	catalog services.Catalog
	matcher *matcher.Matcher
	policy  RetryPolicy
	limiter *rate.Limiter
	group   singleflight.Group
	logger  *log.Logger
}

// NewLibraryWorker creates a worker. A target without a usable rate limit is not throttled.
func NewLibraryWorker(
	target models.LibraryTarget,
	catalog services.Catalog,
	m *matcher.Matcher,
	policy RetryPolicy,
	logger *log.Logger,
) *LibraryWorker {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if m == nil {
		m = matcher.New(matcher.DefaultConfig())
	}
	if policy.maxAttempts <= 0 {
		policy, _ = NewRetryPolicy()
	}
	return &LibraryWorker{
		target:  target,
		catalog: catalog,
		matcher: m,
		policy:  policy,
		limiter: newLimiter(target.RateLimit),
		logger:  logger.With("target", target.ID),
	}
}

func newLimiter(rl models.RateLimit) *rate.Limiter {
	if rl.Requests <= 0 || rl.Interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(rl.Interval/time.Duration(rl.Requests)), rl.Requests)
}

// Target returns the library this worker serves.
func (w *LibraryWorker) Target() models.LibraryTarget { return w.target }

// Resolve looks book up at the worker's library. It never fails: every problem is
// reported as [models.StatusUnknown] with Err set.
//
// Concurrent calls for the same book within one run share one lookup. Calls whose
// context carries no run never share, since a lookup runs under its first caller's
// context and a cancelled run must not fail another.
func (w *LibraryWorker) Resolve(ctx context.Context, book models.Book) models.AvailabilityResult {
	run, ok := runFrom(ctx)
	if !ok {
		return w.resolve(ctx, book)
	}

	key := run + "|" + book.ISBN + "|" + book.NormalizedKey
	v, _, dup := w.group.Do(key, func() (any, error) {
		return w.resolve(ctx, book), nil
	})

	res := v.(models.AvailabilityResult)
	res.BookID = book.ID
	if dup {
		res.MatchedFormats = maps.Clone(res.MatchedFormats)
		if res.HoldPosition != nil {
			pos := *res.HoldPosition
			res.HoldPosition = &pos
		}
	}
	return res
}

func (w *LibraryWorker) resolve(ctx context.Context, book models.Book) models.AvailabilityResult {
	res := models.AvailabilityResult{
		BookID:    book.ID,
		LibraryID: w.target.ID,
		Status:    models.StatusUnknown,
	}

	candidates, attempts, err := w.search(ctx, book)
	res.Attempts = attempts
	if err != nil {
		w.logger.Warn("lookup failed", "book", book.Title, "attempts", attempts, "kind", shared.ErrorKind(err), "err", err)
		res.Err = err
		return res
	}

	m := w.matcher.Match(book, candidates)
	res.Status = m.Status
	res.MatchReason = m.Reason
	res.HoldPosition = m.HoldPosition
	if len(m.Formats) > 0 {
		res.MatchedFormats = m.Formats
	}
	if best, ok := m.Best(); ok {
		res.Score = best.Score
	}

	w.logger.Debug("resolved", "book", book.Title, "status", res.Status, "reason", res.MatchReason, "candidates", len(candidates))
	return res
}

// search runs the attempt loop and returns the candidates and the number of searches issued.
func (w *LibraryWorker) search(ctx context.Context, book models.Book) ([]models.CatalogCandidate, int, error) {
	var lastErr error
	attempts := 0

	for attempt := range w.policy.maxAttempts {
		if attempt > 0 {
			delay := w.policy.Backoff(attempt-1, lastErr)
			w.logger.Debug("retrying", "book", book.Title, "attempt", attempt+1, "delay", delay, "err", lastErr)
			if err := sleep(ctx, delay); err != nil {
				return nil, attempts, w.timeout(err, "waiting to retry")
			}
		}

		if err := w.admit(ctx); err != nil {
			return nil, attempts, err
		}

		attempts++
		candidates, err := w.searchOnce(ctx, book)
		if err == nil {
			return candidates, attempts, nil
		}
		if ctx.Err() != nil {
			return nil, attempts, w.timeout(ctx.Err(), "searching")
		}

		lastErr = err
		if !w.policy.Retryable(err) {
			return nil, attempts, err
		}
	}

	return nil, attempts, lastErr
}

// admit waits for a rate limiter token for at most the target timeout.
func (w *LibraryWorker) admit(ctx context.Context) error {
	waitCtx := ctx
	if w.target.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, w.target.Timeout)
		defer cancel()
	}

	if err := w.limiter.Wait(waitCtx); err != nil {
		return w.timeout(err, "waiting for rate limiter")
	}
	return nil
}

type searchResult struct {
	candidates []models.CatalogCandidate
	err        error
}

// searchOnce issues a single search under the target timeout. It returns as soon as the
// deadline passes even when the catalog does not honour cancellation.
func (w *LibraryWorker) searchOnce(ctx context.Context, book models.Book) ([]models.CatalogCandidate, error) {
	callCtx := ctx
	if w.target.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, w.target.Timeout)
		defer cancel()
	}

	ch := make(chan searchResult, 1)
	go func() {
		c, err := w.catalog.Search(callCtx, book)
		ch <- searchResult{candidates: c, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, w.callTimeout()
		}
		return r.candidates, r.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, w.callTimeout()
	}
}

// callTimeout reports a search that outlived the target timeout. It is terminal: a
// library that did not answer once is not asked again in the same run.
func (w *LibraryWorker) callTimeout() error {
	return fmt.Errorf("%w: %s did not answer within %s", shared.ErrTimeout, w.target.ID, w.target.Timeout)
}

type runKey struct{}

// withRun scopes lookups made under ctx to one engine run.
func withRun(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runKey{}, id)
}

func runFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runKey{}).(string)
	return id, ok && id != ""
}

func (w *LibraryWorker) timeout(cause error, during string) error {
	if errors.Is(cause, context.Canceled) {
		return fmt.Errorf("%w: %s cancelled while %s", shared.ErrTimeout, w.target.ID, during)
	}
	return fmt.Errorf("%w: %s timed out while %s: %v", shared.ErrTimeout, w.target.ID, during, cause)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
