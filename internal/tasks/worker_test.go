package tasks

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/libbyreads/internal/matcher"
	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/services"
	"github.com/desertthunder/libbyreads/internal/shared"
	tu "github.com/desertthunder/libbyreads/internal/testing"
)

func newTestWorker(t *testing.T, target models.LibraryTarget, catalog *tu.MockCatalog) *LibraryWorker {
	t.Helper()
	return NewLibraryWorker(target, catalog, matcher.New(matcher.DefaultConfig()), testPolicy(t), nil)
}

func TestLibraryWorker(t *testing.T) {
	t.Run("parse errors are not retried", func(t *testing.T) {
		catalog := &tu.MockCatalog{ID: "lib1", Errs: []error{fmt.Errorf("%w: unexpected token", shared.ErrParse)}}
		res := newTestWorker(t, testTarget("lib1"), catalog).Resolve(context.Background(), orchardBook())

		assert.Equal(t, models.StatusUnknown, res.Status)
		assert.ErrorIs(t, res.Err, shared.ErrParse)
		assert.Equal(t, 1, res.Attempts)
		assert.Equal(t, 1, catalog.Calls())
	})

	t.Run("rate limited then answers", func(t *testing.T) {
		catalog := tu.NewMockCatalog("lib1", testISBN, candidate("c1", "available", testISBN))
		catalog.Errs = []error{&services.RateLimitError{StatusCode: 429}}

		res := newTestWorker(t, testTarget("lib1"), catalog).Resolve(context.Background(), orchardBook())

		assert.NoError(t, res.Err)
		assert.Equal(t, models.StatusAvailable, res.Status)
		assert.Equal(t, 2, res.Attempts)
		assert.Equal(t, map[models.Format]models.Status{models.FormatEbook: models.StatusAvailable}, res.MatchedFormats)
		assert.Equal(t, 1.0, res.Score)
	})

	t.Run("network error then answers", func(t *testing.T) {
		catalog := tu.NewMockCatalog("lib1", testISBN, candidate("c1", "wait list", testISBN))
		catalog.Errs = []error{fmt.Errorf("%w: reset by peer", shared.ErrNetwork)}

		res := newTestWorker(t, testTarget("lib1"), catalog).Resolve(context.Background(), orchardBook())

		assert.NoError(t, res.Err)
		assert.Equal(t, models.StatusHoldable, res.Status)
		assert.Equal(t, 2, res.Attempts)
	})

	t.Run("unrecognized availability", func(t *testing.T) {
		catalog := tu.NewMockCatalog("lib1", testISBN, candidate("c1", "on the moon", testISBN))
		res := newTestWorker(t, testTarget("lib1"), catalog).Resolve(context.Background(), orchardBook())

		assert.NoError(t, res.Err)
		assert.Equal(t, models.StatusUnknown, res.Status)
		assert.Equal(t, models.ReasonUnrecognizedAvailability, res.MatchReason)
	})

	t.Run("limiter admission bounded by target timeout", func(t *testing.T) {
		target := testTarget("lib1")
		target.RateLimit = models.RateLimit{Requests: 1, Interval: time.Hour}
		target.Timeout = 20 * time.Millisecond
		catalog := tu.NewMockCatalog("lib1", testISBN, candidate("c1", "available", testISBN))
		w := newTestWorker(t, target, catalog)

		first := w.Resolve(context.Background(), orchardBook())
		assert.Equal(t, models.StatusAvailable, first.Status)

		second := w.Resolve(context.Background(), orchardBook())
		assert.Equal(t, models.StatusUnknown, second.Status)
		assert.ErrorIs(t, second.Err, shared.ErrTimeout)
		assert.Equal(t, 0, second.Attempts)
		assert.Equal(t, 1, catalog.Calls())
	})

	t.Run("per call timeout is terminal", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		target := testTarget("slow")
		target.Timeout = 20 * time.Millisecond
		catalog := tu.NewHangingCatalog("slow", release)

		res := newTestWorker(t, target, catalog).Resolve(context.Background(), orchardBook())

		assert.Equal(t, models.StatusUnknown, res.Status)
		assert.ErrorIs(t, res.Err, shared.ErrTimeout)
		assert.Equal(t, shared.KindTimeout, shared.ErrorKind(res.Err))
		assert.Equal(t, 1, res.Attempts)
		assert.Equal(t, 1, catalog.Calls())
	})

	t.Run("catalog error after the target timeout is a timeout", func(t *testing.T) {
		target := testTarget("slow")
		target.Timeout = 20 * time.Millisecond
		catalog := &tu.MockCatalog{
			ID: "slow",
			SearchFunc: func(ctx context.Context, book models.Book) ([]models.CatalogCandidate, error) {
				<-ctx.Done()
				return nil, fmt.Errorf("%w: %v", shared.ErrNetwork, ctx.Err())
			},
		}

		res := newTestWorker(t, target, catalog).Resolve(context.Background(), orchardBook())

		assert.ErrorIs(t, res.Err, shared.ErrTimeout)
		assert.Equal(t, 1, res.Attempts)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		catalog := tu.NewMockCatalog("lib1", testISBN, candidate("c1", "available", testISBN))
		res := newTestWorker(t, testTarget("lib1"), catalog).Resolve(ctx, orchardBook())

		assert.Equal(t, models.StatusUnknown, res.Status)
		assert.ErrorIs(t, res.Err, shared.ErrTimeout)
		assert.Equal(t, shared.KindTimeout, shared.ErrorKind(res.Err))
	})

	t.Run("duplicate books share a lookup", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		var once sync.Once
		catalog := &tu.MockCatalog{
			ID: "lib1",
			SearchFunc: func(ctx context.Context, book models.Book) ([]models.CatalogCandidate, error) {
				once.Do(func() { close(started) })
				<-release
				return []models.CatalogCandidate{candidate("c1", "available", testISBN)}, nil
			},
		}
		w := newTestWorker(t, testTarget("lib1"), catalog)
		ctx := withRun(context.Background(), "run-1")

		a := orchardBook()
		b := orchardBook()
		b.ID = "b1-copy"

		var wg sync.WaitGroup
		results := make([]models.AvailabilityResult, 2)
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[0] = w.Resolve(ctx, a)
		}()
		<-started
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[1] = w.Resolve(ctx, b)
		}()
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, 1, catalog.Calls())
		assert.Equal(t, "b1", results[0].BookID)
		assert.Equal(t, "b1-copy", results[1].BookID)
		assert.Equal(t, models.StatusAvailable, results[1].Status)
	})

	t.Run("lookups outside a run are not shared", func(t *testing.T) {
		catalog := tu.NewMockCatalog("lib1", testISBN, candidate("c1", "available", testISBN))
		w := newTestWorker(t, testTarget("lib1"), catalog)

		var wg sync.WaitGroup
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.Resolve(context.Background(), orchardBook())
			}()
		}
		wg.Wait()

		assert.Equal(t, 2, catalog.Calls())
	})
}

func TestNewLimiter(t *testing.T) {
	unlimited := newLimiter(models.RateLimit{})
	assert.True(t, unlimited.Allow())
	assert.True(t, unlimited.Allow())

	limited := newLimiter(models.RateLimit{Requests: 2, Interval: time.Hour})
	assert.True(t, limited.Allow())
	assert.True(t, limited.Allow())
	assert.False(t, limited.Allow())
	require.Equal(t, 2, limited.Burst())
}
