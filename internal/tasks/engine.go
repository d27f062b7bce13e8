package tasks

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"github.com/desertthunder/libbyreads/internal/matcher"
	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/services"
	"github.com/desertthunder/libbyreads/internal/shared"
)

// DefaultGrace is how long ResolveShelf keeps collecting after the run deadline.
const DefaultGrace = 250 * time.Millisecond

// CatalogFactory builds the catalog client for a target.
type CatalogFactory func(models.LibraryTarget) (services.Catalog, error)

// RunOpts bounds a single shelf check.
type RunOpts struct {
	Concurrency int           // lookups in flight across all libraries
	Timeout     time.Duration // run deadline; 0 disables it
	Grace       time.Duration // extra wait for stragglers after the deadline
}

// RunOptsFromConfig reads the [engine] config section.
func RunOptsFromConfig(c shared.EngineConfig) RunOpts {
	return RunOpts{Concurrency: c.Concurrency, Timeout: c.RunTimeout, Grace: c.Grace}
}

// Engine resolves shelves against library targets.
//
// Workers, and with them each target's rate limiter, are kept between runs so that
// repeated checks (the HTTP server, the TUI) share one token bucket per library.
type Engine struct {
	catalogs CatalogFactory
	matcher  *matcher.Matcher
	policy   RetryPolicy
	logger   *log.Logger

	mu      sync.Mutex
	workers map[string]*LibraryWorker
}

// NewEngine creates an Engine. A nil matcher or logger gets the default.
func NewEngine(catalogs CatalogFactory, m *matcher.Matcher, policy RetryPolicy, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if m == nil {
		m = matcher.New(matcher.DefaultConfig())
	}
	return &Engine{
		catalogs: catalogs,
		matcher:  m,
		policy:   policy,
		logger:   logger,
		workers:  make(map[string]*LibraryWorker),
	}
}

// NewEngineFromConfig wires the HTTP catalogs, matcher and retry policy described by cfg.
func NewEngineFromConfig(cfg *shared.Config, opts services.Options, logger *log.Logger) (*Engine, error) {
	mc, err := matcher.ConfigFromShared(cfg.Matcher)
	if err != nil {
		return nil, err
	}
	policy, err := RetryPolicyFromConfig(cfg.Engine)
	if err != nil {
		return nil, err
	}
	factory := func(t models.LibraryTarget) (services.Catalog, error) {
		return services.NewCatalog(t, opts)
	}
	return NewEngine(factory, matcher.New(mc), policy, logger), nil
}

// Worker returns the worker for target, creating it on first use.
// A target whose definition changed since the last run gets a fresh worker.
func (e *Engine) Worker(target models.LibraryTarget) (*LibraryWorker, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if w, ok := e.workers[target.ID]; ok && reflect.DeepEqual(w.target, target) {
		return w, nil
	}

	catalog, err := e.catalogs(target)
	if err != nil {
		return nil, err
	}
	w := NewLibraryWorker(target, catalog, e.matcher, e.policy, e.logger)
	e.workers[target.ID] = w
	return w, nil
}

type unitResult struct {
	book   int
	target int
	result models.AvailabilityResult
}

// ResolveShelf checks every book at every target and returns one entry per book, in book
// order, each holding one result per target, in target order.
//
// Lookups that fail, and lookups still running when the run deadline passes, are reported
// as [models.StatusUnknown]; they never fail the run. The call returns at most opts.Grace
// after the deadline even if a catalog ignores cancellation.
//
// Invalid input (no targets, duplicate target ids, a book without a normalized key,
// non-positive concurrency, negative timeout) fails synchronously with [shared.ErrInvalidInput].
func (e *Engine) ResolveShelf(
	ctx context.Context,
	books []models.Book,
	targets []models.LibraryTarget,
	opts RunOpts,
	progress chan<- ProgressUpdate,
) (*models.ShelfReport, error) {
	if err := validateRun(books, targets, opts); err != nil {
		return nil, err
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}

	workers := make([]*LibraryWorker, len(targets))
	for j, t := range targets {
		w, err := e.Worker(t)
		if err != nil {
			return nil, fmt.Errorf("%w: target %s: %w", shared.ErrInvalidInput, t.ID, err)
		}
		workers[j] = w
	}

	report := &models.ShelfReport{
		RunID:     shared.GenerateID(),
		StartedAt: time.Now().UTC(),
		Targets:   slices.Clone(targets),
	}
	logger := e.logger.With("run", report.RunID)

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	grid := make([][]models.AvailabilityResult, len(books))
	remaining := make([]int, len(books))
	for i, b := range books {
		grid[i] = make([]models.AvailabilityResult, len(targets))
		remaining[i] = len(targets)
		for j, t := range targets {
			grid[i][j] = placeholder(b, t)
		}
	}

	total := len(books) * len(targets)
	results := make(chan unitResult, total)
	sem := semaphore.NewWeighted(int64(opts.Concurrency))

	logger.Info("checking shelf", "books", len(books), "targets", len(targets), "concurrency", opts.Concurrency, "timeout", opts.Timeout)
	e.sendProgress(progress, resolveStartUpdate(total, len(books), len(targets)))

	lookupCtx := withRun(runCtx, report.RunID)
	go func() {
		for i := range books {
			for j := range targets {
				if err := sem.Acquire(runCtx, 1); err != nil {
					return
				}
				go func(i, j int) {
					defer sem.Release(1)
					results <- unitResult{book: i, target: j, result: workers[j].Resolve(lookupCtx, books[i])}
				}(i, j)
			}
		}
	}()

	completed, booksDone := 0, 0
	deadline := runCtx.Done()
	var grace <-chan time.Time

collect:
	for completed < total {
		select {
		case r := <-results:
			grid[r.book][r.target] = r.result
			completed++
			e.sendProgress(progress, resolveUnitUpdate(completed, total, books[r.book], r.result))

			remaining[r.book]--
			if remaining[r.book] == 0 {
				booksDone++
				entry := NewEntry(books[r.book], slices.Clone(grid[r.book]))
				e.sendProgress(progress, resolveBookUpdate(booksDone, len(books), entry))
			}
		case <-deadline:
			deadline = nil
			t := time.NewTimer(opts.Grace)
			defer t.Stop()
			grace = t.C
		case <-grace:
			break collect
		}
	}

	report.Entries = make([]models.ShelfReportEntry, len(books))
	for i, b := range books {
		report.Entries[i] = NewEntry(b, grid[i])
	}
	report.FinishedAt = time.Now().UTC()

	if completed < total {
		logger.Warn("run deadline reached", "finished", completed, "total", total)
	}
	logger.Info("shelf checked", "books", len(books), "lookups", completed, "elapsed", report.FinishedAt.Sub(report.StartedAt))
	e.sendProgress(progress, resolveDoneUpdate(completed, total, report))
	return report, nil
}

// placeholder is the result recorded for a lookup that never reports back.
func placeholder(book models.Book, target models.LibraryTarget) models.AvailabilityResult {
	return models.AvailabilityResult{
		BookID:    book.ID,
		LibraryID: target.ID,
		Status:    models.StatusUnknown,
		Err:       fmt.Errorf("%w: %s did not finish before the run deadline", shared.ErrTimeout, target.ID),
	}
}

func validateRun(books []models.Book, targets []models.LibraryTarget, opts RunOpts) error {
	if len(targets) == 0 {
		return fmt.Errorf("%w: no library targets", shared.ErrInvalidInput)
	}
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if t.ID == "" {
			return fmt.Errorf("%w: target without id", shared.ErrInvalidInput)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate target id %q", shared.ErrInvalidInput, t.ID)
		}
		seen[t.ID] = true
	}
	for _, b := range books {
		if err := b.Validate(); err != nil {
			return err
		}
	}
	if opts.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", shared.ErrInvalidInput, opts.Concurrency)
	}
	if opts.Timeout < 0 {
		return fmt.Errorf("%w: negative run timeout %s", shared.ErrInvalidInput, opts.Timeout)
	}
	return nil
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
