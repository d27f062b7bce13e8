// package server contains middleware & handlers for the availability web service
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
	"github.com/desertthunder/libbyreads/internal/tasks"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is a group of endpoints that registers its own routes.
type Handler interface {
	Register(r chi.Router)
}

// Checker resolves books against library targets. [tasks.Engine] is the production implementation.
type Checker interface {
	ResolveShelf(
		ctx context.Context,
		books []models.Book,
		targets []models.LibraryTarget,
		opts tasks.RunOpts,
		progress chan<- tasks.ProgressUpdate,
	) (*models.ShelfReport, error)
}

// Opts configures a [Server].
type Opts struct {
	Host    string
	Port    int
	Checker Checker
	Targets []models.LibraryTarget
	Run     tasks.RunOpts
	Logger  *log.Logger
	// MaxBooks caps a single check request. Defaults to [DefaultMaxBooks].
	MaxBooks int
}

// DefaultMaxBooks is the largest shelf accepted by POST /api/check.
const DefaultMaxBooks = 500

const shutdownTimeout = 5 * time.Second

// Server serves the availability API.
type Server struct {
	addr   string
	router chi.Router
	logger *log.Logger
}

// New builds a server and its router.
func New(opts Opts) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.MaxBooks <= 0 {
		opts.MaxBooks = DefaultMaxBooks
	}

	logger := shared.WithLogger(opts.Logger, "component", "server")
	router := NewRouter(logger,
		&healthHandler{},
		&targetsHandler{targets: opts.Targets},
		&checkHandler{checker: opts.Checker, targets: opts.Targets, run: opts.Run, maxBooks: opts.MaxBooks, logger: logger},
	)

	return &Server{
		addr:   net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		router: router,
		logger: logger,
	}
}

// Addr is the listen address.
func (s *Server) Addr() string { return s.addr }

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
