package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/repositories"
	"github.com/desertthunder/libbyreads/internal/services"
	"github.com/desertthunder/libbyreads/internal/shared"
	"github.com/desertthunder/libbyreads/internal/tasks"
)

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

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database and the engine are opened on first use so that commands which need
// neither (setup config, targets list) work without them.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	checker    Checker
	db         *sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Checker    Checker
	DB         *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		checker:    opts.Checker,
		db:         opts.DB,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, shelfCommand, targetsCommand, checkCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger swaps the logger used by the runner and anything it builds afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the database handle, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// cache opens the configured database and runs pending migrations on first use.
func (r *Runner) cache() (*repositories.ShelfCache, error) {
	if r.db == nil {
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		r.db = db
	}
	return repositories.NewShelfCache(r.db), nil
}

// engine returns the injected checker or builds one from the config.
func (r *Runner) engine() (Checker, error) {
	if r.checker != nil {
		return r.checker, nil
	}
	e, err := tasks.NewEngineFromConfig(r.config, services.Options{HTTPClient: r.httpClient}, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}
	r.checker = e
	return e, nil
}

// targets returns the configured targets, narrowed to ids when any are given.
func (r *Runner) targets(ids []string) ([]models.LibraryTarget, error) {
	all := models.TargetsFromConfig(r.config)
	if len(ids) == 0 {
		return all, nil
	}

	out := make([]models.LibraryTarget, 0, len(ids))
	for _, id := range ids {
		found := false
		for _, t := range all {
			if t.ID == id {
				out = append(out, t)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: unknown target %q", shared.ErrInvalidFlag, id)
		}
	}
	return out, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = shared.JSON.MarshalIndent(data, "", "  ")
	} else {
		output, err = shared.JSON.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
