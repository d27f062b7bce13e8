package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/libbyreads/internal/formatter"
	"github.com/desertthunder/libbyreads/internal/importer"
	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
	"github.com/desertthunder/libbyreads/internal/tasks"
)

// Check resolves a cached shelf, a Goodreads export, or a single book against the
// configured libraries and writes the report.
func (r *Runner) Check(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	targets, err := r.targets(cmd.StringSlice("target"))
	if err != nil {
		return err
	}

	opts := tasks.RunOptsFromConfig(r.config.Engine)
	if cmd.IsSet("timeout") {
		opts.Timeout = cmd.Duration("timeout")
	}
	if n := int(cmd.Int("concurrency")); n > 0 {
		opts.Concurrency = n
	}

	label, books, err := r.checkBooks(ctx, cmd)
	if err != nil {
		return err
	}

	engine, err := r.engine()
	if err != nil {
		return err
	}

	r.logger.Info("checking availability", "books", label, "count", len(books), "targets", len(targets))

	progress := make(chan tasks.ProgressUpdate, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.logProgress(progress)
	}()

	report, err := engine.ResolveShelf(ctx, books, targets, opts, progress)
	close(progress)
	wg.Wait()
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	if ctx.Err() != nil {
		r.logger.Warn("check interrupted, report is partial", "run", report.RunID)
	}

	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteFile(report, path, format)
		if err != nil {
			return err
		}
		r.logger.Info("report written", "path", written, "format", format)
		r.writePlain("✓ Report written to %s\n", written)
		return nil
	}

	styled := cmd.Bool("color") || isTerminal(r.output)
	return formatter.Write(r.output, report, format, styled)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// checkBooks picks the books to check from exactly one of --shelf, --csv or --title/--isbn.
func (r *Runner) checkBooks(ctx context.Context, cmd *cli.Command) (string, []models.Book, error) {
	shelf, csvPath := cmd.String("shelf"), cmd.String("csv")
	title, author, isbn := cmd.String("title"), cmd.String("author"), cmd.String("isbn")
	single := title != ""
	if !single && (author != "" || isbn != "") {
		return "", nil, fmt.Errorf("%w: --title is required with --author or --isbn", shared.ErrMissingArgument)
	}

	sources := 0
	for _, set := range []bool{shelf != "", csvPath != "", single} {
		if set {
			sources++
		}
	}
	switch {
	case sources == 0:
		return "", nil, fmt.Errorf("%w: one of --shelf, --csv or --title", shared.ErrMissingArgument)
	case sources > 1:
		return "", nil, fmt.Errorf("%w: --shelf, --csv and --title are mutually exclusive", shared.ErrInvalidFlag)
	}

	switch {
	case shelf != "":
		cache, err := r.cache()
		if err != nil {
			return "", nil, err
		}
		_, books, err := cache.Load(shelf)
		if err != nil {
			return "", nil, err
		}
		if len(books) == 0 {
			return "", nil, fmt.Errorf("%w: %s", shared.ErrEmptyShelf, shelf)
		}
		return shelf, books, nil

	case csvPath != "":
		books, err := importer.NewCSVImporter("to-read").Import(ctx, csvPath)
		if err != nil {
			return "", nil, err
		}
		if len(books) == 0 {
			return "", nil, fmt.Errorf("%w: %s", shared.ErrEmptyShelf, csvPath)
		}
		return csvPath, books, nil

	default:
		book := models.NewBook("", title, author, isbn)
		return book.Title, []models.Book{book}, nil
	}
}

func (r *Runner) logProgress(progress <-chan tasks.ProgressUpdate) {
	for u := range progress {
		switch u.Phase {
		case tasks.ResolveStart, tasks.ResolveDone:
			r.logger.Info(u.Message)
		case tasks.ResolveBook:
			r.logger.Infof("[%d/%d] %s", u.Step, u.Total, u.Message)
		default:
			r.logger.Debug(u.Message, "step", u.Step, "total", u.Total)
		}
	}
}
