package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/libbyreads/internal/importer"
	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
)

type shelfView struct {
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	SourceRef string    `json:"source_ref,omitempty"`
	Books     int       `json:"book_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newShelfView(s *models.PersistedShelf) shelfView {
	return shelfView{
		Name:      s.Name(),
		Source:    s.Source(),
		SourceRef: s.SourceRef(),
		Books:     s.BookCount(),
		UpdatedAt: s.UpdatedAt(),
	}
}

// ImportGoodreads scrapes a public Goodreads shelf and caches it.
func (r *Runner) ImportGoodreads(ctx context.Context, cmd *cli.Command) error {
	user := cmd.String("user")
	if user == "" {
		user = r.config.Goodreads.UserID
	}
	if user == "" {
		return fmt.Errorf("%w: --user or goodreads.user_id", shared.ErrMissingArgument)
	}

	opts := importer.GoodreadsOpts{
		HTTPClient: r.httpClient,
		BaseURL:    r.config.Goodreads.BaseURL,
		Shelf:      cmd.String("shelf"),
		MaxPages:   r.config.Goodreads.MaxPages,
		Logger:     shared.WithLogger(r.logger, "importer", "goodreads"),
	}
	if opts.Shelf == "" {
		opts.Shelf = r.config.Goodreads.Shelf
	}
	if n := int(cmd.Int("max-pages")); n >= 0 {
		opts.MaxPages = n
	}
	imp := importer.NewGoodreadsImporter(opts)

	r.logger.Info("importing goodreads shelf", "user", user, "shelf", imp.Shelf())
	books, err := imp.Import(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to import shelf: %w", err)
	}

	return r.storeShelf(shelfName(cmd, imp.Shelf()), imp.Source(), user, books)
}

// ImportCSV reads a Goodreads library export and caches the selected shelf.
func (r *Runner) ImportCSV(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("%w: csv path", shared.ErrMissingArgument)
	}

	shelf := cmd.String("shelf")
	imp := importer.NewCSVImporter(shelf)

	r.logger.Info("importing goodreads export", "path", path, "shelf", shelf)
	books, err := imp.Import(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to import export: %w", err)
	}

	name := shelf
	if name == "" {
		name = "library"
	}
	return r.storeShelf(shelfName(cmd, name), imp.Source(), path, books)
}

func shelfName(cmd *cli.Command, fallback string) string {
	if n := cmd.String("name"); n != "" {
		return n
	}
	return fallback
}

func (r *Runner) storeShelf(name, source, ref string, books []models.Book) error {
	if len(books) == 0 {
		return fmt.Errorf("%w: nothing to cache for %q", shared.ErrEmptyShelf, name)
	}

	cache, err := r.cache()
	if err != nil {
		return err
	}

	shelf, err := cache.Store(name, source, ref, books)
	if err != nil {
		return fmt.Errorf("failed to cache shelf: %w", err)
	}

	r.logger.Info("shelf cached", "name", shelf.Name(), "books", shelf.BookCount())
	r.writePlain("✓ Cached %d books as '%s'\n", shelf.BookCount(), shelf.Name())
	return nil
}

// ListShelves prints every cached shelf.
func (r *Runner) ListShelves(ctx context.Context, cmd *cli.Command) error {
	cache, err := r.cache()
	if err != nil {
		return err
	}

	shelves, err := cache.List()
	if err != nil {
		return fmt.Errorf("failed to list shelves: %w", err)
	}

	if cmd.Bool("json") {
		views := make([]shelfView, len(shelves))
		for i, s := range shelves {
			views[i] = newShelfView(s)
		}
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(shelves) == 0 {
		r.writePlain("No cached shelves. Import one with 'libbyreads shelf import'.\n")
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Cached shelves (%d)", len(shelves)))
	for _, s := range shelves {
		r.writePlain("%-20s %4d books  %-14s %s\n", s.Name(), s.BookCount(), s.Source(), s.UpdatedAt().Format(time.DateOnly))
	}
	return nil
}

// ShowShelf prints the books of one cached shelf.
func (r *Runner) ShowShelf(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("%w: shelf name", shared.ErrMissingArgument)
	}

	cache, err := r.cache()
	if err != nil {
		return err
	}

	shelf, books, err := cache.Load(name)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			shelfView
			Items []models.Book `json:"books"`
		}{newShelfView(shelf), books}, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s (%d books)", shelf.Name(), len(books)))
	for i, b := range books {
		r.writePlain("%3d. %s", i+1, b.Title)
		if b.Author != "" {
			r.writePlain(" by %s", b.Author)
		}
		if b.ISBN != "" {
			r.writePlain(" [%s]", b.ISBN)
		}
		r.writePlain("\n")
	}
	return nil
}

// DeleteShelf removes a cached shelf and its books.
func (r *Runner) DeleteShelf(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("%w: shelf name", shared.ErrMissingArgument)
	}

	cache, err := r.cache()
	if err != nil {
		return err
	}
	if err := cache.Remove(name); err != nil {
		return err
	}

	r.logger.Info("shelf removed", "name", name)
	r.writePlain("✓ Removed '%s'\n", name)
	return nil
}

// ListTargets prints the configured library targets.
func (r *Runner) ListTargets(ctx context.Context, cmd *cli.Command) error {
	targets, err := r.targets(nil)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(targets, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Library targets (%d)", len(targets)))
	for _, t := range targets {
		r.writePlain("%-14s %-12s %s\n", t.ID, t.Family, t.Name)
	}
	return nil
}
