package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
)

// Columns of the Goodreads library export.
const (
	colBookID      = "Book Id"
	colTitle       = "Title"
	colAuthor      = "Author"
	colISBN        = "ISBN"
	colISBN13      = "ISBN13"
	colShelf       = "Exclusive Shelf"
	colBookshelves = "Bookshelves"
	colDateAdded   = "Date Added"
)

const exportDateLayout = "2006/01/02"

// CSVImporter reads a Goodreads library export, keeping the rows of one shelf.
type CSVImporter struct {
	shelf string
}

// NewCSVImporter creates an importer for shelf. An empty shelf keeps every row.
func NewCSVImporter(shelf string) *CSVImporter {
	return &CSVImporter{shelf: shelf}
}

func (c *CSVImporter) Source() string { return models.SourceGoodreadsCSV }

// Import reads the export at path.
func (c *CSVImporter) Import(ctx context.Context, path string) ([]models.Book, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: csv path", shared.ErrMissingArgument)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return c.Read(ctx, f)
}

// Read parses an export from r. Rows are returned in file order.
func (c *CSVImporter) Read(ctx context.Context, r io.Reader) ([]models.Book, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty csv", shared.ErrParse)
		}
		return nil, fmt.Errorf("%w: csv header: %v", shared.ErrParse, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := index[colTitle]; !ok {
		return nil, fmt.Errorf("%w: csv has no %q column", shared.ErrParse, colTitle)
	}

	field := func(rec []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var books []models.Book
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: csv line %d: %v", shared.ErrParse, line, err)
		}

		if !c.onShelf(field(rec, colShelf), field(rec, colBookshelves)) {
			continue
		}
		title := field(rec, colTitle)
		if title == "" {
			continue
		}

		rawISBN := field(rec, colISBN13)
		if strings.Trim(rawISBN, `="`) == "" {
			rawISBN = field(rec, colISBN)
		}

		book := models.NewBook(bookID(field(rec, colBookID)), title, flipAuthor(field(rec, colAuthor)), rawISBN)
		if added, err := time.Parse(exportDateLayout, field(rec, colDateAdded)); err == nil {
			book.DateAdded = added
		}
		books = append(books, book)
	}
	return books, nil
}

func (c *CSVImporter) onShelf(exclusive, bookshelves string) bool {
	if c.shelf == "" || exclusive == c.shelf {
		return true
	}
	shelves := strings.Split(bookshelves, ",")
	for i := range shelves {
		shelves[i] = strings.TrimSpace(shelves[i])
	}
	return slices.Contains(shelves, c.shelf)
}
