// package importer reads a reader's shelf from Goodreads into books
//
// Two sources are supported: the public "print" view of a Goodreads shelf, scraped page by
// page, and the CSV library export Goodreads offers under My Books > Import and export.
package importer

import (
	"context"
	"strings"

	"github.com/desertthunder/libbyreads/internal/models"
)

// Importer loads the books of one shelf.
//
// source identifies the shelf within the importer's system: a Goodreads user id for
// [GoodreadsImporter], a file path for [CSVImporter]. Books come back in shelf order.
type Importer interface {
	Import(ctx context.Context, source string) ([]models.Book, error)

	// Source returns the models.Source* constant recorded on cached shelves.
	Source() string
}

// flipAuthor turns "Le Guin, Ursula K." into "Ursula K. Le Guin". Names with no comma, or
// more than one, are returned unchanged.
func flipAuthor(s string) string {
	s = collapseSpace(s)
	if strings.Count(s, ",") != 1 {
		return s
	}
	last, first, _ := strings.Cut(s, ",")
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	if first == "" || last == "" {
		return s
	}
	return first + " " + last
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// bookID prefixes a Goodreads book id so ids from different sources cannot collide.
func bookID(goodreadsID string) string {
	if goodreadsID == "" {
		return ""
	}
	return "goodreads-" + goodreadsID
}
