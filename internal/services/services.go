// package services defines the Catalog interface for library lending systems
//
// Libby (OverDrive), Open Library, and a generic JSON catalog proxy
package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
)

// Catalog families
const (
	FamilyLibby       = "libby"
	FamilyOpenLibrary = "openlibrary"
	FamilyProxy       = "proxy"
)

// Families lists every supported catalog family.
var Families = []string{FamilyLibby, FamilyOpenLibrary, FamilyProxy}

const defaultUserAgent = "libbyreads/1.0 (+https://github.com/desertthunder/libbyreads)"

// Catalog searches one library system for a book.
type Catalog interface {
	// Search issues exactly one request and returns the raw candidates.
	// Failures wrap [shared.ErrNetwork], [shared.ErrParse] or [shared.ErrRateLimited]; Search never retries.
	Search(ctx context.Context, book models.Book) ([]models.CatalogCandidate, error)

	// Name returns the target id this catalog serves.
	Name() string
}

// Options configures the HTTP side of a [Catalog].
type Options struct {
	HTTPClient *http.Client
	UserAgent  string
	PerPage    int // maximum candidates requested per search
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.PerPage <= 0 {
		o.PerPage = 10
	}
	return o
}

// NewCatalog returns the catalog implementation for target.Family.
func NewCatalog(target models.LibraryTarget, opts Options) (Catalog, error) {
	opts = opts.withDefaults()

	switch strings.ToLower(target.Family) {
	case FamilyLibby, "overdrive":
		return NewLibbyCatalog(target, opts), nil
	case FamilyOpenLibrary:
		return NewOpenLibraryCatalog(target, opts), nil
	case FamilyProxy:
		return NewProxyCatalog(target, opts), nil
	}
	return nil, fmt.Errorf("%w: %q (target %s)", shared.ErrUnknownFamily, target.Family, target.ID)
}

// NewCatalogs builds one catalog per target, keyed by target id.
func NewCatalogs(targets []models.LibraryTarget, opts Options) (map[string]Catalog, error) {
	out := make(map[string]Catalog, len(targets))
	for _, t := range targets {
		c, err := NewCatalog(t, opts)
		if err != nil {
			return nil, err
		}
		out[t.ID] = c
	}
	return out, nil
}

func checkBook(book models.Book) error {
	if book.NormalizedKey == "" {
		return fmt.Errorf("%w: book %q has an empty normalized key", shared.ErrInvalidInput, book.Title)
	}
	return nil
}
