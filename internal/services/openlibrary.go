package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
)

const openLibraryFields = "key,title,author_name,isbn,ebook_access,has_fulltext"

// OpenLibraryCatalog searches the Open Library lending library.
// Every document is treated as an ebook candidate whose availability is its ebook_access value.
type OpenLibraryCatalog struct {
	target models.LibraryTarget
	opts   Options
}

// OpenLibrarySearchResponse represents the search.json response.
type OpenLibrarySearchResponse struct {
	NumFound int               `json:"numFound"`
	Docs     *[]OpenLibraryDoc `json:"docs"`
}

// OpenLibraryDoc represents a single work in search results.
type OpenLibraryDoc struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	AuthorName  []string `json:"author_name"`
	ISBN        []string `json:"isbn"`
	EbookAccess string   `json:"ebook_access"`
	HasFulltext bool     `json:"has_fulltext"`
}

// NewOpenLibraryCatalog creates an Open Library catalog rooted at target.BaseEndpoint.
func NewOpenLibraryCatalog(target models.LibraryTarget, opts Options) *OpenLibraryCatalog {
	return &OpenLibraryCatalog{target: target, opts: opts.withDefaults()}
}

func (c *OpenLibraryCatalog) Name() string { return c.target.ID }

// Search uses the isbn parameter when possible, otherwise title and author.
func (c *OpenLibraryCatalog) Search(ctx context.Context, book models.Book) ([]models.CatalogCandidate, error) {
	if err := checkBook(book); err != nil {
		return nil, err
	}

	params := url.Values{}
	if book.ISBN != "" {
		params.Set("isbn", book.ISBN)
	} else {
		params.Set("title", book.Title)
		if book.Author != "" {
			params.Set("author", book.Author)
		}
	}
	params.Set("fields", openLibraryFields)
	params.Set("limit", strconv.Itoa(c.opts.PerPage))

	var resp OpenLibrarySearchResponse
	if err := getJSON(ctx, c.opts.HTTPClient, c.target.BaseEndpoint+"/search.json?"+params.Encode(), c.opts.UserAgent, &resp); err != nil {
		return nil, err
	}
	if resp.Docs == nil {
		return nil, fmt.Errorf("%w: open library response has no docs field", shared.ErrParse)
	}

	candidates := make([]models.CatalogCandidate, 0, len(*resp.Docs))
	for _, doc := range *resp.Docs {
		access := doc.EbookAccess
		if access == "" {
			access = "no_ebook"
		}
		candidates = append(candidates, models.CatalogCandidate{
			ID:              doc.Key,
			Format:          models.FormatEbook,
			Title:           doc.Title,
			Author:          strings.Join(doc.AuthorName, ", "),
			ISBNs:           doc.ISBN,
			AvailabilityRaw: access,
		})
	}

	return candidates, nil
}
