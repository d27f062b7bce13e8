package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
)

// LibbyCatalog searches an OverDrive library through the public thunder API that backs Libby.
//
//	GET {base}/v2/libraries/{key}/media?query=...&perPage=N
type LibbyCatalog struct {
	target models.LibraryTarget
	opts   Options
}

// NewLibbyCatalog creates a catalog for the library identified by target.Key.
func NewLibbyCatalog(target models.LibraryTarget, opts Options) *LibbyCatalog {
	return &LibbyCatalog{target: target, opts: opts.withDefaults()}
}

// LibbyMediaResponse is the thunder media search payload.
type LibbyMediaResponse struct {
	Items      *[]LibbyMedia `json:"items"`
	TotalItems int           `json:"totalItems"`
}

// LibbyMedia is one title in a library's collection.
type LibbyMedia struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Subtitle         string        `json:"subtitle"`
	FirstCreatorName string        `json:"firstCreatorName"`
	Type             LibbyType     `json:"type"`
	IsOwned          bool          `json:"isOwned"`
	IsAvailable      bool          `json:"isAvailable"`
	IsHoldable       bool          `json:"isHoldable"`
	AvailabilityType string        `json:"availabilityType"`
	HoldsCount       *int          `json:"holdsCount"`
	Formats          []LibbyFormat `json:"formats"`
}

// LibbyType is the media type ("ebook", "audiobook", "magazine").
type LibbyType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LibbyFormat is a concrete delivery format of a title.
type LibbyFormat struct {
	ID          string            `json:"id"`
	Identifiers []LibbyIdentifier `json:"identifiers"`
}

// LibbyIdentifier is a typed identifier such as an ISBN.
type LibbyIdentifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (c *LibbyCatalog) Name() string { return c.target.ID }

// Search queries by title and author. Libby's keyword search does not index every
// edition's ISBN, so an ISBN is left to the matcher to confirm candidates with.
func (c *LibbyCatalog) Search(ctx context.Context, book models.Book) ([]models.CatalogCandidate, error) {
	if err := checkBook(book); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", book.Query())
	params.Set("perPage", strconv.Itoa(c.opts.PerPage))
	endpoint := fmt.Sprintf("%s/v2/libraries/%s/media?%s", c.target.BaseEndpoint, url.PathEscape(c.target.Key), params.Encode())

	var resp LibbyMediaResponse
	if err := getJSON(ctx, c.client(), endpoint, c.opts.UserAgent, &resp); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return nil, fmt.Errorf("%w: libby response has no items field", shared.ErrParse)
	}

	candidates := make([]models.CatalogCandidate, 0, len(*resp.Items))
	for _, item := range *resp.Items {
		format, ok := models.ParseFormat(item.Type.ID)
		if !ok {
			continue
		}
		candidates = append(candidates, models.CatalogCandidate{
			ID:              item.ID,
			Format:          format,
			Title:           item.Title,
			Author:          item.FirstCreatorName,
			ISBNs:           item.isbns(),
			AvailabilityRaw: item.availability(),
			HoldCount:       item.HoldsCount,
		})
	}

	return candidates, nil
}

func (c *LibbyCatalog) client() *http.Client { return c.opts.HTTPClient }

// availability renders the item's flags in Libby's own vocabulary.
func (m LibbyMedia) availability() string {
	switch {
	case strings.EqualFold(m.AvailabilityType, "always"):
		return "always available"
	case m.IsAvailable:
		return "available"
	case m.IsOwned && m.IsHoldable:
		return "wait list"
	case m.IsOwned:
		return "unavailable"
	default:
		return "not owned"
	}
}

func (m LibbyMedia) isbns() []string {
	var out []string
	seen := map[string]bool{}
	for _, f := range m.Formats {
		for _, id := range f.Identifiers {
			if !strings.EqualFold(id.Type, "ISBN") || seen[id.Value] {
				continue
			}
			seen[id.Value] = true
			out = append(out, id.Value)
		}
	}
	return out
}
