package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
)

// ProxyCatalog talks to a self-hosted catalog proxy that fronts a library system without a public API.
//
//	GET {base}/search?q=...&isbn=...&limit=N
//	{"results":[{"id","format","title","author","isbns","availability","hold_count"}]}
//
// When the target has a token URL, requests carry an OAuth2 client-credentials token.
type ProxyCatalog struct {
	target models.LibraryTarget
	opts   Options
	client *http.Client
}

// ProxySearchResponse is the proxy's search payload.
type ProxySearchResponse struct {
	Results *[]ProxyResult `json:"results"`
}

// ProxyResult is one proxy search hit.
type ProxyResult struct {
	ID           string   `json:"id"`
	Format       string   `json:"format"`
	Title        string   `json:"title"`
	Author       string   `json:"author"`
	ISBNs        []string `json:"isbns"`
	Availability string   `json:"availability"`
	HoldCount    *int     `json:"hold_count"`
}

// NewProxyCatalog creates a proxy catalog, wrapping the HTTP client with a token source when credentials are configured.
func NewProxyCatalog(target models.LibraryTarget, opts Options) *ProxyCatalog {
	opts = opts.withDefaults()
	client := opts.HTTPClient

	if target.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     target.ClientID,
			ClientSecret: target.ClientSecret,
			TokenURL:     target.TokenURL,
			Scopes:       target.Scopes,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, opts.HTTPClient)
		client = cc.Client(ctx)
		client.Timeout = opts.HTTPClient.Timeout
	}

	return &ProxyCatalog{target: target, opts: opts, client: client}
}

func (c *ProxyCatalog) Name() string { return c.target.ID }

// Search sends the raw title/author query, plus the ISBN when known.
func (c *ProxyCatalog) Search(ctx context.Context, book models.Book) ([]models.CatalogCandidate, error) {
	if err := checkBook(book); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", book.Query())
	if book.ISBN != "" {
		params.Set("isbn", book.ISBN)
	}
	params.Set("limit", strconv.Itoa(c.opts.PerPage))

	var resp ProxySearchResponse
	if err := getJSON(ctx, c.client, c.target.BaseEndpoint+"/search?"+params.Encode(), c.opts.UserAgent, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return nil, fmt.Errorf("%w: proxy response has no results field", shared.ErrParse)
	}

	candidates := make([]models.CatalogCandidate, 0, len(*resp.Results))
	for _, r := range *resp.Results {
		format, ok := models.ParseFormat(r.Format)
		if !ok {
			continue
		}
		candidates = append(candidates, models.CatalogCandidate{
			ID:              r.ID,
			Format:          format,
			Title:           r.Title,
			Author:          r.Author,
			ISBNs:           r.ISBNs,
			AvailabilityRaw: r.Availability,
			HoldCount:       r.HoldCount,
		})
	}

	return candidates, nil
}
