package importer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
)

const (
	defaultGoodreadsURL = "https://www.goodreads.com"
	defaultShelf        = "to-read"
	pageFetchLimit      = 4
	dateAddedLayout     = "Jan 2, 2006"
)

var bookHref = regexp.MustCompile(`/book/show/(\d+)`)

// GoodreadsOpts configures a [GoodreadsImporter].
type GoodreadsOpts struct {
	HTTPClient *http.Client
	BaseURL    string
	Shelf      string
	MaxPages   int // 0 fetches every page
	UserAgent  string
	Logger     *log.Logger
}

// GoodreadsImporter scrapes the print view of a public Goodreads shelf.
type GoodreadsImporter struct {
	client    *http.Client
	baseURL   string
	shelf     string
	maxPages  int
	userAgent string
	logger    *log.Logger
}

// NewGoodreadsImporter creates an importer, filling unset options with defaults.
func NewGoodreadsImporter(opts GoodreadsOpts) *GoodreadsImporter {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultGoodreadsURL
	}
	if opts.Shelf == "" {
		opts.Shelf = defaultShelf
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "libbyreads/1.0"
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &GoodreadsImporter{
		client:    opts.HTTPClient,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		shelf:     opts.Shelf,
		maxPages:  opts.MaxPages,
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
	}
}

// NewGoodreadsImporterFromConfig reads the [goodreads] config section. shelf overrides the configured shelf when set.
func NewGoodreadsImporterFromConfig(cfg shared.GoodreadsConfig, shelf string, logger *log.Logger) *GoodreadsImporter {
	if shelf == "" {
		shelf = cfg.Shelf
	}
	return NewGoodreadsImporter(GoodreadsOpts{
		BaseURL:  cfg.BaseURL,
		Shelf:    shelf,
		MaxPages: cfg.MaxPages,
		Logger:   logger,
	})
}

func (g *GoodreadsImporter) Source() string { return models.SourceGoodreads }

// Shelf returns the Goodreads shelf this importer reads.
func (g *GoodreadsImporter) Shelf() string { return g.shelf }

// Import fetches every page of userID's shelf, newest additions first.
//
// The first page tells us how many pages exist; the rest are fetched concurrently
// and stitched back together in page order.
func (g *GoodreadsImporter) Import(ctx context.Context, userID string) ([]models.Book, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: goodreads user id", shared.ErrMissingArgument)
	}

	first, last, err := g.fetchPage(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if g.maxPages > 0 && last > g.maxPages {
		g.logger.Info("limiting goodreads pages", "pages", last, "max", g.maxPages)
		last = g.maxPages
	}

	pages := make([][]models.Book, last)
	pages[0] = first

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(pageFetchLimit)
	for page := 2; page <= last; page++ {
		eg.Go(func() error {
			books, _, err := g.fetchPage(egCtx, userID, page)
			if err != nil {
				return err
			}
			pages[page-1] = books
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var books []models.Book
	for _, p := range pages {
		books = append(books, p...)
	}
	g.logger.Info("imported goodreads shelf", "user", userID, "shelf", g.shelf, "pages", last, "books", len(books))
	return books, nil
}

func (g *GoodreadsImporter) pageURL(userID string, page int) string {
	q := url.Values{}
	q.Set("order", "d")
	q.Set("print", "true")
	q.Set("shelf", g.shelf)
	q.Set("sort", "date_added")
	q.Set("page", strconv.Itoa(page))
	return fmt.Sprintf("%s/review/list/%s?%s", g.baseURL, url.PathEscape(userID), q.Encode())
}

func (g *GoodreadsImporter) fetchPage(ctx context.Context, userID string, page int) ([]models.Book, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.pageURL(userID, page), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: goodreads page %d: %v", shared.ErrNetwork, page, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, 0, fmt.Errorf("%w: goodreads user %s", shared.ErrShelfNotFound, userID)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, 0, fmt.Errorf("%w: goodreads page %d", shared.ErrRateLimited, page)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, 0, fmt.Errorf("%w: goodreads page %d: status %d", shared.ErrNetwork, page, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: goodreads page %d: %v", shared.ErrParse, page, err)
	}

	books := parseShelfPage(doc)
	g.logger.Debug("fetched goodreads page", "page", page, "books", len(books))
	return books, lastPage(doc), nil
}

// lastPage reads the highest page number from the #reviewPagination links. A page without
// pagination is the only page.
func lastPage(doc *html.Node) int {
	pagination := find(doc, withID("reviewPagination"))
	if pagination == nil {
		return 1
	}
	last := 1
	for _, a := range findAll(pagination, isElement(atom.A)) {
		if n, err := strconv.Atoi(text(a)); err == nil && n > last {
			last = n
		}
	}
	return last
}

// parseShelfPage extracts the books from the tr.bookalike.review rows of a shelf page.
// Rows without a title are skipped.
func parseShelfPage(doc *html.Node) []models.Book {
	rows := findAll(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Tr && hasClass(n, "bookalike", "review")
	})

	books := make([]models.Book, 0, len(rows))
	for _, row := range rows {
		if b, ok := parseRow(row); ok {
			books = append(books, b)
		}
	}
	return books
}

func parseRow(row *html.Node) (models.Book, bool) {
	cell := func(name string) *html.Node {
		return find(row, func(n *html.Node) bool { return n.DataAtom == atom.Td && hasClass(n, "field", name) })
	}

	titleCell := cell("title")
	if titleCell == nil {
		return models.Book{}, false
	}
	titleLink := find(titleCell, isElement(atom.A))
	title := text(titleLink)
	if title == "" {
		return models.Book{}, false
	}

	var id string
	if titleLink != nil {
		if m := bookHref.FindStringSubmatch(attr(titleLink, "href")); m != nil {
			id = m[1]
		}
	}

	author := ""
	if authorCell := cell("author"); authorCell != nil {
		author = flipAuthor(text(find(authorCell, isElement(atom.A))))
	}

	rawISBN := ""
	for _, name := range []string{"isbn13", "isbn"} {
		if c := cell(name); c != nil {
			if v := fieldValue(c); v != "" {
				rawISBN = v
				break
			}
		}
	}

	book := models.NewBook(bookID(id), title, author, rawISBN)

	if coverCell := cell("cover"); coverCell != nil {
		if img := find(coverCell, isElement(atom.Img)); img != nil {
			book.CoverURL = attr(img, "src")
		}
	}
	if dateCell := cell("date_added"); dateCell != nil {
		if added, err := time.Parse(dateAddedLayout, fieldValue(dateCell)); err == nil {
			book.DateAdded = added
		}
	}
	return book, true
}

// fieldValue reads a cell's div.value, falling back to the whole cell minus its label.
func fieldValue(cell *html.Node) string {
	if v := find(cell, func(n *html.Node) bool { return hasClass(n, "value") }); v != nil {
		return text(v)
	}
	label := text(find(cell, isElement(atom.Label)))
	return strings.TrimSpace(strings.TrimPrefix(text(cell), label))
}
