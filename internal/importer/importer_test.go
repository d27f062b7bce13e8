package importer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
	tu "github.com/desertthunder/libbyreads/internal/testing"
)

func shelfServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	page1 := tu.MustReadFile(t, filepath.Join("testdata", "shelf_page1.html"))
	page2 := tu.MustReadFile(t, filepath.Join("testdata", "shelf_page2.html"))

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if r.URL.Path == "/review/list/missing" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Path != "/review/list/12345-reader" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("print") != "true" || q.Get("shelf") != "to-read" || q.Get("sort") != "date_added" || q.Get("order") != "d" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "text/html")
		switch q.Get("page") {
		case "1":
			w.Write([]byte(page1))
		case "2":
			w.Write([]byte(page2))
		default:
			t.Errorf("unexpected page %q", q.Get("page"))
		}
	}))
}

func TestGoodreadsImporter(t *testing.T) {
	t.Run("Import", func(t *testing.T) {
		var hits atomic.Int32
		server := shelfServer(t, &hits)
		defer server.Close()

		g := NewGoodreadsImporter(GoodreadsOpts{BaseURL: server.URL})
		books, err := g.Import(context.Background(), "12345-reader")
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}

		if len(books) != 3 {
			t.Fatalf("expected 3 books, got %d", len(books))
		}
		if hits.Load() != 2 {
			t.Errorf("expected 2 page requests, got %d", hits.Load())
		}

		dune := books[0]
		if dune.Title != "Dune (Dune, #1)" || dune.Author != "Frank Herbert" {
			t.Errorf("unexpected first book: %+v", dune)
		}
		if dune.ISBN != "9780441013593" {
			t.Errorf("expected isbn13 column to win, got %q", dune.ISBN)
		}
		if dune.ID != "goodreads-234225" {
			t.Errorf("expected id from book link, got %q", dune.ID)
		}
		if dune.NormalizedKey != "dune|frank herbert" {
			t.Errorf("unexpected key %q", dune.NormalizedKey)
		}
		if dune.CoverURL != "https://images.example.com/dune.jpg" {
			t.Errorf("unexpected cover %q", dune.CoverURL)
		}
		if !dune.DateAdded.Equal(time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected date added %v", dune.DateAdded)
		}

		earthsea := books[1]
		if earthsea.Author != "Ursula K. Le Guin" || earthsea.ISBN != "" {
			t.Errorf("unexpected second book: %+v", earthsea)
		}
		if earthsea.DateAdded.Day() != 9 {
			t.Errorf("single digit day not parsed: %v", earthsea.DateAdded)
		}

		piranesi := books[2]
		if piranesi.Title != "Piranesi" || piranesi.ISBN != "9781635575637" {
			t.Errorf("expected page 2 book with converted isbn10, got %+v", piranesi)
		}
	})

	t.Run("MaxPages", func(t *testing.T) {
		var hits atomic.Int32
		server := shelfServer(t, &hits)
		defer server.Close()

		g := NewGoodreadsImporter(GoodreadsOpts{BaseURL: server.URL, MaxPages: 1})
		books, err := g.Import(context.Background(), "12345-reader")
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if len(books) != 2 || hits.Load() != 1 {
			t.Errorf("expected only the first page, got %d books over %d requests", len(books), hits.Load())
		}
	})

	t.Run("Unknown User", func(t *testing.T) {
		server := shelfServer(t, nil)
		defer server.Close()

		_, err := NewGoodreadsImporter(GoodreadsOpts{BaseURL: server.URL}).Import(context.Background(), "missing")
		if !errors.Is(err, shared.ErrShelfNotFound) {
			t.Errorf("expected ErrShelfNotFound, got %v", err)
		}
	})

	t.Run("Missing User", func(t *testing.T) {
		_, err := NewGoodreadsImporter(GoodreadsOpts{}).Import(context.Background(), " ")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Server Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := NewGoodreadsImporter(GoodreadsOpts{BaseURL: server.URL}).Import(context.Background(), "12345-reader")
		if !errors.Is(err, shared.ErrNetwork) {
			t.Errorf("expected ErrNetwork, got %v", err)
		}
	})

	t.Run("Transport Error", func(t *testing.T) {
		client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection reset"))}
		_, err := NewGoodreadsImporter(GoodreadsOpts{HTTPClient: client}).Import(context.Background(), "12345-reader")
		if !errors.Is(err, shared.ErrNetwork) {
			t.Errorf("expected ErrNetwork, got %v", err)
		}
	})

	t.Run("Source", func(t *testing.T) {
		var imp Importer = NewGoodreadsImporterFromConfig(shared.DefaultConfig().Goodreads, "", nil)
		if imp.Source() != models.SourceGoodreads {
			t.Errorf("unexpected source %q", imp.Source())
		}
		if g := imp.(*GoodreadsImporter); g.Shelf() != "to-read" {
			t.Errorf("expected configured shelf, got %q", g.Shelf())
		}
	})
}

func TestLastPage(t *testing.T) {
	server := shelfServer(t, nil)
	defer server.Close()

	g := NewGoodreadsImporter(GoodreadsOpts{BaseURL: server.URL})
	_, last, err := g.fetchPage(context.Background(), "12345-reader", 2)
	if err != nil {
		t.Fatalf("fetchPage failed: %v", err)
	}
	if last != 1 {
		t.Errorf("page 2 only links back to page 1, got last page %d", last)
	}
}

func TestCSVImporter(t *testing.T) {
	path := filepath.Join("testdata", "goodreads_export.csv")

	t.Run("Shelf Filter", func(t *testing.T) {
		books, err := NewCSVImporter("to-read").Import(context.Background(), path)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if len(books) != 3 {
			t.Fatalf("expected 3 to-read books, got %d", len(books))
		}

		want := []struct{ title, isbn string }{
			{"Dune (Dune, #1)", "9780441013593"},
			{"A Wizard of Earthsea", ""},
			{"Piranesi", "9781635575637"},
		}
		for i, w := range want {
			if books[i].Title != w.title || books[i].ISBN != w.isbn {
				t.Errorf("book %d: expected %q/%q, got %q/%q", i, w.title, w.isbn, books[i].Title, books[i].ISBN)
			}
		}
		if books[0].ID != "goodreads-234225" {
			t.Errorf("unexpected id %q", books[0].ID)
		}
		if books[0].DateAdded.Month() != time.March {
			t.Errorf("unexpected date %v", books[0].DateAdded)
		}
	})

	t.Run("All Shelves", func(t *testing.T) {
		books, err := NewCSVImporter("").Import(context.Background(), path)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if len(books) != 4 {
			t.Errorf("expected every row, got %d", len(books))
		}
	})

	t.Run("Missing Title Column", func(t *testing.T) {
		_, err := NewCSVImporter("").Read(context.Background(), strings.NewReader("Author,ISBN\nSomeone,123\n"))
		if !errors.Is(err, shared.ErrParse) {
			t.Errorf("expected ErrParse, got %v", err)
		}
	})

	t.Run("Empty File", func(t *testing.T) {
		_, err := NewCSVImporter("").Read(context.Background(), strings.NewReader(""))
		if !errors.Is(err, shared.ErrParse) {
			t.Errorf("expected ErrParse, got %v", err)
		}
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := NewCSVImporter("").Import(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected not exist error, got %v", err)
		}
	})

	t.Run("Byte Order Mark", func(t *testing.T) {
		books, err := NewCSVImporter("").Read(context.Background(), strings.NewReader("\ufeffTitle,Author\nPiranesi,Susanna Clarke\n"))
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if len(books) != 1 || books[0].Author != "Susanna Clarke" {
			t.Errorf("unexpected books %+v", books)
		}
	})
}

func TestFlipAuthor(t *testing.T) {
	tests := map[string]string{
		"Herbert, Frank":       "Frank Herbert",
		"Le Guin, Ursula K.":   "Ursula K. Le Guin",
		"Frank Herbert":        "Frank Herbert",
		"A, B, C":              "A, B, C",
		"Plato,":               "Plato,",
		"  Clarke,   Susanna ": "Susanna Clarke",
	}
	for in, want := range tests {
		if got := flipAuthor(in); got != want {
			t.Errorf("flipAuthor(%q) = %q, want %q", in, got, want)
		}
	}
}
