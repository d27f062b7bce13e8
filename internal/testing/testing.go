// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/libbyreads/internal/models"
)

// MockCatalog is a test double for [services.Catalog].
//
// Errs are returned in order by the first len(Errs) calls; later calls answer from Candidates,
// keyed by the book's ISBN or, failing that, its normalized key. SearchFunc overrides both.
type MockCatalog struct {
	ID         string
	Candidates map[string][]models.CatalogCandidate
	Errs       []error
	SearchFunc func(ctx context.Context, book models.Book) ([]models.CatalogCandidate, error)

	mu    sync.Mutex
	calls int
}

// NewMockCatalog returns a catalog that answers key with candidates.
func NewMockCatalog(id string, key string, candidates ...models.CatalogCandidate) *MockCatalog {
	return &MockCatalog{ID: id, Candidates: map[string][]models.CatalogCandidate{key: candidates}}
}

// NewHangingCatalog returns a catalog whose searches ignore cancellation and block until release is closed.
func NewHangingCatalog(id string, release <-chan struct{}) *MockCatalog {
	return &MockCatalog{
		ID: id,
		SearchFunc: func(context.Context, models.Book) ([]models.CatalogCandidate, error) {
			<-release
			return nil, nil
		},
	}
}

func (m *MockCatalog) Search(ctx context.Context, book models.Book) ([]models.CatalogCandidate, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	fn := m.SearchFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, book)
	}
	if n <= len(m.Errs) && m.Errs[n-1] != nil {
		return nil, m.Errs[n-1]
	}
	if c, ok := m.Candidates[book.ISBN]; ok && book.ISBN != "" {
		return c, nil
	}
	return m.Candidates[book.NormalizedKey], nil
}

func (m *MockCatalog) Name() string { return m.ID }

// Calls returns how many searches were issued.
func (m *MockCatalog) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
