package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/libbyreads/internal/isbn"
	"github.com/desertthunder/libbyreads/internal/shared"
)

// Book is one entry of a reader's shelf.
//
// NormalizedKey is derived once by [NewBook] and never recomputed, so every
// component compares against the same key.
type Book struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author,omitempty"`
	ISBN          string    `json:"isbn,omitempty"`
	NormalizedKey string    `json:"normalized_key"`
	CoverURL      string    `json:"cover_url,omitempty"`
	DateAdded     time.Time `json:"date_added"`
}

// NewBook builds a Book, canonicalising the ISBN and deriving NormalizedKey.
//
// An empty id is replaced with a generated one. The returned book may still have
// an empty key when the title has no letters or digits; see [Book.Validate].
func NewBook(id, title, author, rawISBN string) Book {
	if id == "" {
		id = shared.GenerateID()
	}
	return Book{
		ID:            id,
		Title:         strings.TrimSpace(title),
		Author:        strings.TrimSpace(author),
		ISBN:          isbn.Normalize(rawISBN),
		NormalizedKey: shared.NormalizeKey(title, author),
	}
}

// Validate reports whether the book can be scheduled for a lookup.
func (b Book) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("%w: book has no id", shared.ErrInvalidInput)
	}
	if b.NormalizedKey == "" {
		return fmt.Errorf("%w: book %q has an empty normalized key", shared.ErrInvalidInput, b.Title)
	}
	return nil
}

// Query returns the free text search string for the book.
func (b Book) Query() string {
	if b.Author == "" {
		return b.Title
	}
	return b.Title + " " + b.Author
}

// RateLimit is a token bucket allowance: Requests per Interval.
type RateLimit struct {
	Requests int           `json:"requests"`
	Interval time.Duration `json:"interval"`
}

// LibraryTarget identifies one lending system to query. Targets are immutable for a run.
type LibraryTarget struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Family       string        `json:"family"`
	Key          string        `json:"key,omitempty"`
	BaseEndpoint string        `json:"base_endpoint"`
	RateLimit    RateLimit     `json:"rate_limit"`
	Timeout      time.Duration `json:"timeout"`

	TokenURL     string   `json:"-"`
	ClientID     string   `json:"-"`
	ClientSecret string   `json:"-"`
	Scopes       []string `json:"-"`
}

// NewLibraryTarget converts a config entry into a target.
func NewLibraryTarget(c shared.TargetConfig) LibraryTarget {
	key := c.Key
	if key == "" {
		key = c.ID
	}
	name := c.Name
	if name == "" {
		name = c.ID
	}
	return LibraryTarget{
		ID:           c.ID,
		Name:         name,
		Family:       strings.ToLower(c.Family),
		Key:          key,
		BaseEndpoint: strings.TrimRight(c.BaseURL, "/"),
		RateLimit:    RateLimit{Requests: c.RateLimit, Interval: c.RateInterval},
		Timeout:      c.Timeout,
		TokenURL:     c.TokenURL,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret(),
		Scopes:       c.Scopes,
	}
}

// TargetsFromConfig converts every configured target, preserving order.
func TargetsFromConfig(cfg *shared.Config) []LibraryTarget {
	out := make([]LibraryTarget, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		out = append(out, NewLibraryTarget(t))
	}
	return out
}

// CatalogCandidate is a single catalog entry returned by a search.
type CatalogCandidate struct {
	ID              string   `json:"id,omitempty"`
	Format          Format   `json:"format"`
	Title           string   `json:"title"`
	Author          string   `json:"author,omitempty"`
	ISBNs           []string `json:"isbns,omitempty"`
	AvailabilityRaw string   `json:"availability"`
	HoldCount       *int     `json:"hold_count,omitempty"`
}

// AvailabilityResult is the outcome of resolving one book at one library.
//
// Err is set only when Status is [StatusUnknown] because the lookup failed; a
// clean "no match" leaves Err nil and sets MatchReason to [ReasonNoMatch].
type AvailabilityResult struct {
	BookID         string            `json:"book_id"`
	LibraryID      string            `json:"library_id"`
	Status         Status            `json:"status"`
	MatchedFormats map[Format]Status `json:"matched_formats,omitempty"`
	HoldPosition   *int              `json:"hold_position,omitempty"`
	MatchReason    MatchReason       `json:"match_reason,omitempty"`
	Score          float64           `json:"score,omitempty"`
	Attempts       int               `json:"attempts"`
	Err            error             `json:"-"`
}

type availabilityResultJSON struct {
	BookID         string            `json:"book_id"`
	LibraryID      string            `json:"library_id"`
	Status         Status            `json:"status"`
	MatchedFormats map[Format]Status `json:"matched_formats,omitempty"`
	HoldPosition   *int              `json:"hold_position,omitempty"`
	MatchReason    MatchReason       `json:"match_reason,omitempty"`
	Score          float64           `json:"score,omitempty"`
	Attempts       int               `json:"attempts"`
	Error          string            `json:"error,omitempty"`
	ErrorKind      string            `json:"error_kind,omitempty"`
}

// MarshalJSON includes the error message and its kind.
func (r AvailabilityResult) MarshalJSON() ([]byte, error) {
	v := availabilityResultJSON{
		BookID:         r.BookID,
		LibraryID:      r.LibraryID,
		Status:         r.Status,
		MatchedFormats: r.MatchedFormats,
		HoldPosition:   r.HoldPosition,
		MatchReason:    r.MatchReason,
		Score:          r.Score,
		Attempts:       r.Attempts,
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
		v.ErrorKind = shared.ErrorKind(r.Err)
	}
	return shared.JSON.Marshal(v)
}

// UnmarshalJSON restores Err from the error kind so [errors.Is] keeps working.
func (r *AvailabilityResult) UnmarshalJSON(b []byte) error {
	var v availabilityResultJSON
	if err := shared.JSON.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = AvailabilityResult{
		BookID:         v.BookID,
		LibraryID:      v.LibraryID,
		Status:         v.Status,
		MatchedFormats: v.MatchedFormats,
		HoldPosition:   v.HoldPosition,
		MatchReason:    v.MatchReason,
		Score:          v.Score,
		Attempts:       v.Attempts,
		Err:            shared.ErrorFromKind(v.ErrorKind, v.Error),
	}
	return nil
}

// Failed reports whether the lookup could not be completed.
func (r AvailabilityResult) Failed() bool {
	return r.Err != nil
}

// ShelfReportEntry aggregates every library's result for one book.
//
// PerLibraryResults holds exactly one result per target, in target input order.
type ShelfReportEntry struct {
	Book              Book                 `json:"book"`
	PerLibraryResults []AvailabilityResult `json:"results"`
	OverallStatus     Status               `json:"overall_status"`
	AvailableAt       []string             `json:"available_at"`
	HoldableAt        []string             `json:"holdable_at"`
}

// Result returns the entry's result for the given library.
func (e ShelfReportEntry) Result(libraryID string) (AvailabilityResult, bool) {
	for _, r := range e.PerLibraryResults {
		if r.LibraryID == libraryID {
			return r, true
		}
	}
	return AvailabilityResult{}, false
}

// ShelfReport is the output of one run. Entries follow book input order.
type ShelfReport struct {
	RunID      string             `json:"run_id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Targets    []LibraryTarget    `json:"targets"`
	Entries    []ShelfReportEntry `json:"entries"`
}

// Summary counts entries per overall status.
func (r *ShelfReport) Summary() map[Status]int {
	out := make(map[Status]int, 4)
	for _, e := range r.Entries {
		out[e.OverallStatus]++
	}
	return out
}

// TargetName returns the display name of a target in this report, falling back to the id.
func (r *ShelfReport) TargetName(id string) string {
	for _, t := range r.Targets {
		if t.ID == id {
			return t.Name
		}
	}
	return id
}
