// package matcher decides which catalog candidates are the requested book and what their availability means
package matcher

import (
	"fmt"
	"slices"
	"sort"

	"github.com/desertthunder/libbyreads/internal/isbn"
	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
)

// DefaultThreshold is the minimum score a candidate needs to survive.
const DefaultThreshold = 0.85

// Weights of the title and author components when both sides carry an author.
const (
	titleWeight  = 0.75
	authorWeight = 0.25
)

// Config holds the matcher's tunables.
type Config struct {
	Threshold      float64
	FormatPriority []models.Format // earlier formats win ties
}

// DefaultConfig returns the default threshold and ebook > audiobook > print priority.
func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold, FormatPriority: slices.Clone(models.DefaultFormatPriority)}
}

// ConfigFromShared converts the [matcher] config section, rejecting unknown formats.
func ConfigFromShared(c shared.MatcherConfig) (Config, error) {
	cfg := DefaultConfig()
	if c.Threshold > 0 {
		cfg.Threshold = c.Threshold
	}
	if len(c.FormatPriority) > 0 {
		cfg.FormatPriority = cfg.FormatPriority[:0]
		for _, f := range c.FormatPriority {
			format, ok := models.ParseFormat(f)
			if !ok {
				return Config{}, fmt.Errorf("%w: unknown format %q in matcher.format_priority", shared.ErrInvalidConfig, f)
			}
			cfg.FormatPriority = append(cfg.FormatPriority, format)
		}
	}
	return cfg, nil
}

// Matcher scores and filters candidates. It is stateless after construction and safe for concurrent use.
type Matcher struct {
	threshold float64
	rank      map[models.Format]int
}

// New creates a Matcher. A non-positive threshold falls back to [DefaultThreshold].
func New(cfg Config) *Matcher {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if len(cfg.FormatPriority) == 0 {
		cfg.FormatPriority = models.DefaultFormatPriority
	}

	rank := make(map[models.Format]int, len(cfg.FormatPriority))
	for i, f := range cfg.FormatPriority {
		if _, seen := rank[f]; !seen {
			rank[f] = i
		}
	}
	return &Matcher{threshold: cfg.Threshold, rank: rank}
}

// Threshold returns the configured minimum score.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Scored is a candidate that passed the threshold.
type Scored struct {
	Candidate  models.CatalogCandidate
	Score      float64
	ISBNMatch  bool
	Status     models.Status
	Recognized bool // availability string was in the vocabulary
}

// Match is the matcher's verdict for one book against one library's candidates.
type Match struct {
	Survivors    []Scored // ordered best first
	Formats      map[models.Format]models.Status
	Status       models.Status
	Reason       models.MatchReason
	HoldPosition *int
}

// NoMatch reports whether no candidate survived.
func (m Match) NoMatch() bool { return len(m.Survivors) == 0 }

// Best returns the top ranked survivor.
func (m Match) Best() (Scored, bool) {
	if len(m.Survivors) == 0 {
		return Scored{}, false
	}
	return m.Survivors[0], true
}

// Match scores every candidate, drops those below the threshold and ranks the rest.
//
// Survivors are ordered by ISBN match, then score, then format priority, then status, then
// candidate id. The library status is the best status across surviving formats.
func (m *Matcher) Match(book models.Book, candidates []models.CatalogCandidate) Match {
	survivors := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		score, isbnMatch := m.Score(book, c)
		if !isbnMatch && score < m.threshold {
			continue
		}
		status, ok := Classify(c.AvailabilityRaw)
		survivors = append(survivors, Scored{
			Candidate:  c,
			Score:      score,
			ISBNMatch:  isbnMatch,
			Status:     status,
			Recognized: ok,
		})
	}

	if len(survivors) == 0 {
		return Match{Status: models.StatusUnknown, Reason: models.ReasonNoMatch}
	}

	sort.SliceStable(survivors, func(i, j int) bool { return m.less(survivors[i], survivors[j]) })

	out := Match{
		Survivors: survivors,
		Formats:   make(map[models.Format]models.Status),
		Status:    models.StatusUnknown,
	}

	anyRecognized := false
	for _, s := range survivors {
		if s.Recognized {
			anyRecognized = true
		}
		if cur, ok := out.Formats[s.Candidate.Format]; !ok || s.Status.Better(cur) {
			out.Formats[s.Candidate.Format] = s.Status
		}
		if s.Status.Better(out.Status) {
			out.Status = s.Status
		}
	}

	switch {
	case !anyRecognized:
		out.Reason = models.ReasonUnrecognizedAvailability
	case survivors[0].ISBNMatch:
		out.Reason = models.ReasonISBN
	default:
		out.Reason = models.ReasonTitleAuthor
	}

	if out.Status == models.StatusHoldable {
		out.HoldPosition = holdPosition(survivors)
	}

	return out
}

// Score returns the similarity of c to book in [0, 1]. An ISBN-13 match on both sides
// short-circuits to 1 with isbnMatch set.
func (m *Matcher) Score(book models.Book, c models.CatalogCandidate) (score float64, isbnMatch bool) {
	if book.ISBN != "" {
		for _, raw := range c.ISBNs {
			if isbn.Normalize(raw) == book.ISBN {
				return 1, true
			}
		}
	}

	bookTitle, bookAuthor := shared.SplitKey(book.NormalizedKey)
	candTitle, candAuthor := shared.SplitKey(shared.NormalizeKey(c.Title, c.Author))
	if bookTitle == "" || candTitle == "" {
		return 0, false
	}

	title := bestOf(titleVariants(book.Title, bookTitle), titleVariants(c.Title, candTitle))
	if bookAuthor == "" || candAuthor == "" {
		return title, false
	}

	author := bestOf(authorVariants(book.Author, bookAuthor), authorVariants(c.Author, candAuthor))
	return titleWeight*title + authorWeight*author, false
}

func (m *Matcher) less(a, b Scored) bool {
	if a.ISBNMatch != b.ISBNMatch {
		return a.ISBNMatch
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if ra, rb := m.formatRank(a.Candidate.Format), m.formatRank(b.Candidate.Format); ra != rb {
		return ra < rb
	}
	if a.Status != b.Status {
		return a.Status.Better(b.Status)
	}
	return a.Candidate.ID < b.Candidate.ID
}

func (m *Matcher) formatRank(f models.Format) int {
	if r, ok := m.rank[f]; ok {
		return r
	}
	return len(m.rank)
}

// holdPosition is the queue position a new hold would take: the shortest queue among
// holdable survivors plus one. Nil when no holdable survivor reports a hold count.
func holdPosition(survivors []Scored) *int {
	var best *int
	for _, s := range survivors {
		if s.Status != models.StatusHoldable || s.Candidate.HoldCount == nil {
			continue
		}
		pos := *s.Candidate.HoldCount + 1
		if best == nil || pos < *best {
			best = &pos
		}
	}
	return best
}
