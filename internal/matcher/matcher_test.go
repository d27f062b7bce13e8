package matcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
)

type goldenCase struct {
	Name string `json:"name"`
	Book struct {
		Title  string `json:"title"`
		Author string `json:"author"`
		ISBN   string `json:"isbn"`
	} `json:"book"`
	Candidates []models.CatalogCandidate `json:"candidates"`
	Want       struct {
		Status       string            `json:"status"`
		Reason       string            `json:"reason"`
		Formats      map[string]string `json:"formats"`
		BestID       string            `json:"best_id"`
		HoldPosition *int              `json:"hold_position"`
	} `json:"want"`
}

func loadGolden(t *testing.T) []goldenCase {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "golden_matches.json"))
	require.NoError(t, err)

	var cases []goldenCase
	require.NoError(t, shared.JSON.Unmarshal(data, &cases))
	require.NotEmpty(t, cases)
	return cases
}

func TestMatchGolden(t *testing.T) {
	m := New(DefaultConfig())

	for _, tc := range loadGolden(t) {
		t.Run(tc.Name, func(t *testing.T) {
			book := models.NewBook("b1", tc.Book.Title, tc.Book.Author, tc.Book.ISBN)
			got := m.Match(book, tc.Candidates)

			assert.Equal(t, tc.Want.Status, got.Status.String())
			assert.Equal(t, tc.Want.Reason, string(got.Reason))

			formats := map[string]string{}
			for f, s := range got.Formats {
				formats[string(f)] = s.String()
			}
			if tc.Want.Formats == nil {
				assert.Empty(t, formats)
			} else {
				assert.Equal(t, tc.Want.Formats, formats)
			}

			best, ok := got.Best()
			if tc.Want.BestID == "" {
				assert.False(t, ok)
				assert.True(t, got.NoMatch())
			} else {
				require.True(t, ok)
				assert.Equal(t, tc.Want.BestID, best.Candidate.ID)
			}

			if tc.Want.HoldPosition == nil {
				assert.Nil(t, got.HoldPosition)
			} else {
				require.NotNil(t, got.HoldPosition)
				assert.Equal(t, *tc.Want.HoldPosition, *got.HoldPosition)
			}
		})
	}
}

func TestMatchIdempotent(t *testing.T) {
	m := New(DefaultConfig())

	for _, tc := range loadGolden(t) {
		book := models.NewBook("b1", tc.Book.Title, tc.Book.Author, tc.Book.ISBN)
		first := m.Match(book, tc.Candidates)
		second := m.Match(book, tc.Candidates)
		assert.Equal(t, first, second, tc.Name)
	}
}

func TestMatchOrderIndependent(t *testing.T) {
	m := New(DefaultConfig())
	book := models.NewBook("b1", "Piranesi", "Susanna Clarke", "")
	candidates := []models.CatalogCandidate{
		{ID: "a", Format: models.FormatAudiobook, Title: "Piranesi", Author: "Susanna Clarke", AvailabilityRaw: "available"},
		{ID: "b", Format: models.FormatEbook, Title: "Piranesi", Author: "Susanna Clarke", AvailabilityRaw: "unavailable"},
		{ID: "c", Format: models.FormatEbook, Title: "Piranesi", Author: "Susanna Clarke", AvailabilityRaw: "wait list"},
	}
	reversed := []models.CatalogCandidate{candidates[2], candidates[1], candidates[0]}

	a := m.Match(book, candidates)
	b := m.Match(book, reversed)

	assert.Equal(t, a.Status, b.Status)
	assert.Equal(t, a.Formats, b.Formats)
	bestA, _ := a.Best()
	bestB, _ := b.Best()
	assert.Equal(t, "c", bestA.Candidate.ID, "holdable ebook outranks unavailable ebook on equal score")
	assert.Equal(t, bestA.Candidate.ID, bestB.Candidate.ID)
}

func TestScore(t *testing.T) {
	m := New(DefaultConfig())

	t.Run("isbn match", func(t *testing.T) {
		book := models.NewBook("b1", "X", "Y", "0306406152")
		score, isbnMatch := m.Score(book, models.CatalogCandidate{Title: "Z", ISBNs: []string{"9780306406157"}})
		assert.True(t, isbnMatch)
		assert.Equal(t, 1.0, score)
	})

	t.Run("isbn ignored when book has none", func(t *testing.T) {
		book := models.NewBook("b1", "Dune", "Frank Herbert", "")
		_, isbnMatch := m.Score(book, models.CatalogCandidate{Title: "Dune", Author: "Frank Herbert", ISBNs: []string{"9780441013593"}})
		assert.False(t, isbnMatch)
	})

	t.Run("missing author falls back to title", func(t *testing.T) {
		book := models.NewBook("b1", "Beowulf", "", "")
		score, _ := m.Score(book, models.CatalogCandidate{Title: "Beowulf", Author: "Seamus Heaney"})
		assert.Equal(t, 1.0, score)
	})

	t.Run("bounded", func(t *testing.T) {
		book := models.NewBook("b1", "A Wizard of Earthsea", "Ursula K. Le Guin", "")
		for _, title := range []string{"Wizard of Earthsea", "The Farthest Shore", "Tehanu", "x"} {
			score, _ := m.Score(book, models.CatalogCandidate{Title: title, Author: "Le Guin"})
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	})
}

func TestThreshold(t *testing.T) {
	book := models.NewBook("b1", "The Hobbit", "J.R.R. Tolkien", "")
	candidate := models.CatalogCandidate{ID: "c", Format: models.FormatEbook, Title: "The Hobbit Companion", Author: "J.R.R. Tolkien", AvailabilityRaw: "available"}

	strict := New(Config{Threshold: 0.99})
	assert.True(t, strict.Match(book, []models.CatalogCandidate{candidate}).NoMatch())

	loose := New(Config{Threshold: 0.5})
	assert.False(t, loose.Match(book, []models.CatalogCandidate{candidate}).NoMatch())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		raw  string
		want models.Status
		ok   bool
	}{
		{"available now", models.StatusAvailable, true},
		{"  Available  ", models.StatusAvailable, true},
		{"borrowable", models.StatusAvailable, true},
		{"wait list", models.StatusHoldable, true},
		{"Wait-List", models.StatusHoldable, true},
		{"checked out", models.StatusHoldable, true},
		{"no_ebook", models.StatusUnavailable, true},
		{"printdisabled", models.StatusUnavailable, true},
		{"not owned", models.StatusUnavailable, true},
		{"", models.StatusUnknown, false},
		{"in transit to the moon", models.StatusUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Classify(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("dune", "dune"))
	assert.Equal(t, 0.0, Similarity("", "dune"))
	assert.Greater(t, Similarity("hobbit", "hobbit companion"), Similarity("hobbit", "silmarillion"))
}

func TestConfigFromShared(t *testing.T) {
	cfg, err := ConfigFromShared(shared.MatcherConfig{Threshold: 0.9, FormatPriority: []string{"audiobook", "ebook"}})
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Threshold)
	assert.Equal(t, []models.Format{models.FormatAudiobook, models.FormatEbook}, cfg.FormatPriority)

	_, err = ConfigFromShared(shared.MatcherConfig{FormatPriority: []string{"vinyl"}})
	assert.ErrorIs(t, err, shared.ErrInvalidConfig)
}
