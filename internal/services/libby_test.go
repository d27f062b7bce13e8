package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
)

func libbyTarget(baseURL string) models.LibraryTarget {
	return models.LibraryTarget{
		ID:           "lapl",
		Name:         "Los Angeles Public Library",
		Family:       FamilyLibby,
		Key:          "lapl",
		BaseEndpoint: baseURL,
		RateLimit:    models.RateLimit{Requests: 5, Interval: time.Second},
		Timeout:      5 * time.Second,
	}
}

func TestLibbyCatalog(t *testing.T) {
	book := models.NewBook("b1", "Piranesi", "Susanna Clarke", "")

	t.Run("Search maps items", func(t *testing.T) {
		payload := map[string]any{
			"totalItems": 3,
			"items": []map[string]any{
				{
					"id":               "111",
					"title":            "Piranesi",
					"firstCreatorName": "Susanna Clarke",
					"type":             map[string]any{"id": "ebook", "name": "eBook"},
					"isOwned":          true,
					"isAvailable":      true,
					"isHoldable":       true,
					"holdsCount":       0,
					"formats": []map[string]any{
						{"id": "ebook-kindle", "identifiers": []map[string]any{{"type": "ISBN", "value": "9781635575637"}}},
						{"id": "ebook-epub-adobe", "identifiers": []map[string]any{{"type": "ISBN", "value": "9781635575637"}, {"type": "ASIN", "value": "B08"}}},
					},
				},
				{
					"id":               "222",
					"title":            "Piranesi",
					"firstCreatorName": "Susanna Clarke",
					"type":             map[string]any{"id": "audiobook", "name": "Audiobook"},
					"isOwned":          true,
					"isAvailable":      false,
					"isHoldable":       true,
					"holdsCount":       7,
				},
				{
					"id":    "333",
					"title": "Piranesi Monthly",
					"type":  map[string]any{"id": "magazine"},
				},
			},
		}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v2/libraries/lapl/media" {
				t.Errorf("expected path /v2/libraries/lapl/media, got %s", r.URL.Path)
			}
			if got := r.URL.Query().Get("query"); got != "Piranesi Susanna Clarke" {
				t.Errorf("expected title author query, got %q", got)
			}
			if r.Header.Get("User-Agent") == "" {
				t.Error("expected a user agent")
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(payload)
		}))
		defer server.Close()

		catalog := NewLibbyCatalog(libbyTarget(server.URL), Options{})
		candidates, err := catalog.Search(context.Background(), book)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(candidates) != 2 {
			t.Fatalf("expected magazine to be skipped, got %d candidates", len(candidates))
		}

		ebook := candidates[0]
		if ebook.Format != models.FormatEbook || ebook.AvailabilityRaw != "available" {
			t.Errorf("unexpected ebook candidate: %+v", ebook)
		}
		if len(ebook.ISBNs) != 1 || ebook.ISBNs[0] != "9781635575637" {
			t.Errorf("expected deduplicated ISBN list, got %v", ebook.ISBNs)
		}

		audio := candidates[1]
		if audio.Format != models.FormatAudiobook || audio.AvailabilityRaw != "wait list" {
			t.Errorf("unexpected audiobook candidate: %+v", audio)
		}
		if audio.HoldCount == nil || *audio.HoldCount != 7 {
			t.Errorf("expected hold count 7, got %v", audio.HoldCount)
		}
	})

	t.Run("Search uses title and author even with isbn", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("query"); got != "Some Title" {
				t.Errorf("expected title query, got %q", got)
			}
			w.Write([]byte(`{"items":[]}`))
		}))
		defer server.Close()

		withISBN := models.NewBook("b2", "Some Title", "", "0306406152")
		candidates, err := NewLibbyCatalog(libbyTarget(server.URL), Options{}).Search(context.Background(), withISBN)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(candidates) != 0 {
			t.Errorf("expected no candidates, got %d", len(candidates))
		}
	})

	t.Run("missing items is a parse error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"totalItems":0}`))
		}))
		defer server.Close()

		_, err := NewLibbyCatalog(libbyTarget(server.URL), Options{}).Search(context.Background(), book)
		if !errors.Is(err, shared.ErrParse) {
			t.Errorf("expected ErrParse, got %v", err)
		}
	})

	t.Run("rejects book without key", func(t *testing.T) {
		_, err := NewLibbyCatalog(libbyTarget("http://unused"), Options{}).Search(context.Background(), models.Book{Title: "x"})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestLibbyAvailability(t *testing.T) {
	tests := []struct {
		name  string
		media LibbyMedia
		want  string
	}{
		{"available", LibbyMedia{IsOwned: true, IsAvailable: true}, "available"},
		{"always available", LibbyMedia{AvailabilityType: "always"}, "always available"},
		{"holdable", LibbyMedia{IsOwned: true, IsHoldable: true}, "wait list"},
		{"owned not holdable", LibbyMedia{IsOwned: true}, "unavailable"},
		{"not owned", LibbyMedia{}, "not owned"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.media.availability(); got != tt.want {
				t.Errorf("availability() = %q, want %q", got, tt.want)
			}
		})
	}
}
