package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/libbyreads/internal/models"
)

func TestProxyCatalog(t *testing.T) {
	results := map[string]any{
		"results": []map[string]any{
			{"id": "p1", "format": "ebook", "title": "Dune", "author": "Frank Herbert", "isbns": []string{"9780441013593"}, "availability": "on shelf"},
			{"id": "p2", "format": "audiobook", "title": "Dune", "author": "Frank Herbert", "availability": "on hold", "hold_count": 4},
			{"id": "p3", "format": "dvd", "title": "Dune", "availability": "on shelf"},
		},
	}

	t.Run("Search without credentials", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/search" {
				t.Errorf("expected /search, got %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "" {
				t.Error("no authorization header expected")
			}
			if r.URL.Query().Get("q") != "Dune Frank Herbert" {
				t.Errorf("unexpected q %q", r.URL.Query().Get("q"))
			}
			json.NewEncoder(w).Encode(results)
		}))
		defer server.Close()

		target := models.LibraryTarget{ID: "consortium", Family: FamilyProxy, BaseEndpoint: server.URL, Timeout: time.Second}
		candidates, err := NewProxyCatalog(target, Options{PerPage: 5}).Search(context.Background(), models.NewBook("b1", "Dune", "Frank Herbert", ""))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(candidates) != 2 {
			t.Fatalf("expected unknown formats to be skipped, got %d", len(candidates))
		}
		if candidates[1].HoldCount == nil || *candidates[1].HoldCount != 4 {
			t.Errorf("expected hold count 4, got %v", candidates[1].HoldCount)
		}
	})

	t.Run("Search with client credentials", func(t *testing.T) {
		var tokenRequests int
		mux := http.NewServeMux()
		mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
			tokenRequests++
			user, pass, ok := r.BasicAuth()
			if !ok || user != "libbyreads" || pass != "s3cret" {
				t.Errorf("expected basic auth client credentials, got %q/%q", user, pass)
			}
			if err := r.ParseForm(); err != nil {
				t.Fatalf("bad token form: %v", err)
			}
			if r.Form.Get("grant_type") != "client_credentials" {
				t.Errorf("expected client_credentials grant, got %q", r.Form.Get("grant_type"))
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer","expires_in":3600}`))
		})
		mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
				t.Errorf("expected bearer token, got %q", got)
			}
			json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		target := models.LibraryTarget{
			ID:           "consortium",
			Family:       FamilyProxy,
			BaseEndpoint: server.URL,
			Timeout:      time.Second,
			TokenURL:     server.URL + "/oauth/token",
			ClientID:     "libbyreads",
			ClientSecret: "s3cret",
		}
		catalog := NewProxyCatalog(target, Options{})
		book := models.NewBook("b1", "Dune", "Frank Herbert", "")

		for i := 0; i < 2; i++ {
			if _, err := catalog.Search(context.Background(), book); err != nil {
				t.Fatalf("search %d failed: %v", i, err)
			}
		}
		if tokenRequests != 1 {
			t.Errorf("expected token to be cached, got %d token requests", tokenRequests)
		}
	})
}
