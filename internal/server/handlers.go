package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
	"github.com/desertthunder/libbyreads/internal/tasks"
)

const maxBodyBytes = 1 << 20

type healthHandler struct{}

func (h *healthHandler) Register(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

type targetsHandler struct {
	targets []models.LibraryTarget
}

func (h *targetsHandler) Register(r chi.Router) {
	r.Get("/api/targets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"targets": h.targets})
	})
}

// BookInput is one book of a check request.
type BookInput struct {
	ID     string `json:"id,omitempty"`
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
	ISBN   string `json:"isbn,omitempty"`
}

// CheckRequest is the body of POST /api/check.
//
// Targets selects configured libraries by id; empty means all of them. Timeout
// shortens the configured run deadline and uses Go duration syntax. It must be
// positive and is capped at the configured deadline.
type CheckRequest struct {
	Books   []BookInput `json:"books"`
	Targets []string    `json:"targets,omitempty"`
	Timeout string      `json:"timeout,omitempty"`
}

type checkHandler struct {
	checker  Checker
	targets  []models.LibraryTarget
	run      tasks.RunOpts
	maxBooks int
	logger   *log.Logger
}

func (h *checkHandler) Register(r chi.Router) {
	r.Post("/api/check", h.check)
}

func (h *checkHandler) check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := shared.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	books, targets, opts, err := h.prepare(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.checker.ResolveShelf(r.Context(), books, targets, opts, nil)
	switch {
	case errors.Is(err, shared.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "check failed")
		return
	}

	h.logger.Debug("check complete", "run", report.RunID, "books", len(books), "targets", len(targets))
	writeJSON(w, http.StatusOK, report)
}

// prepare turns a request into engine arguments.
func (h *checkHandler) prepare(req CheckRequest) ([]models.Book, []models.LibraryTarget, tasks.RunOpts, error) {
	opts := h.run
	if len(req.Books) == 0 {
		return nil, nil, opts, fmt.Errorf("%w: books", shared.ErrMissingArgument)
	}
	if len(req.Books) > h.maxBooks {
		return nil, nil, opts, fmt.Errorf("%w: %d books exceeds the limit of %d", shared.ErrInvalidArgument, len(req.Books), h.maxBooks)
	}

	books := make([]models.Book, len(req.Books))
	for i, b := range req.Books {
		books[i] = models.NewBook(b.ID, b.Title, b.Author, b.ISBN)
	}

	targets, err := h.selectTargets(req.Targets)
	if err != nil {
		return nil, nil, opts, err
	}

	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil || d <= 0 {
			return nil, nil, opts, fmt.Errorf("%w: timeout %q must be a positive duration", shared.ErrInvalidArgument, req.Timeout)
		}
		if h.run.Timeout > 0 {
			d = min(d, h.run.Timeout)
		}
		opts.Timeout = d
	}

	return books, targets, opts, nil
}

func (h *checkHandler) selectTargets(ids []string) ([]models.LibraryTarget, error) {
	if len(ids) == 0 {
		return h.targets, nil
	}

	out := make([]models.LibraryTarget, 0, len(ids))
	for _, id := range ids {
		t, ok := findTarget(h.targets, id)
		if !ok {
			return nil, fmt.Errorf("%w: unknown target %q", shared.ErrInvalidArgument, id)
		}
		out = append(out, t)
	}
	return out, nil
}

func findTarget(targets []models.LibraryTarget, id string) (models.LibraryTarget, bool) {
	for _, t := range targets {
		if t.ID == id {
			return t, true
		}
	}
	return models.LibraryTarget{}, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = shared.EncodeJSON(w, v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
