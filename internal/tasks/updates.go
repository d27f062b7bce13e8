package tasks

import (
	"fmt"

	"github.com/desertthunder/libbyreads/internal/models"
)

// ProgressUpdate represents a progress event during a shelf check.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ResolveStart Phase = iota
	ResolveUnit
	ResolveBook
	ResolveDone
)

func (p Phase) String() string {
	switch p {
	case ResolveStart:
		return "resolve_start"
	case ResolveUnit:
		return "resolve_unit"
	case ResolveBook:
		return "resolve_book"
	case ResolveDone:
		return "resolve_done"
	default:
		return ""
	}
}

func resolveStartUpdate(units, books, targets int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveStart,
		Step:    0,
		Total:   units,
		Message: fmt.Sprintf("Checking %d books at %d libraries...", books, targets),
	}
}

// resolveUnitUpdate carries the [models.AvailabilityResult] of one (book, library) lookup.
func resolveUnitUpdate(step, total int, book models.Book, res models.AvailabilityResult) ProgressUpdate {
	mark := "✓"
	if res.Failed() {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   ResolveUnit,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s @ %s: %s", step, total, mark, book.Title, res.LibraryID, res.Status),
		Data:    res,
	}
}

// resolveBookUpdate carries the finished [models.ShelfReportEntry] of a book.
func resolveBookUpdate(step, total int, entry models.ShelfReportEntry) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveBook,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s", step, total, entry.Book.Title, entry.OverallStatus),
		Data:    entry,
	}
}

func resolveDoneUpdate(completed, total int, report *models.ShelfReport) ProgressUpdate {
	msg := fmt.Sprintf("Checked %d books (%d/%d lookups finished)", len(report.Entries), completed, total)
	if completed < total {
		msg += ", run deadline reached"
	}
	return ProgressUpdate{
		Phase:   ResolveDone,
		Step:    completed,
		Total:   total,
		Message: msg,
		Data:    report,
	}
}
