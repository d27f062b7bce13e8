package tasks

import "github.com/desertthunder/libbyreads/internal/models"

// Aggregate combines one book's per-library results.
//
// The overall status is the best status of any result (Available > Holdable >
// Unavailable > Unknown). availableAt and holdableAt list library ids in result order
// and are never nil.
func Aggregate(results []models.AvailabilityResult) (overall models.Status, availableAt, holdableAt []string) {
	overall = models.StatusUnknown
	availableAt = []string{}
	holdableAt = []string{}

	for _, r := range results {
		if r.Status.Better(overall) {
			overall = r.Status
		}
		switch r.Status {
		case models.StatusAvailable:
			availableAt = append(availableAt, r.LibraryID)
		case models.StatusHoldable:
			holdableAt = append(holdableAt, r.LibraryID)
		}
	}
	return overall, availableAt, holdableAt
}

// NewEntry builds a report entry from a book and its results in target order.
func NewEntry(book models.Book, results []models.AvailabilityResult) models.ShelfReportEntry {
	overall, availableAt, holdableAt := Aggregate(results)
	return models.ShelfReportEntry{
		Book:              book,
		PerLibraryResults: results,
		OverallStatus:     overall,
		AvailableAt:       availableAt,
		HoldableAt:        holdableAt,
	}
}
