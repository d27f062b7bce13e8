package matcher

import (
	"strings"

	"github.com/desertthunder/libbyreads/internal/models"
)

// vocabulary maps normalized raw availability strings from every catalog family onto a status.
var vocabulary = map[string]models.Status{
	// available now
	"available":        models.StatusAvailable,
	"available now":    models.StatusAvailable,
	"always available": models.StatusAvailable,
	"on shelf":         models.StatusAvailable,
	"in":               models.StatusAvailable,
	"checked in":       models.StatusAvailable,
	"public":           models.StatusAvailable,
	"borrowable":       models.StatusAvailable,

	// a hold can be placed
	"wait list":   models.StatusHoldable,
	"waitlist":    models.StatusHoldable,
	"holdable":    models.StatusHoldable,
	"on hold":     models.StatusHoldable,
	"place hold":  models.StatusHoldable,
	"reserve":     models.StatusHoldable,
	"checked out": models.StatusHoldable,
	"on order":    models.StatusHoldable,

	// owned or listed but not lendable to this reader
	"unavailable":    models.StatusUnavailable,
	"not available":  models.StatusUnavailable,
	"not owned":      models.StatusUnavailable,
	"not holdable":   models.StatusUnavailable,
	"no ebook":       models.StatusUnavailable,
	"printdisabled":  models.StatusUnavailable,
	"print disabled": models.StatusUnavailable,
	"withdrawn":      models.StatusUnavailable,
	"lost":           models.StatusUnavailable,
	"missing":        models.StatusUnavailable,
}

// Classify maps a raw availability string to a status. ok is false for values outside the
// vocabulary, which always classify as [models.StatusUnknown].
func Classify(raw string) (status models.Status, ok bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", " ", "-", " ").Replace(key)
	key = strings.Join(strings.Fields(key), " ")

	status, ok = vocabulary[key]
	if !ok {
		return models.StatusUnknown, false
	}
	return status, true
}
