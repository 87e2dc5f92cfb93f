package ledger

import (
	"fmt"

	"github.com/rongwang/rentledger-server/internal/models"
)

// ValidateRange checks a candidate lease range against the unit's occupied
// lease (if any) and its pending future leases. All bounds are inclusive.
//
// Future leases are additionally protected against being fully enclosed by
// the candidate; the occupied lease only gets the endpoint check.
func ValidateRange(candidate models.DateRange, occupied *models.DateRange, future []models.DateRange) error {
	if !(candidate.Start < candidate.End) {
		return fmt.Errorf("%w: invalid date range", models.ErrValidation)
	}
	return CheckOverlap(candidate, occupied, future)
}

// CheckOverlap applies the occupancy rules of ValidateRange without requiring
// Start < End. A lease activated on its last day has a single-day range.
func CheckOverlap(candidate models.DateRange, occupied *models.DateRange, future []models.DateRange) error {
	if occupied != nil {
		if within(candidate.Start, *occupied) || within(candidate.End, *occupied) {
			return fmt.Errorf("%w: selected dates overlap with an occupied lease, please select another date range", models.ErrConflict)
		}
	}

	for _, f := range future {
		encloses := candidate.Start <= f.Start && candidate.End >= f.End
		if within(candidate.Start, f) || within(candidate.End, f) || encloses {
			return fmt.Errorf("%w: selected dates overlap with a future lease, please select another date range", models.ErrConflict)
		}
	}

	return nil
}

func within(date string, r models.DateRange) bool {
	return date >= r.Start && date <= r.End
}
