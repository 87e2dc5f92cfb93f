package ledger

import (
	"fmt"
	"sort"

	"github.com/rongwang/rentledger-server/internal/models"
	"github.com/shopspring/decimal"
)

// Allocation is the planned effect of a payment on one ledger entry
type Allocation struct {
	LedgerEntryID string
	// PreviousBalance is the balance the plan was computed from; the store
	// uses it as a compare-and-set guard.
	PreviousBalance decimal.Decimal
	Applied         decimal.Decimal
	Balance         decimal.Decimal
	IsPaid          bool
}

// Outstanding sums the balances of the given entries
func Outstanding(entries []models.LedgerEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Balance)
	}
	return sum
}

// ApplyPayment plans how amount settles the unpaid entries, oldest payment
// day first. Nothing is mutated; the caller persists the returned plan.
func ApplyPayment(amount decimal.Decimal, unpaid []models.LedgerEntry) ([]Allocation, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be greater than 0", models.ErrValidation)
	}
	if amount.GreaterThan(Outstanding(unpaid)) {
		return nil, fmt.Errorf("%w: given amount should be less or equal to the remaining ledger balance", models.ErrConflict)
	}

	ordered := make([]models.LedgerEntry, len(unpaid))
	copy(ordered, unpaid)
	sortByPaymentDay(ordered)

	remaining := amount
	var plan []Allocation
	for _, entry := range ordered {
		if remaining.IsZero() {
			break
		}
		if !entry.Balance.IsPositive() {
			continue
		}

		applied := decimal.Min(entry.Balance, remaining)
		balance := entry.Balance.Sub(applied).Round(2)
		remaining = remaining.Sub(applied).Round(2)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}

		plan = append(plan, Allocation{
			LedgerEntryID:   entry.ID,
			PreviousBalance: entry.Balance,
			Applied:         applied,
			Balance:         balance,
			IsPaid:          balance.IsZero(),
		})
	}
	return plan, nil
}

func sortByPaymentDay(entries []models.LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PaymentDay < entries[j].PaymentDay
	})
}
