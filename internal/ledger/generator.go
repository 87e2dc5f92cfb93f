// Package ledger turns rent charges into dated payment obligations, checks
// candidate lease ranges against a unit's occupancy and plans how a payment
// settles outstanding balances.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rongwang/rentledger-server/internal/models"
	"github.com/rongwang/rentledger-server/internal/utils"
	"github.com/shopspring/decimal"
)

// Params describes one generation run
type Params struct {
	LeaseStart string
	LeaseEnd   string
	// Today is the caller's current date in the default zone.
	Today string
	// ProrateFirstMonth forces the first month to be pinned to LeaseStart and
	// prorated even when LeaseStart is not before Today. Used when a future
	// lease is activated with today as its effective start.
	ProrateFirstMonth bool

	Charges []models.RentCharge

	TenantID   *string
	LeaseID    string
	UnitID     string
	PropertyID string
	CompanyID  string

	Location *time.Location
}

// Result holds the normalized rent charges and their ledger entries
type Result struct {
	Rents   []models.RentCharge
	Ledgers []models.LedgerEntry
}

// Generate expands every rent charge into one ledger entry per calendar month
// touched by [LeaseStart, LeaseEnd]. Entries are sorted by payment day.
func Generate(p Params) (*Result, error) {
	startYear, startMonth, startDay, err := utils.ParseDate(p.LeaseStart)
	if err != nil {
		return nil, fmt.Errorf("%w: lease start: %v", models.ErrValidation, err)
	}
	anchors, err := utils.MonthAnchors(p.LeaseStart, p.LeaseEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: lease range: %v", models.ErrValidation, err)
	}

	lastDay := utils.LastDayOfMonth(startYear, startMonth, p.Location)
	daysLeft := lastDay - startDay + 1
	pinFirst := p.ProrateFirstMonth || p.LeaseStart < p.Today

	res := &Result{
		Rents:   make([]models.RentCharge, 0, len(p.Charges)),
		Ledgers: make([]models.LedgerEntry, 0, len(p.Charges)*len(anchors)),
	}

	for _, charge := range p.Charges {
		rent := charge
		if rent.ID == "" {
			rent.ID = uuid.New().String()
		}
		if rent.Frequency == "" {
			rent.Frequency = models.FrequencyMonthly
		}
		rent.TenantID = p.TenantID
		rent.LeaseID = p.LeaseID
		rent.UnitID = p.UnitID
		rent.PropertyID = p.PropertyID
		rent.CompanyID = p.CompanyID
		res.Rents = append(res.Rents, rent)

		for i, anchor := range anchors {
			year, month, _, _ := utils.ParseDate(anchor)

			paymentDay := rent.PaymentDay
			if monthEnd := utils.LastDayOfMonth(year, month, p.Location); paymentDay > monthEnd {
				paymentDay = monthEnd
			}
			date := utils.FormatDate(year, month, paymentDay)
			amount := rent.Amount

			if i == 0 && pinFirst {
				date = p.LeaseStart
				amount = Prorate(rent.Amount, daysLeft, lastDay)
			}

			res.Ledgers = append(res.Ledgers, models.LedgerEntry{
				ID:           uuid.New().String(),
				PaymentDay:   date,
				Description:  rent.Description,
				Amount:       amount,
				Balance:      amount,
				IsPaid:       false,
				Frequency:    models.FrequencyMonthly,
				RentChargeID: rent.ID,
				LeaseID:      p.LeaseID,
				UnitID:       p.UnitID,
				PropertyID:   p.PropertyID,
				CompanyID:    p.CompanyID,
				TenantID:     p.TenantID,
			})
		}
	}

	sort.SliceStable(res.Ledgers, func(i, j int) bool {
		return res.Ledgers[i].PaymentDay < res.Ledgers[j].PaymentDay
	})

	return res, nil
}

// Prorate returns amount × daysLeft / daysInMonth rounded to cents.
func Prorate(amount decimal.Decimal, daysLeft, daysInMonth int) decimal.Decimal {
	if daysInMonth <= 0 || daysLeft >= daysInMonth {
		return amount.Round(2)
	}
	return amount.
		Mul(decimal.NewFromInt(int64(daysLeft))).
		Div(decimal.NewFromInt(int64(daysInMonth))).
		Round(2)
}

// Total sums the amounts of the given entries
func Total(entries []models.LedgerEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	return sum
}
