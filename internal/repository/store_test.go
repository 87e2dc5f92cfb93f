package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/rongwang/rentledger-server/internal/config"
	"github.com/rongwang/rentledger-server/internal/ledger"
	"github.com/rongwang/rentledger-server/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := config.OpenDatabase("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, config.CreateTables(db))
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db)
}

type fixture struct {
	company  *models.Company
	tenant   *models.User
	property *models.Property
	unit     *models.Unit
}

func seed(t *testing.T, store *SQLStore) fixture {
	t.Helper()
	var f fixture
	err := store.WithTx(context.Background(), func(tx Tx) error {
		ctx := context.Background()
		f.company = &models.Company{Name: "Acme Rentals", Email: "office@acme.test"}
		if err := tx.Companies().Create(ctx, f.company); err != nil {
			return err
		}
		f.tenant = &models.User{Email: "tenant@acme.test", Name: "Tia Tenant", Password: "x", Role: models.RoleTenant, CompanyID: f.company.ID}
		if err := tx.Users().Create(ctx, f.tenant); err != nil {
			return err
		}
		f.property = &models.Property{CompanyID: f.company.ID, Name: "Elm Court", Address: "1 Elm St", City: "Springfield", TotalUnits: 2, UnitsCount: 1}
		if err := tx.Properties().Create(ctx, f.property); err != nil {
			return err
		}
		f.unit = &models.Unit{PropertyID: f.property.ID, CompanyID: f.company.ID, UnitNumber: "1A"}
		return tx.Units().Create(ctx, f.unit)
	})
	require.NoError(t, err)
	return f
}

func TestWithTxRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx Tx) error {
		if err := tx.Companies().Create(ctx, &models.Company{Name: "Gone", Email: "gone@acme.test"}); err != nil {
			return err
		}
		return boom
	})
	assert.Same(t, boom, err)

	err = store.WithTx(ctx, func(tx Tx) error {
		exists, err := tx.Companies().EmailExists(ctx, "GONE@acme.test")
		require.NoError(t, err)
		assert.False(t, exists)
		return nil
	})
	require.NoError(t, err)
}

func TestUnitOccupyRequiresCurrentVersion(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)
	ctx := context.Background()

	stale := *f.unit
	err := store.WithTx(ctx, func(tx Tx) error {
		return tx.Units().Occupy(ctx, f.unit, "lease-1", f.tenant.ID)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.unit.Version)

	// a writer holding the version read before the first commit loses
	err = store.WithTx(ctx, func(tx Tx) error {
		return tx.Units().Touch(ctx, &stale)
	})
	assert.ErrorIs(t, err, models.ErrConsistency)

	err = store.WithTx(ctx, func(tx Tx) error {
		unit, err := tx.Units().Get(ctx, f.company.ID, f.unit.ID)
		require.NoError(t, err)
		assert.True(t, unit.IsOccupied)
		require.NotNil(t, unit.LeaseID)
		assert.Equal(t, "lease-1", *unit.LeaseID)
		return tx.Units().Vacate(ctx, unit)
	})
	require.NoError(t, err)
}

func TestPropertyOccupancyBounds(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Tx) error {
		return tx.Properties().AdjustOccupied(ctx, f.property.ID, -1)
	})
	assert.ErrorIs(t, err, models.ErrConsistency)

	err = store.WithTx(ctx, func(tx Tx) error {
		if err := tx.Properties().AdjustOccupied(ctx, f.property.ID, 1); err != nil {
			return err
		}
		// only one unit exists
		return tx.Properties().AdjustOccupied(ctx, f.property.ID, 1)
	})
	assert.ErrorIs(t, err, models.ErrConsistency)

	err = store.WithTx(ctx, func(tx Tx) error {
		p, err := tx.Properties().Get(ctx, f.company.ID, f.property.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, p.OccupiedUnits)
		return nil
	})
	require.NoError(t, err)
}

func TestGetScopesByCompany(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Tx) error {
		_, err := tx.Units().Get(ctx, "other-company", f.unit.ID)
		return err
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLedgerRoundTripAndAllocationGuard(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)
	ctx := context.Background()
	tenantID := f.tenant.ID

	res, err := ledger.Generate(ledger.Params{
		LeaseStart: "2024-01-15",
		LeaseEnd:   "2024-03-31",
		Today:      "2024-02-01",
		Charges: []models.RentCharge{{
			Amount: decimal.RequireFromString("310.00"), Description: "Rent",
			Frequency: models.FrequencyMonthly, PaymentDay: 1,
		}},
		TenantID:   &tenantID,
		LeaseID:    "lease-1",
		UnitID:     f.unit.ID,
		PropertyID: f.property.ID,
		CompanyID:  f.company.ID,
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx Tx) error {
		if err := tx.RentCharges().CreateBatch(ctx, res.Rents); err != nil {
			return err
		}
		return tx.Ledgers().CreateBatch(ctx, res.Ledgers)
	})
	require.NoError(t, err)

	var unpaid []models.LedgerEntry
	err = store.WithTx(ctx, func(tx Tx) error {
		var err error
		unpaid, err = tx.Ledgers().ListUnpaidByLease(ctx, "lease-1")
		return err
	})
	require.NoError(t, err)
	require.Len(t, unpaid, 3)
	assert.Equal(t, "2024-01-15", unpaid[0].PaymentDay)
	assert.True(t, unpaid[0].Amount.Equal(decimal.NewFromInt(170)), unpaid[0].Amount.String())

	plan, err := ledger.ApplyPayment(decimal.NewFromInt(200), unpaid)
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx Tx) error {
		for _, alloc := range plan {
			if err := tx.Ledgers().ApplyAllocation(ctx, alloc); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	// replaying the same plan must not apply twice
	err = store.WithTx(ctx, func(tx Tx) error {
		return tx.Ledgers().ApplyAllocation(ctx, plan[1])
	})
	assert.ErrorIs(t, err, models.ErrConsistency)

	err = store.WithTx(ctx, func(tx Tx) error {
		entries, err := tx.Ledgers().ListByLease(ctx, "lease-1")
		require.NoError(t, err)
		assert.True(t, entries[0].IsPaid)
		assert.True(t, entries[1].Balance.Equal(decimal.NewFromInt(280)), entries[1].Balance.String())
		assert.False(t, entries[1].IsPaid)
		return nil
	})
	require.NoError(t, err)
}

func TestNoticeProjections(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)
	ctx := context.Background()
	tenantID := f.tenant.ID

	active := &models.Lease{
		LeaseStart: "2024-01-01", LeaseEnd: "2024-03-31", Status: models.LeaseStatusActive,
		TenantID: &tenantID, UnitID: f.unit.ID, PropertyID: f.property.ID, CompanyID: f.company.ID,
	}
	pending := &models.Lease{
		LeaseStart: "2024-04-01", LeaseEnd: "2024-09-30", Status: models.LeaseStatusPending, IsFutureLease: true,
		FutureTenantID: &tenantID, UnitID: f.unit.ID, PropertyID: f.property.ID, CompanyID: f.company.ID,
	}
	err := store.WithTx(ctx, func(tx Tx) error {
		if err := tx.Leases().Create(ctx, active); err != nil {
			return err
		}
		if err := tx.Leases().Create(ctx, pending); err != nil {
			return err
		}
		return tx.Ledgers().CreateBatch(ctx, []models.LedgerEntry{
			{ID: "l-jan", PaymentDay: "2024-01-01", Description: "Rent", Amount: decimal.NewFromInt(100), Balance: decimal.NewFromInt(100),
				Frequency: models.FrequencyMonthly, RentChargeID: "r", LeaseID: active.ID, UnitID: f.unit.ID, PropertyID: f.property.ID, CompanyID: f.company.ID, TenantID: &tenantID},
			{ID: "l-feb", PaymentDay: "2024-02-01", Description: "Rent", Amount: decimal.NewFromInt(100), Balance: decimal.NewFromInt(100),
				Frequency: models.FrequencyMonthly, RentChargeID: "r", LeaseID: active.ID, UnitID: f.unit.ID, PropertyID: f.property.ID, CompanyID: f.company.ID, TenantID: &tenantID},
		})
	})
	require.NoError(t, err)

	notices := store.Notices()

	due, err := notices.PaymentsDueOn(ctx, []string{"2024-02-01", "2024-02-04"})
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "l-feb", due[0].LedgerEntryID)
	assert.Equal(t, "tenant@acme.test", due[0].TenantEmail)
	assert.Equal(t, "1 Elm St", due[0].Address)
	assert.Equal(t, "1A", due[0].UnitNumber)

	overdue, err := notices.UnpaidDueBefore(ctx, "2024-01-31")
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "l-jan", overdue[0].LedgerEntryID)

	expired, err := notices.ExpiredLeases(ctx, "2024-04-01")
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, active.ID, expired[0].LeaseID)
	assert.Equal(t, "office@acme.test", expired[0].CompanyEmail)

	late, err := notices.OverdueMoveIns(ctx, "2024-04-02")
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, "Tia Tenant", late[0].TenantName)

	soon, err := notices.MoveInsOn(ctx, []string{"2024-04-01"})
	require.NoError(t, err)
	assert.Len(t, soon, 1)
}

func TestExpenseListFilters(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Tx) error {
		for _, e := range []models.Expense{
			{Month: 1, Year: 2024, PaymentDay: "2024-01-05", Description: "Paint", PropertyID: &f.property.ID},
			{Month: 2, Year: 2024, PaymentDay: "2024-02-05", Description: "Lock", UnitID: &f.unit.ID},
			{Month: 2, Year: 2023, PaymentDay: "2023-02-05", Description: "Boiler", UnitID: &f.unit.ID},
		} {
			e := e
			e.Amount = decimal.NewFromInt(40)
			e.AddedBy = f.tenant.ID
			e.CompanyID = f.company.ID
			if err := tx.Expenses().Create(ctx, &e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	list := func(filter models.ExpenseFilter) ([]models.Expense, int) {
		t.Helper()
		filter.CompanyID = f.company.ID
		if filter.Limit == 0 {
			filter.Limit = 10
		}
		var expenses []models.Expense
		var total int
		err := store.WithTx(ctx, func(tx Tx) error {
			var err error
			expenses, total, err = tx.Expenses().List(ctx, filter)
			return err
		})
		require.NoError(t, err)
		return expenses, total
	}

	_, total := list(models.ExpenseFilter{})
	assert.Equal(t, 3, total)

	byUnit, total := list(models.ExpenseFilter{TargetID: f.unit.ID})
	assert.Equal(t, 2, total)
	assert.Len(t, byUnit, 2)

	byPeriod, total := list(models.ExpenseFilter{Month: 2, Year: 2024})
	assert.Equal(t, 1, total)
	require.Len(t, byPeriod, 1)
	assert.Equal(t, "Lock", byPeriod[0].Description)
	assert.True(t, decimal.NewFromInt(40).Equal(byPeriod[0].Amount))

	page, total := list(models.ExpenseFilter{Limit: 2, Offset: 2})
	assert.Equal(t, 3, total)
	assert.Len(t, page, 1)

	other, total := list(models.ExpenseFilter{TargetID: "elsewhere"})
	assert.Equal(t, 0, total)
	assert.Empty(t, other)
}
