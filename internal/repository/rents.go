package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rongwang/rentledger-server/internal/ledger"
	"github.com/rongwang/rentledger-server/internal/models"
)

// batchSize bounds the rows per multi-row insert so the statement stays well
// under the placeholder limits of both drivers.
const batchSize = 500

// RentChargeRepository persists rent charges
type RentChargeRepository interface {
	CreateBatch(ctx context.Context, rents []models.RentCharge) error
	ListByLease(ctx context.Context, leaseID string) ([]models.RentCharge, error)
	DeleteByLease(ctx context.Context, leaseID string) (int64, error)
}

// LedgerRepository persists ledger entries
type LedgerRepository interface {
	CreateBatch(ctx context.Context, entries []models.LedgerEntry) error
	ListByLease(ctx context.Context, leaseID string) ([]models.LedgerEntry, error)
	// ListUnpaidByLease returns entries with a positive balance, oldest
	// payment day first.
	ListUnpaidByLease(ctx context.Context, leaseID string) ([]models.LedgerEntry, error)
	// ApplyAllocation writes a planned balance, guarded by the balance the
	// plan was computed from.
	ApplyAllocation(ctx context.Context, alloc ledger.Allocation) error
	DeleteByLease(ctx context.Context, leaseID string) (int64, error)
}

type rentChargeRepo struct {
	q queryer
}

const insertRentCharge = `
	INSERT INTO rent_charges (id, amount, description, notes, frequency, payment_day, lease_id, unit_id, property_id, company_id, tenant_id, created_at)
	VALUES (:id, :amount, :description, :notes, :frequency, :payment_day, :lease_id, :unit_id, :property_id, :company_id, :tenant_id, :created_at)`

func (r *rentChargeRepo) CreateBatch(ctx context.Context, rents []models.RentCharge) error {
	now := time.Now().UTC()
	for i := range rents {
		rents[i].CreatedAt = now
	}
	for start := 0; start < len(rents); start += batchSize {
		end := min(start+batchSize, len(rents))
		if _, err := sqlx.NamedExecContext(ctx, r.q.ext, insertRentCharge, rents[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *rentChargeRepo) ListByLease(ctx context.Context, leaseID string) ([]models.RentCharge, error) {
	rents := []models.RentCharge{}
	err := r.q.selectAll(ctx, &rents, `
		SELECT * FROM rent_charges WHERE lease_id = ? ORDER BY created_at, payment_day, id`, leaseID)
	return rents, err
}

func (r *rentChargeRepo) DeleteByLease(ctx context.Context, leaseID string) (int64, error) {
	return r.q.exec(ctx, `DELETE FROM rent_charges WHERE lease_id = ?`, leaseID)
}

type ledgerRepo struct {
	q queryer
}

const insertLedgerEntry = `
	INSERT INTO ledger_entries (
		id, payment_day, description, amount, balance, is_paid, frequency, rent_charge_id,
		lease_id, unit_id, property_id, company_id, tenant_id, created_at, updated_at
	) VALUES (
		:id, :payment_day, :description, :amount, :balance, :is_paid, :frequency, :rent_charge_id,
		:lease_id, :unit_id, :property_id, :company_id, :tenant_id, :created_at, :updated_at
	)`

func (r *ledgerRepo) CreateBatch(ctx context.Context, entries []models.LedgerEntry) error {
	now := time.Now().UTC()
	for i := range entries {
		entries[i].CreatedAt = now
		entries[i].UpdatedAt = now
	}
	for start := 0; start < len(entries); start += batchSize {
		end := min(start+batchSize, len(entries))
		if _, err := sqlx.NamedExecContext(ctx, r.q.ext, insertLedgerEntry, entries[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *ledgerRepo) ListByLease(ctx context.Context, leaseID string) ([]models.LedgerEntry, error) {
	entries := []models.LedgerEntry{}
	err := r.q.selectAll(ctx, &entries, `
		SELECT * FROM ledger_entries WHERE lease_id = ? ORDER BY payment_day, created_at`, leaseID)
	return entries, err
}

func (r *ledgerRepo) ListUnpaidByLease(ctx context.Context, leaseID string) ([]models.LedgerEntry, error) {
	entries := []models.LedgerEntry{}
	err := r.q.selectAll(ctx, &entries, `
		SELECT * FROM ledger_entries
		WHERE lease_id = ? AND is_paid = ? AND balance > 0
		ORDER BY payment_day, created_at`, leaseID, false)
	return entries, err
}

func (r *ledgerRepo) ApplyAllocation(ctx context.Context, alloc ledger.Allocation) error {
	return r.q.execOne(ctx, "apply payment to ledger", `
		UPDATE ledger_entries
		SET balance = ?, is_paid = ?, updated_at = ?
		WHERE id = ? AND balance = ? AND is_paid = ?`,
		alloc.Balance, alloc.IsPaid, time.Now().UTC(), alloc.LedgerEntryID, alloc.PreviousBalance, false)
}

func (r *ledgerRepo) DeleteByLease(ctx context.Context, leaseID string) (int64, error) {
	return r.q.exec(ctx, `DELETE FROM ledger_entries WHERE lease_id = ?`, leaseID)
}
