package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/rentledger-server/internal/models"
)

// IncomeRepository persists incomes and how they were applied to ledgers
type IncomeRepository interface {
	Create(ctx context.Context, income *models.Income) error
	AddAllocations(ctx context.Context, rows []models.IncomeLedger) error
	ListByLease(ctx context.Context, leaseID string) ([]models.Income, error)
	ListAllocations(ctx context.Context, incomeID string) ([]models.IncomeLedger, error)
}

type incomeRepo struct {
	q queryer
}

func (r *incomeRepo) Create(ctx context.Context, income *models.Income) error {
	if income.ID == "" {
		income.ID = uuid.New().String()
	}
	income.CreatedAt = time.Now().UTC()

	_, err := sqlx.NamedExecContext(ctx, r.q.ext, `
		INSERT INTO incomes (
			id, month, year, payment_day, description, note, amount, gateway_ref_num, gateway_status,
			added_by, lease_id, unit_id, property_id, company_id, created_at
		) VALUES (
			:id, :month, :year, :payment_day, :description, :note, :amount, :gateway_ref_num, :gateway_status,
			:added_by, :lease_id, :unit_id, :property_id, :company_id, :created_at
		)`, income)
	return err
}

func (r *incomeRepo) AddAllocations(ctx context.Context, rows []models.IncomeLedger) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := sqlx.NamedExecContext(ctx, r.q.ext, `
		INSERT INTO income_ledgers (income_id, ledger_entry_id, applied_amount)
		VALUES (:income_id, :ledger_entry_id, :applied_amount)`, rows)
	return err
}

func (r *incomeRepo) ListByLease(ctx context.Context, leaseID string) ([]models.Income, error) {
	incomes := []models.Income{}
	err := r.q.selectAll(ctx, &incomes, `
		SELECT * FROM incomes WHERE lease_id = ? ORDER BY created_at`, leaseID)
	return incomes, err
}

func (r *incomeRepo) ListAllocations(ctx context.Context, incomeID string) ([]models.IncomeLedger, error) {
	rows := []models.IncomeLedger{}
	err := r.q.selectAll(ctx, &rows, `
		SELECT il.* FROM income_ledgers il
		JOIN ledger_entries le ON le.id = il.ledger_entry_id
		WHERE il.income_id = ?
		ORDER BY le.payment_day`, incomeID)
	return rows, err
}
