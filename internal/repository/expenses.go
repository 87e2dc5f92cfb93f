package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/rentledger-server/internal/models"
)

// ExpenseRepository persists property and unit expenses
type ExpenseRepository interface {
	Create(ctx context.Context, expense *models.Expense) error
	// List returns one page of matching expenses, newest first, and the
	// number of matches across all pages.
	List(ctx context.Context, filter models.ExpenseFilter) ([]models.Expense, int, error)
}

type expenseRepo struct {
	q queryer
}

func (r *expenseRepo) Create(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	expense.CreatedAt = now
	expense.UpdatedAt = now

	_, err := sqlx.NamedExecContext(ctx, r.q.ext, `
		INSERT INTO expenses (
			id, month, year, payment_day, description, note, amount, is_paid, is_approved,
			added_by, approved_by, property_id, unit_id, company_id, created_at, updated_at
		) VALUES (
			:id, :month, :year, :payment_day, :description, :note, :amount, :is_paid, :is_approved,
			:added_by, :approved_by, :property_id, :unit_id, :company_id, :created_at, :updated_at
		)`, expense)
	return err
}

func (r *expenseRepo) List(ctx context.Context, filter models.ExpenseFilter) ([]models.Expense, int, error) {
	conds := []string{"company_id = ?"}
	args := []interface{}{filter.CompanyID}
	if filter.TargetID != "" {
		conds = append(conds, "(property_id = ? OR unit_id = ?)")
		args = append(args, filter.TargetID, filter.TargetID)
	}
	if filter.Month != 0 {
		conds = append(conds, "month = ?")
		args = append(args, filter.Month)
	}
	if filter.Year != 0 {
		conds = append(conds, "year = ?")
		args = append(args, filter.Year)
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.q.get(ctx, &total, "SELECT COUNT(*) FROM expenses"+where, args...); err != nil {
		return nil, 0, err
	}

	expenses := []models.Expense{}
	err := r.q.selectAll(ctx, &expenses,
		"SELECT * FROM expenses"+where+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, filter.Limit, filter.Offset)...)
	return expenses, total, err
}
