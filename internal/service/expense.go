package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rongwang/rentledger-server/internal/models"
	"github.com/rongwang/rentledger-server/internal/repository"
	"github.com/rongwang/rentledger-server/internal/utils"
)

const defaultExpensePageSize = 10

// AddExpense books an expense against a property or a unit of the company
func (s *DefaultService) AddExpense(ctx context.Context, actor models.Actor, req models.AddExpenseRequest) (expense *models.Expense, err error) {
	ctx, done := s.begin(ctx, "add_expense")
	defer func() { done(err) }()

	if err := requireManager(actor); err != nil {
		return nil, err
	}
	if !utils.IsValidDate(req.Date) {
		return nil, fmt.Errorf("%w: invalid date, the format should be YYYY-MM-DD", models.ErrValidation)
	}
	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must be greater than or equal to 0", models.ErrValidation)
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", models.ErrValidation)
	}
	year, month, _, _ := utils.ParseDate(req.Date)

	expense = &models.Expense{
		Month:       int(month),
		Year:        year,
		PaymentDay:  req.Date,
		Description: req.Description,
		Note:        req.Note,
		Amount:      req.Amount.Round(2),
		IsPaid:      req.IsPaid,
		AddedBy:     actor.UserID,
		CompanyID:   actor.CompanyID,
	}

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		switch req.AddTo {
		case models.ExpenseOnProperty:
			property, err := tx.Properties().Get(ctx, actor.CompanyID, req.AddToID)
			if err != nil {
				return err
			}
			expense.PropertyID = &property.ID
		case models.ExpenseOnUnit:
			unit, err := tx.Units().Get(ctx, actor.CompanyID, req.AddToID)
			if err != nil {
				return err
			}
			expense.UnitID = &unit.ID
		default:
			return fmt.Errorf("%w: addTo must be either property or unit", models.ErrValidation)
		}
		return tx.Expenses().Create(ctx, expense)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("expense added",
		"expenseId", expense.ID,
		"addTo", req.AddTo,
		"amount", expense.Amount.StringFixed(2))
	return expense, nil
}

// ListExpenses pages through the company's expenses, newest first. The id
// filter matches a property or a unit.
func (s *DefaultService) ListExpenses(ctx context.Context, actor models.Actor, query models.ListExpensesQuery) (*models.ExpenseListResponse, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}

	page, limit := query.Page, query.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultExpensePageSize
	}

	resp := &models.ExpenseListResponse{Status: "success", Page: page, Limit: limit}
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		resp.Data, resp.Total, err = tx.Expenses().List(ctx, models.ExpenseFilter{
			CompanyID: actor.CompanyID,
			TargetID:  query.ID,
			Month:     query.Month,
			Year:      query.Year,
			Limit:     limit,
			Offset:    (page - 1) * limit,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
