package service

import (
	"context"
	"fmt"

	"github.com/rongwang/rentledger-server/internal/ledger"
	"github.com/rongwang/rentledger-server/internal/models"
	"github.com/rongwang/rentledger-server/internal/payment"
	"github.com/rongwang/rentledger-server/internal/repository"
	"github.com/rongwang/rentledger-server/internal/utils"
)

// AddIncome charges the tenant's card and applies the payment to the
// lease's unpaid ledgers, oldest payment day first. Ledger balances are only
// written when the gateway accepted the charge.
func (s *DefaultService) AddIncome(ctx context.Context, actor models.Actor, req models.AddIncomeRequest) (resp *models.IncomeResponse, err error) {
	ctx, done := s.begin(ctx, "add_income")
	defer func() { done(err) }()

	if !utils.IsValidDate(req.Date) {
		return nil, fmt.Errorf("%w: invalid payment date", models.ErrValidation)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be greater than 0", models.ErrValidation)
	}
	year, month, _, _ := utils.ParseDate(req.Date)

	resp = &models.IncomeResponse{Status: "success"}
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		lease, err := tx.Leases().Get(ctx, actor.CompanyID, req.LeaseID)
		if err != nil {
			return err
		}
		if !actor.IsManager() && (lease.TenantID == nil || *lease.TenantID != actor.UserID) {
			return fmt.Errorf("%w: payments can only be added to your own lease", models.ErrForbidden)
		}
		if lease.Status != models.LeaseStatusActive || lease.TenantID == nil {
			return fmt.Errorf("%w: payments can only be added to an active lease", models.ErrConflict)
		}

		unpaid, err := tx.Ledgers().ListUnpaidByLease(ctx, lease.ID)
		if err != nil {
			return err
		}
		plan, err := ledger.ApplyPayment(req.Amount, unpaid)
		if err != nil {
			return err
		}

		tenant, err := tx.Users().GetByID(ctx, *lease.TenantID)
		if err != nil {
			return err
		}

		txn, err := s.gateway.Charge(ctx, payment.ChargeRequest{
			CustomerID:  lease.PaymentCustomerID,
			Name:        tenant.Name,
			Email:       tenant.Email,
			Amount:      req.Amount.Round(2),
			CardNumber:  req.CardNumber,
			Exp:         req.Exp,
			CVV:         req.CVV,
			Description: req.Description,
		})
		if err != nil {
			return err
		}

		for _, alloc := range plan {
			if err := tx.Ledgers().ApplyAllocation(ctx, alloc); err != nil {
				return err
			}
		}

		income := &models.Income{
			Month:         int(month),
			Year:          year,
			PaymentDay:    req.Date,
			Description:   req.Description,
			Note:          req.Note,
			Amount:        req.Amount.Round(2),
			GatewayRefNum: txn.GatewayRefNum,
			GatewayStatus: txn.GatewayStatus,
			AddedBy:       actor.UserID,
			LeaseID:       lease.ID,
			UnitID:        lease.UnitID,
			PropertyID:    lease.PropertyID,
			CompanyID:     lease.CompanyID,
		}
		if err := tx.Incomes().Create(ctx, income); err != nil {
			return fmt.Errorf("error creating income: %w", err)
		}

		applied := make([]models.IncomeLedger, 0, len(plan))
		for _, alloc := range plan {
			applied = append(applied, models.IncomeLedger{
				IncomeID:      income.ID,
				LedgerEntryID: alloc.LedgerEntryID,
				AppliedAmount: alloc.Applied,
			})
		}
		if err := tx.Incomes().AddAllocations(ctx, applied); err != nil {
			return fmt.Errorf("error recording income allocations: %w", err)
		}

		// remember the gateway customer for the next payment
		if lease.PaymentCustomerID == "" && txn.CustomerID != "" {
			lease.PaymentCustomerID = txn.CustomerID
			if err := tx.Leases().Update(ctx, lease, models.LeaseStatusActive); err != nil {
				return err
			}
		}

		resp.Income = income
		resp.Applied = applied
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("income added",
		"incomeId", resp.Income.ID,
		"leaseId", req.LeaseID,
		"amount", resp.Income.Amount.StringFixed(2),
		"ledgers", len(resp.Applied))
	return resp, nil
}

// ListIncomes returns the payments made on a lease together with the ledger
// entries each one settled
func (s *DefaultService) ListIncomes(ctx context.Context, actor models.Actor, leaseID string) (*models.IncomeListResponse, error) {
	resp := &models.IncomeListResponse{Status: "success", Incomes: []models.IncomeDetail{}}
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		lease, err := tx.Leases().Get(ctx, actor.CompanyID, leaseID)
		if err != nil {
			return err
		}
		if !actor.IsManager() && (lease.TenantID == nil || *lease.TenantID != actor.UserID) {
			return fmt.Errorf("%w: lease", models.ErrNotFound)
		}

		incomes, err := tx.Incomes().ListByLease(ctx, lease.ID)
		if err != nil {
			return err
		}
		for _, income := range incomes {
			applied, err := tx.Incomes().ListAllocations(ctx, income.ID)
			if err != nil {
				return err
			}
			resp.Incomes = append(resp.Incomes, models.IncomeDetail{Income: income, Applied: applied})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
