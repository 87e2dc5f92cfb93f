package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rongwang/rentledger-server/internal/ledger"
	"github.com/rongwang/rentledger-server/internal/metrics"
	"github.com/rongwang/rentledger-server/internal/models"
	"github.com/rongwang/rentledger-server/internal/repository"
	"github.com/rongwang/rentledger-server/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// AddLease converts an approved prospect into a lease. Depending on the
// dates relative to today the lease is created pending (future), active or
// inactive and closed (backdated).
func (s *DefaultService) AddLease(ctx context.Context, actor models.Actor, req models.AddLeaseRequest) (resp *models.LeaseResponse, err error) {
	ctx, done := s.begin(ctx, "add_lease")
	defer func() { done(err) }()

	if err := requireManager(actor); err != nil {
		return nil, err
	}
	if err := validateLeaseDates(req.LeaseStart, req.LeaseEnd); err != nil {
		return nil, err
	}
	charges, err := ledger.ValidateCharges(req.RentCharges)
	if err != nil {
		return nil, err
	}

	today := s.today()
	isFuture := req.LeaseStart > today
	isPast := req.LeaseEnd < today

	if !isPast {
		if strings.TrimSpace(req.Tenant.Name) == "" || req.Tenant.Email == "" || req.Tenant.Password == "" {
			return nil, fmt.Errorf("%w: tenant name, email and password are required", models.ErrValidation)
		}
	}

	resp = &models.LeaseResponse{Status: "success"}
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		prospect, err := tx.Prospects().Get(ctx, actor.CompanyID, req.ProspectID)
		if err != nil {
			return err
		}
		if prospect.UnitID != req.UnitID || prospect.PropertyID != req.PropertyID {
			return fmt.Errorf("%w: prospect is not associated with the given unit", models.ErrValidation)
		}
		if !prospect.IsApproved {
			return fmt.Errorf("%w: the prospect is not approved yet, approve it before assigning a unit", models.ErrValidation)
		}

		unit, err := tx.Units().Get(ctx, actor.CompanyID, req.UnitID)
		if err != nil {
			return err
		}
		if unit.PropertyID != req.PropertyID {
			return fmt.Errorf("%w: unit does not belong to the given property", models.ErrValidation)
		}
		if _, err := tx.Properties().Get(ctx, actor.CompanyID, req.PropertyID); err != nil {
			return err
		}

		if err := s.checkAvailability(ctx, tx, unit, models.DateRange{Start: req.LeaseStart, End: req.LeaseEnd}, ""); err != nil {
			return err
		}
		if !isFuture && !isPast && unit.IsOccupied {
			return fmt.Errorf("%w: the unit is already occupied by another tenant", models.ErrConflict)
		}

		lease := &models.Lease{
			ID:         uuid.New().String(),
			LeaseStart: req.LeaseStart,
			LeaseEnd:   req.LeaseEnd,
			UnitID:     unit.ID,
			PropertyID: unit.PropertyID,
			CompanyID:  actor.CompanyID,
		}

		// Tenant operations if in present or future
		var tenantID *string
		if !isPast {
			tenant, err := s.createTenant(ctx, tx, actor.CompanyID, req.Tenant)
			if err != nil {
				return err
			}
			tenantID = &tenant.ID
		}

		generated, err := ledger.Generate(ledger.Params{
			LeaseStart: req.LeaseStart,
			LeaseEnd:   req.LeaseEnd,
			Today:      today,
			Charges:    charges,
			TenantID:   tenantID,
			LeaseID:    lease.ID,
			UnitID:     unit.ID,
			PropertyID: unit.PropertyID,
			CompanyID:  actor.CompanyID,
			Location:   s.loc,
		})
		if err != nil {
			return err
		}

		switch {
		case isFuture:
			lease.Status = models.LeaseStatusPending
			lease.IsFutureLease = true
			lease.FutureTenantID = tenantID
		case isPast:
			lease.Status = models.LeaseStatusInactive
			lease.IsClosed = true
			lease.TenantName = req.Tenant.Name
			lease.TenantEmail = req.Tenant.Email
		default:
			lease.Status = models.LeaseStatusActive
			lease.TenantID = tenantID
		}

		if s.registerGatewayCustomer && tenantID != nil {
			customerID, err := s.gateway.CreateCustomer(ctx, req.Tenant.Name, req.Tenant.Email)
			if err != nil {
				return err
			}
			lease.PaymentCustomerID = customerID
		}

		if err := tx.Leases().Create(ctx, lease); err != nil {
			return fmt.Errorf("error creating lease: %w", err)
		}
		if err := tx.RentCharges().CreateBatch(ctx, generated.Rents); err != nil {
			return fmt.Errorf("error creating rent charges: %w", err)
		}
		resp.RentCharges = generated.Rents
		resp.Ledgers = []models.LedgerEntry{}
		if !isFuture {
			if err := tx.Ledgers().CreateBatch(ctx, generated.Ledgers); err != nil {
				return fmt.Errorf("error creating ledgers: %w", err)
			}
			resp.Ledgers = generated.Ledgers
		}

		if lease.Status == models.LeaseStatusActive {
			if err := tx.Properties().AdjustOccupied(ctx, unit.PropertyID, 1); err != nil {
				return err
			}
			if err := tx.Units().Occupy(ctx, unit, lease.ID, *tenantID); err != nil {
				return err
			}
		} else if err := tx.Units().Touch(ctx, unit); err != nil {
			return err
		}

		// the prospect has been converted into a lease and tenant
		if err := tx.Prospects().Delete(ctx, prospect.ID); err != nil {
			return err
		}

		resp.Lease = lease
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AddLedgerEntries(len(resp.Ledgers))
	s.logger.Info("lease added", "leaseId", resp.Lease.ID, "status", resp.Lease.Status, "ledgers", len(resp.Ledgers))
	return resp, nil
}

// StartLease activates a pending lease from today. Ledgers are generated
// from today, the first month prorated, reusing the stored rent charges.
func (s *DefaultService) StartLease(ctx context.Context, actor models.Actor, leaseID string) (resp *models.LeaseResponse, err error) {
	ctx, done := s.begin(ctx, "start_lease")
	defer func() { done(err) }()

	if err := requireManager(actor); err != nil {
		return nil, err
	}

	today := s.today()
	resp = &models.LeaseResponse{Status: "success"}
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		lease, err := tx.Leases().Get(ctx, actor.CompanyID, leaseID)
		if err != nil {
			return err
		}
		if lease.Status != models.LeaseStatusPending || lease.IsClosed {
			return fmt.Errorf("%w: only a future lease can be started", models.ErrConflict)
		}
		if lease.FutureTenantID == nil {
			return fmt.Errorf("%w: future lease %s has no tenant", models.ErrConsistency, lease.ID)
		}

		unit, err := tx.Units().Get(ctx, actor.CompanyID, lease.UnitID)
		if err != nil {
			return err
		}
		if unit.IsOccupied {
			return fmt.Errorf("%w: the unit is already occupied by another tenant", models.ErrConflict)
		}
		if lease.LeaseEnd < today {
			return fmt.Errorf("%w: lease end date for this tenant has passed, the lease can not be started", models.ErrConflict)
		}

		// moving the start to today must not run into another scheduled lease
		if err := s.checkAvailability(ctx, tx, unit, models.DateRange{Start: today, End: lease.LeaseEnd}, lease.ID); err != nil {
			return err
		}

		rents, err := tx.RentCharges().ListByLease(ctx, lease.ID)
		if err != nil {
			return err
		}
		generated, err := ledger.Generate(ledger.Params{
			LeaseStart:        today,
			LeaseEnd:          lease.LeaseEnd,
			Today:             today,
			ProrateFirstMonth: true,
			Charges:           rents,
			TenantID:          lease.FutureTenantID,
			LeaseID:           lease.ID,
			UnitID:            lease.UnitID,
			PropertyID:        lease.PropertyID,
			CompanyID:         lease.CompanyID,
			Location:          s.loc,
		})
		if err != nil {
			return err
		}
		if err := tx.Ledgers().CreateBatch(ctx, generated.Ledgers); err != nil {
			return fmt.Errorf("error creating ledgers: %w", err)
		}

		tenantID := *lease.FutureTenantID
		lease.LeaseStart = today
		lease.Status = models.LeaseStatusActive
		lease.IsFutureLease = false
		lease.TenantID = &tenantID
		lease.FutureTenantID = nil
		if err := tx.Leases().Update(ctx, lease, models.LeaseStatusPending); err != nil {
			return err
		}

		if err := tx.Properties().AdjustOccupied(ctx, lease.PropertyID, 1); err != nil {
			return err
		}
		if err := tx.Units().Occupy(ctx, unit, lease.ID, tenantID); err != nil {
			return err
		}

		resp.Lease = lease
		resp.RentCharges = rents
		resp.Ledgers = generated.Ledgers
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AddLedgerEntries(len(resp.Ledgers))
	s.logger.Info("lease started", "leaseId", leaseID, "leaseStart", today)
	return resp, nil
}

// RenewLease extends an active lease to a new month-end date. New rent
// charges and ledgers are appended; existing ones are left untouched.
func (s *DefaultService) RenewLease(ctx context.Context, actor models.Actor, leaseID string, req models.RenewLeaseRequest) (resp *models.LeaseResponse, err error) {
	ctx, done := s.begin(ctx, "renew_lease")
	defer func() { done(err) }()

	if err := requireManager(actor); err != nil {
		return nil, err
	}
	if !utils.IsValidDate(req.LeaseEnd) {
		return nil, fmt.Errorf("%w: invalid lease end date", models.ErrValidation)
	}
	if !utils.IsMonthEnd(req.LeaseEnd) {
		return nil, fmt.Errorf("%w: lease end date must be the last day of the given month", models.ErrValidation)
	}
	charges, err := ledger.ValidateCharges(req.RentCharges)
	if err != nil {
		return nil, err
	}

	today := s.today()
	var appended int
	resp = &models.LeaseResponse{Status: "success"}
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		lease, err := tx.Leases().Get(ctx, actor.CompanyID, leaseID)
		if err != nil {
			return err
		}
		if lease.Status != models.LeaseStatusActive || lease.IsClosed || lease.IsEviction || lease.IsFutureLease {
			return fmt.Errorf("%w: only an active lease can be renewed", models.ErrConflict)
		}
		if req.LeaseEnd <= lease.LeaseEnd {
			return fmt.Errorf("%w: new lease end must be after the current lease end %s", models.ErrValidation, lease.LeaseEnd)
		}

		newStart, err := utils.AddDays(lease.LeaseEnd, 1)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrConsistency, err)
		}

		unit, err := tx.Units().Get(ctx, actor.CompanyID, lease.UnitID)
		if err != nil {
			return err
		}
		pending, err := s.pendingRanges(ctx, tx, unit.ID, "")
		if err != nil {
			return err
		}
		if err := ledger.ValidateRange(models.DateRange{Start: newStart, End: req.LeaseEnd}, nil, pending); err != nil {
			return err
		}

		generated, err := ledger.Generate(ledger.Params{
			LeaseStart: newStart,
			LeaseEnd:   req.LeaseEnd,
			Today:      today,
			Charges:    charges,
			TenantID:   lease.TenantID,
			LeaseID:    lease.ID,
			UnitID:     lease.UnitID,
			PropertyID: lease.PropertyID,
			CompanyID:  lease.CompanyID,
			Location:   s.loc,
		})
		if err != nil {
			return err
		}
		if err := tx.RentCharges().CreateBatch(ctx, generated.Rents); err != nil {
			return fmt.Errorf("error creating rent charges: %w", err)
		}
		if err := tx.Ledgers().CreateBatch(ctx, generated.Ledgers); err != nil {
			return fmt.Errorf("error creating ledgers: %w", err)
		}
		appended = len(generated.Ledgers)

		lease.LeaseEnd = req.LeaseEnd
		if err := tx.Leases().Update(ctx, lease, models.LeaseStatusActive); err != nil {
			return err
		}
		if err := tx.Units().Touch(ctx, unit); err != nil {
			return err
		}

		resp.Lease = lease
		if resp.RentCharges, err = tx.RentCharges().ListByLease(ctx, lease.ID); err != nil {
			return err
		}
		resp.Ledgers, err = tx.Ledgers().ListByLease(ctx, lease.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.AddLedgerEntries(appended)
	s.logger.Info("lease renewed", "leaseId", leaseID, "leaseEnd", req.LeaseEnd, "ledgers", appended)
	return resp, nil
}

// EndLease closes an active lease, frees the unit and removes the tenant
// account. The tenant's name and email are kept on the lease.
func (s *DefaultService) EndLease(ctx context.Context, actor models.Actor, leaseID string) (resp *models.LeaseResponse, err error) {
	ctx, done := s.begin(ctx, "end_lease")
	defer func() { done(err) }()

	if err := requireManager(actor); err != nil {
		return nil, err
	}

	resp = &models.LeaseResponse{Status: "success", RentCharges: []models.RentCharge{}, Ledgers: []models.LedgerEntry{}}
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		lease, err := tx.Leases().Get(ctx, actor.CompanyID, leaseID)
		if err != nil {
			return err
		}
		if lease.Status != models.LeaseStatusActive || lease.IsClosed || lease.IsEviction {
			return fmt.Errorf("%w: only an active lease can be ended", models.ErrConflict)
		}

		unit, err := tx.Units().Get(ctx, actor.CompanyID, lease.UnitID)
		if err != nil {
			return err
		}
		if unit.LeaseID == nil || *unit.LeaseID != lease.ID {
			return fmt.Errorf("%w: unit %s is not occupied by lease %s", models.ErrConsistency, unit.ID, lease.ID)
		}

		if !s.preserveLedgerHistory {
			if _, err := tx.RentCharges().DeleteByLease(ctx, lease.ID); err != nil {
				return fmt.Errorf("error deleting rent charges: %w", err)
			}
			if _, err := tx.Ledgers().DeleteByLease(ctx, lease.ID); err != nil {
				return fmt.Errorf("error deleting ledgers: %w", err)
			}
		}

		if err := tx.Properties().AdjustOccupied(ctx, lease.PropertyID, -1); err != nil {
			return err
		}
		if err := tx.Units().Vacate(ctx, unit); err != nil {
			return err
		}

		if lease.TenantID != nil {
			tenant, err := tx.Users().GetByID(ctx, *lease.TenantID)
			if err != nil {
				return err
			}
			lease.TenantName = tenant.Name
			lease.TenantEmail = tenant.Email
			if err := s.removeTenant(ctx, tx, actor.CompanyID, tenant.ID); err != nil {
				return err
			}
		}

		lease.TenantID = nil
		lease.Status = models.LeaseStatusInactive
		lease.IsClosed = true
		if err := tx.Leases().Update(ctx, lease, models.LeaseStatusActive); err != nil {
			return err
		}

		resp.Lease = lease
		if s.preserveLedgerHistory {
			if resp.RentCharges, err = tx.RentCharges().ListByLease(ctx, lease.ID); err != nil {
				return err
			}
			resp.Ledgers, err = tx.Ledgers().ListByLease(ctx, lease.ID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("lease ended", "leaseId", leaseID, "preserveLedgerHistory", s.preserveLedgerHistory)
	return resp, nil
}

// CancelMoveIn deletes a pending lease together with its rent charges and
// the tenant account created for it. Nothing of it is kept.
func (s *DefaultService) CancelMoveIn(ctx context.Context, actor models.Actor, leaseID string) (err error) {
	ctx, done := s.begin(ctx, "cancel_move_in")
	defer func() { done(err) }()

	if err := requireManager(actor); err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		lease, err := tx.Leases().Get(ctx, actor.CompanyID, leaseID)
		if err != nil {
			return err
		}
		if lease.Status != models.LeaseStatusPending || lease.IsClosed {
			return fmt.Errorf("%w: only a future lease can be cancelled", models.ErrConflict)
		}

		unit, err := tx.Units().Get(ctx, actor.CompanyID, lease.UnitID)
		if err != nil {
			return err
		}
		if err := tx.Units().Touch(ctx, unit); err != nil {
			return err
		}

		if _, err := tx.RentCharges().DeleteByLease(ctx, lease.ID); err != nil {
			return fmt.Errorf("error deleting rent charges: %w", err)
		}
		if _, err := tx.Ledgers().DeleteByLease(ctx, lease.ID); err != nil {
			return fmt.Errorf("error deleting ledgers: %w", err)
		}
		if lease.FutureTenantID != nil {
			if err := s.removeTenant(ctx, tx, actor.CompanyID, *lease.FutureTenantID); err != nil {
				return err
			}
		}
		return tx.Leases().Delete(ctx, lease.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("move-in cancelled", "leaseId", leaseID)
	return nil
}

// GetLease returns a lease with its rent charges and ledgers. Tenants may
// only read their own lease.
func (s *DefaultService) GetLease(ctx context.Context, actor models.Actor, leaseID string) (*models.LeaseResponse, error) {
	resp := &models.LeaseResponse{Status: "success"}
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		lease, err := tx.Leases().Get(ctx, actor.CompanyID, leaseID)
		if err != nil {
			return err
		}
		if !actor.IsManager() && (lease.TenantID == nil || *lease.TenantID != actor.UserID) {
			return fmt.Errorf("%w: lease", models.ErrNotFound)
		}
		resp.Lease = lease
		if resp.RentCharges, err = tx.RentCharges().ListByLease(ctx, lease.ID); err != nil {
			return err
		}
		resp.Ledgers, err = tx.Ledgers().ListByLease(ctx, lease.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetUnitOccupancy returns the unit with its current lease, its scheduled
// future leases and its lease history
func (s *DefaultService) GetUnitOccupancy(ctx context.Context, actor models.Actor, unitID string) (*models.UnitOccupancyResponse, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}

	resp := &models.UnitOccupancyResponse{Status: "success"}
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		unit, err := tx.Units().Get(ctx, actor.CompanyID, unitID)
		if err != nil {
			return err
		}
		resp.Unit = unit
		if unit.LeaseID != nil {
			if resp.CurrentLease, err = tx.Leases().Get(ctx, actor.CompanyID, *unit.LeaseID); err != nil {
				return err
			}
		}
		if resp.FutureLeases, err = tx.Leases().ListByUnit(ctx, unit.ID, models.LeaseStatusPending); err != nil {
			return err
		}
		resp.LeaseHistory, err = tx.Leases().ListByUnit(ctx, unit.ID, models.LeaseStatusInactive)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// validateLeaseDates checks format, order and that the lease ends on a
// month boundary
func validateLeaseDates(start, end string) error {
	if !utils.IsValidDate(start) || !utils.IsValidDate(end) {
		return fmt.Errorf("%w: invalid date range", models.ErrValidation)
	}
	if start >= end {
		return fmt.Errorf("%w: lease start date must be before lease end date", models.ErrValidation)
	}
	if !utils.IsMonthEnd(end) {
		return fmt.Errorf("%w: lease end date must be the last day of the given month", models.ErrValidation)
	}
	return nil
}

// checkAvailability validates a candidate range against the unit's current
// lease and pending leases, skipping the lease identified by exclude. Callers
// have already checked the range order.
func (s *DefaultService) checkAvailability(ctx context.Context, tx repository.Tx, unit *models.Unit, candidate models.DateRange, exclude string) error {
	var occupied *models.DateRange
	if unit.LeaseID != nil && *unit.LeaseID != exclude {
		current, err := tx.Leases().Get(ctx, unit.CompanyID, *unit.LeaseID)
		if err != nil {
			return fmt.Errorf("%w: occupied lease of unit %s: %v", models.ErrConsistency, unit.ID, err)
		}
		period := current.Period()
		occupied = &period
	}

	pending, err := s.pendingRanges(ctx, tx, unit.ID, exclude)
	if err != nil {
		return err
	}
	return ledger.CheckOverlap(candidate, occupied, pending)
}

func (s *DefaultService) pendingRanges(ctx context.Context, tx repository.Tx, unitID, exclude string) ([]models.DateRange, error) {
	leases, err := tx.Leases().ListByUnit(ctx, unitID, models.LeaseStatusPending)
	if err != nil {
		return nil, err
	}
	ranges := make([]models.DateRange, 0, len(leases))
	for i := range leases {
		if leases[i].ID == exclude {
			continue
		}
		ranges = append(ranges, leases[i].Period())
	}
	return ranges, nil
}

// createTenant adds a tenant account to the company. The email must not be
// used by any user or company.
func (s *DefaultService) createTenant(ctx context.Context, tx repository.Tx, companyID string, in models.TenantInput) (*models.User, error) {
	if err := s.ensureEmailFree(ctx, tx, in.Email); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	tenant := &models.User{
		Email:     in.Email,
		Name:      in.Name,
		Password:  string(hashedPassword),
		Role:      models.RoleTenant,
		CompanyID: companyID,
	}
	if err := tx.Users().Create(ctx, tenant); err != nil {
		return nil, fmt.Errorf("error creating tenant: %w", err)
	}
	if err := tx.Users().AddToCompany(ctx, companyID, tenant.ID); err != nil {
		return nil, err
	}
	return tenant, nil
}

func (s *DefaultService) removeTenant(ctx context.Context, tx repository.Tx, companyID, tenantID string) error {
	if err := tx.Users().RemoveFromCompany(ctx, companyID, tenantID); err != nil {
		return err
	}
	return tx.Users().Delete(ctx, tenantID)
}
