package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rongwang/rentledger-server/internal/models"
)

// LeaseRepository persists leases. A unit's future leases are its pending
// leases and its history is its inactive leases.
type LeaseRepository interface {
	Create(ctx context.Context, lease *models.Lease) error
	Get(ctx context.Context, companyID, id string) (*models.Lease, error)
	ListByUnit(ctx context.Context, unitID, status string) ([]models.Lease, error)
	// Update writes the mutable lease fields, provided the stored status
	// still equals expectedStatus.
	Update(ctx context.Context, lease *models.Lease, expectedStatus string) error
	Delete(ctx context.Context, id string) error
}

type leaseRepo struct {
	q queryer
}

func (r *leaseRepo) Create(ctx context.Context, lease *models.Lease) error {
	if lease.ID == "" {
		lease.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	lease.CreatedAt = now
	lease.UpdatedAt = now

	return r.q.execOne(ctx, "insert lease", `
		INSERT INTO leases (
			id, lease_start, lease_end, status, is_closed, is_future_lease, is_eviction, eviction_reason,
			tenant_id, future_tenant_id, tenant_name, tenant_email, payment_customer_id,
			unit_id, property_id, company_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lease.ID, lease.LeaseStart, lease.LeaseEnd, lease.Status, lease.IsClosed, lease.IsFutureLease,
		lease.IsEviction, lease.EvictionReason, lease.TenantID, lease.FutureTenantID, lease.TenantName,
		lease.TenantEmail, lease.PaymentCustomerID, lease.UnitID, lease.PropertyID, lease.CompanyID,
		lease.CreatedAt, lease.UpdatedAt)
}

func (r *leaseRepo) Get(ctx context.Context, companyID, id string) (*models.Lease, error) {
	var lease models.Lease
	err := r.q.get(ctx, &lease, `SELECT * FROM leases WHERE id = ? AND company_id = ?`, id, companyID)
	if err != nil {
		return nil, notFound(err, "lease")
	}
	return &lease, nil
}

func (r *leaseRepo) ListByUnit(ctx context.Context, unitID, status string) ([]models.Lease, error) {
	leases := []models.Lease{}
	err := r.q.selectAll(ctx, &leases, `
		SELECT * FROM leases WHERE unit_id = ? AND status = ? ORDER BY lease_start`, unitID, status)
	return leases, err
}

func (r *leaseRepo) Update(ctx context.Context, lease *models.Lease, expectedStatus string) error {
	lease.UpdatedAt = time.Now().UTC()
	return r.q.execOne(ctx, "update lease", `
		UPDATE leases
		SET lease_start = ?, lease_end = ?, status = ?, is_closed = ?, is_future_lease = ?, is_eviction = ?, eviction_reason = ?,
			tenant_id = ?, future_tenant_id = ?, tenant_name = ?, tenant_email = ?, payment_customer_id = ?,
			updated_at = ?
		WHERE id = ? AND status = ?`,
		lease.LeaseStart, lease.LeaseEnd, lease.Status, lease.IsClosed, lease.IsFutureLease, lease.IsEviction, lease.EvictionReason,
		lease.TenantID, lease.FutureTenantID, lease.TenantName, lease.TenantEmail, lease.PaymentCustomerID,
		lease.UpdatedAt, lease.ID, expectedStatus)
}

func (r *leaseRepo) Delete(ctx context.Context, id string) error {
	return r.q.execOne(ctx, "delete lease", `DELETE FROM leases WHERE id = ?`, id)
}
