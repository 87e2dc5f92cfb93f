package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rongwang/rentledger-server/internal/models"
)

// PropertyRepository persists properties and their occupancy counters
type PropertyRepository interface {
	Create(ctx context.Context, property *models.Property) error
	Get(ctx context.Context, companyID, id string) (*models.Property, error)
	// AdjustOccupied adds delta to occupied_units, refusing to leave the
	// [0, units_count] range.
	AdjustOccupied(ctx context.Context, id string, delta int) error
	// IncrementUnitsCount refuses to go past total_units.
	IncrementUnitsCount(ctx context.Context, id string) error
}

// UnitRepository persists units. Every lifecycle write is a compare-and-set
// on the unit version, which serializes operations on the same unit.
type UnitRepository interface {
	Create(ctx context.Context, unit *models.Unit) error
	Get(ctx context.Context, companyID, id string) (*models.Unit, error)
	UnitNumberExists(ctx context.Context, propertyID, unitNumber string) (bool, error)
	Occupy(ctx context.Context, unit *models.Unit, leaseID, tenantID string) error
	Vacate(ctx context.Context, unit *models.Unit) error
	// Touch bumps the version without changing occupancy.
	Touch(ctx context.Context, unit *models.Unit) error
}

// ProspectRepository persists prospects
type ProspectRepository interface {
	Create(ctx context.Context, prospect *models.Prospect) error
	Get(ctx context.Context, companyID, id string) (*models.Prospect, error)
	SetApproval(ctx context.Context, id string, approved bool) error
	Delete(ctx context.Context, id string) error
}

type propertyRepo struct {
	q queryer
}

func (r *propertyRepo) Create(ctx context.Context, property *models.Property) error {
	if property.ID == "" {
		property.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	property.CreatedAt = now
	property.UpdatedAt = now

	return r.q.execOne(ctx, "insert property", `
		INSERT INTO properties (id, company_id, name, address, city, total_units, units_count, occupied_units, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		property.ID, property.CompanyID, property.Name, property.Address, property.City,
		property.TotalUnits, property.UnitsCount, property.OccupiedUnits, property.CreatedAt, property.UpdatedAt)
}

func (r *propertyRepo) Get(ctx context.Context, companyID, id string) (*models.Property, error) {
	var property models.Property
	err := r.q.get(ctx, &property, `SELECT * FROM properties WHERE id = ? AND company_id = ?`, id, companyID)
	if err != nil {
		return nil, notFound(err, "property")
	}
	return &property, nil
}

func (r *propertyRepo) AdjustOccupied(ctx context.Context, id string, delta int) error {
	return r.q.execOne(ctx, "update property occupancy", `
		UPDATE properties
		SET occupied_units = occupied_units + ?, updated_at = ?
		WHERE id = ? AND occupied_units + ? >= 0 AND occupied_units + ? <= units_count`,
		delta, time.Now().UTC(), id, delta, delta)
}

func (r *propertyRepo) IncrementUnitsCount(ctx context.Context, id string) error {
	return r.q.execOne(ctx, "update property units count", `
		UPDATE properties
		SET units_count = units_count + 1, updated_at = ?
		WHERE id = ? AND units_count < total_units`,
		time.Now().UTC(), id)
}

type unitRepo struct {
	q queryer
}

func (r *unitRepo) Create(ctx context.Context, unit *models.Unit) error {
	if unit.ID == "" {
		unit.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	unit.CreatedAt = now
	unit.UpdatedAt = now

	return r.q.execOne(ctx, "insert unit", `
		INSERT INTO units (id, property_id, company_id, unit_number, description, is_occupied, lease_id, tenant_id, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		unit.ID, unit.PropertyID, unit.CompanyID, unit.UnitNumber, unit.Description,
		unit.IsOccupied, unit.LeaseID, unit.TenantID, unit.Version, unit.CreatedAt, unit.UpdatedAt)
}

func (r *unitRepo) Get(ctx context.Context, companyID, id string) (*models.Unit, error) {
	var unit models.Unit
	err := r.q.get(ctx, &unit, `SELECT * FROM units WHERE id = ? AND company_id = ?`, id, companyID)
	if err != nil {
		return nil, notFound(err, "unit")
	}
	return &unit, nil
}

func (r *unitRepo) UnitNumberExists(ctx context.Context, propertyID, unitNumber string) (bool, error) {
	return r.q.exists(ctx,
		`SELECT COUNT(*) FROM units WHERE property_id = ? AND unit_number = ?`, propertyID, unitNumber)
}

func (r *unitRepo) Occupy(ctx context.Context, unit *models.Unit, leaseID, tenantID string) error {
	now := time.Now().UTC()
	err := r.q.execOne(ctx, "occupy unit", `
		UPDATE units
		SET is_occupied = ?, lease_id = ?, tenant_id = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND is_occupied = ?`,
		true, leaseID, tenantID, now, unit.ID, unit.Version, false)
	if err != nil {
		return err
	}
	unit.IsOccupied = true
	unit.LeaseID = &leaseID
	unit.TenantID = &tenantID
	unit.Version++
	unit.UpdatedAt = now
	return nil
}

func (r *unitRepo) Vacate(ctx context.Context, unit *models.Unit) error {
	now := time.Now().UTC()
	err := r.q.execOne(ctx, "vacate unit", `
		UPDATE units
		SET is_occupied = ?, lease_id = NULL, tenant_id = NULL, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND is_occupied = ?`,
		false, now, unit.ID, unit.Version, true)
	if err != nil {
		return err
	}
	unit.IsOccupied = false
	unit.LeaseID = nil
	unit.TenantID = nil
	unit.Version++
	unit.UpdatedAt = now
	return nil
}

func (r *unitRepo) Touch(ctx context.Context, unit *models.Unit) error {
	now := time.Now().UTC()
	err := r.q.execOne(ctx, "touch unit", `
		UPDATE units SET version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		now, unit.ID, unit.Version)
	if err != nil {
		return err
	}
	unit.Version++
	unit.UpdatedAt = now
	return nil
}

type prospectRepo struct {
	q queryer
}

func (r *prospectRepo) Create(ctx context.Context, prospect *models.Prospect) error {
	if prospect.ID == "" {
		prospect.ID = uuid.New().String()
	}
	prospect.CreatedAt = time.Now().UTC()

	return r.q.execOne(ctx, "insert prospect", `
		INSERT INTO prospects (id, name, email, is_approved, company_id, property_id, unit_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		prospect.ID, prospect.Name, prospect.Email, prospect.IsApproved,
		prospect.CompanyID, prospect.PropertyID, prospect.UnitID, prospect.CreatedAt)
}

func (r *prospectRepo) Get(ctx context.Context, companyID, id string) (*models.Prospect, error) {
	var prospect models.Prospect
	err := r.q.get(ctx, &prospect, `SELECT * FROM prospects WHERE id = ? AND company_id = ?`, id, companyID)
	if err != nil {
		return nil, notFound(err, "prospect")
	}
	return &prospect, nil
}

func (r *prospectRepo) SetApproval(ctx context.Context, id string, approved bool) error {
	return r.q.execOne(ctx, "update prospect approval",
		`UPDATE prospects SET is_approved = ? WHERE id = ?`, approved, id)
}

func (r *prospectRepo) Delete(ctx context.Context, id string) error {
	return r.q.execOne(ctx, "delete prospect", `DELETE FROM prospects WHERE id = ?`, id)
}
