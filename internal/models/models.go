package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User roles
const (
	RoleManager = "manager"
	RoleTenant  = "tenant"
)

// Lease statuses
const (
	LeaseStatusPending  = "pending"
	LeaseStatusActive   = "active"
	LeaseStatusInactive = "inactive"
)

// Rent charge frequencies. Only monthly charges are materialized into ledgers.
const (
	FrequencyMonthly = "monthly"
	FrequencyYearly  = "yearly"
)

// Company owns properties, units and users
type Company struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// User represents a manager or tenant account
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Password  string    `db:"password" json:"-"` // Password hash, not returned in JSON
	Role      string    `db:"role" json:"role"`
	CompanyID string    `db:"company_id" json:"companyId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Property groups units. OccupiedUnits is maintained incrementally.
type Property struct {
	ID            string    `db:"id" json:"id"`
	CompanyID     string    `db:"company_id" json:"companyId"`
	Name          string    `db:"name" json:"name"`
	Address       string    `db:"address" json:"address"`
	City          string    `db:"city" json:"city"`
	TotalUnits    int       `db:"total_units" json:"totalUnits"`
	UnitsCount    int       `db:"units_count" json:"unitsCount"`
	OccupiedUnits int       `db:"occupied_units" json:"occupiedUnits"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// Unit is a rentable space. LeaseID and TenantID point at the active lease.
type Unit struct {
	ID          string    `db:"id" json:"id"`
	PropertyID  string    `db:"property_id" json:"propertyId"`
	CompanyID   string    `db:"company_id" json:"companyId"`
	UnitNumber  string    `db:"unit_number" json:"unitNumber"`
	Description string    `db:"description" json:"description"`
	IsOccupied  bool      `db:"is_occupied" json:"isOccupied"`
	LeaseID     *string   `db:"lease_id" json:"leaseId"`
	TenantID    *string   `db:"tenant_id" json:"tenantId"`
	Version     int64     `db:"version" json:"version"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Prospect is an applicant who can be converted into a tenant
type Prospect struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Email      string    `db:"email" json:"email"`
	IsApproved bool      `db:"is_approved" json:"isApproved"`
	CompanyID  string    `db:"company_id" json:"companyId"`
	PropertyID string    `db:"property_id" json:"propertyId"`
	UnitID     string    `db:"unit_id" json:"unitId"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Lease is the aggregate root of the lifecycle. LeaseStart and LeaseEnd are
// inclusive YYYY-MM-DD dates.
type Lease struct {
	ID                string    `db:"id" json:"id"`
	LeaseStart        string    `db:"lease_start" json:"leaseStart"`
	LeaseEnd          string    `db:"lease_end" json:"leaseEnd"`
	Status            string    `db:"status" json:"status"`
	IsClosed          bool      `db:"is_closed" json:"isClosed"`
	IsFutureLease     bool      `db:"is_future_lease" json:"isFutureLease"`
	IsEviction        bool      `db:"is_eviction" json:"isEviction"`
	EvictionReason    string    `db:"eviction_reason" json:"evictionReason"`
	TenantID          *string   `db:"tenant_id" json:"tenantId"`
	FutureTenantID    *string   `db:"future_tenant_id" json:"futureTenantId"`
	TenantName        string    `db:"tenant_name" json:"tenantName"`
	TenantEmail       string    `db:"tenant_email" json:"tenantEmail"`
	PaymentCustomerID string    `db:"payment_customer_id" json:"paymentCustomerId,omitempty"`
	UnitID            string    `db:"unit_id" json:"unitId"`
	PropertyID        string    `db:"property_id" json:"propertyId"`
	CompanyID         string    `db:"company_id" json:"companyId"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

// Period returns the inclusive date range of the lease
func (l *Lease) Period() DateRange {
	return DateRange{Start: l.LeaseStart, End: l.LeaseEnd}
}

// DateRange is an inclusive range of canonical dates
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// RentCharge is a recurring obligation attached to a lease
type RentCharge struct {
	ID          string          `db:"id" json:"id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Description string          `db:"description" json:"description"`
	Notes       string          `db:"notes" json:"notes,omitempty"`
	Frequency   string          `db:"frequency" json:"frequency"`
	PaymentDay  int             `db:"payment_day" json:"paymentDay"`
	LeaseID     string          `db:"lease_id" json:"leaseId"`
	UnitID      string          `db:"unit_id" json:"unitId"`
	PropertyID  string          `db:"property_id" json:"propertyId"`
	CompanyID   string          `db:"company_id" json:"companyId"`
	TenantID    *string         `db:"tenant_id" json:"tenantId"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// LedgerEntry is one dated obligation derived from a rent charge.
// 0 <= Balance <= Amount and IsPaid == Balance.IsZero() at all times.
type LedgerEntry struct {
	ID           string          `db:"id" json:"id"`
	PaymentDay   string          `db:"payment_day" json:"paymentDay"`
	Description  string          `db:"description" json:"description"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Balance      decimal.Decimal `db:"balance" json:"balance"`
	IsPaid       bool            `db:"is_paid" json:"isPaid"`
	Frequency    string          `db:"frequency" json:"frequency"`
	RentChargeID string          `db:"rent_charge_id" json:"rentChargeId"`
	LeaseID      string          `db:"lease_id" json:"leaseId"`
	UnitID       string          `db:"unit_id" json:"unitId"`
	PropertyID   string          `db:"property_id" json:"propertyId"`
	CompanyID    string          `db:"company_id" json:"companyId"`
	TenantID     *string         `db:"tenant_id" json:"tenantId"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

// Income is a tenant payment that has been applied to ledger balances
type Income struct {
	ID            string          `db:"id" json:"id"`
	Month         int             `db:"month" json:"month"`
	Year          int             `db:"year" json:"year"`
	PaymentDay    string          `db:"payment_day" json:"paymentDay"`
	Description   string          `db:"description" json:"description"`
	Note          string          `db:"note" json:"note"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	GatewayRefNum string          `db:"gateway_ref_num" json:"gatewayRefNum"`
	GatewayStatus string          `db:"gateway_status" json:"gatewayStatus"`
	AddedBy       string          `db:"added_by" json:"addedBy"`
	LeaseID       string          `db:"lease_id" json:"leaseId"`
	UnitID        string          `db:"unit_id" json:"unitId"`
	PropertyID    string          `db:"property_id" json:"propertyId"`
	CompanyID     string          `db:"company_id" json:"companyId"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// Expense is a cost booked against either a property or one of its units
type Expense struct {
	ID          string          `db:"id" json:"id"`
	Month       int             `db:"month" json:"month"`
	Year        int             `db:"year" json:"year"`
	PaymentDay  string          `db:"payment_day" json:"paymentDay"`
	Description string          `db:"description" json:"description"`
	Note        string          `db:"note" json:"note"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	IsPaid      bool            `db:"is_paid" json:"isPaid"`
	IsApproved  bool            `db:"is_approved" json:"isApproved"`
	AddedBy     string          `db:"added_by" json:"addedBy"`
	ApprovedBy  *string         `db:"approved_by" json:"approvedBy"`
	PropertyID  *string         `db:"property_id" json:"propertyId"`
	UnitID      *string         `db:"unit_id" json:"unitId"`
	CompanyID   string          `db:"company_id" json:"companyId"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// ExpenseFilter narrows an expense listing. Zero fields match everything.
type ExpenseFilter struct {
	CompanyID string
	// TargetID matches either the property or the unit.
	TargetID string
	Month    int
	Year     int
	Limit    int
	Offset   int
}

// IncomeLedger records how much of an income was applied to one ledger entry
type IncomeLedger struct {
	IncomeID      string          `db:"income_id" json:"incomeId"`
	LedgerEntryID string          `db:"ledger_entry_id" json:"ledgerEntryId"`
	AppliedAmount decimal.Decimal `db:"applied_amount" json:"appliedAmount"`
}

// PaymentNotice is the read-only projection used by notification sweeps
type PaymentNotice struct {
	LeaseID       string          `db:"lease_id"`
	LedgerEntryID string          `db:"ledger_entry_id"`
	PaymentDay    string          `db:"payment_day"`
	Description   string          `db:"description"`
	Amount        decimal.Decimal `db:"amount"`
	Balance       decimal.Decimal `db:"balance"`
	TenantName    string          `db:"tenant_name"`
	TenantEmail   string          `db:"tenant_email"`
	CompanyEmail  string          `db:"company_email"`
	Address       string          `db:"address"`
	UnitNumber    string          `db:"unit_number"`
}

// LeaseNotice is the read-only projection for lease-level notifications,
// addressed to the company's contact email
type LeaseNotice struct {
	LeaseID      string `db:"lease_id"`
	LeaseStart   string `db:"lease_start"`
	LeaseEnd     string `db:"lease_end"`
	TenantName   string `db:"tenant_name"`
	CompanyEmail string `db:"company_email"`
	Address      string `db:"address"`
	UnitNumber   string `db:"unit_number"`
}

// Actor is the authenticated caller of a service operation
type Actor struct {
	UserID    string
	CompanyID string
	Role      string
}

// IsManager reports whether the actor manages the company
func (a Actor) IsManager() bool {
	return a.Role == RoleManager
}
