package models

import "github.com/shopspring/decimal"

// Request models
type RegisterCompanyRequest struct {
	CompanyName string `json:"companyName" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	Name        string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AddStaffRequest struct {
	Name     string `json:"name" binding:"required,min=3"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type AddPropertyRequest struct {
	Name       string `json:"name" binding:"required,min=3"`
	Address    string `json:"address" binding:"required"`
	City       string `json:"city" binding:"required"`
	TotalUnits int    `json:"totalUnits" binding:"required,min=1"`
}

type AddUnitRequest struct {
	PropertyID  string `json:"propertyId" binding:"required"`
	UnitNumber  string `json:"unitNumber" binding:"required"`
	Description string `json:"description"`
}

type AddProspectRequest struct {
	Name       string `json:"name" binding:"required,min=3"`
	Email      string `json:"email" binding:"required,email"`
	PropertyID string `json:"propertyId" binding:"required"`
	UnitID     string `json:"unitId" binding:"required"`
	IsApproved *bool  `json:"isApproved"`
}

type ProspectApprovalRequest struct {
	IsApproved bool `json:"isApproved"`
}

// RentChargeInput describes one recurring charge on a lease request
type RentChargeInput struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" binding:"required"`
	Notes       string          `json:"notes"`
	Frequency   string          `json:"frequency" binding:"required"`
	PaymentDay  int             `json:"paymentDay" binding:"required"`
}

// TenantInput carries the account details for the tenant user. Only name
// and email are kept for a backdated lease, so none of it is required here.
type TenantInput struct {
	Name     string `json:"name" binding:"omitempty,min=3"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"omitempty,min=8"`
}

type AddLeaseRequest struct {
	LeaseStart  string            `json:"leaseStart" binding:"required"`
	LeaseEnd    string            `json:"leaseEnd" binding:"required"`
	RentCharges []RentChargeInput `json:"rentCharges" binding:"required,min=1,dive"`
	Tenant      TenantInput       `json:"tenant"`
	PropertyID  string            `json:"propertyId" binding:"required"`
	UnitID      string            `json:"unitId" binding:"required"`
	ProspectID  string            `json:"prospectId" binding:"required"`
}

type RenewLeaseRequest struct {
	LeaseEnd    string            `json:"leaseEnd" binding:"required"`
	RentCharges []RentChargeInput `json:"rentCharges" binding:"required,min=1,dive"`
}

type AddIncomeRequest struct {
	Date        string          `json:"date" binding:"required"`
	Description string          `json:"description" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Note        string          `json:"note"`
	CardNumber  string          `json:"cardNumber" binding:"required"`
	Exp         string          `json:"exp" binding:"required"`
	CVV         string          `json:"cvv" binding:"required"`
	LeaseID     string          `json:"leaseId" binding:"required"`
}

// Expense targets
const (
	ExpenseOnProperty = "property"
	ExpenseOnUnit     = "unit"
)

type AddExpenseRequest struct {
	Date        string          `json:"date" binding:"required"`
	Description string          `json:"description" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Note        string          `json:"note"`
	IsPaid      bool            `json:"isPaid"`
	AddTo       string          `json:"addTo" binding:"required,oneof=property unit"`
	AddToID     string          `json:"addToId" binding:"required"`
}

// ListExpensesQuery is bound from the query string
type ListExpensesQuery struct {
	ID    string `form:"id"`
	Month int    `form:"month" binding:"omitempty,min=1,max=12"`
	Year  int    `form:"year" binding:"omitempty,min=1"`
	Page  int    `form:"page" binding:"omitempty,min=1"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	UserID    string `json:"userId,omitempty"`
	CompanyID string `json:"companyId,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type LeaseResponse struct {
	Status      string        `json:"status"`
	Lease       *Lease        `json:"lease"`
	RentCharges []RentCharge  `json:"rentCharges"`
	Ledgers     []LedgerEntry `json:"ledgers"`
}

type UnitOccupancyResponse struct {
	Status       string  `json:"status"`
	Unit         *Unit   `json:"unit"`
	CurrentLease *Lease  `json:"currentLease"`
	FutureLeases []Lease `json:"futureLeases"`
	LeaseHistory []Lease `json:"leaseHistory"`
}

type IncomeResponse struct {
	Status  string         `json:"status"`
	Income  *Income        `json:"income"`
	Applied []IncomeLedger `json:"applied"`
}

type MembersResponse struct {
	Status  string `json:"status"`
	Members []User `json:"members"`
}

type ExpenseListResponse struct {
	Status string    `json:"status"`
	Data   []Expense `json:"data"`
	Total  int       `json:"total"`
	Page   int       `json:"page"`
	Limit  int       `json:"limit"`
}

// IncomeDetail is an income with the ledger entries it settled
type IncomeDetail struct {
	Income
	Applied []IncomeLedger `json:"applied"`
}

type IncomeListResponse struct {
	Status  string         `json:"status"`
	Incomes []IncomeDetail `json:"incomes"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
