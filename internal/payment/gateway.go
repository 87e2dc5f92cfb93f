// Package payment talks to the card payment gateway used for tenant
// payments.
package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway is the payment collaborator used by the lease service
type Gateway interface {
	// CreateCustomer registers a customer and returns its gateway id.
	CreateCustomer(ctx context.Context, name, email string) (string, error)
	// Charge runs a one-time card transaction.
	Charge(ctx context.Context, req ChargeRequest) (*Transaction, error)
}

// ChargeRequest describes a one-time card payment. When CustomerID is empty
// a customer is created first from Name and Email.
type ChargeRequest struct {
	CustomerID  string
	Name        string
	Email       string
	Amount      decimal.Decimal
	CardNumber  string
	Exp         string
	CVV         string
	Description string
}

// Transaction is the gateway's record of a processed payment
type Transaction struct {
	RefNum        string `json:"refNum"`
	GatewayRefNum string `json:"gatewayRefNum"`
	GatewayStatus string `json:"gatewayStatus"`
	CustomerID    string `json:"customerId"`
}
