package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillingAccount holds the running balance for one customer. A positive
// balance is owed by the customer, a negative one is credit.
type BillingAccount struct {
	CustomerID uuid.UUID
	Balance    decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type BalanceAdjustment struct {
	ID            uuid.UUID
	CustomerID    uuid.UUID
	// InvoiceID is set when the adjustment charges an invoice.
	InvoiceID     *uuid.UUID
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Description   string
	CreatedAt     time.Time
}

type BalanceUpdate struct {
	PreviousBalance decimal.Decimal
	AmountAdjusted  decimal.Decimal
	NewBalance      decimal.Decimal
}
