package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/isp-billing/internal/domain"
	"github.com/shopspring/decimal"
)

type invoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	FindRecurringInRange(ctx context.Context, serviceID uuid.UUID, from, to time.Time) (*domain.Invoice, error)
	ListUncharged(ctx context.Context, serviceID uuid.UUID) ([]domain.Invoice, error)
}

type billingAccountRepository interface {
	Create(ctx context.Context, customerID uuid.UUID) (bool, error)
	GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*domain.BillingAccount, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, customerID uuid.UUID) (*domain.BillingAccount, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, customerID uuid.UUID, newBalance decimal.Decimal) error
}

type adjustmentRepository interface {
	Create(ctx context.Context, tx *sql.Tx, adj *domain.BalanceAdjustment) error
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]domain.BalanceAdjustment, int, error)
}

type customerServiceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CustomerService, error)
	Activate(ctx context.Context, id uuid.UUID, activationDate, nextBillingDate time.Time) error
}
