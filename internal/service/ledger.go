package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/josh-kwaku/isp-billing/internal/domain"
	"github.com/josh-kwaku/isp-billing/internal/logging"
	"github.com/josh-kwaku/isp-billing/internal/metrics"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultAdjustmentPageSize = 20
	maxAdjustmentPageSize     = 100
)

type LedgerService struct {
	db          *sql.DB
	accounts    billingAccountRepository
	adjustments adjustmentRepository
	metrics     *metrics.Metrics
}

func NewLedgerService(db *sql.DB, accounts billingAccountRepository, adjustments adjustmentRepository, m *metrics.Metrics) *LedgerService {
	return &LedgerService{db: db, accounts: accounts, adjustments: adjustments, metrics: m}
}

// UpdateAccountBalance adds amount to the customer's balance. Positive
// amounts increase what the customer owes. The account row is locked for the
// duration of the transaction, so concurrent updates apply one after another.
func (s *LedgerService) UpdateAccountBalance(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, description string) (update *domain.BalanceUpdate, err error) {
	ctx, span := tracer.Start(ctx, "LedgerService.UpdateAccountBalance")
	defer func() {
		s.metrics.LedgerUpdated(err)
		endSpan(span, err)
	}()
	span.SetAttributes(attribute.String("customer.id", customerID.String()))

	return s.apply(ctx, "UpdateAccountBalance", customerID, amount, description, nil)
}

// ChargeInvoice debits the invoice total and links the adjustment to the
// invoice. An invoice is charged at most once; a second charge fails with
// ErrAlreadyExists and leaves the balance untouched.
func (s *LedgerService) ChargeInvoice(ctx context.Context, inv *domain.Invoice, description string) (update *domain.BalanceUpdate, err error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ChargeInvoice")
	defer func() {
		s.metrics.LedgerUpdated(err)
		endSpan(span, err)
	}()

	if inv == nil || inv.ID == uuid.Nil {
		return nil, fmt.Errorf("ChargeInvoice: invoice is required: %w", domain.ErrInvalidInput)
	}
	span.SetAttributes(
		attribute.String("customer.id", inv.CustomerID.String()),
		attribute.String("invoice.id", inv.ID.String()),
	)

	return s.apply(ctx, "ChargeInvoice", inv.CustomerID, inv.TotalAmount, description, &inv.ID)
}

func (s *LedgerService) apply(ctx context.Context, op string, customerID uuid.UUID, amount decimal.Decimal, description string, invoiceID *uuid.UUID) (*domain.BalanceUpdate, error) {
	log := logging.FromContext(ctx)

	if customerID == uuid.Nil {
		return nil, fmt.Errorf("%s: customer id is required: %w", op, domain.ErrInvalidInput)
	}
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%s: description is required: %w", op, domain.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.NewPersistenceError(op+": begin tx", err)
	}
	defer tx.Rollback()

	acct, err := s.accounts.GetForUpdate(ctx, tx, customerID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return nil, domain.NewPersistenceError(op+": lock account", err)
	}

	update := &domain.BalanceUpdate{
		PreviousBalance: acct.Balance,
		AmountAdjusted:  amount,
		NewBalance:      acct.Balance.Add(amount).Round(2),
	}

	if err := s.accounts.UpdateBalance(ctx, tx, customerID, update.NewBalance); err != nil {
		return nil, domain.NewPersistenceError(op+": update balance", err)
	}

	adj := &domain.BalanceAdjustment{
		ID:            uuid.New(),
		CustomerID:    customerID,
		InvoiceID:     invoiceID,
		Amount:        amount,
		BalanceBefore: update.PreviousBalance,
		BalanceAfter:  update.NewBalance,
		Description:   description,
	}
	if err := s.adjustments.Create(ctx, tx, adj); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return nil, domain.NewPersistenceError(op+": record adjustment", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.NewPersistenceError(op+": commit", err)
	}

	log.Info("account balance updated",
		"customer_id", customerID,
		"invoice_id", invoiceID,
		"previous_balance", update.PreviousBalance.StringFixed(2),
		"amount", amount.StringFixed(2),
		"new_balance", update.NewBalance.StringFixed(2),
		"description", description,
	)

	return update, nil
}

// OpenAccount creates a zero-balance account for the customer. Opening an
// account that already exists is not an error.
func (s *LedgerService) OpenAccount(ctx context.Context, customerID uuid.UUID) (*domain.BillingAccount, error) {
	log := logging.FromContext(ctx)

	if customerID == uuid.Nil {
		return nil, fmt.Errorf("OpenAccount: customer id is required: %w", domain.ErrInvalidInput)
	}

	created, err := s.accounts.Create(ctx, customerID)
	if err != nil {
		return nil, domain.NewPersistenceError("OpenAccount", err)
	}

	acct, err := s.accounts.GetByCustomerID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("OpenAccount: %w", err)
	}

	if created {
		log.Info("billing account opened", "customer_id", customerID)
	}
	return acct, nil
}

func (s *LedgerService) GetBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	acct, err := s.accounts.GetByCustomerID(ctx, customerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("GetBalance: %w", err)
	}
	return acct.Balance, nil
}

// ListAdjustments pages through the customer's balance history, newest first.
func (s *LedgerService) ListAdjustments(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]domain.BalanceAdjustment, int, error) {
	if limit <= 0 {
		limit = defaultAdjustmentPageSize
	}
	limit = min(limit, maxAdjustmentPageSize)
	offset = max(offset, 0)

	adjustments, total, err := s.adjustments.ListByCustomer(ctx, customerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ListAdjustments: %w", err)
	}
	return adjustments, total, nil
}
