package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/isp-billing/internal/domain"
	"github.com/shopspring/decimal"
)

type mockInvoiceRepo struct {
	created []*domain.Invoice
	nextSeq int
	err     error
}

func (m *mockInvoiceRepo) Create(_ context.Context, inv *domain.Invoice) error {
	if m.err != nil {
		return m.err
	}
	m.nextSeq++
	inv.InvoiceNumber = fmt.Sprintf("INV-%d-%06d", inv.InvoiceDate.Year(), m.nextSeq)
	inv.CreatedAt = time.Now().UTC()
	m.created = append(m.created, inv)
	return nil
}

func (m *mockInvoiceRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Invoice, error) {
	for _, inv := range m.created {
		if inv.ID == id {
			return inv, nil
		}
	}
	return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
}

func (m *mockInvoiceRepo) FindRecurringInRange(_ context.Context, serviceID uuid.UUID, from, to time.Time) (*domain.Invoice, error) {
	for _, inv := range m.created {
		if inv.ServiceID == nil || *inv.ServiceID != serviceID || inv.InvoiceType != domain.InvoiceTypeRecurring {
			continue
		}
		if !inv.InvoiceDate.Before(from) && !inv.InvoiceDate.After(to) {
			return inv, nil
		}
	}
	return nil, fmt.Errorf("FindRecurringInRange: %w", domain.ErrNotFound)
}

func (m *mockInvoiceRepo) ListUncharged(_ context.Context, serviceID uuid.UUID) ([]domain.Invoice, error) {
	var out []domain.Invoice
	for _, inv := range m.created {
		if inv.ServiceID != nil && *inv.ServiceID == serviceID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

type mockAccountRepo struct {
	balances  map[uuid.UUID]decimal.Decimal
	lockErr   error
	updateErr error
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{balances: make(map[uuid.UUID]decimal.Decimal)}
}

func (m *mockAccountRepo) Create(_ context.Context, customerID uuid.UUID) (bool, error) {
	if _, ok := m.balances[customerID]; ok {
		return false, nil
	}
	m.balances[customerID] = decimal.Zero
	return true, nil
}

func (m *mockAccountRepo) GetByCustomerID(_ context.Context, customerID uuid.UUID) (*domain.BillingAccount, error) {
	bal, ok := m.balances[customerID]
	if !ok {
		return nil, fmt.Errorf("GetByCustomerID: %w", domain.ErrAccountNotFound)
	}
	return &domain.BillingAccount{CustomerID: customerID, Balance: bal}, nil
}

func (m *mockAccountRepo) GetForUpdate(ctx context.Context, _ *sql.Tx, customerID uuid.UUID) (*domain.BillingAccount, error) {
	if m.lockErr != nil {
		return nil, m.lockErr
	}
	return m.GetByCustomerID(ctx, customerID)
}

func (m *mockAccountRepo) UpdateBalance(_ context.Context, _ *sql.Tx, customerID uuid.UUID, newBalance decimal.Decimal) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.balances[customerID] = newBalance
	return nil
}

type mockAdjustmentRepo struct {
	created []*domain.BalanceAdjustment
	err     error

	listLimit, listOffset int
}

func (m *mockAdjustmentRepo) Create(_ context.Context, _ *sql.Tx, adj *domain.BalanceAdjustment) error {
	if m.err != nil {
		return m.err
	}
	for _, a := range m.created {
		if adj.InvoiceID != nil && a.InvoiceID != nil && *a.InvoiceID == *adj.InvoiceID {
			return fmt.Errorf("Create: %w", domain.ErrAlreadyExists)
		}
	}
	m.created = append(m.created, adj)
	return nil
}

func (m *mockAdjustmentRepo) ListByCustomer(_ context.Context, _ uuid.UUID, limit, offset int) ([]domain.BalanceAdjustment, int, error) {
	m.listLimit, m.listOffset = limit, offset
	out := make([]domain.BalanceAdjustment, 0, len(m.created))
	for _, a := range m.created {
		out = append(out, *a)
	}
	return out, len(out), nil
}

type mockServiceRepo struct {
	services    map[uuid.UUID]*domain.CustomerService
	activateErr error
	activated   []uuid.UUID
}

func newMockServiceRepo(services ...*domain.CustomerService) *mockServiceRepo {
	m := &mockServiceRepo{services: make(map[uuid.UUID]*domain.CustomerService)}
	for _, s := range services {
		m.services[s.ID] = s
	}
	return m
}

func (m *mockServiceRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.CustomerService, error) {
	s, ok := m.services[id]
	if !ok {
		return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (m *mockServiceRepo) Activate(_ context.Context, id uuid.UUID, activationDate, nextBillingDate time.Time) error {
	if m.activateErr != nil {
		return m.activateErr
	}
	s, ok := m.services[id]
	if !ok || s.Status != domain.ServiceStatusPending {
		return fmt.Errorf("Activate: %w", domain.ErrInvalidTransition)
	}
	s.Status = domain.ServiceStatusActive
	s.ActivationDate = &activationDate
	s.NextBillingDate = &nextBillingDate
	m.activated = append(m.activated, id)
	return nil
}

type mockIssuer struct {
	params []GenerateInvoiceParams
	total  decimal.Decimal
	err    error
}

func (m *mockIssuer) GenerateInvoice(_ context.Context, params GenerateInvoiceParams) (*domain.Invoice, error) {
	m.params = append(m.params, params)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: fmt.Sprintf("INV-2025-%06d", len(m.params)),
		CustomerID:    params.CustomerID,
		ServiceID:     params.ServiceID,
		InvoiceType:   params.InvoiceType,
		TotalAmount:   m.total,
		LineItems:     params.LineItems,
		Status:        domain.InvoiceStatusUnpaid,
	}, nil
}

type ledgerCall struct {
	customerID  uuid.UUID
	invoiceID   uuid.UUID
	amount      decimal.Decimal
	description string
}

type mockLedger struct {
	calls []ledgerCall
	err   error
}

func (m *mockLedger) ChargeInvoice(_ context.Context, inv *domain.Invoice, description string) (*domain.BalanceUpdate, error) {
	m.calls = append(m.calls, ledgerCall{
		customerID:  inv.CustomerID,
		invoiceID:   inv.ID,
		amount:      inv.TotalAmount,
		description: description,
	})
	if m.err != nil {
		return nil, m.err
	}
	return &domain.BalanceUpdate{AmountAdjusted: inv.TotalAmount, NewBalance: inv.TotalAmount}, nil
}
