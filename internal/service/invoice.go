package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/isp-billing/internal/domain"
	"github.com/josh-kwaku/isp-billing/internal/logging"
	"github.com/josh-kwaku/isp-billing/internal/metrics"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const DefaultDueDays = 7

var hundred = decimal.NewFromInt(100)

type GenerateInvoiceParams struct {
	CustomerID  uuid.UUID
	ServiceID   *uuid.UUID
	InvoiceType domain.InvoiceType
	LineItems   []domain.LineItem
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	// DueDays of zero uses the configured default.
	DueDays int
	// InvoiceDate of zero means today in the billing location.
	InvoiceDate time.Time
}

type InvoiceConfig struct {
	VATRate  decimal.Decimal
	DueDays  int
	Location *time.Location
	Now      func() time.Time
}

type InvoiceService struct {
	invoices invoiceRepository
	metrics  *metrics.Metrics
	vatRate  decimal.Decimal
	dueDays  int
	loc      *time.Location
	now      func() time.Time
}

func NewInvoiceService(invoices invoiceRepository, m *metrics.Metrics, cfg InvoiceConfig) *InvoiceService {
	s := &InvoiceService{
		invoices: invoices,
		metrics:  m,
		vatRate:  cfg.VATRate,
		dueDays:  cfg.DueDays,
		loc:      cfg.Location,
		now:      cfg.Now,
	}
	if s.dueDays <= 0 {
		s.dueDays = DefaultDueDays
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// GenerateInvoice prices the line items, adds VAT and stores the invoice as
// unpaid. Each call inserts a new invoice. Line amounts must be whole cents,
// so the subtotal is their exact sum.
func (s *InvoiceService) GenerateInvoice(ctx context.Context, params GenerateInvoiceParams) (inv *domain.Invoice, err error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.GenerateInvoice")
	defer func() { endSpan(span, err) }()

	log := logging.FromContext(ctx)

	if err := validateInvoiceParams(params); err != nil {
		return nil, fmt.Errorf("GenerateInvoice: %w", err)
	}

	subtotal := lo.Reduce(params.LineItems, func(acc decimal.Decimal, item domain.LineItem, _ int) decimal.Decimal {
		return acc.Add(item.Amount)
	}, decimal.Zero)
	vat, total := s.applyVAT(subtotal)

	invoiceDate := s.today()
	if !params.InvoiceDate.IsZero() {
		invoiceDate = dateIn(params.InvoiceDate, s.loc)
	}
	dueDays := params.DueDays
	if dueDays == 0 {
		dueDays = s.dueDays
	}

	inv = &domain.Invoice{
		ID:          uuid.New(),
		CustomerID:  params.CustomerID,
		ServiceID:   params.ServiceID,
		InvoiceType: params.InvoiceType,
		InvoiceDate: invoiceDate,
		DueDate:     invoiceDate.AddDate(0, 0, dueDays),
		PeriodStart: params.PeriodStart,
		PeriodEnd:   params.PeriodEnd,
		Subtotal:    subtotal,
		VATRate:     s.vatRate,
		VATAmount:   vat,
		TotalAmount: total,
		AmountPaid:  decimal.Zero,
		LineItems:   params.LineItems,
		Status:      domain.InvoiceStatusUnpaid,
	}
	span.SetAttributes(
		attribute.String("invoice.id", inv.ID.String()),
		attribute.String("invoice.type", string(inv.InvoiceType)),
		attribute.String("customer.id", inv.CustomerID.String()),
	)

	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, domain.NewPersistenceError("GenerateInvoice", err)
	}

	s.metrics.InvoiceIssued(inv.InvoiceType, inv.TotalAmount)
	log.Info("invoice generated",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"customer_id", inv.CustomerID,
		"invoice_type", inv.InvoiceType,
		"total", inv.TotalAmount.StringFixed(2),
	)

	return inv, nil
}

func (s *InvoiceService) GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetInvoice: %w", err)
	}
	return inv, nil
}

// FindRecurringInvoice returns the recurring invoice for the service dated
// within [from, to], or ErrNotFound.
func (s *InvoiceService) FindRecurringInvoice(ctx context.Context, serviceID uuid.UUID, from, to time.Time) (*domain.Invoice, error) {
	inv, err := s.invoices.FindRecurringInRange(ctx, serviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("FindRecurringInvoice: %w", err)
	}
	return inv, nil
}

// ListUnchargedInvoices returns the service's invoices that never reached
// the account balance.
func (s *InvoiceService) ListUnchargedInvoices(ctx context.Context, serviceID uuid.UUID) ([]domain.Invoice, error) {
	invoices, err := s.invoices.ListUncharged(ctx, serviceID)
	if err != nil {
		return nil, domain.NewPersistenceError("ListUnchargedInvoices", err)
	}
	return invoices, nil
}

// Quote returns the VAT and total that GenerateInvoice would charge for
// subtotal.
func (s *InvoiceService) Quote(subtotal decimal.Decimal) (vat, total decimal.Decimal) {
	return s.applyVAT(subtotal.Round(2))
}

func (s *InvoiceService) applyVAT(subtotal decimal.Decimal) (vat, total decimal.Decimal) {
	vat = subtotal.Mul(s.vatRate).Div(hundred).Round(2)
	return vat, subtotal.Add(vat).Round(2)
}

func (s *InvoiceService) today() time.Time {
	return dateIn(s.now(), s.loc)
}

func dateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func validateInvoiceParams(p GenerateInvoiceParams) error {
	if p.CustomerID == uuid.Nil {
		return fmt.Errorf("validateInvoiceParams: customer id is required: %w", domain.ErrInvalidInput)
	}
	if !p.InvoiceType.IsValid() {
		return fmt.Errorf("validateInvoiceParams: invoice type %q: %w", p.InvoiceType, domain.ErrInvalidInput)
	}
	if len(p.LineItems) == 0 {
		return fmt.Errorf("validateInvoiceParams: no line items: %w", domain.ErrInvalidInput)
	}
	for i, item := range p.LineItems {
		if strings.TrimSpace(item.Description) == "" {
			return fmt.Errorf("validateInvoiceParams: line item %d has no description: %w", i, domain.ErrInvalidInput)
		}
		if item.Amount.IsNegative() {
			return fmt.Errorf("validateInvoiceParams: line item %d amount %s is negative: %w", i, item.Amount, domain.ErrInvalidInput)
		}
		if !item.Amount.Equal(item.Amount.Round(2)) {
			return fmt.Errorf("validateInvoiceParams: line item %d amount %s has more than two decimals: %w", i, item.Amount, domain.ErrInvalidInput)
		}
	}
	if p.DueDays < 0 {
		return fmt.Errorf("validateInvoiceParams: due days %d: %w", p.DueDays, domain.ErrInvalidInput)
	}
	if (p.PeriodStart == nil) != (p.PeriodEnd == nil) {
		return fmt.Errorf("validateInvoiceParams: period needs both start and end: %w", domain.ErrInvalidInput)
	}
	if p.PeriodStart != nil && !p.PeriodEnd.After(*p.PeriodStart) {
		return fmt.Errorf("validateInvoiceParams: period end must be after start: %w", domain.ErrInvalidInput)
	}
	return nil
}
