package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/isp-billing/internal/billing"
	"github.com/josh-kwaku/isp-billing/internal/domain"
	"github.com/josh-kwaku/isp-billing/internal/logging"
	"github.com/josh-kwaku/isp-billing/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
)

const activationDueDays = 7

type invoiceIssuer interface {
	GenerateInvoice(ctx context.Context, params GenerateInvoiceParams) (*domain.Invoice, error)
}

type invoiceCharger interface {
	ChargeInvoice(ctx context.Context, inv *domain.Invoice, description string) (*domain.BalanceUpdate, error)
}

type ActivateParams struct {
	ServiceID      uuid.UUID
	ActivationDate time.Time
	Reason         string
}

type ActivationResult struct {
	Service       *domain.CustomerService
	ProRata       billing.ProRataResult
	Invoice       *domain.Invoice
	BalanceUpdate *domain.BalanceUpdate
}

type ActivationService struct {
	services customerServiceRepository
	engine   *billing.Engine
	invoices invoiceIssuer
	ledger   invoiceCharger
	metrics  *metrics.Metrics
}

func NewActivationService(services customerServiceRepository, engine *billing.Engine, invoices invoiceIssuer, ledger invoiceCharger, m *metrics.Metrics) *ActivationService {
	return &ActivationService{services: services, engine: engine, invoices: invoices, ledger: ledger, metrics: m}
}

// ActivateService moves a pending service to active, bills the partial period
// up to the first anchor date and debits the customer's account.
func (s *ActivationService) ActivateService(ctx context.Context, params ActivateParams) (result *ActivationResult, err error) {
	ctx, span := tracer.Start(ctx, "ActivationService.ActivateService")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("service.id", params.ServiceID.String()))

	log := logging.FromContext(ctx)

	if params.ServiceID == uuid.Nil || params.ActivationDate.IsZero() {
		return nil, fmt.Errorf("ActivateService: service id and activation date are required: %w", domain.ErrInvalidInput)
	}

	svc, err := s.services.GetByID(ctx, params.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("ActivateService: %w", err)
	}
	if svc.Status != domain.ServiceStatusPending {
		return nil, fmt.Errorf("ActivateService: service is %s, expected pending: %w", svc.Status, domain.ErrInvalidTransition)
	}

	activation := s.engine.StartOfDay(params.ActivationDate)
	proRata, err := s.engine.CalculateProRata(activation, svc.MonthlyPrice, svc.BillingAnchor)
	if err != nil {
		return nil, fmt.Errorf("ActivateService: %w", err)
	}

	if err := s.services.Activate(ctx, svc.ID, activation, proRata.PeriodEnd); err != nil {
		return nil, fmt.Errorf("ActivateService: %w", err)
	}
	svc.Status = domain.ServiceStatusActive
	svc.ActivationDate = &proRata.PeriodStart
	svc.NextBillingDate = &proRata.PeriodEnd
	s.metrics.ServiceActivated()

	start := proRata.PeriodStart.Format(time.DateOnly)
	end := proRata.PeriodEnd.Format(time.DateOnly)
	inv, err := s.invoices.GenerateInvoice(ctx, GenerateInvoiceParams{
		CustomerID:  svc.CustomerID,
		ServiceID:   &svc.ID,
		InvoiceType: domain.InvoiceTypeProRata,
		LineItems: []domain.LineItem{{
			Description: fmt.Sprintf("%s pro-rata (%s to %s)", svc.PackageName, start, end),
			Quantity:    1,
			UnitPrice:   proRata.ProratedAmount,
			Amount:      proRata.ProratedAmount,
			Type:        string(domain.InvoiceTypeProRata),
		}},
		PeriodStart: &proRata.PeriodStart,
		PeriodEnd:   &proRata.PeriodEnd,
		DueDays:     activationDueDays,
	})
	if err != nil {
		return nil, fmt.Errorf("ActivateService: service %s active but not invoiced: %w", svc.ID, err)
	}

	update, err := s.ledger.ChargeInvoice(ctx, inv, fmt.Sprintf("Service activation - Invoice %s", inv.InvoiceNumber))
	if err != nil {
		return nil, fmt.Errorf("ActivateService: invoice %s issued but balance not updated: %w", inv.InvoiceNumber, err)
	}

	log.Info("service activated",
		"service_id", svc.ID,
		"customer_id", svc.CustomerID,
		"activation_date", start,
		"next_billing_date", end,
		"days_used", proRata.DaysUsed,
		"prorated_amount", proRata.ProratedAmount.StringFixed(2),
		"invoice_number", inv.InvoiceNumber,
		"reason", params.Reason,
	)

	return &ActivationResult{
		Service:       svc,
		ProRata:       proRata,
		Invoice:       inv,
		BalanceUpdate: update,
	}, nil
}
