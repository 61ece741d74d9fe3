// Package recurring issues the monthly invoices for every active service on a
// billing anchor, one run per anchor and day.
package recurring

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/isp-billing/internal/billing"
	"github.com/josh-kwaku/isp-billing/internal/domain"
	"github.com/josh-kwaku/isp-billing/internal/logging"
	"github.com/josh-kwaku/isp-billing/internal/metrics"
	"github.com/josh-kwaku/isp-billing/internal/service"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type serviceRepo interface {
	ListActiveByAnchor(ctx context.Context, anchor domain.BillingAnchor, customerID *uuid.UUID) ([]domain.CustomerService, error)
	MarkInvoiced(ctx context.Context, id uuid.UUID, invoiceDate, nextBillingDate time.Time) error
}

type invoiceIssuer interface {
	GenerateInvoice(ctx context.Context, params service.GenerateInvoiceParams) (*domain.Invoice, error)
	FindRecurringInvoice(ctx context.Context, serviceID uuid.UUID, from, to time.Time) (*domain.Invoice, error)
	ListUnchargedInvoices(ctx context.Context, serviceID uuid.UUID) ([]domain.Invoice, error)
	Quote(subtotal decimal.Decimal) (vat, total decimal.Decimal)
}

type invoiceCharger interface {
	ChargeInvoice(ctx context.Context, inv *domain.Invoice, description string) (*domain.BalanceUpdate, error)
}

type runStore interface {
	Create(ctx context.Context, run *domain.BillingRun) error
}

type locker interface {
	TryLock(ctx context.Context, key string) (release func() error, ok bool, err error)
}

type RunOptions struct {
	Anchor domain.BillingAnchor
	// RunDate of zero means today in the billing location.
	RunDate    time.Time
	CustomerID *uuid.UUID
	DryRun     bool
}

type Runner struct {
	engine   *billing.Engine
	services serviceRepo
	invoices invoiceIssuer
	ledger   invoiceCharger
	runs     runStore
	locks    locker
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewRunner(
	engine *billing.Engine,
	services serviceRepo,
	invoices invoiceIssuer,
	ledger invoiceCharger,
	runs runStore,
	locks locker,
	m *metrics.Metrics,
) *Runner {
	return &Runner{
		engine:   engine,
		services: services,
		invoices: invoices,
		ledger:   ledger,
		runs:     runs,
		locks:    locks,
		metrics:  m,
		now:      time.Now,
	}
}

func lockKey(anchor domain.BillingAnchor) string {
	return fmt.Sprintf("billing-run:%d", anchor.Day())
}

// Run bills every active service on the anchor. Failures on one service are
// recorded in its result and do not stop the run. A dry run computes the
// same results without writing anything and without taking the run lock.
// When the run cannot be recorded, the completed run is returned together
// with a PersistenceError.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*domain.BillingRun, error) {
	if !opts.Anchor.IsValid() {
		return nil, fmt.Errorf("Run: anchor %d: %w", opts.Anchor, domain.ErrInvalidInput)
	}

	runDate := opts.RunDate
	if runDate.IsZero() {
		runDate = r.now()
	}

	run := &domain.BillingRun{
		ID:        uuid.New(),
		Anchor:    opts.Anchor,
		RunDate:   r.engine.StartOfDay(runDate),
		DryRun:    opts.DryRun,
		StartedAt: r.now().UTC(),
	}

	ctx = logging.With(ctx, "run_id", run.ID, "anchor", opts.Anchor.Day(), "dry_run", opts.DryRun)
	log := logging.FromContext(ctx)

	if !opts.DryRun {
		release, ok, err := r.locks.TryLock(ctx, lockKey(opts.Anchor))
		if err != nil {
			return nil, fmt.Errorf("Run: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("Run: anchor %d: %w", opts.Anchor, domain.ErrRunInProgress)
		}
		defer func() {
			if err := release(); err != nil {
				log.Warn("release billing run lock", "error", err)
			}
		}()
	}

	services, err := r.services.ListActiveByAnchor(ctx, opts.Anchor, opts.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("Run: list services: %w", err)
	}

	log.Info("billing run started",
		"run_date", run.RunDate.Format(time.DateOnly),
		"services", len(services),
	)

	run.Results = make([]domain.ServiceBillingResult, 0, len(services))
	for _, svc := range services {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("Run: %w", err)
		}
		run.Results = append(run.Results, r.billService(ctx, run, svc))
	}

	run.Summary = summarize(run.Results)
	run.CompletedAt = r.now().UTC()

	var persistErr error
	if !opts.DryRun {
		if err := r.runs.Create(ctx, run); err != nil {
			log.Error("persist billing run", "error", err)
			persistErr = domain.NewPersistenceError("Run: record run", err)
		}
	}
	r.metrics.RunCompleted(run)

	log.Info("billing run completed",
		"total", run.Summary.TotalServices,
		"successful", run.Summary.Successful,
		"failed", run.Summary.Failed,
		"skipped", run.Summary.Skipped,
		"duration_ms", run.CompletedAt.Sub(run.StartedAt).Milliseconds(),
	)

	return run, persistErr
}

func (r *Runner) billService(ctx context.Context, run *domain.BillingRun, svc domain.CustomerService) domain.ServiceBillingResult {
	log := logging.FromContext(ctx).With("service_id", svc.ID, "customer_id", svc.CustomerID)
	result := domain.ServiceBillingResult{ServiceID: svc.ID, CustomerID: svc.CustomerID}

	fail := func(err error) domain.ServiceBillingResult {
		log.Error("service billing failed", "error", err)
		result.Success = false
		result.Error = err.Error()
		return result
	}
	skip := func(reason string) domain.ServiceBillingResult {
		log.Info("service skipped", "reason", reason)
		result.Success = true
		result.Skipped = true
		result.SkipReason = reason
		return result
	}

	if svc.NextBillingDate != nil {
		if next := r.engine.CivilDate(*svc.NextBillingDate); next.After(run.RunDate) {
			return skip("not due until " + next.Format(time.DateOnly))
		}
	}

	repaired, err := r.chargeOutstanding(ctx, run, svc)
	result.RepairedInvoices = strings.Join(repaired, ";")
	if err != nil {
		return fail(err)
	}

	cycle, err := r.engine.CycleBounds(svc.BillingAnchor, run.RunDate)
	if err != nil {
		return fail(err)
	}

	monthStart, monthEnd := r.engine.MonthBounds(run.RunDate)
	existing, err := r.invoices.FindRecurringInvoice(ctx, svc.ID, monthStart, monthEnd)
	switch {
	case err == nil && len(repaired) == 0:
		return skip("already invoiced: " + existing.InvoiceNumber)
	case err == nil:
		// An earlier run issued this invoice but stopped before the cycle
		// was closed.
		if slices.Contains(repaired, existing.InvoiceNumber) && !run.DryRun {
			if err := r.services.MarkInvoiced(ctx, svc.ID, run.RunDate, cycle.CycleEnd); err != nil {
				return fail(fmt.Errorf("mark invoiced: %w", err))
			}
		}
		result.Success = true
		result.InvoiceID = &existing.ID
		result.InvoiceNumber = existing.InvoiceNumber
		result.Amount = existing.TotalAmount.StringFixed(2)
		return result
	case !errors.Is(err, domain.ErrNotFound):
		return fail(fmt.Errorf("check existing invoice: %w", err))
	}

	subtotal := svc.MonthlyPrice.Round(2)
	if run.DryRun {
		_, total := r.invoices.Quote(subtotal)
		result.Success = true
		result.Amount = total.StringFixed(2)
		return result
	}

	inv, err := r.invoices.GenerateInvoice(ctx, service.GenerateInvoiceParams{
		CustomerID:  svc.CustomerID,
		ServiceID:   &svc.ID,
		InvoiceType: domain.InvoiceTypeRecurring,
		LineItems: []domain.LineItem{{
			Description: fmt.Sprintf("%s - %s", svc.PackageName, run.RunDate.Format("January 2006")),
			Quantity:    1,
			UnitPrice:   subtotal,
			Amount:      subtotal,
			Type:        string(domain.InvoiceTypeRecurring),
		}},
		PeriodStart: &cycle.CycleStart,
		PeriodEnd:   &cycle.CycleEnd,
		InvoiceDate: run.RunDate,
	})
	if err != nil {
		return fail(fmt.Errorf("generate invoice: %w", err))
	}
	result.InvoiceID = &inv.ID
	result.InvoiceNumber = inv.InvoiceNumber
	result.Amount = inv.TotalAmount.StringFixed(2)

	if _, err := r.ledger.ChargeInvoice(ctx, inv, chargeDescription(inv)); err != nil {
		return fail(fmt.Errorf("update balance: %w", err))
	}

	if err := r.services.MarkInvoiced(ctx, svc.ID, run.RunDate, cycle.CycleEnd); err != nil {
		return fail(fmt.Errorf("mark invoiced: %w", err))
	}

	log.Info("service billed", "invoice_number", inv.InvoiceNumber, "total", result.Amount)
	result.Success = true
	return result
}

// chargeOutstanding debits every invoice of the service that never reached
// the balance, such as one issued by a run whose charge failed. It returns
// the numbers charged, or the numbers that would be charged in a dry run.
func (r *Runner) chargeOutstanding(ctx context.Context, run *domain.BillingRun, svc domain.CustomerService) ([]string, error) {
	log := logging.FromContext(ctx)

	outstanding, err := r.invoices.ListUnchargedInvoices(ctx, svc.ID)
	if err != nil {
		return nil, fmt.Errorf("list uncharged invoices: %w", err)
	}

	var charged []string
	for i := range outstanding {
		inv := &outstanding[i]
		if !run.DryRun {
			_, err := r.ledger.ChargeInvoice(ctx, inv, chargeDescription(inv))
			if errors.Is(err, domain.ErrAlreadyExists) {
				continue
			}
			if err != nil {
				return charged, fmt.Errorf("charge outstanding invoice %s: %w", inv.InvoiceNumber, err)
			}
		}
		log.Warn("charged outstanding invoice",
			"invoice_number", inv.InvoiceNumber,
			"invoice_type", inv.InvoiceType,
			"total", inv.TotalAmount.StringFixed(2),
		)
		charged = append(charged, inv.InvoiceNumber)
	}
	return charged, nil
}

func chargeDescription(inv *domain.Invoice) string {
	switch inv.InvoiceType {
	case domain.InvoiceTypeRecurring:
		return "Monthly invoice " + inv.InvoiceNumber
	case domain.InvoiceTypeProRata:
		return "Service activation - Invoice " + inv.InvoiceNumber
	default:
		return "Invoice " + inv.InvoiceNumber
	}
}

func summarize(results []domain.ServiceBillingResult) domain.BillingRunSummary {
	skipped := lo.CountBy(results, func(r domain.ServiceBillingResult) bool { return r.Skipped })
	return domain.BillingRunSummary{
		TotalServices: len(results),
		Processed:     len(results) - skipped,
		Successful:    lo.CountBy(results, func(r domain.ServiceBillingResult) bool { return r.Success && !r.Skipped }),
		Failed:        lo.CountBy(results, func(r domain.ServiceBillingResult) bool { return !r.Success }),
		Skipped:       skipped,
	}
}
