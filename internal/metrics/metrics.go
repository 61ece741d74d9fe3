package metrics

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/josh-kwaku/isp-billing/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics holds the billing worker's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	InvoicesIssuedTotal  *prometheus.CounterVec
	InvoicedAmountTotal  *prometheus.CounterVec
	LedgerUpdatesTotal   *prometheus.CounterVec
	BillingRunsTotal     *prometheus.CounterVec
	BillingRunServices   *prometheus.CounterVec
	BillingRunDuration   *prometheus.HistogramVec
	ServiceActivations   prometheus.Counter
	LastRunCompletedUnix *prometheus.GaugeVec
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		InvoicesIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_invoices_issued_total",
				Help: "Invoices issued by type",
			},
			[]string{"invoice_type"},
		),
		InvoicedAmountTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_invoiced_amount_total",
				Help: "Invoice totals including VAT, in rand",
			},
			[]string{"invoice_type"},
		),
		LedgerUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_ledger_updates_total",
				Help: "Balance updates by outcome",
			},
			[]string{"outcome"},
		),
		BillingRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_runs_total",
				Help: "Recurring billing runs by anchor and mode",
			},
			[]string{"anchor", "dry_run"},
		),
		BillingRunServices: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_run_services_total",
				Help: "Services handled by recurring runs, by result",
			},
			[]string{"anchor", "result"},
		),
		BillingRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_run_duration_seconds",
				Help:    "Recurring billing run duration",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"anchor"},
		),
		ServiceActivations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "billing_service_activations_total",
				Help: "Services moved from pending to active",
			},
		),
		LastRunCompletedUnix: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "billing_run_last_completed_timestamp_seconds",
				Help: "Completion time of the last non-dry recurring run",
			},
			[]string{"anchor"},
		),
	}

	registry.MustRegister(
		m.InvoicesIssuedTotal,
		m.InvoicedAmountTotal,
		m.LedgerUpdatesTotal,
		m.BillingRunsTotal,
		m.BillingRunServices,
		m.BillingRunDuration,
		m.ServiceActivations,
		m.LastRunCompletedUnix,
	)
	return m
}

// RegisterDBStats exposes connection pool statistics for db.
func (m *Metrics) RegisterDBStats(db *sql.DB) {
	m.registry.MustRegister(collectors.NewDBStatsCollector(db, "billing"))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) InvoiceIssued(invoiceType domain.InvoiceType, total decimal.Decimal) {
	if m == nil {
		return
	}
	m.InvoicesIssuedTotal.WithLabelValues(string(invoiceType)).Inc()
	m.InvoicedAmountTotal.WithLabelValues(string(invoiceType)).Add(total.InexactFloat64())
}

func (m *Metrics) LedgerUpdated(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.LedgerUpdatesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ServiceActivated() {
	if m == nil {
		return
	}
	m.ServiceActivations.Inc()
}

func (m *Metrics) RunCompleted(run *domain.BillingRun) {
	if m == nil {
		return
	}
	anchor := strconv.Itoa(run.Anchor.Day())

	m.BillingRunsTotal.WithLabelValues(anchor, strconv.FormatBool(run.DryRun)).Inc()
	m.BillingRunDuration.WithLabelValues(anchor).Observe(run.CompletedAt.Sub(run.StartedAt).Seconds())

	if run.DryRun {
		return
	}
	m.BillingRunServices.WithLabelValues(anchor, "successful").Add(float64(run.Summary.Successful))
	m.BillingRunServices.WithLabelValues(anchor, "failed").Add(float64(run.Summary.Failed))
	m.BillingRunServices.WithLabelValues(anchor, "skipped").Add(float64(run.Summary.Skipped))
	m.LastRunCompletedUnix.WithLabelValues(anchor).Set(float64(run.CompletedAt.Unix()))
}
