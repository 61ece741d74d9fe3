package domain

import (
	"time"

	"github.com/google/uuid"
)

type BillingRunSummary struct {
	TotalServices int `json:"total_services"`
	Processed     int `json:"processed"`
	Successful    int `json:"successful"`
	Failed        int `json:"failed"`
	Skipped       int `json:"skipped"`
}

// ServiceBillingResult is the outcome for one service in a run.
// RepairedInvoices lists, separated by ";", earlier invoices of the service
// that were charged to the balance during this run.
type ServiceBillingResult struct {
	ServiceID        uuid.UUID  `json:"service_id" csv:"service_id"`
	CustomerID       uuid.UUID  `json:"customer_id" csv:"customer_id"`
	Success          bool       `json:"success" csv:"success"`
	Skipped          bool       `json:"skipped" csv:"skipped"`
	SkipReason       string     `json:"skip_reason,omitempty" csv:"skip_reason"`
	InvoiceID        *uuid.UUID `json:"invoice_id,omitempty" csv:"-"`
	InvoiceNumber    string     `json:"invoice_number,omitempty" csv:"invoice_number"`
	Amount           string     `json:"amount,omitempty" csv:"amount"`
	RepairedInvoices string     `json:"repaired_invoices,omitempty" csv:"repaired_invoices"`
	Error            string     `json:"error,omitempty" csv:"error"`
}

type BillingRun struct {
	ID          uuid.UUID
	Anchor      BillingAnchor
	RunDate     time.Time
	DryRun      bool
	StartedAt   time.Time
	CompletedAt time.Time
	Summary     BillingRunSummary
	Results     []ServiceBillingResult
}
