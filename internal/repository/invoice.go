package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/isp-billing/internal/domain"
)

const invoiceColumns = `id, invoice_number, customer_id, service_id, invoice_type,
	invoice_date, due_date, period_start, period_end,
	subtotal, vat_rate, vat_amount, total_amount, amount_paid,
	line_items, status, created_at`

type InvoiceRepository struct {
	db *sql.DB
}

func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Create inserts the invoice and fills in the database-assigned invoice
// number and creation time.
func (r *InvoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	items, err := json.Marshal(inv.LineItems)
	if err != nil {
		return fmt.Errorf("Create: marshal line items: %w", err)
	}

	var serviceID uuid.NullUUID
	if inv.ServiceID != nil {
		serviceID = uuid.NullUUID{UUID: *inv.ServiceID, Valid: true}
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO customer_invoices (
			id, customer_id, service_id, invoice_type,
			invoice_date, due_date, period_start, period_end,
			subtotal, vat_rate, vat_amount, total_amount, amount_paid,
			line_items, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING invoice_number, created_at`,
		inv.ID, inv.CustomerID, serviceID, inv.InvoiceType,
		dateParam(inv.InvoiceDate), dateParam(inv.DueDate),
		nullDateParam(inv.PeriodStart), nullDateParam(inv.PeriodEnd),
		inv.Subtotal, inv.VATRate, inv.VATAmount, inv.TotalAmount, inv.AmountPaid,
		items, inv.Status,
	).Scan(&inv.InvoiceNumber, &inv.CreatedAt)
	if err != nil {
		if pqCode(err) == pgUniqueViolation {
			return fmt.Errorf("Create: %w", domain.ErrAlreadyExists)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM customer_invoices WHERE id = $1`, id,
	)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return inv, nil
}

// FindRecurringInRange returns the latest recurring invoice for the service
// dated within [from, to].
func (r *InvoiceRepository) FindRecurringInRange(ctx context.Context, serviceID uuid.UUID, from, to time.Time) (*domain.Invoice, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM customer_invoices
		WHERE service_id = $1 AND invoice_type = $2
		AND invoice_date BETWEEN $3 AND $4
		ORDER BY invoice_date DESC, created_at DESC
		LIMIT 1`,
		serviceID, domain.InvoiceTypeRecurring, dateParam(from), dateParam(to),
	)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("FindRecurringInRange: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("FindRecurringInRange: %w", err)
	}
	return inv, nil
}

// ListUncharged returns the service's invoices that no balance adjustment
// references, oldest first.
func (r *InvoiceRepository) ListUncharged(ctx context.Context, serviceID uuid.UUID) ([]domain.Invoice, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM customer_invoices i
		WHERE i.service_id = $1
		AND NOT EXISTS (SELECT 1 FROM balance_adjustments a WHERE a.invoice_id = i.id)
		ORDER BY i.invoice_date, i.created_at`,
		serviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListUncharged: %w", err)
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("ListUncharged: scan: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListUncharged: rows: %w", err)
	}
	return invoices, nil
}

func scanInvoice(s scanner) (*domain.Invoice, error) {
	var (
		inv         domain.Invoice
		serviceID   uuid.NullUUID
		periodStart sql.NullTime
		periodEnd   sql.NullTime
		items       []byte
	)
	err := s.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.CustomerID, &serviceID, &inv.InvoiceType,
		&inv.InvoiceDate, &inv.DueDate, &periodStart, &periodEnd,
		&inv.Subtotal, &inv.VATRate, &inv.VATAmount, &inv.TotalAmount, &inv.AmountPaid,
		&items, &inv.Status, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if serviceID.Valid {
		inv.ServiceID = &serviceID.UUID
	}
	inv.PeriodStart = timePtr(periodStart)
	inv.PeriodEnd = timePtr(periodEnd)

	if err := json.Unmarshal(items, &inv.LineItems); err != nil {
		return nil, fmt.Errorf("unmarshal line items: %w", err)
	}
	return &inv, nil
}
