package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/isp-billing/internal/domain"
)

const customerServiceColumns = `id, customer_id, package_name, monthly_price, billing_anchor,
	status, activation_date, next_billing_date, last_invoice_date, created_at, updated_at`

type CustomerServiceRepository struct {
	db *sql.DB
}

func NewCustomerServiceRepository(db *sql.DB) *CustomerServiceRepository {
	return &CustomerServiceRepository{db: db}
}

func (r *CustomerServiceRepository) Create(ctx context.Context, svc *domain.CustomerService) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO customer_services (
			id, customer_id, package_name, monthly_price, billing_anchor, status,
			activation_date, next_billing_date, last_invoice_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		svc.ID, svc.CustomerID, svc.PackageName, svc.MonthlyPrice, svc.BillingAnchor.Day(), svc.Status,
		nullDateParam(svc.ActivationDate), nullDateParam(svc.NextBillingDate), nullDateParam(svc.LastInvoiceDate),
	).Scan(&svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		if pqCode(err) == pgUniqueViolation {
			return fmt.Errorf("Create: %w", domain.ErrAlreadyExists)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *CustomerServiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CustomerService, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+customerServiceColumns+` FROM customer_services WHERE id = $1`, id,
	)
	svc, err := scanCustomerService(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return svc, nil
}

// ListActiveByAnchor returns active services billed on anchor, optionally
// restricted to one customer.
func (r *CustomerServiceRepository) ListActiveByAnchor(ctx context.Context, anchor domain.BillingAnchor, customerID *uuid.UUID) ([]domain.CustomerService, error) {
	var customer uuid.NullUUID
	if customerID != nil {
		customer = uuid.NullUUID{UUID: *customerID, Valid: true}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+customerServiceColumns+` FROM customer_services
		WHERE billing_anchor = $1 AND status = $2
		AND ($3::uuid IS NULL OR customer_id = $3)
		ORDER BY created_at, id`,
		anchor.Day(), domain.ServiceStatusActive, customer,
	)
	if err != nil {
		return nil, fmt.Errorf("ListActiveByAnchor: %w", err)
	}
	defer rows.Close()

	var services []domain.CustomerService
	for rows.Next() {
		svc, err := scanCustomerService(rows)
		if err != nil {
			return nil, fmt.Errorf("ListActiveByAnchor: scan: %w", err)
		}
		services = append(services, *svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListActiveByAnchor: rows: %w", err)
	}
	return services, nil
}

// Activate moves a pending service to active. A service that is no longer
// pending is left untouched and reported as ErrInvalidTransition.
func (r *CustomerServiceRepository) Activate(ctx context.Context, id uuid.UUID, activationDate, nextBillingDate time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE customer_services
		SET status = $1, activation_date = $2, next_billing_date = $3, updated_at = now()
		WHERE id = $4 AND status = $5`,
		domain.ServiceStatusActive, dateParam(activationDate), dateParam(nextBillingDate),
		id, domain.ServiceStatusPending,
	)
	if err != nil {
		return fmt.Errorf("Activate: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Activate: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Activate: %w", domain.ErrInvalidTransition)
	}
	return nil
}

func (r *CustomerServiceRepository) MarkInvoiced(ctx context.Context, id uuid.UUID, invoiceDate, nextBillingDate time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE customer_services
		SET last_invoice_date = $1, next_billing_date = $2, updated_at = now()
		WHERE id = $3`,
		dateParam(invoiceDate), dateParam(nextBillingDate), id,
	)
	if err != nil {
		return fmt.Errorf("MarkInvoiced: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkInvoiced: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("MarkInvoiced: %w", domain.ErrNotFound)
	}
	return nil
}

func scanCustomerService(s scanner) (*domain.CustomerService, error) {
	var (
		svc             domain.CustomerService
		anchor          int
		activationDate  sql.NullTime
		nextBillingDate sql.NullTime
		lastInvoiceDate sql.NullTime
	)
	err := s.Scan(
		&svc.ID, &svc.CustomerID, &svc.PackageName, &svc.MonthlyPrice, &anchor,
		&svc.Status, &activationDate, &nextBillingDate, &lastInvoiceDate,
		&svc.CreatedAt, &svc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	svc.BillingAnchor, err = domain.ParseBillingAnchor(anchor)
	if err != nil {
		return nil, err
	}
	svc.ActivationDate = timePtr(activationDate)
	svc.NextBillingDate = timePtr(nextBillingDate)
	svc.LastInvoiceDate = timePtr(lastInvoiceDate)
	return &svc, nil
}
