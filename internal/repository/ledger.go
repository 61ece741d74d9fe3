package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/josh-kwaku/isp-billing/internal/domain"
)

const adjustmentColumns = `id, customer_id, invoice_id, amount, balance_before, balance_after,
	description, created_at`

// AdjustmentRepository stores the audit trail of balance changes.
type AdjustmentRepository struct {
	db *sql.DB
}

func NewAdjustmentRepository(db *sql.DB) *AdjustmentRepository {
	return &AdjustmentRepository{db: db}
}

// Create records the adjustment inside tx. An invoice that already has an
// adjustment fails with ErrAlreadyExists.
func (r *AdjustmentRepository) Create(ctx context.Context, tx *sql.Tx, adj *domain.BalanceAdjustment) error {
	var invoiceID uuid.NullUUID
	if adj.InvoiceID != nil {
		invoiceID = uuid.NullUUID{UUID: *adj.InvoiceID, Valid: true}
	}

	err := tx.QueryRowContext(ctx,
		`INSERT INTO balance_adjustments (
			id, customer_id, invoice_id, amount, balance_before, balance_after, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		adj.ID, adj.CustomerID, invoiceID, adj.Amount, adj.BalanceBefore, adj.BalanceAfter, adj.Description,
	).Scan(&adj.CreatedAt)
	if err != nil {
		switch pqCode(err) {
		case pgForeignKeyViolation:
			return fmt.Errorf("Create: %w", domain.ErrAccountNotFound)
		case pgUniqueViolation:
			return fmt.Errorf("Create: invoice %s already charged: %w", invoiceID.UUID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *AdjustmentRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]domain.BalanceAdjustment, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM balance_adjustments WHERE customer_id = $1`, customerID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByCustomer: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+adjustmentColumns+` FROM balance_adjustments
		WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		customerID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByCustomer: %w", err)
	}
	defer rows.Close()

	var adjustments []domain.BalanceAdjustment
	for rows.Next() {
		a, err := scanAdjustment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListByCustomer: scan: %w", err)
		}
		adjustments = append(adjustments, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListByCustomer: rows: %w", err)
	}
	return adjustments, total, nil
}

func scanAdjustment(s scanner) (*domain.BalanceAdjustment, error) {
	var (
		a         domain.BalanceAdjustment
		invoiceID uuid.NullUUID
	)
	err := s.Scan(
		&a.ID, &a.CustomerID, &invoiceID, &a.Amount, &a.BalanceBefore, &a.BalanceAfter,
		&a.Description, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if invoiceID.Valid {
		a.InvoiceID = &invoiceID.UUID
	}
	return &a, nil
}
