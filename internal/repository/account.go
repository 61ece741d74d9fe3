package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/josh-kwaku/isp-billing/internal/domain"
	"github.com/shopspring/decimal"
)

const billingAccountColumns = `customer_id, balance, created_at, updated_at`

type BillingAccountRepository struct {
	db *sql.DB
}

func NewBillingAccountRepository(db *sql.DB) *BillingAccountRepository {
	return &BillingAccountRepository{db: db}
}

// Create opens a zero-balance account. It reports false when the customer
// already has one.
func (r *BillingAccountRepository) Create(ctx context.Context, customerID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO billing_accounts (customer_id, balance) VALUES ($1, 0)
		ON CONFLICT (customer_id) DO NOTHING`,
		customerID,
	)
	if err != nil {
		return false, fmt.Errorf("Create: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Create: rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *BillingAccountRepository) GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*domain.BillingAccount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+billingAccountColumns+` FROM billing_accounts WHERE customer_id = $1`, customerID,
	)
	a, err := scanBillingAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByCustomerID: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetByCustomerID: %w", err)
	}
	return a, nil
}

func (r *BillingAccountRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, customerID uuid.UUID) (*domain.BillingAccount, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+billingAccountColumns+` FROM billing_accounts WHERE customer_id = $1 FOR UPDATE`, customerID,
	)
	a, err := scanBillingAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return a, nil
}

func (r *BillingAccountRepository) UpdateBalance(ctx context.Context, tx *sql.Tx, customerID uuid.UUID, newBalance decimal.Decimal) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE billing_accounts SET balance = $1, updated_at = now() WHERE customer_id = $2`,
		newBalance, customerID,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateBalance: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateBalance: %w", domain.ErrAccountNotFound)
	}
	return nil
}

func scanBillingAccount(s scanner) (*domain.BillingAccount, error) {
	var a domain.BillingAccount
	if err := s.Scan(&a.CustomerID, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
