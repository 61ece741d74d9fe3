package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/isp-billing/internal/domain"
	"github.com/shopspring/decimal"
)

func SeedBillingAccount(t *testing.T, db *sql.DB, balance string) uuid.UUID {
	t.Helper()

	customerID := uuid.New()
	_, err := db.Exec(
		`INSERT INTO billing_accounts (customer_id, balance) VALUES ($1, $2)`,
		customerID, balance,
	)
	if err != nil {
		t.Fatalf("seed billing account: %v", err)
	}
	return customerID
}

func SeedCustomerService(t *testing.T, db *sql.DB, customerID uuid.UUID, anchor domain.BillingAnchor, price string, status domain.ServiceStatus) *domain.CustomerService {
	t.Helper()

	svc := &domain.CustomerService{
		ID:            uuid.New(),
		CustomerID:    customerID,
		PackageName:   "Fibre 100",
		MonthlyPrice:  decimal.RequireFromString(price),
		BillingAnchor: anchor,
		Status:        status,
		CreatedAt:     time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO customer_services (id, customer_id, package_name, monthly_price, billing_anchor, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		svc.ID, svc.CustomerID, svc.PackageName, svc.MonthlyPrice, svc.BillingAnchor.Day(), svc.Status, svc.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed customer service %s: %v", svc.ID, err)
	}
	return svc
}

func GetBalance(t *testing.T, db *sql.DB, customerID uuid.UUID) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	err := db.QueryRow(`SELECT balance FROM billing_accounts WHERE customer_id = $1`, customerID).Scan(&balance)
	if err != nil {
		t.Fatalf("get balance %s: %v", customerID, err)
	}
	return balance
}

func CountAdjustments(t *testing.T, db *sql.DB, customerID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM balance_adjustments WHERE customer_id = $1`, customerID).Scan(&count)
	if err != nil {
		t.Fatalf("count adjustments for %s: %v", customerID, err)
	}
	return count
}

func CountInvoices(t *testing.T, db *sql.DB, serviceID uuid.UUID, invoiceType domain.InvoiceType) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM customer_invoices WHERE service_id = $1 AND invoice_type = $2`,
		serviceID, invoiceType,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count invoices for %s: %v", serviceID, err)
	}
	return count
}
