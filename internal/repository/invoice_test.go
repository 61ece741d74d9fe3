package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/josh-kwaku/isp-billing/internal/domain"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var invoiceRowColumns = []string{
	"id", "invoice_number", "customer_id", "service_id", "invoice_type",
	"invoice_date", "due_date", "period_start", "period_end",
	"subtotal", "vat_rate", "vat_amount", "total_amount", "amount_paid",
	"line_items", "status", "created_at",
}

func sampleInvoice() *domain.Invoice {
	serviceID := uuid.New()
	start := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Invoice{
		ID:          uuid.New(),
		CustomerID:  uuid.New(),
		ServiceID:   &serviceID,
		InvoiceType: domain.InvoiceTypeProRata,
		InvoiceDate: start,
		DueDate:     start.AddDate(0, 0, 7),
		PeriodStart: &start,
		PeriodEnd:   &end,
		Subtotal:    decimal.RequireFromString("383.32"),
		VATRate:     decimal.RequireFromString("15.00"),
		VATAmount:   decimal.RequireFromString("57.50"),
		TotalAmount: decimal.RequireFromString("440.82"),
		AmountPaid:  decimal.Zero,
		LineItems: []domain.LineItem{{
			Description: "Fibre 100 pro-rata (2025-11-15 to 2025-12-01)",
			Quantity:    1,
			UnitPrice:   decimal.RequireFromString("383.32"),
			Amount:      decimal.RequireFromString("383.32"),
			Type:        "service",
		}},
		Status: domain.InvoiceStatusUnpaid,
	}
}

func TestInvoiceRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("returns assigned number", func(t *testing.T) {
		db, mock := newMockDB(t)
		inv := sampleInvoice()
		created := time.Date(2025, 11, 15, 8, 30, 0, 0, time.UTC)

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO customer_invoices`)).
			WithArgs(
				inv.ID, inv.CustomerID, inv.ServiceID.String(), inv.InvoiceType,
				"2025-11-15", "2025-11-22", "2025-11-15", "2025-12-01",
				inv.Subtotal, inv.VATRate, inv.VATAmount, inv.TotalAmount, inv.AmountPaid,
				sqlmock.AnyArg(), inv.Status,
			).
			WillReturnRows(sqlmock.NewRows([]string{"invoice_number", "created_at"}).
				AddRow("INV-2025-000042", created))

		require.NoError(t, NewInvoiceRepository(db).Create(ctx, inv))
		assert.Equal(t, "INV-2025-000042", inv.InvoiceNumber)
		assert.Equal(t, created, inv.CreatedAt)
	})

	t.Run("without service or period", func(t *testing.T) {
		db, mock := newMockDB(t)
		inv := sampleInvoice()
		inv.ServiceID = nil
		inv.PeriodStart = nil
		inv.PeriodEnd = nil
		inv.InvoiceType = domain.InvoiceTypeEquipment

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO customer_invoices`)).
			WithArgs(
				inv.ID, inv.CustomerID, nil, inv.InvoiceType,
				"2025-11-15", "2025-11-22", nil, nil,
				inv.Subtotal, inv.VATRate, inv.VATAmount, inv.TotalAmount, inv.AmountPaid,
				sqlmock.AnyArg(), inv.Status,
			).
			WillReturnRows(sqlmock.NewRows([]string{"invoice_number", "created_at"}).
				AddRow("INV-2025-000043", time.Now()))

		require.NoError(t, NewInvoiceRepository(db).Create(ctx, inv))
	})

	t.Run("number collision", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO customer_invoices`)).
			WillReturnError(&pq.Error{Code: pgUniqueViolation})

		err := NewInvoiceRepository(db).Create(ctx, sampleInvoice())
		require.ErrorIs(t, err, domain.ErrAlreadyExists)
	})
}

func TestInvoiceRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes line items", func(t *testing.T) {
		db, mock := newMockDB(t)
		inv := sampleInvoice()

		mock.ExpectQuery(regexp.QuoteMeta(`FROM customer_invoices WHERE id = $1`)).
			WithArgs(inv.ID).
			WillReturnRows(sqlmock.NewRows(invoiceRowColumns).AddRow(
				inv.ID.String(), "INV-2025-000042", inv.CustomerID.String(), inv.ServiceID.String(), "pro_rata",
				inv.InvoiceDate, inv.DueDate, *inv.PeriodStart, *inv.PeriodEnd,
				"383.32", "15.00", "57.50", "440.82", "0.00",
				[]byte(`[{"description":"Fibre 100 pro-rata (2025-11-15 to 2025-12-01)","quantity":1,"unit_price":"383.32","amount":"383.32","type":"service"}]`),
				"unpaid", time.Now(),
			))

		got, err := NewInvoiceRepository(db).GetByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, "INV-2025-000042", got.InvoiceNumber)
		assert.Equal(t, domain.InvoiceTypeProRata, got.InvoiceType)
		require.NotNil(t, got.ServiceID)
		assert.Equal(t, *inv.ServiceID, *got.ServiceID)
		require.Len(t, got.LineItems, 1)
		assert.True(t, got.LineItems[0].Amount.Equal(decimal.RequireFromString("383.32")))
		assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("440.82")))
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM customer_invoices WHERE id = $1`)).
			WillReturnRows(sqlmock.NewRows(invoiceRowColumns))

		_, err := NewInvoiceRepository(db).GetByID(ctx, uuid.New())
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestInvoiceRepository_FindRecurringInRange(t *testing.T) {
	db, mock := newMockDB(t)
	serviceID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`invoice_date BETWEEN $3 AND $4`)).
		WithArgs(serviceID, domain.InvoiceTypeRecurring, "2025-12-01", "2025-12-31").
		WillReturnRows(sqlmock.NewRows(invoiceRowColumns))

	_, err := NewInvoiceRepository(db).FindRecurringInRange(context.Background(), serviceID,
		time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInvoiceRepository_ListUncharged(t *testing.T) {
	db, mock := newMockDB(t)
	inv := sampleInvoice()

	mock.ExpectQuery(regexp.QuoteMeta(`NOT EXISTS (SELECT 1 FROM balance_adjustments a WHERE a.invoice_id = i.id)`)).
		WithArgs(*inv.ServiceID).
		WillReturnRows(sqlmock.NewRows(invoiceRowColumns).AddRow(
			inv.ID.String(), "INV-2025-000042", inv.CustomerID.String(), inv.ServiceID.String(), "recurring",
			inv.InvoiceDate, inv.DueDate, *inv.PeriodStart, *inv.PeriodEnd,
			"699.00", "15.00", "104.85", "803.85", "0.00",
			[]byte(`[{"description":"Fibre 100 - December 2025","quantity":1,"unit_price":"699.00","amount":"699.00","type":"recurring"}]`),
			"unpaid", time.Now(),
		))

	got, err := NewInvoiceRepository(db).ListUncharged(context.Background(), *inv.ServiceID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inv.ID, got[0].ID)
	assert.Equal(t, domain.InvoiceTypeRecurring, got[0].InvoiceType)
	assert.True(t, got[0].TotalAmount.Equal(decimal.RequireFromString("803.85")))
}
