package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceType string

const (
	InvoiceTypeRecurring    InvoiceType = "recurring"
	InvoiceTypeInstallation InvoiceType = "installation"
	InvoiceTypeProRata      InvoiceType = "pro_rata"
	InvoiceTypeEquipment    InvoiceType = "equipment"
	InvoiceTypeAdjustment   InvoiceType = "adjustment"
)

func (t InvoiceType) IsValid() bool {
	switch t {
	case InvoiceTypeRecurring, InvoiceTypeInstallation, InvoiceTypeProRata,
		InvoiceTypeEquipment, InvoiceTypeAdjustment:
		return true
	}
	return false
}

type InvoiceStatus string

const (
	InvoiceStatusUnpaid    InvoiceStatus = "unpaid"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

type LineItem struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
}

type Invoice struct {
	ID            uuid.UUID
	InvoiceNumber string
	CustomerID    uuid.UUID
	ServiceID     *uuid.UUID
	InvoiceType   InvoiceType
	InvoiceDate   time.Time
	DueDate       time.Time
	PeriodStart   *time.Time
	PeriodEnd     *time.Time
	Subtotal      decimal.Decimal
	VATRate       decimal.Decimal
	VATAmount     decimal.Decimal
	TotalAmount   decimal.Decimal
	AmountPaid    decimal.Decimal
	LineItems     []LineItem
	Status        InvoiceStatus
	CreatedAt     time.Time
}
