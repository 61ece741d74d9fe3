package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ServiceStatus string

const (
	ServiceStatusPending   ServiceStatus = "pending"
	ServiceStatusActive    ServiceStatus = "active"
	ServiceStatusSuspended ServiceStatus = "suspended"
	ServiceStatusCancelled ServiceStatus = "cancelled"
)

// CustomerService is a subscribed connectivity package billed monthly on its
// anchor day.
type CustomerService struct {
	ID              uuid.UUID
	CustomerID      uuid.UUID
	PackageName     string
	MonthlyPrice    decimal.Decimal
	BillingAnchor   BillingAnchor
	Status          ServiceStatus
	ActivationDate  *time.Time
	NextBillingDate *time.Time
	LastInvoiceDate *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
