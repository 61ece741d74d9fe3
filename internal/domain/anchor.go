package domain

import "fmt"

// BillingAnchor is the day of month a recurring charge falls on. Only the
// four declared values are valid; the zero value is not.
type BillingAnchor int

const (
	BillingAnchor1  BillingAnchor = 1
	BillingAnchor5  BillingAnchor = 5
	BillingAnchor25 BillingAnchor = 25
	BillingAnchor30 BillingAnchor = 30
)

var BillingAnchors = []BillingAnchor{BillingAnchor1, BillingAnchor5, BillingAnchor25, BillingAnchor30}

func (a BillingAnchor) IsValid() bool {
	switch a {
	case BillingAnchor1, BillingAnchor5, BillingAnchor25, BillingAnchor30:
		return true
	}
	return false
}

func (a BillingAnchor) Day() int { return int(a) }

func ParseBillingAnchor(day int) (BillingAnchor, error) {
	a := BillingAnchor(day)
	if !a.IsValid() {
		return 0, fmt.Errorf("ParseBillingAnchor: %d is not one of 1, 5, 25, 30: %w", day, ErrInvalidInput)
	}
	return a, nil
}
