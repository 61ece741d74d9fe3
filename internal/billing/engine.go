// Package billing computes billing-cycle dates and pro-rata charges for
// monthly subscriptions anchored to a fixed day of month.
//
// Every function is pure: the reference instant is always passed in and no
// state is kept between calls. Calendar fields are read in the engine's
// billing location so a charge date does not shift with the server timezone.
package billing

import (
	"fmt"
	"time"

	"github.com/josh-kwaku/isp-billing/internal/domain"
	"github.com/shopspring/decimal"
)

type ProRataResult struct {
	DaysInPeriod   int
	DaysUsed       int
	MonthlyAmount  decimal.Decimal
	ProratedAmount decimal.Decimal
	PeriodStart    time.Time
	PeriodEnd      time.Time
}

type CycleBounds struct {
	CycleStart time.Time
	CycleEnd   time.Time
}

type Engine struct {
	loc *time.Location
}

func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{loc: loc}
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

// IsValidAnchor reports whether day is one of the selectable billing days.
func IsValidAnchor(day int) bool {
	return domain.BillingAnchor(day).IsValid()
}

// NextBillingDate returns the first anchor date strictly after the calendar
// day of from. A from date that falls on the anchor day (after clamping to the
// month length) counts as already billed and rolls to the following month.
func (e *Engine) NextBillingDate(from time.Time, anchor domain.BillingAnchor) (time.Time, error) {
	if !anchor.IsValid() {
		return time.Time{}, fmt.Errorf("NextBillingDate: anchor %d: %w", anchor, domain.ErrInvalidInput)
	}
	return e.nextBillingDate(from, anchor), nil
}

// CalculateProRata prices the partial period from activation up to the next
// billing date. Days are counted inclusively and the daily rate is taken from
// the month that contains the next billing date. Activation on the anchor day
// is a full period, and no partial period is charged more than the full
// monthly amount.
func (e *Engine) CalculateProRata(activation time.Time, monthly decimal.Decimal, anchor domain.BillingAnchor) (ProRataResult, error) {
	if !anchor.IsValid() {
		return ProRataResult{}, fmt.Errorf("CalculateProRata: anchor %d: %w", anchor, domain.ErrInvalidInput)
	}
	if monthly.IsNegative() {
		return ProRataResult{}, fmt.Errorf("CalculateProRata: monthly amount %s is negative: %w", monthly, domain.ErrInvalidInput)
	}

	start := e.StartOfDay(activation)
	next := e.nextBillingDate(start, anchor)

	daysInPeriod := daysIn(next.Year(), next.Month())
	daysUsed := calendarDays(start, next) + 1
	if start.Day() == effectiveDay(start.Year(), start.Month(), anchor) || daysUsed > daysInPeriod {
		daysUsed = daysInPeriod
	}

	prorated := monthly.
		Mul(decimal.NewFromInt(int64(daysUsed))).
		Div(decimal.NewFromInt(int64(daysInPeriod))).
		Round(2)

	return ProRataResult{
		DaysInPeriod:   daysInPeriod,
		DaysUsed:       daysUsed,
		MonthlyAmount:  monthly,
		ProratedAmount: prorated,
		PeriodStart:    start,
		PeriodEnd:      next,
	}, nil
}

// CycleBounds returns the billing window that contains ref. Each boundary is
// clamped against the length of its own month, so the end of the window is
// always the next billing date for ref.
func (e *Engine) CycleBounds(anchor domain.BillingAnchor, ref time.Time) (CycleBounds, error) {
	if !anchor.IsValid() {
		return CycleBounds{}, fmt.Errorf("CycleBounds: anchor %d: %w", anchor, domain.ErrInvalidInput)
	}

	y, m, d := ref.In(e.loc).Date()
	if d < effectiveDay(y, m, anchor) {
		return CycleBounds{
			CycleStart: e.anchorDate(y, m-1, anchor),
			CycleEnd:   e.anchorDate(y, m, anchor),
		}, nil
	}
	return CycleBounds{
		CycleStart: e.anchorDate(y, m, anchor),
		CycleEnd:   e.anchorDate(y, m+1, anchor),
	}, nil
}

// DaysUntilNextBilling counts calendar days in the engine's location, so any
// time on the day before the charge reports 1 and a clock change in between
// does not add or remove a day.
func (e *Engine) DaysUntilNextBilling(anchor domain.BillingAnchor, from time.Time) (int, error) {
	next, err := e.NextBillingDate(from, anchor)
	if err != nil {
		return 0, fmt.Errorf("DaysUntilNextBilling: %w", err)
	}
	return calendarDays(from.In(e.loc), next.In(e.loc)), nil
}

// AnchorsDueOn lists the anchors whose charge falls on the calendar day of t.
// Anchor 30 is due on the last day of February.
func (e *Engine) AnchorsDueOn(t time.Time) []domain.BillingAnchor {
	y, m, d := t.In(e.loc).Date()
	var due []domain.BillingAnchor
	for _, a := range domain.BillingAnchors {
		if effectiveDay(y, m, a) == d {
			due = append(due, a)
		}
	}
	return due
}

func (e *Engine) StartOfDay(t time.Time) time.Time {
	y, m, d := t.In(e.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.loc)
}

// CivilDate keeps the calendar date of t as written in t's own location and
// places it at midnight in the billing location. Use it for DATE values read
// from storage.
func (e *Engine) CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.loc)
}

// MonthBounds returns the first and last calendar day of the month of t.
func (e *Engine) MonthBounds(t time.Time) (time.Time, time.Time) {
	y, m, _ := t.In(e.loc).Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, e.loc)
	return first, first.AddDate(0, 1, -1)
}

func (e *Engine) nextBillingDate(from time.Time, anchor domain.BillingAnchor) time.Time {
	y, m, d := from.In(e.loc).Date()
	if d >= effectiveDay(y, m, anchor) {
		m++
	}
	return e.anchorDate(y, m, anchor)
}

// anchorDate accepts out-of-range months (0, 13) and normalizes the year.
func (e *Engine) anchorDate(year int, month time.Month, anchor domain.BillingAnchor) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, e.loc)
	day := effectiveDay(first.Year(), first.Month(), anchor)
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, e.loc)
}

func effectiveDay(year int, month time.Month, anchor domain.BillingAnchor) int {
	return min(anchor.Day(), daysIn(year, month))
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func calendarDays(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
