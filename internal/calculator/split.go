package calculator

import (
	"fmt"
	"time"
)

// MaxTerms bounds the length of a schedule: one hundred years of monthly
// installments.
const MaxTerms = 1200

// ScheduleLine is one computed installment of a repayment schedule.
type ScheduleLine struct {
	Seq     int
	Amount  int64
	DueDate time.Time
}

// SplitPrincipal divides principal into terms integer installments.
// Every installment gets principal / terms; the last one also absorbs the
// whole remainder, e.g. 5000 over 3 terms is [1666, 1666, 1668].
func SplitPrincipal(principal int64, terms int) ([]int64, error) {
	if terms < 1 {
		return nil, fmt.Errorf("terms must be at least 1, got %d", terms)
	}
	if terms > MaxTerms {
		return nil, fmt.Errorf("terms cannot exceed %d, got %d", MaxTerms, terms)
	}
	if principal < 0 {
		return nil, fmt.Errorf("principal cannot be negative, got %d", principal)
	}

	base := principal / int64(terms)
	remainder := principal % int64(terms)

	amounts := make([]int64, terms)
	for i := range amounts {
		amounts[i] = base
	}
	amounts[terms-1] += remainder

	return amounts, nil
}

// AddMonthNoOverflow advances t by one calendar month. When the day does not
// exist in the target month it is clamped to the month's last day, so
// Jan 31 becomes Feb 28 (or 29) rather than rolling into March.
func AddMonthNoOverflow(t time.Time) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	// Day 0 of the month after next is the last day of next month.
	lastDay := time.Date(year, month+2, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > lastDay {
		day = lastDay
	}

	return time.Date(year, month+1, day, hour, minute, sec, t.Nanosecond(), t.Location())
}

// DueDates returns terms due dates. The first is one month after start and
// each next one is the previous due date advanced by one month, so a clamp
// carries forward: Jan 31 gives Feb 29, Mar 29, Apr 29 in a leap year.
func DueDates(start time.Time, terms int) []time.Time {
	if terms < 1 || terms > MaxTerms {
		return nil
	}

	dates := make([]time.Time, terms)
	due := start
	for i := range dates {
		due = AddMonthNoOverflow(due)
		dates[i] = due
	}
	return dates
}

// BuildSchedule computes the installments for a loan of principal repaid over
// terms months starting from start.
func BuildSchedule(principal int64, terms int, start time.Time) ([]ScheduleLine, error) {
	amounts, err := SplitPrincipal(principal, terms)
	if err != nil {
		return nil, err
	}

	dates := DueDates(start, terms)
	lines := make([]ScheduleLine, terms)
	for i := range lines {
		lines[i] = ScheduleLine{
			Seq:     i + 1,
			Amount:  amounts[i],
			DueDate: dates[i],
		}
	}
	return lines, nil
}
