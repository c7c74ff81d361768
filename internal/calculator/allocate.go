package calculator

import (
	"fmt"

	"github.com/mmynk/loanledger/internal/models"
)

// AllocationLine is the minimal view of a scheduled repayment needed to apply
// a payment to it.
type AllocationLine struct {
	ID          string
	Amount      int64
	Outstanding int64
	Status      models.RepaymentStatus
}

// LineChange describes how one scheduled repayment changed during allocation.
type LineChange struct {
	ID          string
	Applied     int64
	Outstanding int64
	Status      models.RepaymentStatus
}

// AllocationResult is the outcome of applying one tendered payment.
type AllocationResult struct {
	// Changes lists the lines that absorbed money, in allocation order.
	// Lines that were already repaid are skipped and never listed.
	Changes []LineChange

	// Applied is the part of the tendered amount absorbed by the schedule.
	Applied int64

	// Unapplied is what was left once the schedule ran out of debt.
	Unapplied int64
}

// Allocate applies tendered to lines, which must already be ordered oldest
// due first. Each line is retired in full while money remains; the first line
// that cannot be covered is reduced and marked partial, and the scan stops.
//
// Lines are not modified; callers persist the returned changes.
func Allocate(lines []AllocationLine, tendered int64) (AllocationResult, error) {
	if tendered < 0 {
		return AllocationResult{}, fmt.Errorf("tendered amount cannot be negative, got %d", tendered)
	}

	var result AllocationResult
	remaining := tendered

	for _, line := range lines {
		if remaining <= 0 {
			break
		}
		if line.Status == models.RepaymentStatusRepaid || line.Outstanding <= 0 {
			continue
		}

		change := LineChange{ID: line.ID}
		if line.Outstanding <= remaining {
			change.Applied = line.Outstanding
		} else {
			change.Applied = remaining
		}
		remaining -= change.Applied
		change.Outstanding = line.Outstanding - change.Applied
		change.Status = RepaymentStatusFor(line.Amount, change.Outstanding)

		result.Changes = append(result.Changes, change)
	}

	result.Applied = tendered - remaining
	result.Unapplied = remaining
	return result, nil
}

// LoanState derives a loan's outstanding amount and status from the re-summed
// outstanding of its schedule. Anything at or below zero is repaid.
func LoanState(outstanding int64) (int64, models.LoanStatus) {
	if outstanding <= 0 {
		return 0, models.LoanStatusRepaid
	}
	return outstanding, models.LoanStatusDue
}

// RepaymentStatusFor derives the status of an installment from its amounts.
func RepaymentStatusFor(amount, outstanding int64) models.RepaymentStatus {
	switch {
	case outstanding <= 0:
		return models.RepaymentStatusRepaid
	case outstanding < amount:
		return models.RepaymentStatusPartial
	default:
		return models.RepaymentStatusDue
	}
}
