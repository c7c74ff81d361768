package models

import "time"

// LoanStatus is the aggregate repayment state of a loan.
type LoanStatus string

const (
	LoanStatusDue    LoanStatus = "DUE"
	LoanStatusRepaid LoanStatus = "REPAID"
)

// Currency tags seen in existing loan books. Any non-empty tag is accepted.
const (
	CurrencyVND = "VND"
	CurrencySGD = "SGD"
)

// Loan represents a principal disbursed to an owner and repaid over Terms
// scheduled repayments.
type Loan struct {
	// ID is the unique identifier for the loan (UUID format).
	ID string

	// OwnerID references the borrower. It is opaque to this package.
	OwnerID string

	// Principal is the disbursed amount in minor units.
	Principal int64

	// Terms is the number of scheduled repayments.
	Terms int

	// Outstanding is the unpaid remainder. It always equals the sum of the
	// outstanding amounts of the loan's scheduled repayments.
	Outstanding int64

	// CurrencyCode is an opaque currency tag.
	CurrencyCode string

	Status LoanStatus

	// ProcessedAt is the disbursement date the schedule is built from.
	ProcessedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// Installments is the schedule ordered by due date. Populated only when
	// the loan is loaded together with its schedule.
	Installments []ScheduledRepayment
}

// IsRepaid reports whether the loan has nothing left to pay.
func (l *Loan) IsRepaid() bool {
	return l.Status == LoanStatusRepaid
}

// TotalScheduled sums the original amounts of the loaded installments.
func (l *Loan) TotalScheduled() int64 {
	var total int64
	for _, inst := range l.Installments {
		total += inst.Amount
	}
	return total
}
