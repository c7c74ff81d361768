package models

import "time"

// RepaymentStatus is the state of one scheduled repayment.
type RepaymentStatus string

const (
	RepaymentStatusDue     RepaymentStatus = "DUE"
	RepaymentStatusPartial RepaymentStatus = "PARTIAL"
	RepaymentStatusRepaid  RepaymentStatus = "REPAID"
)

// ScheduledRepayment is one installment of a loan's repayment plan.
type ScheduledRepayment struct {
	// ID is the unique identifier for the installment (UUID format).
	ID string

	// LoanID is the loan this installment belongs to.
	LoanID string

	// Seq is the 1-based position in the schedule. It breaks due date ties.
	Seq int

	// Amount is the original installment amount. Never changes after creation.
	Amount int64

	// Outstanding is the unpaid part of Amount, 0 <= Outstanding <= Amount.
	Outstanding int64

	CurrencyCode string

	// DueDate is a calendar date at midnight UTC.
	DueDate time.Time

	Status RepaymentStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReceivedRepayment records the portion of one incoming payment that was
// applied to a loan. Entries are append-only.
type ReceivedRepayment struct {
	// ID is the unique identifier for the entry (UUID format).
	ID string

	LoanID string

	// Amount is the applied amount, never more than what was tendered.
	Amount int64

	CurrencyCode string

	ReceivedAt time.Time

	CreatedAt time.Time
}

// PortfolioSummary aggregates loan state across the whole store.
type PortfolioSummary struct {
	TotalLoans       int64
	DueLoans         int64
	RepaidLoans      int64
	TotalPrincipal   int64
	TotalOutstanding int64
}
