// Package storage provides abstractions for persistent loan ledger storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/loanledger/internal/models"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the transaction lost a lock or serialization race
	// and was rolled back. Retrying is the caller's decision.
	ErrConflict = errors.New("transaction conflict")
)

// TxFunc is the body of an atomic unit of work.
type TxFunc func(ctx context.Context, tx Tx) error

// Store defines the interface for loan ledger storage.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	// RunInTx runs fn inside a single transaction. All writes made through tx
	// are committed together when fn returns nil, and none are visible if fn
	// returns an error or the commit fails.
	RunInTx(ctx context.Context, fn TxFunc) error

	// RunInReadTx runs fn inside a read-only transaction over one consistent
	// snapshot. It does not serialize against writers; fn must not write.
	RunInReadTx(ctx context.Context, fn TxFunc) error

	// Ping checks that the backing database is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	// CreateLoan persists a new loan. ID, CreatedAt and UpdatedAt are
	// populated by the store when unset.
	CreateLoan(ctx context.Context, loan *models.Loan) error

	// GetLoan retrieves a loan by ID without its schedule.
	// Returns ErrNotFound if the loan does not exist.
	GetLoan(ctx context.Context, loanID string) (*models.Loan, error)

	// LockLoan retrieves a loan and holds a write lock on it until the
	// transaction ends, serializing concurrent writers of the same loan.
	LockLoan(ctx context.Context, loanID string) (*models.Loan, error)

	// UpdateLoan writes the loan's outstanding amount and status.
	UpdateLoan(ctx context.Context, loan *models.Loan) error

	// CreateScheduledRepayments persists a loan's whole schedule.
	CreateScheduledRepayments(ctx context.Context, repayments []models.ScheduledRepayment) error

	// ListScheduledRepayments returns a loan's schedule ordered by due date,
	// ties broken by schedule position.
	ListScheduledRepayments(ctx context.Context, loanID string) ([]models.ScheduledRepayment, error)

	// UpdateScheduledRepayment writes one installment's outstanding amount and status.
	UpdateScheduledRepayment(ctx context.Context, repayment *models.ScheduledRepayment) error

	// SumOutstanding totals the outstanding amounts of a loan's schedule.
	SumOutstanding(ctx context.Context, loanID string) (int64, error)

	// AppendReceivedRepayment appends a ledger entry.
	AppendReceivedRepayment(ctx context.Context, repayment *models.ReceivedRepayment) error

	// ListReceivedRepayments returns a loan's ledger entries, oldest first.
	ListReceivedRepayments(ctx context.Context, loanID string) ([]models.ReceivedRepayment, error)

	// PortfolioSummary aggregates loan counts and balances across the store.
	PortfolioSummary(ctx context.Context) (*models.PortfolioSummary, error)
}
