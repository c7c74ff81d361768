package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mmynk/loanledger/internal/calculator"
	"github.com/mmynk/loanledger/internal/metrics"
	"github.com/mmynk/loanledger/internal/models"
	"github.com/mmynk/loanledger/internal/storage"
)

// CreateLoanInput holds the plain values needed to originate a loan.
type CreateLoanInput struct {
	OwnerID      string
	Amount       int64
	CurrencyCode string
	Terms        int
	// ProcessedAt is the disbursement date, either 2006-01-02 or RFC 3339.
	ProcessedAt string
}

// RepayLoanInput holds the plain values of one received payment.
type RepayLoanInput struct {
	LoanID       string
	Amount       int64
	CurrencyCode string
	// ReceivedAt is either 2006-01-02 or RFC 3339.
	ReceivedAt string
}

// LoanService originates loans and allocates payments against their schedules.
type LoanService struct {
	store   storage.Store
	metrics *metrics.Recorder
}

// NewLoanService creates a new LoanService with the given storage backend.
// rec may be nil.
func NewLoanService(store storage.Store, rec *metrics.Recorder) *LoanService {
	return &LoanService{store: store, metrics: rec}
}

// CreateLoan persists a loan together with its full repayment schedule in one
// transaction and returns the loan with its installments loaded.
func (s *LoanService) CreateLoan(ctx context.Context, in CreateLoanInput) (*models.Loan, error) {
	defer s.metrics.ObserveDuration(metrics.OperationCreateLoan, time.Now())

	if strings.TrimSpace(in.OwnerID) == "" {
		return nil, invalidArgument("owner_id is required")
	}
	if strings.TrimSpace(in.CurrencyCode) == "" {
		return nil, invalidArgument("currency_code is required")
	}
	if in.Terms < 1 {
		return nil, invalidArgument("terms must be at least 1, got %d", in.Terms)
	}
	if in.Terms > calculator.MaxTerms {
		return nil, invalidArgument("terms cannot exceed %d, got %d", calculator.MaxTerms, in.Terms)
	}
	if in.Amount < 0 {
		return nil, invalidArgument("amount cannot be negative, got %d", in.Amount)
	}
	processedAt, err := parseDate("processed_at", in.ProcessedAt)
	if err != nil {
		return nil, err
	}

	lines, err := calculator.BuildSchedule(in.Amount, in.Terms, processedAt)
	if err != nil {
		return nil, invalidArgument("%v", err)
	}

	// A zero principal yields zero-amount installments that start out repaid.
	outstanding, status := calculator.LoanState(in.Amount)
	loan := &models.Loan{
		OwnerID:      in.OwnerID,
		Principal:    in.Amount,
		Terms:        in.Terms,
		Outstanding:  outstanding,
		CurrencyCode: in.CurrencyCode,
		Status:       status,
		ProcessedAt:  processedAt,
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.CreateLoan(ctx, loan); err != nil {
			return err
		}

		installments := make([]models.ScheduledRepayment, len(lines))
		for i, line := range lines {
			installments[i] = models.ScheduledRepayment{
				LoanID:       loan.ID,
				Seq:          line.Seq,
				Amount:       line.Amount,
				Outstanding:  line.Amount,
				CurrencyCode: in.CurrencyCode,
				DueDate:      dateOnly(line.DueDate),
				Status:       calculator.RepaymentStatusFor(line.Amount, line.Amount),
			}
		}
		if err := tx.CreateScheduledRepayments(ctx, installments); err != nil {
			return err
		}

		loan.Installments = installments
		return nil
	})
	if err != nil {
		slog.Error("CreateLoan failed", "owner_id", in.OwnerID, "error", err)
		return nil, toServiceError(err)
	}

	s.metrics.LoanCreated()
	slog.Info("Loan created",
		"loan_id", loan.ID,
		"owner_id", loan.OwnerID,
		"amount", loan.Principal,
		"terms", loan.Terms,
		"currency", loan.CurrencyCode,
	)
	return loan, nil
}

// RepayLoan applies a payment to the loan's installments oldest due first,
// re-derives the loan balance from its schedule and appends one ledger entry
// holding the applied amount. Anything beyond the total outstanding is
// discarded.
func (s *LoanService) RepayLoan(ctx context.Context, in RepayLoanInput) (*models.Loan, error) {
	defer s.metrics.ObserveDuration(metrics.OperationRepayLoan, time.Now())

	if strings.TrimSpace(in.LoanID) == "" {
		return nil, invalidArgument("loan_id is required")
	}
	if strings.TrimSpace(in.CurrencyCode) == "" {
		return nil, invalidArgument("currency_code is required")
	}
	if in.Amount < 0 {
		return nil, invalidArgument("amount cannot be negative, got %d", in.Amount)
	}
	receivedAt, err := parseDate("received_at", in.ReceivedAt)
	if err != nil {
		return nil, err
	}

	var (
		loan       *models.Loan
		allocation calculator.AllocationResult
		wasRepaid  bool
	)
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		loan, err = tx.LockLoan(ctx, in.LoanID)
		if err != nil {
			return err
		}
		wasRepaid = loan.IsRepaid()

		installments, err := tx.ListScheduledRepayments(ctx, loan.ID)
		if err != nil {
			return err
		}

		lines := make([]calculator.AllocationLine, len(installments))
		byID := make(map[string]int, len(installments))
		for i, inst := range installments {
			lines[i] = calculator.AllocationLine{
				ID:          inst.ID,
				Amount:      inst.Amount,
				Outstanding: inst.Outstanding,
				Status:      inst.Status,
			}
			byID[inst.ID] = i
		}

		allocation, err = calculator.Allocate(lines, in.Amount)
		if err != nil {
			return invalidArgument("%v", err)
		}

		for _, change := range allocation.Changes {
			inst := &installments[byID[change.ID]]
			inst.Outstanding = change.Outstanding
			inst.Status = change.Status
			if err := tx.UpdateScheduledRepayment(ctx, inst); err != nil {
				return err
			}
		}

		total, err := tx.SumOutstanding(ctx, loan.ID)
		if err != nil {
			return err
		}
		loan.Outstanding, loan.Status = calculator.LoanState(total)
		if err := tx.UpdateLoan(ctx, loan); err != nil {
			return err
		}

		if err := tx.AppendReceivedRepayment(ctx, &models.ReceivedRepayment{
			LoanID:       loan.ID,
			Amount:       allocation.Applied,
			CurrencyCode: in.CurrencyCode,
			ReceivedAt:   receivedAt,
		}); err != nil {
			return err
		}

		loan.Installments = installments
		return nil
	})
	if err != nil {
		s.metrics.RepaymentFailed()
		slog.Error("RepayLoan failed", "loan_id", in.LoanID, "amount", in.Amount, "error", err)
		return nil, toServiceError(err)
	}

	s.metrics.RepaymentAllocated(repaymentOutcome(allocation, wasRepaid, loan), allocation.Applied, allocation.Unapplied)
	slog.Info("Repayment allocated",
		"loan_id", loan.ID,
		"tendered", in.Amount,
		"applied", allocation.Applied,
		"unapplied", allocation.Unapplied,
		"outstanding", loan.Outstanding,
		"status", loan.Status,
	)
	if allocation.Unapplied > 0 {
		slog.Warn("Overpayment discarded", "loan_id", loan.ID, "unapplied", allocation.Unapplied)
	}
	return loan, nil
}

// GetLoan returns a loan with its schedule ordered by due date.
func (s *LoanService) GetLoan(ctx context.Context, loanID string) (*models.Loan, error) {
	if strings.TrimSpace(loanID) == "" {
		return nil, invalidArgument("loan_id is required")
	}

	var loan *models.Loan
	err := s.store.RunInReadTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		loan, err = tx.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		loan.Installments, err = tx.ListScheduledRepayments(ctx, loanID)
		return err
	})
	if err != nil {
		slog.Debug("GetLoan failed", "loan_id", loanID, "error", err)
		return nil, toServiceError(err)
	}
	return loan, nil
}

// ListReceivedRepayments returns the loan's ledger entries, oldest first.
func (s *LoanService) ListReceivedRepayments(ctx context.Context, loanID string) ([]models.ReceivedRepayment, error) {
	if strings.TrimSpace(loanID) == "" {
		return nil, invalidArgument("loan_id is required")
	}

	var entries []models.ReceivedRepayment
	err := s.store.RunInReadTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetLoan(ctx, loanID); err != nil {
			return err
		}
		var err error
		entries, err = tx.ListReceivedRepayments(ctx, loanID)
		return err
	})
	if err != nil {
		slog.Debug("ListReceivedRepayments failed", "loan_id", loanID, "error", err)
		return nil, toServiceError(err)
	}
	return entries, nil
}

func repaymentOutcome(allocation calculator.AllocationResult, wasRepaid bool, loan *models.Loan) string {
	switch {
	case allocation.Applied == 0:
		return metrics.OutcomeNoop
	case !wasRepaid && loan.IsRepaid():
		return metrics.OutcomeRepaid
	default:
		return metrics.OutcomePartial
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
