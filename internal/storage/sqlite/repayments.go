package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmynk/loanledger/internal/models"
)

// CreateScheduledRepayments inserts a loan's schedule.
func (t *sqliteTx) CreateScheduledRepayments(ctx context.Context, repayments []models.ScheduledRepayment) error {
	stmt, err := t.tx.PrepareContext(ctx,
		`INSERT INTO scheduled_repayments
		   (id, loan_id, seq, amount, outstanding_amount, currency_code, due_date, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare scheduled repayment insert: %w", mapError(err))
	}
	defer stmt.Close()

	created := now()
	for i := range repayments {
		r := &repayments[i]
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = created
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = r.CreatedAt
		}

		_, err := stmt.ExecContext(ctx,
			r.ID, r.LoanID, r.Seq, r.Amount, r.Outstanding, r.CurrencyCode,
			toDate(r.DueDate), string(r.Status), toMillis(r.CreatedAt), toMillis(r.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert scheduled repayment: %w", mapError(err))
		}
	}
	return nil
}

// ListScheduledRepayments retrieves a loan's schedule, oldest due first.
func (t *sqliteTx) ListScheduledRepayments(ctx context.Context, loanID string) ([]models.ScheduledRepayment, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, loan_id, seq, amount, outstanding_amount, currency_code, due_date, status, created_at, updated_at
		 FROM scheduled_repayments WHERE loan_id = ? ORDER BY due_date ASC, seq ASC`,
		loanID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled repayments: %w", mapError(err))
	}
	defer rows.Close()

	var repayments []models.ScheduledRepayment
	for rows.Next() {
		var r models.ScheduledRepayment
		var dueDate, status string
		var createdAt, updatedAt int64

		if err := rows.Scan(&r.ID, &r.LoanID, &r.Seq, &r.Amount, &r.Outstanding, &r.CurrencyCode,
			&dueDate, &status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan scheduled repayment: %w", err)
		}

		r.DueDate, err = fromDate(dueDate)
		if err != nil {
			return nil, fmt.Errorf("invalid due date %q: %w", dueDate, err)
		}
		r.Status = models.RepaymentStatus(status)
		r.CreatedAt = fromMillis(createdAt)
		r.UpdatedAt = fromMillis(updatedAt)
		repayments = append(repayments, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scheduled repayments: %w", mapError(err))
	}

	return repayments, nil
}

// UpdateScheduledRepayment writes an installment's outstanding amount and status.
func (t *sqliteTx) UpdateScheduledRepayment(ctx context.Context, repayment *models.ScheduledRepayment) error {
	repayment.UpdatedAt = now()

	res, err := t.tx.ExecContext(ctx,
		`UPDATE scheduled_repayments SET outstanding_amount = ?, status = ?, updated_at = ? WHERE id = ?`,
		repayment.Outstanding, string(repayment.Status), toMillis(repayment.UpdatedAt), repayment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update scheduled repayment: %w", mapError(err))
	}
	return requireRow(res, "scheduled repayment", repayment.ID)
}

// SumOutstanding totals the outstanding amounts of a loan's schedule.
func (t *sqliteTx) SumOutstanding(ctx context.Context, loanID string) (int64, error) {
	var total int64
	err := t.tx.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(outstanding_amount), 0) FROM scheduled_repayments WHERE loan_id = ?",
		loanID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum outstanding: %w", mapError(err))
	}
	return total, nil
}

// AppendReceivedRepayment inserts a ledger entry.
func (t *sqliteTx) AppendReceivedRepayment(ctx context.Context, repayment *models.ReceivedRepayment) error {
	if repayment.ID == "" {
		repayment.ID = uuid.New().String()
	}
	if repayment.CreatedAt.IsZero() {
		repayment.CreatedAt = now()
	}

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO received_repayments (id, loan_id, amount, currency_code, received_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		repayment.ID, repayment.LoanID, repayment.Amount, repayment.CurrencyCode,
		toMillis(repayment.ReceivedAt), toMillis(repayment.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert received repayment: %w", mapError(err))
	}
	return nil
}

// ListReceivedRepayments retrieves a loan's ledger entries in the order they were recorded.
func (t *sqliteTx) ListReceivedRepayments(ctx context.Context, loanID string) ([]models.ReceivedRepayment, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, loan_id, amount, currency_code, received_at, created_at
		 FROM received_repayments WHERE loan_id = ? ORDER BY created_at ASC, rowid ASC`,
		loanID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list received repayments: %w", mapError(err))
	}
	defer rows.Close()

	var repayments []models.ReceivedRepayment
	for rows.Next() {
		var r models.ReceivedRepayment
		var receivedAt, createdAt int64
		if err := rows.Scan(&r.ID, &r.LoanID, &r.Amount, &r.CurrencyCode, &receivedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan received repayment: %w", err)
		}
		r.ReceivedAt = fromMillis(receivedAt)
		r.CreatedAt = fromMillis(createdAt)
		repayments = append(repayments, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate received repayments: %w", mapError(err))
	}

	return repayments, nil
}
