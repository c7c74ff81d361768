package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmynk/loanledger/internal/models"
	"github.com/mmynk/loanledger/internal/storage"
)

var scheduledColumns = []string{
	"id", "loan_id", "seq", "amount", "outstanding_amount", "currency_code",
	"due_date", "status", "created_at", "updated_at",
}

// CreateScheduledRepayments copies the whole schedule in one round trip.
func (t *pgTx) CreateScheduledRepayments(ctx context.Context, repayments []models.ScheduledRepayment) error {
	created := now()
	rows := make([][]any, len(repayments))
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
		rows[i] = []any{
			r.ID, r.LoanID, r.Seq, r.Amount, r.Outstanding, r.CurrencyCode,
			r.DueDate, string(r.Status), r.CreatedAt, r.UpdatedAt,
		}
	}

	_, err := t.tx.CopyFrom(ctx, pgx.Identifier{"scheduled_repayments"}, scheduledColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("insert scheduled repayments: %w", mapError(err))
	}
	return nil
}

func (t *pgTx) ListScheduledRepayments(ctx context.Context, loanID string) ([]models.ScheduledRepayment, error) {
	q := `
SELECT id, loan_id, seq, amount, outstanding_amount, currency_code, due_date, status, created_at, updated_at
FROM scheduled_repayments
WHERE loan_id = $1
ORDER BY due_date ASC, seq ASC
`
	rows, err := t.tx.Query(ctx, q, loanID)
	if err != nil {
		return nil, fmt.Errorf("list scheduled repayments: %w", mapError(err))
	}
	defer rows.Close()

	out := make([]models.ScheduledRepayment, 0)
	for rows.Next() {
		var r models.ScheduledRepayment
		var status string
		var dueDate time.Time
		if err := rows.Scan(
			&r.ID, &r.LoanID, &r.Seq, &r.Amount, &r.Outstanding, &r.CurrencyCode,
			&dueDate, &status, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan scheduled repayment: %w", err)
		}
		r.DueDate = time.Date(dueDate.Year(), dueDate.Month(), dueDate.Day(), 0, 0, 0, 0, time.UTC)
		r.Status = models.RepaymentStatus(status)
		r.CreatedAt = r.CreatedAt.UTC()
		r.UpdatedAt = r.UpdatedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scheduled repayments: %w", mapError(err))
	}
	return out, nil
}

func (t *pgTx) UpdateScheduledRepayment(ctx context.Context, repayment *models.ScheduledRepayment) error {
	repayment.UpdatedAt = now()

	q := `UPDATE scheduled_repayments SET outstanding_amount = $2, status = $3, updated_at = $4 WHERE id = $1`
	tag, err := t.tx.Exec(ctx, q, repayment.ID, repayment.Outstanding, string(repayment.Status), repayment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update scheduled repayment: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("scheduled repayment %s: %w", repayment.ID, storage.ErrNotFound)
	}
	return nil
}

func (t *pgTx) SumOutstanding(ctx context.Context, loanID string) (int64, error) {
	var total int64
	q := `SELECT COALESCE(SUM(outstanding_amount), 0)::bigint FROM scheduled_repayments WHERE loan_id = $1`
	if err := t.tx.QueryRow(ctx, q, loanID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum outstanding: %w", mapError(err))
	}
	return total, nil
}

func (t *pgTx) AppendReceivedRepayment(ctx context.Context, repayment *models.ReceivedRepayment) error {
	if repayment.ID == "" {
		repayment.ID = uuid.New().String()
	}
	if repayment.CreatedAt.IsZero() {
		repayment.CreatedAt = now()
	}

	q := `
INSERT INTO received_repayments (id, loan_id, amount, currency_code, received_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`
	_, err := t.tx.Exec(ctx, q,
		repayment.ID, repayment.LoanID, repayment.Amount, repayment.CurrencyCode,
		repayment.ReceivedAt, repayment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert received repayment: %w", mapError(err))
	}
	return nil
}

func (t *pgTx) ListReceivedRepayments(ctx context.Context, loanID string) ([]models.ReceivedRepayment, error) {
	q := `
SELECT id, loan_id, amount, currency_code, received_at, created_at
FROM received_repayments
WHERE loan_id = $1
ORDER BY entry_no ASC
`
	rows, err := t.tx.Query(ctx, q, loanID)
	if err != nil {
		return nil, fmt.Errorf("list received repayments: %w", mapError(err))
	}
	defer rows.Close()

	out := make([]models.ReceivedRepayment, 0)
	for rows.Next() {
		var r models.ReceivedRepayment
		if err := rows.Scan(&r.ID, &r.LoanID, &r.Amount, &r.CurrencyCode, &r.ReceivedAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan received repayment: %w", err)
		}
		r.ReceivedAt = r.ReceivedAt.UTC()
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate received repayments: %w", mapError(err))
	}
	return out, nil
}
