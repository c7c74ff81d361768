package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmynk/loanledger/internal/models"
	"github.com/mmynk/loanledger/internal/storage"
)

const loanColumns = `id, owner_id, amount, terms, outstanding_amount, currency_code, status, processed_at, created_at, updated_at`

func (t *pgTx) CreateLoan(ctx context.Context, loan *models.Loan) error {
	if loan.ID == "" {
		loan.ID = uuid.New().String()
	}
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = now()
	}
	if loan.UpdatedAt.IsZero() {
		loan.UpdatedAt = loan.CreatedAt
	}

	q := `INSERT INTO loans (` + loanColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := t.tx.Exec(ctx, q,
		loan.ID, loan.OwnerID, loan.Principal, loan.Terms, loan.Outstanding,
		loan.CurrencyCode, string(loan.Status), loan.ProcessedAt, loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert loan: %w", mapError(err))
	}
	return nil
}

func (t *pgTx) GetLoan(ctx context.Context, loanID string) (*models.Loan, error) {
	q := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	return scanLoan(t.tx.QueryRow(ctx, q, loanID), loanID)
}

func (t *pgTx) LockLoan(ctx context.Context, loanID string) (*models.Loan, error) {
	q := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`
	return scanLoan(t.tx.QueryRow(ctx, q, loanID), loanID)
}

func (t *pgTx) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	loan.UpdatedAt = now()

	q := `UPDATE loans SET outstanding_amount = $2, status = $3, updated_at = $4 WHERE id = $1`
	tag, err := t.tx.Exec(ctx, q, loan.ID, loan.Outstanding, string(loan.Status), loan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update loan: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("loan %s: %w", loan.ID, storage.ErrNotFound)
	}
	return nil
}

func (t *pgTx) PortfolioSummary(ctx context.Context) (*models.PortfolioSummary, error) {
	q := `
SELECT
  COUNT(*)::bigint,
  COUNT(*) FILTER (WHERE status = 'DUE')::bigint,
  COUNT(*) FILTER (WHERE status = 'REPAID')::bigint,
  COALESCE(SUM(amount), 0)::bigint,
  COALESCE(SUM(outstanding_amount), 0)::bigint
FROM loans
`
	out := &models.PortfolioSummary{}
	err := t.tx.QueryRow(ctx, q).Scan(
		&out.TotalLoans,
		&out.DueLoans,
		&out.RepaidLoans,
		&out.TotalPrincipal,
		&out.TotalOutstanding,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize portfolio: %w", mapError(err))
	}
	return out, nil
}

func scanLoan(row pgx.Row, loanID string) (*models.Loan, error) {
	out := &models.Loan{}
	var status string
	err := row.Scan(
		&out.ID, &out.OwnerID, &out.Principal, &out.Terms, &out.Outstanding,
		&out.CurrencyCode, &status, &out.ProcessedAt, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("loan %s: %w", loanID, mapError(err))
	}
	out.Status = models.LoanStatus(status)
	out.ProcessedAt = out.ProcessedAt.UTC()
	out.CreatedAt = out.CreatedAt.UTC()
	out.UpdatedAt = out.UpdatedAt.UTC()
	return out, nil
}
