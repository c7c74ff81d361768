package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmynk/loanledger/internal/models"
	"github.com/mmynk/loanledger/internal/storage"
)

const loanColumns = `id, owner_id, amount, terms, outstanding_amount, currency_code, status, processed_at, created_at, updated_at`

// CreateLoan inserts a new loan.
func (t *sqliteTx) CreateLoan(ctx context.Context, loan *models.Loan) error {
	// Generate IDs if not set
	if loan.ID == "" {
		loan.ID = uuid.New().String()
	}
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = now()
	}
	if loan.UpdatedAt.IsZero() {
		loan.UpdatedAt = loan.CreatedAt
	}

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID, loan.OwnerID, loan.Principal, loan.Terms, loan.Outstanding,
		loan.CurrencyCode, string(loan.Status), toMillis(loan.ProcessedAt),
		toMillis(loan.CreatedAt), toMillis(loan.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert loan: %w", mapError(err))
	}
	return nil
}

// GetLoan retrieves a loan by ID.
func (t *sqliteTx) GetLoan(ctx context.Context, loanID string) (*models.Loan, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = ?`,
		loanID,
	)
	return scanLoan(row, loanID)
}

// LockLoan retrieves a loan for update. The immediate transaction already
// holds the database write lock, so a plain read is enough.
func (t *sqliteTx) LockLoan(ctx context.Context, loanID string) (*models.Loan, error) {
	return t.GetLoan(ctx, loanID)
}

// UpdateLoan writes a loan's outstanding amount and status.
func (t *sqliteTx) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	loan.UpdatedAt = now()

	res, err := t.tx.ExecContext(ctx,
		`UPDATE loans SET outstanding_amount = ?, status = ?, updated_at = ? WHERE id = ?`,
		loan.Outstanding, string(loan.Status), toMillis(loan.UpdatedAt), loan.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", mapError(err))
	}
	return requireRow(res, "loan", loan.ID)
}

// PortfolioSummary aggregates loan counts and balances.
func (t *sqliteTx) PortfolioSummary(ctx context.Context) (*models.PortfolioSummary, error) {
	out := &models.PortfolioSummary{}
	err := t.tx.QueryRowContext(ctx, `
SELECT
  COUNT(*),
  COALESCE(SUM(CASE WHEN status = 'DUE' THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN status = 'REPAID' THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(amount), 0),
  COALESCE(SUM(outstanding_amount), 0)
FROM loans`,
	).Scan(&out.TotalLoans, &out.DueLoans, &out.RepaidLoans, &out.TotalPrincipal, &out.TotalOutstanding)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize portfolio: %w", mapError(err))
	}
	return out, nil
}

func scanLoan(row *sql.Row, loanID string) (*models.Loan, error) {
	loan := &models.Loan{}
	var status string
	var processedAt, createdAt, updatedAt int64

	err := row.Scan(
		&loan.ID, &loan.OwnerID, &loan.Principal, &loan.Terms, &loan.Outstanding,
		&loan.CurrencyCode, &status, &processedAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan %s: %w", loanID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", mapError(err))
	}

	loan.Status = models.LoanStatus(status)
	loan.ProcessedAt = fromMillis(processedAt)
	loan.CreatedAt = fromMillis(createdAt)
	loan.UpdatedAt = fromMillis(updatedAt)
	return loan, nil
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}
