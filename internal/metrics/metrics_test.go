package metrics

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/loanledger/internal/models"
	"github.com/mmynk/loanledger/internal/storage"
	"github.com/mmynk/loanledger/internal/storage/sqlite"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewRecorder(reg)

	rec.LoanCreated()
	rec.LoanCreated()
	rec.RepaymentAllocated(OutcomePartial, 150, 0)
	rec.RepaymentAllocated(OutcomeRepaid, 150, 200)
	rec.RepaymentFailed()
	rec.ObserveDuration(OperationRepayLoan, time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.loansCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.repayments.WithLabelValues(OutcomePartial)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.repayments.WithLabelValues(OutcomeRepaid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.repayments.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 300.0, testutil.ToFloat64(rec.applied))
	assert.Equal(t, 200.0, testutil.ToFloat64(rec.unapplied))
	assert.Equal(t, 1, testutil.CollectAndCount(rec.duration, "loanledger_operation_duration_seconds"))
}

func TestNilRecorder(t *testing.T) {
	var rec *Recorder
	assert.NotPanics(t, func() {
		rec.LoanCreated()
		rec.RepaymentAllocated(OutcomeNoop, 0, 0)
		rec.RepaymentFailed()
		rec.ObserveDuration(OperationCreateLoan, time.Now())
	})
}

func TestPortfolioCollector(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "portfolio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		for _, loan := range []*models.Loan{
			{OwnerID: "a", Principal: 300, Terms: 3, Outstanding: 120, CurrencyCode: "VND", Status: models.LoanStatusDue},
			{OwnerID: "b", Principal: 500, Terms: 2, Outstanding: 0, CurrencyCode: "VND", Status: models.LoanStatusRepaid},
		} {
			loan.ProcessedAt = time.Date(2022, time.January, 20, 0, 0, 0, 0, time.UTC)
			if err := tx.CreateLoan(ctx, loan); err != nil {
				return err
			}
		}
		return nil
	}))

	expected := `
# HELP loanledger_portfolio_loans Loans in the store by status.
# TYPE loanledger_portfolio_loans gauge
loanledger_portfolio_loans{status="DUE"} 1
loanledger_portfolio_loans{status="REPAID"} 1
# HELP loanledger_portfolio_outstanding_minor Sum of outstanding loan balances in minor currency units.
# TYPE loanledger_portfolio_outstanding_minor gauge
loanledger_portfolio_outstanding_minor 120
# HELP loanledger_portfolio_principal_minor Sum of loan principals in minor currency units.
# TYPE loanledger_portfolio_principal_minor gauge
loanledger_portfolio_principal_minor 800
# HELP loanledger_portfolio_up Whether the last portfolio read succeeded.
# TYPE loanledger_portfolio_up gauge
loanledger_portfolio_up 1
`
	err = testutil.CollectAndCompare(NewPortfolioCollector(store), strings.NewReader(expected))
	assert.NoError(t, err)
}

type brokenStore struct{}

func (brokenStore) RunInTx(context.Context, storage.TxFunc) error     { return errors.New("disk on fire") }
func (brokenStore) RunInReadTx(context.Context, storage.TxFunc) error { return errors.New("disk on fire") }
func (brokenStore) Ping(context.Context) error                          { return nil }
func (brokenStore) Close() error                                        { return nil }

func TestPortfolioCollectorStoreDown(t *testing.T) {
	expected := `
# HELP loanledger_portfolio_up Whether the last portfolio read succeeded.
# TYPE loanledger_portfolio_up gauge
loanledger_portfolio_up 0
`
	err := testutil.CollectAndCompare(NewPortfolioCollector(brokenStore{}), strings.NewReader(expected))
	assert.NoError(t, err)
}
