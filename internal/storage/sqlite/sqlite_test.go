package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/loanledger/internal/models"
	"github.com/mmynk/loanledger/internal/storage"
)

func openTempStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newLoan() *models.Loan {
	return &models.Loan{
		OwnerID:      "owner-1",
		Principal:    300,
		Terms:        3,
		Outstanding:  300,
		CurrencyCode: models.CurrencyVND,
		Status:       models.LoanStatusDue,
		ProcessedAt:  day(2022, time.January, 20),
	}
}

func schedule(loanID string, dates ...time.Time) []models.ScheduledRepayment {
	out := make([]models.ScheduledRepayment, len(dates))
	for i, d := range dates {
		out[i] = models.ScheduledRepayment{
			LoanID:       loanID,
			Seq:          i + 1,
			Amount:       100,
			Outstanding:  100,
			CurrencyCode: models.CurrencyVND,
			DueDate:      d,
			Status:       models.RepaymentStatusDue,
		}
	}
	return out
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	t.Run("CreateLoan generates ID and timestamps", func(t *testing.T) {
		loan := newLoan()
		err := store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.CreateLoan(ctx, loan)
		})
		require.NoError(t, err)

		assert.NotEmpty(t, loan.ID)
		assert.False(t, loan.CreatedAt.IsZero())
		assert.Equal(t, loan.CreatedAt, loan.UpdatedAt)
	})

	t.Run("GetLoan retrieves stored fields", func(t *testing.T) {
		original := newLoan()
		require.NoError(t, store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.CreateLoan(ctx, original)
		}))

		var got *models.Loan
		require.NoError(t, store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			var err error
			got, err = tx.GetLoan(ctx, original.ID)
			return err
		}))

		assert.Equal(t, original.ID, got.ID)
		assert.Equal(t, original.OwnerID, got.OwnerID)
		assert.Equal(t, original.Principal, got.Principal)
		assert.Equal(t, original.Terms, got.Terms)
		assert.Equal(t, original.Outstanding, got.Outstanding)
		assert.Equal(t, original.CurrencyCode, got.CurrencyCode)
		assert.Equal(t, models.LoanStatusDue, got.Status)
		assert.True(t, original.ProcessedAt.Equal(got.ProcessedAt))
	})

	t.Run("GetLoan returns ErrNotFound for nonexistent loan", func(t *testing.T) {
		err := store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			_, err := tx.LockLoan(ctx, "nonexistent-id")
			return err
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("schedule is ordered by due date then position", func(t *testing.T) {
		loan := newLoan()
		rows := schedule("", day(2022, time.April, 20), day(2022, time.February, 20), day(2022, time.February, 20))

		require.NoError(t, store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			if err := tx.CreateLoan(ctx, loan); err != nil {
				return err
			}
			for i := range rows {
				rows[i].LoanID = loan.ID
			}
			return tx.CreateScheduledRepayments(ctx, rows)
		}))

		var listed []models.ScheduledRepayment
		require.NoError(t, store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			var err error
			listed, err = tx.ListScheduledRepayments(ctx, loan.ID)
			return err
		}))

		require.Len(t, listed, 3)
		assert.Equal(t, []int{2, 3, 1}, []int{listed[0].Seq, listed[1].Seq, listed[2].Seq})
		assert.Equal(t, day(2022, time.February, 20), listed[0].DueDate)
		for _, r := range listed {
			assert.NotEmpty(t, r.ID)
			assert.Equal(t, loan.ID, r.LoanID)
		}
	})

	t.Run("updates and sums outstanding", func(t *testing.T) {
		loan := newLoan()
		rows := schedule("", day(2022, time.February, 20), day(2022, time.March, 20), day(2022, time.April, 20))

		require.NoError(t, store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			if err := tx.CreateLoan(ctx, loan); err != nil {
				return err
			}
			for i := range rows {
				rows[i].LoanID = loan.ID
			}
			return tx.CreateScheduledRepayments(ctx, rows)
		}))

		var total int64
		require.NoError(t, store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			rows[0].Outstanding = 0
			rows[0].Status = models.RepaymentStatusRepaid
			if err := tx.UpdateScheduledRepayment(ctx, &rows[0]); err != nil {
				return err
			}
			rows[1].Outstanding = 40
			rows[1].Status = models.RepaymentStatusPartial
			if err := tx.UpdateScheduledRepayment(ctx, &rows[1]); err != nil {
				return err
			}
			var err error
			total, err = tx.SumOutstanding(ctx, loan.ID)
			if err != nil {
				return err
			}
			loan.Outstanding = total
			return tx.UpdateLoan(ctx, loan)
		}))
		assert.Equal(t, int64(140), total)

		require.NoError(t, store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			got, err := tx.GetLoan(ctx, loan.ID)
			if err != nil {
				return err
			}
			assert.Equal(t, int64(140), got.Outstanding)

			listed, err := tx.ListScheduledRepayments(ctx, loan.ID)
			if err != nil {
				return err
			}
			assert.Equal(t, models.RepaymentStatusRepaid, listed[0].Status)
			assert.Equal(t, models.RepaymentStatusPartial, listed[1].Status)
			assert.Equal(t, int64(40), listed[1].Outstanding)
			return nil
		}))
	})

	t.Run("SumOutstanding of unknown loan is zero", func(t *testing.T) {
		require.NoError(t, store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			total, err := tx.SumOutstanding(ctx, "nonexistent-id")
			assert.Equal(t, int64(0), total)
			return err
		}))
	})

	t.Run("UpdateLoan of unknown loan is ErrNotFound", func(t *testing.T) {
		err := store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.UpdateLoan(ctx, &models.Loan{ID: "nonexistent-id", Status: models.LoanStatusDue})
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("received repayments are listed in insertion order", func(t *testing.T) {
		loan := newLoan()
		require.NoError(t, store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			if err := tx.CreateLoan(ctx, loan); err != nil {
				return err
			}
			for _, amount := range []int64{50, 0, 250} {
				if err := tx.AppendReceivedRepayment(ctx, &models.ReceivedRepayment{
					LoanID:       loan.ID,
					Amount:       amount,
					CurrencyCode: models.CurrencyVND,
					ReceivedAt:   day(2022, time.March, 1),
				}); err != nil {
					return err
				}
			}
			return nil
		}))

		require.NoError(t, store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			listed, err := tx.ListReceivedRepayments(ctx, loan.ID)
			if err != nil {
				return err
			}
			require.Len(t, listed, 3)
			assert.Equal(t, int64(50), listed[0].Amount)
			assert.Equal(t, int64(0), listed[1].Amount)
			assert.Equal(t, int64(250), listed[2].Amount)
			assert.Equal(t, day(2022, time.March, 1), listed[0].ReceivedAt)
			return nil
		}))
	})

	t.Run("failed transaction leaves nothing behind", func(t *testing.T) {
		loan := newLoan()
		boom := errors.New("boom")

		err := store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			if err := tx.CreateLoan(ctx, loan); err != nil {
				return err
			}
			rows := schedule(loan.ID, day(2022, time.February, 20))
			if err := tx.CreateScheduledRepayments(ctx, rows); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		err = store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			_, err := tx.GetLoan(ctx, loan.ID)
			return err
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("schedule rows require an existing loan", func(t *testing.T) {
		err := store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.CreateScheduledRepayments(ctx, schedule("missing-loan", day(2022, time.February, 20)))
		})
		assert.Error(t, err)
	})
}

func TestPortfolioSummary(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	require.NoError(t, store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		due := newLoan()
		repaid := newLoan()
		repaid.Outstanding = 0
		repaid.Status = models.LoanStatusRepaid
		if err := tx.CreateLoan(ctx, due); err != nil {
			return err
		}
		return tx.CreateLoan(ctx, repaid)
	}))

	var summary *models.PortfolioSummary
	require.NoError(t, store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		summary, err = tx.PortfolioSummary(ctx)
		return err
	}))

	assert.Equal(t, &models.PortfolioSummary{
		TotalLoans:       2,
		DueLoans:         1,
		RepaidLoans:      1,
		TotalPrincipal:   600,
		TotalOutstanding: 300,
	}, summary)
}

func TestReadTxDoesNotWaitForWriter(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	loan := newLoan()
	require.NoError(t, store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.CreateLoan(ctx, loan)
	}))

	locked := make(chan struct{})
	release := make(chan struct{})
	writerDone := make(chan error, 1)
	go func() {
		writerDone <- store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			held, err := tx.LockLoan(ctx, loan.ID)
			if err != nil {
				close(locked)
				return err
			}
			held.Outstanding = 0
			held.Status = models.LoanStatusRepaid
			if err := tx.UpdateLoan(ctx, held); err != nil {
				close(locked)
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()

	<-locked

	readCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	var got *models.Loan
	err := store.RunInReadTx(readCtx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		got, err = tx.GetLoan(ctx, loan.ID)
		return err
	})
	close(release)
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.Outstanding, "reader sees the last committed state")
	assert.Equal(t, models.LoanStatusDue, got.Status)

	require.NoError(t, <-writerDone)

	require.NoError(t, store.RunInReadTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		got, err = tx.GetLoan(ctx, loan.ID)
		return err
	}))
	assert.Equal(t, models.LoanStatusRepaid, got.Status)
}

func TestReadTx(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	t.Run("rejects writes", func(t *testing.T) {
		loan := newLoan()
		err := store.RunInReadTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.CreateLoan(ctx, loan)
		})
		require.Error(t, err)

		err = store.RunInReadTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			_, err := tx.GetLoan(ctx, loan.ID)
			return err
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("GetLoan returns ErrNotFound for nonexistent loan", func(t *testing.T) {
		err := store.RunInReadTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			_, err := tx.GetLoan(ctx, "nonexistent-id")
			return err
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("callback error is returned", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.RunInReadTx(ctx, func(context.Context, storage.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
	})
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	first, err := New(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(path)
	require.NoError(t, err)
	defer second.Close()

	var applied int
	require.NoError(t, second.db.QueryRow("SELECT COUNT(*) FROM "+migrationTable).Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestUpSection(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"no markers", "CREATE TABLE a (x INT);", "CREATE TABLE a (x INT);"},
		{"up only", "-- +migrate Up\nCREATE TABLE a (x INT);", "\nCREATE TABLE a (x INT);"},
		{"up and down", "-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;", "\nCREATE TABLE a (x INT);\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, upSection(tt.content))
		})
	}
}
