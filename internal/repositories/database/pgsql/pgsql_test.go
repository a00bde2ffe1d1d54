package pgsql_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SscSPs/mma_rates/internal/apperrors"
	"github.com/SscSPs/mma_rates/internal/core/domain"
	portsrepo "github.com/SscSPs/mma_rates/internal/core/ports/repositories"
	"github.com/SscSPs/mma_rates/internal/repositories/database/pgsql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userID = "user-1"

	lockPattern   = `pg_advisory_xact_lock\(hashtext\(\$1\)\)`
	clearPattern  = `DELETE FROM exchange_rates WHERE user_id = \$1 AND provenance = 'AUTO'`
	insertPattern = `INSERT INTO exchange_rates`
	atKeyPattern  = `FROM exchange_rates\s+WHERE user_id = \$1 AND from_currency_id = \$2 AND to_currency_id = \$3 AND effective_date = \$4`
)

var day1 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

var rateColumns = []string{
	"exchange_rate_id", "user_id", "from_currency_id", "to_currency_id", "rate",
	"effective_date", "provenance", "notes", "created_at", "created_by", "last_updated_at", "last_updated_by",
}

func newMockRepos(t *testing.T) (pgxmock.PgxPoolIface, portsrepo.RepositoryProvider) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, pgsql.NewRepositoryProvider(mock)
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func autoEdge(id, from, to string) domain.ExchangeRate {
	return domain.ExchangeRate{
		ExchangeRateID: id,
		UserID:         userID,
		FromCurrencyID: from,
		ToCurrencyID:   to,
		Rate:           decimal.NewFromInt(2),
		EffectiveDate:  day1,
		Provenance:     domain.ProvenanceAuto,
	}
}

func TestWithinTx_LocksUserBeforeRunningCallback(t *testing.T) {
	mock, repos := newMockRepos(t)

	mock.ExpectBegin()
	mock.ExpectExec(lockPattern).WithArgs(userID).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(clearPattern).WithArgs(userID).WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(insertPattern).WithArgs(anyArgs(12)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(insertPattern).WithArgs(anyArgs(12)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := repos.UnitOfWork.WithinTx(context.Background(), userID, func(ctx context.Context, tx portsrepo.TxRepositories) error {
		return tx.ExchangeRates.ReplaceAutoEdges(ctx, userID, []domain.ExchangeRate{
			autoEdge("a1", "usd", "eur"),
			autoEdge("a2", "eur", "usd"),
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_LockFailureSkipsCallback(t *testing.T) {
	mock, repos := newMockRepos(t)

	mock.ExpectBegin()
	mock.ExpectExec(lockPattern).WithArgs(userID).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	called := false
	err := repos.UnitOfWork.WithinTx(context.Background(), userID, func(ctx context.Context, tx portsrepo.TxRepositories) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RollsBackWhenCallbackFails(t *testing.T) {
	mock, repos := newMockRepos(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(lockPattern).WithArgs(userID).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(clearPattern).WithArgs(userID).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err := repos.UnitOfWork.WithinTx(context.Background(), userID, func(ctx context.Context, tx portsrepo.TxRepositories) error {
		if err := tx.ExchangeRates.ReplaceAutoEdges(ctx, userID, nil); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceAutoEdges_RollsBackOnInsertFailure(t *testing.T) {
	mock, repos := newMockRepos(t)

	mock.ExpectBegin()
	mock.ExpectExec(clearPattern).WithArgs(userID).WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(insertPattern).WithArgs(anyArgs(12)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(insertPattern).WithArgs(anyArgs(12)...).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := repos.ExchangeRateRepo.ReplaceAutoEdges(context.Background(), userID, []domain.ExchangeRate{
		autoEdge("a1", "usd", "eur"),
		autoEdge("a2", "eur", "usd"),
	})
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceAutoEdges_RejectsNonAutoEdges(t *testing.T) {
	mock, repos := newMockRepos(t)

	mock.ExpectBegin()
	mock.ExpectExec(clearPattern).WithArgs(userID).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	user := autoEdge("u1", "usd", "eur")
	user.Provenance = domain.ProvenanceUser
	err := repos.ExchangeRateRepo.ReplaceAutoEdges(context.Background(), userID, []domain.ExchangeRate{user})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertEdge_MapsInsertConstraintViolations(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr error
	}{
		{name: "unique key taken concurrently", code: "23505", wantErr: apperrors.ErrDuplicate},
		{name: "unknown currency", code: "23503", wantErr: apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, repos := newMockRepos(t)

			mock.ExpectBegin()
			mock.ExpectQuery(atKeyPattern).
				WithArgs(userID, "usd", "eur", pgxmock.AnyArg(), "").
				WillReturnRows(pgxmock.NewRows(rateColumns))
			mock.ExpectExec(insertPattern).WithArgs(anyArgs(12)...).WillReturnError(&pgconn.PgError{Code: tt.code})
			mock.ExpectRollback()

			_, err := repos.ExchangeRateRepo.UpsertEdge(context.Background(), domain.ExchangeRate{
				UserID:         userID,
				FromCurrencyID: "usd",
				ToCurrencyID:   "eur",
				Rate:           decimal.RequireFromString("0.9"),
				EffectiveDate:  day1,
				Provenance:     domain.ProvenanceUser,
				AuditFields:    domain.AuditFields{CreatedBy: userID},
			})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpsertEdge_RejectsInvalidEdgesWithoutQuerying(t *testing.T) {
	mock, repos := newMockRepos(t)

	_, err := repos.ExchangeRateRepo.UpsertEdge(context.Background(), autoEdge("a1", "usd", "eur"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	zero := autoEdge("u1", "usd", "eur")
	zero.Provenance = domain.ProvenanceUser
	zero.Rate = decimal.Zero
	_, err = repos.ExchangeRateRepo.UpsertEdge(context.Background(), zero)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	assert.NoError(t, mock.ExpectationsWereMet())
}
