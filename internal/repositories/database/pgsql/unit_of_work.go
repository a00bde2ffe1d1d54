package pgsql

import (
	"context"

	"github.com/SscSPs/mma_rates/internal/apperrors"
	portsrepo "github.com/SscSPs/mma_rates/internal/core/ports/repositories"
)

// PgxUnitOfWork runs callbacks inside a single PostgreSQL transaction.
type PgxUnitOfWork struct {
	BaseRepository
}

func newPgxUnitOfWork(pool DBPool) *PgxUnitOfWork {
	return &PgxUnitOfWork{BaseRepository: newBaseRepository(pool)}
}

var _ portsrepo.UnitOfWork = (*PgxUnitOfWork)(nil)

// lockUserQuery takes a transaction-scoped advisory lock on the user. It is released on
// commit or rollback. A hash collision between two users only serializes them.
const lockUserQuery = `SELECT pg_advisory_xact_lock(hashtext($1));`

// WithinTx commits only if fn returns nil; any error rolls everything back.
// The user's lock is taken before fn runs, so under READ COMMITTED a second transaction
// for the same user sees every row the first one committed.
func (u *PgxUnitOfWork) WithinTx(ctx context.Context, userID string, fn func(ctx context.Context, repos portsrepo.TxRepositories) error) error {
	tx, err := u.Begin(ctx)
	if err != nil {
		return err
	}
	defer u.Rollback(ctx, tx)

	if _, err := tx.Exec(ctx, lockUserQuery, userID); err != nil {
		return apperrors.NewAppError(500, "failed to lock user rates", err)
	}

	bound := BaseRepository{Pool: u.Pool, tx: tx, now: u.now}
	repos := portsrepo.TxRepositories{
		ExchangeRates:     &PgxExchangeRateRepository{BaseRepository: bound},
		EnabledCurrencies: &PgxEnabledCurrencyRepository{BaseRepository: bound},
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}
	return u.Commit(ctx, tx)
}
