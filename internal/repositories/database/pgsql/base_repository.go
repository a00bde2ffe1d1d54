package pgsql

import (
	"context"
	"errors"
	"time"

	"github.com/SscSPs/mma_rates/internal/apperrors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// querier is satisfied by both DBPool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBPool is the part of DBPool the repositories need.
type DBPool interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// BaseRepository provides common functionality for all repositories.
// A repository bound to a transaction has tx set and never starts its own.
type BaseRepository struct {
	Pool DBPool
	tx   pgx.Tx
	now  func() time.Time
}

func newBaseRepository(pool DBPool) BaseRepository {
	return BaseRepository{Pool: pool, now: time.Now}
}

func (r *BaseRepository) db() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.Pool
}

func (r *BaseRepository) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

// Begin starts a new database transaction
func (r *BaseRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to begin transaction", err)
	}
	return tx, nil
}

// Commit commits a transaction
func (r *BaseRepository) Commit(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewAppError(500, "failed to commit transaction", err)
	}
	return nil
}

// Rollback rolls back a transaction
func (r *BaseRepository) Rollback(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return apperrors.NewAppError(500, "failed to rollback transaction", err)
	}
	return nil
}

// runInTx runs fn on the bound transaction, or on a fresh one that is committed if fn succeeds.
func (r *BaseRepository) runInTx(ctx context.Context, fn func(q querier) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	if err := fn(tx); err != nil {
		return err
	}
	return r.Commit(ctx, tx)
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
