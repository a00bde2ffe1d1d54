package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SscSPs/mma_rates/internal/apperrors"
	"github.com/SscSPs/mma_rates/internal/core/domain"
	portsrepo "github.com/SscSPs/mma_rates/internal/core/ports/repositories"
	"github.com/SscSPs/mma_rates/internal/models"
	"github.com/SscSPs/mma_rates/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
)

const currencyColumns = `currency_id, code, symbol, name, decimal_places, owner_user_id,
	created_at, created_by, last_updated_at, last_updated_by`

type PgxCurrencyRepository struct {
	BaseRepository
}

// newPgxCurrencyRepository creates a new repository for currency data.
func newPgxCurrencyRepository(pool DBPool) *PgxCurrencyRepository {
	return &PgxCurrencyRepository{BaseRepository: newBaseRepository(pool)}
}

// Ensure implementation matches interface
var _ portsrepo.CurrencyRepositoryFacade = (*PgxCurrencyRepository)(nil)

func scanCurrency(row pgx.Row) (models.Currency, error) {
	var c models.Currency
	err := row.Scan(
		&c.CurrencyID,
		&c.Code,
		&c.Symbol,
		&c.Name,
		&c.DecimalPlaces,
		&c.OwnerUserID,
		&c.CreatedAt,
		&c.CreatedBy,
		&c.LastUpdatedAt,
		&c.LastUpdatedBy,
	)
	return c, err
}

func collectCurrencies(rows pgx.Rows) ([]domain.Currency, error) {
	modelCurrencies, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Currency, error) {
		return scanCurrency(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan currencies: %w", err)
	}
	return mapping.ToDomainCurrencySlice(modelCurrencies), nil
}

// SaveCurrency inserts a currency. The code is unique per scope.
func (r *PgxCurrencyRepository) SaveCurrency(ctx context.Context, currency domain.Currency) error {
	modelCurr := mapping.ToModelCurrency(currency)
	modelCurr.Code = strings.ToUpper(modelCurr.Code)

	query := `
		INSERT INTO currencies (` + currencyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`
	_, err := r.db().Exec(ctx, query,
		modelCurr.CurrencyID,
		modelCurr.Code,
		modelCurr.Symbol,
		modelCurr.Name,
		modelCurr.DecimalPlaces,
		modelCurr.OwnerUserID,
		modelCurr.CreatedAt,
		modelCurr.CreatedBy,
		modelCurr.LastUpdatedAt,
		modelCurr.LastUpdatedBy,
	)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return apperrors.NewDuplicateError("currency code '" + modelCurr.Code + "' already exists")
		}
		return fmt.Errorf("failed to save currency %s: %w", modelCurr.Code, err)
	}
	return nil
}

// FindCurrencyByID retrieves a currency by its ID regardless of scope.
func (r *PgxCurrencyRepository) FindCurrencyByID(ctx context.Context, currencyID string) (*domain.Currency, error) {
	query := `SELECT ` + currencyColumns + ` FROM currencies WHERE currency_id = $1;`
	modelCurr, err := scanCurrency(r.db().QueryRow(ctx, query, currencyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find currency %s: %w", currencyID, err)
	}
	domainCurr := mapping.ToDomainCurrency(modelCurr)
	return &domainCurr, nil
}

// FindCurrenciesByCode returns the owned record first, then the global one.
func (r *PgxCurrencyRepository) FindCurrenciesByCode(ctx context.Context, code string, userID string) ([]domain.Currency, error) {
	query := `
		SELECT ` + currencyColumns + `
		FROM currencies
		WHERE code = $1 AND (owner_user_id IS NULL OR owner_user_id = $2)
		ORDER BY owner_user_id NULLS LAST;
	`
	rows, err := r.db().Query(ctx, query, strings.ToUpper(code), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query currencies by code %s: %w", code, err)
	}
	return collectCurrencies(rows)
}

// ListVisibleCurrencies retrieves global currencies plus those owned by the user.
func (r *PgxCurrencyRepository) ListVisibleCurrencies(ctx context.Context, userID string) ([]domain.Currency, error) {
	query := `
		SELECT ` + currencyColumns + `
		FROM currencies
		WHERE owner_user_id IS NULL OR owner_user_id = $1
		ORDER BY code, owner_user_id NULLS LAST, currency_id;
	`
	rows, err := r.db().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query currencies: %w", err)
	}
	return collectCurrencies(rows)
}

// DeleteCurrency removes a currency. Enabled entries cascade.
func (r *PgxCurrencyRepository) DeleteCurrency(ctx context.Context, currencyID string) error {
	tag, err := r.db().Exec(ctx, `DELETE FROM currencies WHERE currency_id = $1;`, currencyID)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return apperrors.NewValidationError("currency is still referenced by exchange rates")
		}
		return fmt.Errorf("failed to delete currency %s: %w", currencyID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
