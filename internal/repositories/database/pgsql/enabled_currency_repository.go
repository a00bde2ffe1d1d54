package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/SscSPs/mma_rates/internal/apperrors"
	"github.com/SscSPs/mma_rates/internal/core/domain"
	portsrepo "github.com/SscSPs/mma_rates/internal/core/ports/repositories"
	"github.com/SscSPs/mma_rates/internal/models"
	"github.com/SscSPs/mma_rates/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
)

type PgxEnabledCurrencyRepository struct {
	BaseRepository
}

func newPgxEnabledCurrencyRepository(pool DBPool) *PgxEnabledCurrencyRepository {
	return &PgxEnabledCurrencyRepository{BaseRepository: newBaseRepository(pool)}
}

var _ portsrepo.EnabledCurrencyRepositoryFacade = (*PgxEnabledCurrencyRepository)(nil)

// ListEnabledCurrencies returns the user's active currencies in sort order.
func (r *PgxEnabledCurrencyRepository) ListEnabledCurrencies(ctx context.Context, userID string) ([]domain.Currency, error) {
	query := `
		SELECT c.currency_id, c.code, c.symbol, c.name, c.decimal_places, c.owner_user_id,
			c.created_at, c.created_by, c.last_updated_at, c.last_updated_by
		FROM enabled_currencies e
		JOIN currencies c ON c.currency_id = e.currency_id
		WHERE e.user_id = $1 AND e.active
		ORDER BY e.sort_order, e.currency_id;
	`
	rows, err := r.db().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query enabled currencies: %w", err)
	}
	return collectCurrencies(rows)
}

func (r *PgxEnabledCurrencyRepository) ListEnabledCurrencyEntries(ctx context.Context, userID string) ([]domain.EnabledCurrency, error) {
	query := `
		SELECT user_id, currency_id, active, sort_order
		FROM enabled_currencies
		WHERE user_id = $1
		ORDER BY sort_order, currency_id;
	`
	rows, err := r.db().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query enabled currency entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.EnabledCurrency, error) {
		var m models.EnabledCurrency
		err := row.Scan(&m.UserID, &m.CurrencyID, &m.Active, &m.SortOrder)
		return mapping.ToDomainEnabledCurrency(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan enabled currency entries: %w", err)
	}
	return entries, nil
}

// SaveEnabledCurrency upserts on (user_id, currency_id).
func (r *PgxEnabledCurrencyRepository) SaveEnabledCurrency(ctx context.Context, entry domain.EnabledCurrency) error {
	m := mapping.ToModelEnabledCurrency(entry)
	query := `
		INSERT INTO enabled_currencies (user_id, currency_id, active, sort_order)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, currency_id) DO UPDATE SET
			active = EXCLUDED.active,
			sort_order = EXCLUDED.sort_order;
	`
	if _, err := r.db().Exec(ctx, query, m.UserID, m.CurrencyID, m.Active, m.SortOrder); err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to save enabled currency %s: %w", m.CurrencyID, err)
	}
	return nil
}

type PgxUserSettingsRepository struct {
	BaseRepository
}

func newPgxUserSettingsRepository(pool DBPool) *PgxUserSettingsRepository {
	return &PgxUserSettingsRepository{BaseRepository: newBaseRepository(pool)}
}

var _ portsrepo.UserSettingsRepositoryFacade = (*PgxUserSettingsRepository)(nil)

func (r *PgxUserSettingsRepository) FindUserSettings(ctx context.Context, userID string) (*domain.UserSettings, error) {
	var m models.UserSettings
	err := r.db().QueryRow(ctx,
		`SELECT user_id, base_currency_id FROM user_settings WHERE user_id = $1;`, userID,
	).Scan(&m.UserID, &m.BaseCurrencyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user settings: %w", err)
	}
	settings := mapping.ToDomainUserSettings(m)
	return &settings, nil
}

func (r *PgxUserSettingsRepository) SaveUserSettings(ctx context.Context, settings domain.UserSettings) error {
	m := mapping.ToModelUserSettings(settings)
	query := `
		INSERT INTO user_settings (user_id, base_currency_id, last_updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			base_currency_id = EXCLUDED.base_currency_id,
			last_updated_at = EXCLUDED.last_updated_at;
	`
	if _, err := r.db().Exec(ctx, query, m.UserID, m.BaseCurrencyID, r.clock()); err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to save user settings: %w", err)
	}
	return nil
}
