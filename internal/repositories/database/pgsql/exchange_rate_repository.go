package pgsql

import (
	"context"
	"errors"
	"time"

	"github.com/SscSPs/mma_rates/internal/apperrors"
	"github.com/SscSPs/mma_rates/internal/core/domain"
	portsrepo "github.com/SscSPs/mma_rates/internal/core/ports/repositories"
	"github.com/SscSPs/mma_rates/internal/models"
	"github.com/SscSPs/mma_rates/internal/utils/mapping"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const exchangeRateColumns = `exchange_rate_id, user_id, from_currency_id, to_currency_id, rate,
	effective_date, provenance, notes, created_at, created_by, last_updated_at, last_updated_by`

// PgxExchangeRateRepository implements the rate fact store using pgx.
type PgxExchangeRateRepository struct {
	BaseRepository
}

// newPgxExchangeRateRepository creates a new PgxExchangeRateRepository.
func newPgxExchangeRateRepository(db DBPool) *PgxExchangeRateRepository {
	return &PgxExchangeRateRepository{BaseRepository: newBaseRepository(db)}
}

var _ portsrepo.ExchangeRateRepositoryFacade = (*PgxExchangeRateRepository)(nil)

func scanExchangeRate(row pgx.Row) (models.ExchangeRate, error) {
	var m models.ExchangeRate
	err := row.Scan(
		&m.ExchangeRateID, &m.UserID, &m.FromCurrencyID, &m.ToCurrencyID, &m.Rate,
		&m.EffectiveDate, &m.Provenance, &m.Notes, &m.CreatedAt,
		&m.CreatedBy, &m.LastUpdatedAt, &m.LastUpdatedBy,
	)
	return m, err
}

// FindLatestEdge retrieves the edge with the greatest effective date not after asOf.
func (r *PgxExchangeRateRepository) FindLatestEdge(ctx context.Context, userID, fromCurrencyID, toCurrencyID string, asOf time.Time) (*domain.ExchangeRate, error) {
	query := `
		SELECT ` + exchangeRateColumns + `
		FROM exchange_rates
		WHERE user_id = $1 AND from_currency_id = $2 AND to_currency_id = $3 AND effective_date <= $4
		ORDER BY effective_date DESC,
			CASE provenance WHEN 'USER' THEN 3 WHEN 'API' THEN 2 ELSE 1 END DESC,
			last_updated_at DESC
		LIMIT 1;
	`
	m, err := scanExchangeRate(r.db().QueryRow(ctx, query, userID, fromCurrencyID, toCurrencyID, domain.NormalizeDate(asOf)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("exchange rate not found")
		}
		return nil, apperrors.NewAppError(500, "failed to find exchange rate", err)
	}
	edge := mapping.ToDomainExchangeRate(m)
	return &edge, nil
}

// FindEdgeByID retrieves one of the user's edges by ID.
func (r *PgxExchangeRateRepository) FindEdgeByID(ctx context.Context, userID, edgeID string) (*domain.ExchangeRate, error) {
	query := `SELECT ` + exchangeRateColumns + ` FROM exchange_rates WHERE exchange_rate_id = $1 AND user_id = $2;`
	m, err := scanExchangeRate(r.db().QueryRow(ctx, query, edgeID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("exchange rate with ID " + edgeID + " not found")
		}
		return nil, apperrors.NewAppError(500, "failed to get exchange rate by ID", err)
	}
	edge := mapping.ToDomainExchangeRate(m)
	return &edge, nil
}

// ListEdges retrieves all of the user's edges.
func (r *PgxExchangeRateRepository) ListEdges(ctx context.Context, userID string) ([]domain.ExchangeRate, error) {
	query := `
		SELECT ` + exchangeRateColumns + `
		FROM exchange_rates
		WHERE user_id = $1
		ORDER BY from_currency_id, to_currency_id, effective_date DESC, exchange_rate_id;
	`
	rows, err := r.db().Query(ctx, query, userID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list exchange rates", err)
	}
	modelRates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ExchangeRate, error) {
		return scanExchangeRate(row)
	})
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to scan exchange rates", err)
	}
	return mapping.ToDomainExchangeRateSlice(modelRates), nil
}

func (r *PgxExchangeRateRepository) CountEdgesReferencingCurrency(ctx context.Context, userID, currencyID string) (int, error) {
	var n int
	err := r.db().QueryRow(ctx, `
		SELECT COUNT(*) FROM exchange_rates
		WHERE user_id = $1 AND (from_currency_id = $2 OR to_currency_id = $2);`,
		userID, currencyID,
	).Scan(&n)
	if err != nil {
		return 0, apperrors.NewAppError(500, "failed to count exchange rates", err)
	}
	return n, nil
}

// UpsertEdge writes a USER or API edge.
func (r *PgxExchangeRateRepository) UpsertEdge(ctx context.Context, edge domain.ExchangeRate) (*domain.ExchangeRate, error) {
	if !edge.Provenance.IsAuthoritative() {
		return nil, apperrors.NewValidationError("derived rates can only be written by regeneration")
	}
	if edge.FromCurrencyID == edge.ToCurrencyID {
		return nil, apperrors.NewValidationError("from and to currencies cannot be the same")
	}
	if !edge.Rate.IsPositive() {
		return nil, apperrors.NewValidationError("exchange rate must be positive")
	}
	edge.EffectiveDate = domain.NormalizeDate(edge.EffectiveDate)
	now := r.clock()

	var saved domain.ExchangeRate
	err := r.runInTx(ctx, func(q querier) error {
		var existing *models.ExchangeRate
		if edge.ExchangeRateID != "" {
			m, err := scanExchangeRate(q.QueryRow(ctx,
				`SELECT `+exchangeRateColumns+` FROM exchange_rates WHERE exchange_rate_id = $1 FOR UPDATE;`,
				edge.ExchangeRateID))
			switch {
			case err == nil:
				if m.UserID != edge.UserID {
					return apperrors.NewNotFoundError("exchange rate with ID " + edge.ExchangeRateID + " not found")
				}
				if m.Provenance == string(domain.ProvenanceAuto) {
					return apperrors.NewValidationError("derived rates cannot be edited")
				}
				existing = &m
			case !errors.Is(err, pgx.ErrNoRows):
				return apperrors.NewAppError(500, "failed to load exchange rate", err)
			}
		}

		rows, err := q.Query(ctx, `
			SELECT `+exchangeRateColumns+`
			FROM exchange_rates
			WHERE user_id = $1 AND from_currency_id = $2 AND to_currency_id = $3 AND effective_date = $4
				AND exchange_rate_id <> $5
			FOR UPDATE;`,
			edge.UserID, edge.FromCurrencyID, edge.ToCurrencyID, edge.EffectiveDate, edge.ExchangeRateID)
		if err != nil {
			return apperrors.NewAppError(500, "failed to check existing exchange rates", err)
		}
		atKey, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ExchangeRate, error) {
			return scanExchangeRate(row)
		})
		if err != nil {
			return apperrors.NewAppError(500, "failed to scan existing exchange rates", err)
		}

		var autoIDs []string
		for _, other := range atKey {
			switch {
			case other.Provenance == string(domain.ProvenanceAuto):
				autoIDs = append(autoIDs, other.ExchangeRateID)
			case existing == nil && other.Provenance == string(domain.ProvenanceAPI) && edge.Provenance == domain.ProvenanceAPI:
				refreshed := other
				existing = &refreshed
				edge.ExchangeRateID = other.ExchangeRateID
			default:
				return apperrors.NewDuplicateError("an exchange rate already exists for this currency pair and date")
			}
		}
		if len(autoIDs) > 0 {
			if _, err := q.Exec(ctx, `DELETE FROM exchange_rates WHERE exchange_rate_id = ANY($1);`, autoIDs); err != nil {
				return apperrors.NewAppError(500, "failed to discard derived exchange rates", err)
			}
		}

		if existing != nil {
			edge.CreatedAt = existing.CreatedAt
			edge.CreatedBy = existing.CreatedBy
		} else {
			if edge.ExchangeRateID == "" {
				edge.ExchangeRateID = uuid.NewString()
			}
			if edge.CreatedAt.IsZero() {
				edge.CreatedAt = now
			}
		}
		if edge.LastUpdatedAt.IsZero() || existing != nil {
			edge.LastUpdatedAt = now
		}
		if edge.LastUpdatedBy == "" {
			edge.LastUpdatedBy = edge.CreatedBy
		}
		m := mapping.ToModelExchangeRate(edge)

		if existing != nil {
			_, err = q.Exec(ctx, `
				UPDATE exchange_rates
				SET from_currency_id = $1, to_currency_id = $2, rate = $3, effective_date = $4,
					provenance = $5, notes = $6, last_updated_at = $7, last_updated_by = $8
				WHERE exchange_rate_id = $9;`,
				m.FromCurrencyID, m.ToCurrencyID, m.Rate, m.EffectiveDate,
				m.Provenance, m.Notes, m.LastUpdatedAt, m.LastUpdatedBy, m.ExchangeRateID,
			)
		} else {
			_, err = q.Exec(ctx, `
				INSERT INTO exchange_rates (`+exchangeRateColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`,
				m.ExchangeRateID, m.UserID, m.FromCurrencyID, m.ToCurrencyID, m.Rate,
				m.EffectiveDate, m.Provenance, m.Notes, m.CreatedAt,
				m.CreatedBy, m.LastUpdatedAt, m.LastUpdatedBy,
			)
		}
		if err != nil {
			switch pgErrorCode(err) {
			case pgUniqueViolation:
				return apperrors.NewDuplicateError("an exchange rate already exists for this currency pair and date")
			case pgForeignKeyViolation:
				return apperrors.NewNotFoundError("currency not found")
			}
			return apperrors.NewAppError(500, "failed to save exchange rate", err)
		}
		saved = edge
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// DeleteEdge removes a USER or API edge.
func (r *PgxExchangeRateRepository) DeleteEdge(ctx context.Context, userID, edgeID string) error {
	return r.runInTx(ctx, func(q querier) error {
		var provenance string
		err := q.QueryRow(ctx,
			`SELECT provenance FROM exchange_rates WHERE exchange_rate_id = $1 AND user_id = $2 FOR UPDATE;`,
			edgeID, userID,
		).Scan(&provenance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFoundError("exchange rate with ID " + edgeID + " not found")
			}
			return apperrors.NewAppError(500, "failed to load exchange rate", err)
		}
		if provenance == string(domain.ProvenanceAuto) {
			return apperrors.NewValidationError("derived rates cannot be deleted individually")
		}
		if _, err := q.Exec(ctx, `DELETE FROM exchange_rates WHERE exchange_rate_id = $1;`, edgeID); err != nil {
			return apperrors.NewAppError(500, "failed to delete exchange rate", err)
		}
		return nil
	})
}

// ReplaceAutoEdges swaps the user's whole AUTO generation.
func (r *PgxExchangeRateRepository) ReplaceAutoEdges(ctx context.Context, userID string, edges []domain.ExchangeRate) error {
	now := r.clock()
	return r.runInTx(ctx, func(q querier) error {
		if _, err := q.Exec(ctx,
			`DELETE FROM exchange_rates WHERE user_id = $1 AND provenance = 'AUTO';`, userID,
		); err != nil {
			return apperrors.NewAppError(500, "failed to clear derived exchange rates", err)
		}
		if len(edges) == 0 {
			return nil
		}

		insert := `INSERT INTO exchange_rates (` + exchangeRateColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`
		for _, edge := range edges {
			if edge.Provenance != domain.ProvenanceAuto || edge.UserID != userID {
				return apperrors.NewValidationError("replacement edges must be AUTO edges of the same user")
			}
			m := mapping.ToModelExchangeRate(edge)
			if m.CreatedAt.IsZero() {
				m.CreatedAt = now
			}
			if m.LastUpdatedAt.IsZero() {
				m.LastUpdatedAt = now
			}
			_, err := q.Exec(ctx, insert,
				m.ExchangeRateID, m.UserID, m.FromCurrencyID, m.ToCurrencyID, m.Rate,
				m.EffectiveDate, m.Provenance, m.Notes, m.CreatedAt,
				m.CreatedBy, m.LastUpdatedAt, m.LastUpdatedBy,
			)
			if err != nil {
				if pgErrorCode(err) == pgUniqueViolation {
					return apperrors.NewDuplicateError("derived rate collides with an existing rate")
				}
				return apperrors.NewAppError(500, "failed to insert derived exchange rates", err)
			}
		}
		return nil
	})
}
