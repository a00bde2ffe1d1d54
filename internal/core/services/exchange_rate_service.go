package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/mma_rates/internal/apperrors"
	"github.com/SscSPs/mma_rates/internal/core/derivation"
	"github.com/SscSPs/mma_rates/internal/core/domain"
	portsrepo "github.com/SscSPs/mma_rates/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/mma_rates/internal/core/ports/services"
	"github.com/SscSPs/mma_rates/internal/dto"
)

// rateRegenerator rebuilds a user's AUTO edges inside a running transaction.
type rateRegenerator struct {
	BaseService
	now func() time.Time
}

// regenerate reads the enabled currencies and edges through repos, derives the AUTO set and
// swaps it in. Any failure is reported as ErrDerivationStorage.
func (g *rateRegenerator) regenerate(ctx context.Context, repos portsrepo.TxRepositories, userID string, effectiveDate time.Time) (int, error) {
	currencies, err := repos.EnabledCurrencies.ListEnabledCurrencies(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to load enabled currencies: %w", apperrors.ErrDerivationStorage, err)
	}
	edges, err := repos.ExchangeRates.ListEdges(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to load exchange rates: %w", apperrors.ErrDerivationStorage, err)
	}

	res := derivation.Derive(derivation.Input{
		UserID:        userID,
		Currencies:    currencies,
		Edges:         edges,
		EffectiveDate: effectiveDate,
	})

	now := g.now()
	for i := range res.Edges {
		res.Edges[i].AuditFields = domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		}
	}

	if err := repos.ExchangeRates.ReplaceAutoEdges(ctx, userID, res.Edges); err != nil {
		g.LogError(ctx, err, "Failed to replace derived exchange rates",
			slog.String("user_id", userID),
			slog.Int("derived", len(res.Edges)))
		return 0, fmt.Errorf("%w: %w", apperrors.ErrDerivationStorage, err)
	}

	g.LogDebug(ctx, "Derived exchange rates regenerated",
		slog.String("user_id", userID),
		slog.Int("currencies", len(currencies)),
		slog.Int("reversed", res.Reversed),
		slog.Int("composed", res.Composed))
	return len(res.Edges), nil
}

// exchangeRateService provides business logic for exchange rates.
type exchangeRateService struct {
	BaseService
	resolver portssvc.CurrencyResolverSvc
	rateRepo portsrepo.ExchangeRateReader
	uow      portsrepo.UnitOfWork
	regen    *rateRegenerator
	now      func() time.Time
}

// ExchangeRateServiceOption is a functional option for configuring the exchange rate service
type ExchangeRateServiceOption func(*exchangeRateService)

// WithExchangeRateClock overrides the clock used for audit fields and default dates.
func WithExchangeRateClock(now func() time.Time) ExchangeRateServiceOption {
	return func(s *exchangeRateService) {
		s.now = now
	}
}

// NewExchangeRateService creates a new exchange rate service.
func NewExchangeRateService(
	rateRepo portsrepo.ExchangeRateReader,
	uow portsrepo.UnitOfWork,
	resolver portssvc.CurrencyResolverSvc,
	options ...ExchangeRateServiceOption,
) portssvc.ExchangeRateSvcFacade {
	svc := &exchangeRateService{
		resolver: resolver,
		rateRepo: rateRepo,
		uow:      uow,
		now:      time.Now,
	}
	for _, option := range options {
		option(svc)
	}
	svc.regen = &rateRegenerator{now: svc.now}
	return svc
}

var _ portssvc.ExchangeRateSvcFacade = (*exchangeRateService)(nil)

func requireEnabled(ctx context.Context, repos portsrepo.TxRepositories, userID string, currencyIDs ...string) error {
	enabled, err := repos.EnabledCurrencies.ListEnabledCurrencies(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load enabled currencies: %w", err)
	}
	active := make(map[string]bool, len(enabled))
	for _, c := range enabled {
		active[c.CurrencyID] = true
	}
	for _, id := range currencyIDs {
		if !active[id] {
			return fmt.Errorf("%w: currency %s is not enabled", apperrors.ErrValidation, id)
		}
	}
	return nil
}

// CreateExchangeRate records a USER edge and regenerates derived rates as one unit of work.
func (s *exchangeRateService) CreateExchangeRate(ctx context.Context, req dto.CreateExchangeRateRequest, userID string) (*domain.ExchangeRate, error) {
	if !req.Rate.IsPositive() {
		return nil, fmt.Errorf("%w: exchange rate must be positive", apperrors.ErrValidation)
	}
	if req.EffectiveDate.IsZero() {
		return nil, fmt.Errorf("%w: effective date is required", apperrors.ErrValidation)
	}

	fromID, err := s.resolver.Resolve(ctx, req.FromCurrency, userID)
	if err != nil {
		return nil, err
	}
	toID, err := s.resolver.Resolve(ctx, req.ToCurrency, userID)
	if err != nil {
		return nil, err
	}
	if fromID == toID {
		return nil, fmt.Errorf("%w: from and to currencies cannot be the same", apperrors.ErrValidation)
	}

	now := s.now()
	edge := domain.ExchangeRate{
		UserID:         userID,
		FromCurrencyID: fromID,
		ToCurrencyID:   toID,
		Rate:           req.Rate,
		EffectiveDate:  domain.NormalizeDate(req.EffectiveDate),
		Provenance:     domain.ProvenanceUser,
		Notes:          req.Notes,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
	}

	var saved *domain.ExchangeRate
	err = s.uow.WithinTx(ctx, userID, func(ctx context.Context, repos portsrepo.TxRepositories) error {
		if err := requireEnabled(ctx, repos, userID, fromID, toID); err != nil {
			return err
		}
		var err error
		saved, err = repos.ExchangeRates.UpsertEdge(ctx, edge)
		if err != nil {
			return err
		}
		_, err = s.regen.regenerate(ctx, repos, userID, saved.EffectiveDate)
		return err
	})
	if err != nil {
		return nil, s.wrapMutationError(ctx, err, "create")
	}

	s.LogInfo(ctx, "Exchange rate created",
		slog.String("exchange_rate_id", saved.ExchangeRateID),
		slog.String("from_currency_id", fromID),
		slog.String("to_currency_id", toID))
	return saved, nil
}

// UpdateExchangeRate changes a USER edge. API and AUTO edges are not editable.
func (s *exchangeRateService) UpdateExchangeRate(ctx context.Context, rateID string, req dto.UpdateExchangeRateRequest, userID string) (*domain.ExchangeRate, error) {
	if req.Rate != nil && !req.Rate.IsPositive() {
		return nil, fmt.Errorf("%w: exchange rate must be positive", apperrors.ErrValidation)
	}

	var saved *domain.ExchangeRate
	err := s.uow.WithinTx(ctx, userID, func(ctx context.Context, repos portsrepo.TxRepositories) error {
		existing, err := repos.ExchangeRates.FindEdgeByID(ctx, userID, rateID)
		if err != nil {
			return err
		}
		if existing.Provenance != domain.ProvenanceUser {
			return fmt.Errorf("%w: only user-entered rates can be edited", apperrors.ErrValidation)
		}

		updated := *existing
		if req.Rate != nil {
			updated.Rate = *req.Rate
		}
		if req.EffectiveDate != nil {
			updated.EffectiveDate = domain.NormalizeDate(*req.EffectiveDate)
		}
		if req.Notes != nil {
			updated.Notes = *req.Notes
		}
		updated.LastUpdatedBy = userID

		saved, err = repos.ExchangeRates.UpsertEdge(ctx, updated)
		if err != nil {
			return err
		}
		_, err = s.regen.regenerate(ctx, repos, userID, saved.EffectiveDate)
		return err
	})
	if err != nil {
		return nil, s.wrapMutationError(ctx, err, "update")
	}
	return saved, nil
}

// DeleteExchangeRate removes a USER or API edge. Derived rates are regenerated with the
// deleted edge's date.
func (s *exchangeRateService) DeleteExchangeRate(ctx context.Context, rateID string, userID string) error {
	err := s.uow.WithinTx(ctx, userID, func(ctx context.Context, repos portsrepo.TxRepositories) error {
		existing, err := repos.ExchangeRates.FindEdgeByID(ctx, userID, rateID)
		if err != nil {
			return err
		}
		if err := repos.ExchangeRates.DeleteEdge(ctx, userID, rateID); err != nil {
			return err
		}
		_, err = s.regen.regenerate(ctx, repos, userID, existing.EffectiveDate)
		return err
	})
	if err != nil {
		return s.wrapMutationError(ctx, err, "delete")
	}
	s.LogInfo(ctx, "Exchange rate deleted", slog.String("exchange_rate_id", rateID))
	return nil
}

// RegenerateAutoRates rebuilds derived rates. A zero effectiveDate means today.
func (s *exchangeRateService) RegenerateAutoRates(ctx context.Context, userID string, effectiveDate time.Time) (int, error) {
	if effectiveDate.IsZero() {
		effectiveDate = s.now()
	}
	var derived int
	err := s.uow.WithinTx(ctx, userID, func(ctx context.Context, repos portsrepo.TxRepositories) error {
		var err error
		derived, err = s.regen.regenerate(ctx, repos, userID, effectiveDate)
		return err
	})
	if err != nil {
		return 0, s.wrapMutationError(ctx, err, "regenerate")
	}
	return derived, nil
}

func (s *exchangeRateService) ListExchangeRates(ctx context.Context, userID string, provenance domain.Provenance) ([]domain.ExchangeRate, error) {
	if provenance != "" && !provenance.Valid() {
		return nil, fmt.Errorf("%w: unknown provenance %q", apperrors.ErrValidation, provenance)
	}
	edges, err := s.rateRepo.ListEdges(ctx, userID)
	if err != nil {
		s.LogError(ctx, err, "Failed to list exchange rates", slog.String("user_id", userID))
		return nil, fmt.Errorf("failed to list exchange rates in service: %w", err)
	}
	if provenance == "" {
		return edges, nil
	}
	filtered := make([]domain.ExchangeRate, 0, len(edges))
	for _, e := range edges {
		if e.Provenance == provenance {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// GetExchangeRate returns the latest edge between two currencies on or before asOf.
// A zero asOf means today.
func (s *exchangeRateService) GetExchangeRate(ctx context.Context, userID, fromRef, toRef string, asOf time.Time) (*domain.ExchangeRate, error) {
	fromID, err := s.resolver.Resolve(ctx, fromRef, userID)
	if err != nil {
		return nil, err
	}
	toID, err := s.resolver.Resolve(ctx, toRef, userID)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	rate, err := s.rateRepo.FindLatestEdge(ctx, userID, fromID, toID, asOf)
	if err != nil {
		// Repository layer handles ErrNotFound mapping
		return nil, fmt.Errorf("failed to get exchange rate in service: %w", err)
	}
	return rate, nil
}

// wrapMutationError keeps domain errors recognisable and marks storage failures.
func (s *exchangeRateService) wrapMutationError(ctx context.Context, err error, op string) error {
	switch {
	case errors.Is(err, apperrors.ErrValidation),
		errors.Is(err, apperrors.ErrNotFound),
		errors.Is(err, apperrors.ErrDuplicate),
		errors.Is(err, apperrors.ErrDerivationStorage):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	s.LogError(ctx, err, "Exchange rate mutation rolled back", slog.String("operation", op))
	return fmt.Errorf("%w: failed to %s exchange rate: %w", apperrors.ErrDerivationStorage, op, err)
}
