package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/mma_rates/internal/apperrors"
	"github.com/SscSPs/mma_rates/internal/core/domain"
	"github.com/SscSPs/mma_rates/internal/core/ports"
	portsrepo "github.com/SscSPs/mma_rates/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/mma_rates/internal/core/ports/services"
)

const marketRateNotes = "Market rate"

// marketRateService writes provider snapshots as API edges and regenerates derived rates.
type marketRateService struct {
	BaseService
	provider     ports.MarketRateProvider
	currencyRepo portsrepo.CurrencyReader
	settingsRepo portsrepo.UserSettingsRepositoryFacade
	uow          portsrepo.UnitOfWork
	regen        *rateRegenerator
	now          func() time.Time
}

type MarketRateServiceOption func(*marketRateService)

// WithMarketRateClock overrides the clock used for audit fields and the derivation date.
func WithMarketRateClock(now func() time.Time) MarketRateServiceOption {
	return func(s *marketRateService) {
		s.now = now
	}
}

func NewMarketRateService(
	provider ports.MarketRateProvider,
	currencyRepo portsrepo.CurrencyReader,
	settingsRepo portsrepo.UserSettingsRepositoryFacade,
	uow portsrepo.UnitOfWork,
	options ...MarketRateServiceOption,
) portssvc.MarketRateSvcFacade {
	svc := &marketRateService{
		provider:     provider,
		currencyRepo: currencyRepo,
		settingsRepo: settingsRepo,
		uow:          uow,
		now:          time.Now,
	}
	for _, option := range options {
		option(svc)
	}
	svc.regen = &rateRegenerator{now: svc.now}
	return svc
}

var _ portssvc.MarketRateSvcFacade = (*marketRateService)(nil)

// RefreshMarketRates fetches rates for the user's base currency and writes one API edge
// base→code per enabled currency found in the snapshot, dated with the snapshot date.
// Derived rates are then regenerated with today's date. Provider failures leave stored
// edges untouched.
func (s *marketRateService) RefreshMarketRates(ctx context.Context, userID string) (*domain.MarketRefreshSummary, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("%w: no market rate provider configured", apperrors.ErrValidation)
	}

	settings, err := s.settingsRepo.FindUserSettings(ctx, userID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to load user settings: %w", err)
	}
	if settings == nil || settings.BaseCurrencyID == "" {
		return nil, fmt.Errorf("%w: set a base currency before refreshing market rates", apperrors.ErrValidation)
	}
	base, err := s.currencyRepo.FindCurrencyByID(ctx, settings.BaseCurrencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load base currency: %w", err)
	}

	snapshot, err := s.provider.FetchLatest(ctx, base.Code)
	if err != nil {
		s.LogError(ctx, err, "Market rate provider failed", slog.String("base", base.Code))
		return nil, fmt.Errorf("%w: failed to fetch market rates: %w", apperrors.ErrUpstream, err)
	}
	if !strings.EqualFold(snapshot.Base, base.Code) {
		return nil, fmt.Errorf("%w: market rate provider returned base %s, expected %s", apperrors.ErrUpstream, snapshot.Base, base.Code)
	}

	now := s.now()
	summary := &domain.MarketRefreshSummary{
		Base:    base.Code,
		Date:    domain.NormalizeDate(snapshot.Date),
		Skipped: []string{},
	}

	err = s.uow.WithinTx(ctx, userID, func(ctx context.Context, repos portsrepo.TxRepositories) error {
		enabled, err := repos.EnabledCurrencies.ListEnabledCurrencies(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load enabled currencies: %w", err)
		}
		summary.Written = 0
		summary.Skipped = summary.Skipped[:0]

		for _, c := range enabled {
			if c.CurrencyID == base.CurrencyID {
				continue
			}
			rate, ok := snapshot.Rates[c.Code]
			if !ok {
				continue
			}
			if !rate.IsPositive() {
				summary.Skipped = append(summary.Skipped, c.Code)
				continue
			}
			edge := domain.ExchangeRate{
				UserID:         userID,
				FromCurrencyID: base.CurrencyID,
				ToCurrencyID:   c.CurrencyID,
				Rate:           rate,
				EffectiveDate:  summary.Date,
				Provenance:     domain.ProvenanceAPI,
				Notes:          marketRateNotes,
				AuditFields: domain.AuditFields{
					CreatedAt:     now,
					CreatedBy:     userID,
					LastUpdatedAt: now,
					LastUpdatedBy: userID,
				},
			}
			if _, err := repos.ExchangeRates.UpsertEdge(ctx, edge); err != nil {
				if errors.Is(err, apperrors.ErrDuplicate) {
					// A USER rate already holds this pair and date.
					summary.Skipped = append(summary.Skipped, c.Code)
					continue
				}
				return fmt.Errorf("failed to write market rate for %s: %w", c.Code, err)
			}
			summary.Written++
		}

		summary.Derived, err = s.regen.regenerate(ctx, repos, userID, now)
		return err
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrDerivationStorage) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: market rate refresh rolled back: %w", apperrors.ErrDerivationStorage, err)
	}

	s.LogInfo(ctx, "Market rates refreshed",
		slog.String("user_id", userID),
		slog.String("base", base.Code),
		slog.Int("written", summary.Written),
		slog.Int("skipped", len(summary.Skipped)),
		slog.Int("derived", summary.Derived))
	return summary, nil
}
