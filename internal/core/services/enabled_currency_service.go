package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SscSPs/mma_rates/internal/apperrors"
	"github.com/SscSPs/mma_rates/internal/core/domain"
	"github.com/SscSPs/mma_rates/internal/core/ports"
	portsrepo "github.com/SscSPs/mma_rates/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/mma_rates/internal/core/ports/services"
)

// enabledCurrencyService manages a user's currency universe and base currency.
// Changes here never rewrite rate edges and never trigger derivation.
type enabledCurrencyService struct {
	BaseService
	resolver     portssvc.CurrencyResolverSvc
	enabledRepo  portsrepo.EnabledCurrencyRepositoryFacade
	settingsRepo portsrepo.UserSettingsRepositoryFacade
	rateRepo     portsrepo.ExchangeRateReader
	usageGuard   ports.CurrencyUsageGuard
}

// EnabledCurrencyServiceOption is a functional option for configuring the enabled currency service
type EnabledCurrencyServiceOption func(*enabledCurrencyService)

// WithCurrencyUsageGuard adds a check for currency usage held outside this service.
func WithCurrencyUsageGuard(guard ports.CurrencyUsageGuard) EnabledCurrencyServiceOption {
	return func(s *enabledCurrencyService) {
		s.usageGuard = guard
	}
}

func NewEnabledCurrencyService(
	resolver portssvc.CurrencyResolverSvc,
	enabledRepo portsrepo.EnabledCurrencyRepositoryFacade,
	settingsRepo portsrepo.UserSettingsRepositoryFacade,
	rateRepo portsrepo.ExchangeRateReader,
	options ...EnabledCurrencyServiceOption,
) portssvc.EnabledCurrencySvcFacade {
	svc := &enabledCurrencyService{
		resolver:     resolver,
		enabledRepo:  enabledRepo,
		settingsRepo: settingsRepo,
		rateRepo:     rateRepo,
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.EnabledCurrencySvcFacade = (*enabledCurrencyService)(nil)

func (s *enabledCurrencyService) ListEnabledCurrencies(ctx context.Context, userID string) ([]domain.Currency, error) {
	currencies, err := s.enabledRepo.ListEnabledCurrencies(ctx, userID)
	if err != nil {
		s.LogError(ctx, err, "Failed to list enabled currencies", slog.String("user_id", userID))
		return nil, fmt.Errorf("failed to list enabled currencies: %w", err)
	}
	if currencies == nil {
		return []domain.Currency{}, nil
	}
	return currencies, nil
}

// EnableCurrency appends the currency to the end of the user's order. Enabling an active
// currency is a no-op.
func (s *enabledCurrencyService) EnableCurrency(ctx context.Context, userID string, codeOrID string) (*domain.Currency, error) {
	currency, err := s.resolver.ResolveCurrency(ctx, codeOrID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.enable(ctx, userID, currency.CurrencyID); err != nil {
		return nil, err
	}
	return currency, nil
}

func (s *enabledCurrencyService) enable(ctx context.Context, userID, currencyID string) error {
	entries, err := s.enabledRepo.ListEnabledCurrencyEntries(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load enabled currencies: %w", err)
	}
	nextOrder := 0
	for _, e := range entries {
		if e.CurrencyID == currencyID && e.Active {
			return nil
		}
		if e.Order >= nextOrder {
			nextOrder = e.Order + 1
		}
	}
	entry := domain.EnabledCurrency{UserID: userID, CurrencyID: currencyID, Active: true, Order: nextOrder}
	if err := s.enabledRepo.SaveEnabledCurrency(ctx, entry); err != nil {
		s.LogError(ctx, err, "Failed to enable currency", slog.String("currency_id", currencyID))
		return fmt.Errorf("failed to enable currency: %w", err)
	}
	s.LogInfo(ctx, "Currency enabled", slog.String("user_id", userID), slog.String("currency_id", currencyID))
	return nil
}

// DisableCurrency refuses while the currency is the base currency, has rate edges, or is in use elsewhere.
func (s *enabledCurrencyService) DisableCurrency(ctx context.Context, userID string, codeOrID string) error {
	currency, err := s.resolver.ResolveCurrency(ctx, codeOrID, userID)
	if err != nil {
		return err
	}

	entries, err := s.enabledRepo.ListEnabledCurrencyEntries(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load enabled currencies: %w", err)
	}
	var entry *domain.EnabledCurrency
	for i := range entries {
		if entries[i].CurrencyID == currency.CurrencyID {
			entry = &entries[i]
			break
		}
	}
	if entry == nil || !entry.Active {
		return apperrors.NewNotFoundError("currency " + currency.Code + " is not enabled")
	}

	baseID, err := s.baseCurrencyID(ctx, userID)
	if err != nil {
		return err
	}
	if baseID == currency.CurrencyID {
		return fmt.Errorf("%w: currency %s is the base currency", apperrors.ErrValidation, currency.Code)
	}

	n, err := s.rateRepo.CountEdgesReferencingCurrency(ctx, userID, currency.CurrencyID)
	if err != nil {
		return fmt.Errorf("failed to check exchange rates: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: currency %s is referenced by %d exchange rates", apperrors.ErrValidation, currency.Code, n)
	}

	if s.usageGuard != nil {
		inUse, err := s.usageGuard.IsCurrencyInUse(ctx, userID, currency.CurrencyID)
		if err != nil {
			return fmt.Errorf("failed to check currency usage: %w", err)
		}
		if inUse {
			return fmt.Errorf("%w: currency %s has transactions", apperrors.ErrValidation, currency.Code)
		}
	}

	entry.Active = false
	if err := s.enabledRepo.SaveEnabledCurrency(ctx, *entry); err != nil {
		s.LogError(ctx, err, "Failed to disable currency", slog.String("currency_id", currency.CurrencyID))
		return fmt.Errorf("failed to disable currency: %w", err)
	}
	return nil
}

func (s *enabledCurrencyService) baseCurrencyID(ctx context.Context, userID string) (string, error) {
	settings, err := s.settingsRepo.FindUserSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load user settings: %w", err)
	}
	return settings.BaseCurrencyID, nil
}

// GetBaseCurrency returns ErrNotFound when the user has not chosen one.
func (s *enabledCurrencyService) GetBaseCurrency(ctx context.Context, userID string) (*domain.Currency, error) {
	baseID, err := s.baseCurrencyID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if baseID == "" {
		return nil, apperrors.NewNotFoundError("base currency not set")
	}
	return s.resolver.ResolveCurrency(ctx, baseID, userID)
}

// SetBaseCurrency also enables the currency.
func (s *enabledCurrencyService) SetBaseCurrency(ctx context.Context, userID string, codeOrID string) (*domain.Currency, error) {
	currency, err := s.resolver.ResolveCurrency(ctx, codeOrID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.enable(ctx, userID, currency.CurrencyID); err != nil {
		return nil, err
	}
	if err := s.settingsRepo.SaveUserSettings(ctx, domain.UserSettings{UserID: userID, BaseCurrencyID: currency.CurrencyID}); err != nil {
		s.LogError(ctx, err, "Failed to save base currency", slog.String("currency_id", currency.CurrencyID))
		return nil, fmt.Errorf("failed to set base currency: %w", err)
	}
	s.LogInfo(ctx, "Base currency changed", slog.String("user_id", userID), slog.String("currency_code", currency.Code))
	return currency, nil
}
