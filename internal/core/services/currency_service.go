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
	portsrepo "github.com/SscSPs/mma_rates/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/mma_rates/internal/core/ports/services"
	"github.com/SscSPs/mma_rates/internal/dto"
	"github.com/google/uuid"
)

const defaultDecimalPlaces = 2

// currencyService resolves currency references and manages custom currencies.
type currencyService struct {
	BaseService
	currencyRepo portsrepo.CurrencyRepositoryFacade
	enabledRepo  portsrepo.EnabledCurrencyReader
	settingsRepo portsrepo.UserSettingsRepositoryFacade
	rateRepo     portsrepo.ExchangeRateReader
	now          func() time.Time
}

// CurrencyServiceOption is a functional option for configuring the currency service
type CurrencyServiceOption func(*currencyService)

// WithCurrencyUsageRepositories adds the repositories consulted before deleting a currency.
func WithCurrencyUsageRepositories(enabled portsrepo.EnabledCurrencyReader, settings portsrepo.UserSettingsRepositoryFacade, rates portsrepo.ExchangeRateReader) CurrencyServiceOption {
	return func(s *currencyService) {
		s.enabledRepo = enabled
		s.settingsRepo = settings
		s.rateRepo = rates
	}
}

// WithCurrencyClock overrides the clock used for audit fields.
func WithCurrencyClock(now func() time.Time) CurrencyServiceOption {
	return func(s *currencyService) {
		s.now = now
	}
}

// NewCurrencyService creates a new currency service with the provided options
func NewCurrencyService(currencyRepo portsrepo.CurrencyRepositoryFacade, options ...CurrencyServiceOption) portssvc.CurrencySvcFacade {
	svc := &currencyService{
		currencyRepo: currencyRepo,
		now:          time.Now,
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.CurrencySvcFacade = (*currencyService)(nil)

// Resolve returns the ID of the currency the user means by codeOrID.
func (s *currencyService) Resolve(ctx context.Context, codeOrID string, userID string) (string, error) {
	currency, err := s.ResolveCurrency(ctx, codeOrID, userID)
	if err != nil {
		return "", err
	}
	return currency.CurrencyID, nil
}

func (s *currencyService) ResolveCurrency(ctx context.Context, codeOrID string, userID string) (*domain.Currency, error) {
	ref := strings.TrimSpace(codeOrID)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty currency reference", apperrors.ErrIdentityNotFound)
	}

	if _, parseErr := uuid.Parse(ref); parseErr == nil {
		currency, err := s.currencyRepo.FindCurrencyByID(ctx, ref)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("%w: currency %s", apperrors.ErrIdentityNotFound, ref)
			}
			s.LogError(ctx, err, "Failed to look up currency by ID", slog.String("currency_id", ref))
			return nil, fmt.Errorf("failed to resolve currency %s: %w", ref, err)
		}
		if !currency.Scope.VisibleTo(userID) {
			return nil, fmt.Errorf("%w: currency %s", apperrors.ErrIdentityNotFound, ref)
		}
		return currency, nil
	}

	return s.ResolveByCode(ctx, ref, userID)
}

// ResolveByCode prefers the user's own currency over the global one with the same code.
func (s *currencyService) ResolveByCode(ctx context.Context, code string, userID string) (*domain.Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	matches, err := s.currencyRepo.FindCurrenciesByCode(ctx, code, userID)
	if err != nil {
		s.LogError(ctx, err, "Failed to look up currency by code", slog.String("currency_code", code))
		return nil, fmt.Errorf("failed to resolve currency code %s: %w", code, err)
	}

	var global *domain.Currency
	for i := range matches {
		c := matches[i]
		if !c.Scope.VisibleTo(userID) {
			continue
		}
		if !c.Scope.IsGlobal() {
			return &c, nil
		}
		if global == nil {
			global = &c
		}
	}
	if global == nil {
		return nil, fmt.Errorf("%w: currency code %s", apperrors.ErrIdentityNotFound, code)
	}
	return global, nil
}

func (s *currencyService) GetCurrencyByID(ctx context.Context, currencyID string, userID string) (*domain.Currency, error) {
	currency, err := s.currencyRepo.FindCurrencyByID(ctx, currencyID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("currency " + currencyID + " not found")
		}
		return nil, fmt.Errorf("failed to get currency in service: %w", err)
	}
	if !currency.Scope.VisibleTo(userID) {
		return nil, apperrors.NewNotFoundError("currency " + currencyID + " not found")
	}
	return currency, nil
}

func (s *currencyService) ListVisibleCurrencies(ctx context.Context, userID string) ([]domain.Currency, error) {
	currencies, err := s.currencyRepo.ListVisibleCurrencies(ctx, userID)
	if err != nil {
		s.LogError(ctx, err, "Failed to list currencies", slog.String("user_id", userID))
		return nil, fmt.Errorf("failed to list currencies in service: %w", err)
	}
	// Return empty slice if no currencies found, not nil
	if currencies == nil {
		return []domain.Currency{}, nil
	}
	return currencies, nil
}

// CreateCustomCurrency creates a currency owned by userID. Shadowing a global code is allowed.
func (s *currencyService) CreateCustomCurrency(ctx context.Context, req dto.CreateCurrencyRequest, userID string) (*domain.Currency, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if !domain.IsValidCurrencyCode(code) {
		return nil, fmt.Errorf("%w: currency code must be 3 to 10 letters or digits", apperrors.ErrValidation)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: currency name is required", apperrors.ErrValidation)
	}
	decimalPlaces := defaultDecimalPlaces
	if req.DecimalPlaces != nil {
		decimalPlaces = *req.DecimalPlaces
	}
	if decimalPlaces < 0 || decimalPlaces > 18 {
		return nil, fmt.Errorf("%w: decimal places must be between 0 and 18", apperrors.ErrValidation)
	}

	now := s.now()
	currency := domain.Currency{
		CurrencyID:    uuid.NewString(),
		Code:          code,
		Symbol:        req.Symbol,
		Name:          name,
		DecimalPlaces: decimalPlaces,
		Scope:         domain.OwnedBy(userID),
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
	}

	if err := s.currencyRepo.SaveCurrency(ctx, currency); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			return nil, fmt.Errorf("%w: you already have a currency with code %s", apperrors.ErrDuplicate, code)
		}
		s.LogError(ctx, err, "Failed to create currency", slog.String("currency_code", code))
		return nil, fmt.Errorf("failed to create currency in service: %w", err)
	}

	s.LogInfo(ctx, "Custom currency created",
		slog.String("currency_id", currency.CurrencyID),
		slog.String("currency_code", code))
	return &currency, nil
}

// DeleteCustomCurrency removes one of the user's own currencies once nothing references it.
func (s *currencyService) DeleteCustomCurrency(ctx context.Context, currencyID string, userID string) error {
	currency, err := s.GetCurrencyByID(ctx, currencyID, userID)
	if err != nil {
		return err
	}
	if owner, owned := currency.Scope.OwnerID(); !owned || owner != userID {
		return fmt.Errorf("%w: global currencies cannot be deleted", apperrors.ErrValidation)
	}

	if s.enabledRepo != nil {
		entries, err := s.enabledRepo.ListEnabledCurrencyEntries(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to check enabled currencies: %w", err)
		}
		for _, e := range entries {
			if e.CurrencyID == currencyID && e.Active {
				return fmt.Errorf("%w: disable currency %s before deleting it", apperrors.ErrValidation, currency.Code)
			}
		}
	}
	if s.settingsRepo != nil {
		settings, err := s.settingsRepo.FindUserSettings(ctx, userID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("failed to check base currency: %w", err)
		}
		if settings != nil && settings.BaseCurrencyID == currencyID {
			return fmt.Errorf("%w: currency %s is the base currency", apperrors.ErrValidation, currency.Code)
		}
	}
	if s.rateRepo != nil {
		n, err := s.rateRepo.CountEdgesReferencingCurrency(ctx, userID, currencyID)
		if err != nil {
			return fmt.Errorf("failed to check exchange rates: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: currency %s is referenced by %d exchange rates", apperrors.ErrValidation, currency.Code, n)
		}
	}

	if err := s.currencyRepo.DeleteCurrency(ctx, currencyID); err != nil {
		s.LogError(ctx, err, "Failed to delete currency", slog.String("currency_id", currencyID))
		return fmt.Errorf("failed to delete currency in service: %w", err)
	}
	return nil
}
