package services

import (
	"context"

	"github.com/SscSPs/mma_rates/internal/core/domain"
	"github.com/SscSPs/mma_rates/internal/dto"
)

// CurrencyResolverSvc maps user-facing currency references to currency identities.
type CurrencyResolverSvc interface {
	// Resolve accepts a currency ID or a code and returns the currency ID.
	Resolve(ctx context.Context, codeOrID string, userID string) (string, error)
	// ResolveByCode returns the currency the user means by code: the owned one if any,
	// otherwise the global one.
	ResolveByCode(ctx context.Context, code string, userID string) (*domain.Currency, error)
	// ResolveCurrency is Resolve returning the full record.
	ResolveCurrency(ctx context.Context, codeOrID string, userID string) (*domain.Currency, error)
}

// CurrencyReaderSvc defines read operations for currency data
type CurrencyReaderSvc interface {
	// GetCurrencyByID retrieves a currency visible to the user.
	GetCurrencyByID(ctx context.Context, currencyID string, userID string) (*domain.Currency, error)

	// ListVisibleCurrencies retrieves global currencies and the user's own.
	ListVisibleCurrencies(ctx context.Context, userID string) ([]domain.Currency, error)
}

// CurrencyWriterSvc defines write operations for currency data
type CurrencyWriterSvc interface {
	// CreateCustomCurrency persists a new currency owned by the user.
	CreateCustomCurrency(ctx context.Context, req dto.CreateCurrencyRequest, userID string) (*domain.Currency, error)

	// DeleteCustomCurrency removes a currency owned by the user.
	DeleteCustomCurrency(ctx context.Context, currencyID string, userID string) error
}

// CurrencySvcFacade combines all currency-related service interfaces
type CurrencySvcFacade interface {
	CurrencyResolverSvc
	CurrencyReaderSvc
	CurrencyWriterSvc
}

// EnabledCurrencySvcFacade manages a user's currency universe and base currency.
type EnabledCurrencySvcFacade interface {
	ListEnabledCurrencies(ctx context.Context, userID string) ([]domain.Currency, error)
	EnableCurrency(ctx context.Context, userID string, codeOrID string) (*domain.Currency, error)
	DisableCurrency(ctx context.Context, userID string, codeOrID string) error
	GetBaseCurrency(ctx context.Context, userID string) (*domain.Currency, error)
	SetBaseCurrency(ctx context.Context, userID string, codeOrID string) (*domain.Currency, error)
}
