package services

import (
	"context"
	"time"

	"github.com/SscSPs/mma_rates/internal/core/domain"
	"github.com/SscSPs/mma_rates/internal/dto"
	"github.com/shopspring/decimal"
)

// ExchangeRateReaderSvc defines read operations for exchange rate data
type ExchangeRateReaderSvc interface {
	// GetExchangeRate retrieves the latest edge between two currencies as of a date.
	GetExchangeRate(ctx context.Context, userID, fromRef, toRef string, asOf time.Time) (*domain.ExchangeRate, error)

	// ListExchangeRates lists the user's edges, optionally filtered by provenance.
	ListExchangeRates(ctx context.Context, userID string, provenance domain.Provenance) ([]domain.ExchangeRate, error)
}

// ExchangeRateWriterSvc defines write operations for exchange rate data.
// Every write regenerates the derived rates in the same transaction.
type ExchangeRateWriterSvc interface {
	CreateExchangeRate(ctx context.Context, req dto.CreateExchangeRateRequest, userID string) (*domain.ExchangeRate, error)
	UpdateExchangeRate(ctx context.Context, rateID string, req dto.UpdateExchangeRateRequest, userID string) (*domain.ExchangeRate, error)
	DeleteExchangeRate(ctx context.Context, rateID string, userID string) error

	// RegenerateAutoRates rebuilds the user's derived rates and returns how many were produced.
	RegenerateAutoRates(ctx context.Context, userID string, effectiveDate time.Time) (int, error)
}

// ExchangeRateSvcFacade combines all exchange rate-related service interfaces
type ExchangeRateSvcFacade interface {
	ExchangeRateReaderSvc
	ExchangeRateWriterSvc
}

// ConversionSvcFacade converts amounts between currency IDs. Conversions never fail; gaps are
// reported on the result.
type ConversionSvcFacade interface {
	Convert(ctx context.Context, userID string, amount decimal.Decimal, fromCurrencyID, toCurrencyID string, asOf time.Time) domain.ConversionResult
	ConvertBatch(ctx context.Context, userID string, items []domain.ConversionItem, toCurrencyID string, asOf time.Time) domain.BatchConversionResult
	// ConvertToBase converts into the user's base currency. It errors only when no base
	// currency is configured.
	ConvertToBase(ctx context.Context, userID string, amount decimal.Decimal, fromCurrencyID string, asOf time.Time) (domain.ConversionResult, error)
	// FormatAmount renders amount with the decimal places of the currency.
	FormatAmount(ctx context.Context, amount decimal.Decimal, currencyID string) string
}

// MarketRateSvcFacade pulls market rates from the configured provider.
type MarketRateSvcFacade interface {
	RefreshMarketRates(ctx context.Context, userID string) (*domain.MarketRefreshSummary, error)
}
