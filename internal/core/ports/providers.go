package ports

import (
	"context"

	"github.com/SscSPs/mma_rates/internal/core/domain"
)

// MarketRateProvider supplies market rates for a base currency code.
// Implementations drop individual malformed entries and return an error only when the
// payload as a whole cannot be used.
type MarketRateProvider interface {
	FetchLatest(ctx context.Context, baseCode string) (*domain.MarketRateSnapshot, error)
}

// CurrencyUsageGuard reports whether a currency is still referenced by data owned elsewhere
// (transactions, accounts). A currency in use cannot be disabled or deleted.
type CurrencyUsageGuard interface {
	IsCurrencyInUse(ctx context.Context, userID, currencyID string) (bool, error)
}
