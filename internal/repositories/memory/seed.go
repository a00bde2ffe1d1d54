package memory

import (
	"context"
	"time"

	"github.com/SscSPs/mma_rates/internal/core/domain"
	"github.com/google/uuid"
)

var seedNamespace = uuid.MustParse("0b8f5a52-2f7e-4d65-8f0e-5f8f3a9c1d27")

// DefaultGlobalCurrencies mirrors the seed migration used by the PostgreSQL schema.
var DefaultGlobalCurrencies = []domain.Currency{
	{Code: "USD", Name: "US Dollar", Symbol: "$", DecimalPlaces: 2},
	{Code: "EUR", Name: "Euro", Symbol: "€", DecimalPlaces: 2},
	{Code: "GBP", Name: "British Pound", Symbol: "£", DecimalPlaces: 2},
	{Code: "JPY", Name: "Japanese Yen", Symbol: "¥", DecimalPlaces: 0},
	{Code: "CNY", Name: "Chinese Yuan", Symbol: "¥", DecimalPlaces: 2},
	{Code: "INR", Name: "Indian Rupee", Symbol: "₹", DecimalPlaces: 2},
	{Code: "CHF", Name: "Swiss Franc", Symbol: "CHF", DecimalPlaces: 2},
	{Code: "CAD", Name: "Canadian Dollar", Symbol: "$", DecimalPlaces: 2},
	{Code: "AUD", Name: "Australian Dollar", Symbol: "$", DecimalPlaces: 2},
	{Code: "HKD", Name: "Hong Kong Dollar", Symbol: "$", DecimalPlaces: 2},
	{Code: "SGD", Name: "Singapore Dollar", Symbol: "$", DecimalPlaces: 2},
	{Code: "BTC", Name: "Bitcoin", Symbol: "₿", DecimalPlaces: 8},
}

// GlobalCurrencyID returns the stable ID given to a seeded global currency.
func GlobalCurrencyID(code string) string {
	return uuid.NewSHA1(seedNamespace, []byte(code)).String()
}

// SeedGlobalCurrencies inserts DefaultGlobalCurrencies into the store.
func SeedGlobalCurrencies(ctx context.Context, repo *CurrencyRepository) error {
	now := time.Now()
	for _, c := range DefaultGlobalCurrencies {
		c.CurrencyID = GlobalCurrencyID(c.Code)
		c.Scope = domain.GlobalScope()
		c.CreatedAt, c.LastUpdatedAt = now, now
		c.CreatedBy, c.LastUpdatedBy = "system", "system"
		if err := repo.SaveCurrency(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
