package utils

import (
	"github.com/SscSPs/mma_rates/internal/core/domain"
	"github.com/shopspring/decimal"
)

// FormatWithCurrencyPrecision formats an amount with the decimal places of a given currency
// Example: amount 12.3456 with USD (2 places) returns "12.35"
// Example: amount 12.3456 with JPY (0 places) returns "12"
// Example: amount 12.3 with BTC (8 places) returns "12.30000000"
func FormatWithCurrencyPrecision(amount decimal.Decimal, currency domain.Currency) string {
	return FormatWithPrecision(amount, currency.DecimalPlaces)
}

// FormatWithPrecision formats an amount with the given precision
// This is a convenience function when you only have the precision value
func FormatWithPrecision(amount decimal.Decimal, precision int) string {
	if precision < 0 {
		precision = 0
	}
	return amount.StringFixed(int32(precision))
}
