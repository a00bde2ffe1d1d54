package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConversionGapMessage is reported when no rate edge connects two currencies.
const ConversionGapMessage = "no rate path"

// ConversionUnknownCurrencyMessage is reported for a batch item whose currency could not be resolved.
const ConversionUnknownCurrencyMessage = "unknown currency"

// ConversionResult is a best-effort conversion. When Success is false ConvertedAmount holds
// the unconverted input so aggregations keep working.
type ConversionResult struct {
	Amount          decimal.Decimal `json:"amount"`
	FromCurrencyID  string          `json:"fromCurrencyID"`
	ToCurrencyID    string          `json:"toCurrencyID"`
	ConvertedAmount decimal.Decimal `json:"convertedAmount"`
	Rate            decimal.Decimal `json:"rate"`
	RateDate        *time.Time      `json:"rateDate,omitempty"`
	Provenance      Provenance      `json:"provenance,omitempty"`
	Success         bool            `json:"success"`
	Error           string          `json:"error,omitempty"`
}

// ConversionItem is one input line of a batch conversion. An empty CurrencyID marks an
// unresolved currency; the item fails without a rate lookup.
type ConversionItem struct {
	Amount     decimal.Decimal `json:"amount"`
	CurrencyID string          `json:"currencyID"`
}

// BatchConversionResult aggregates per-item results. A batch never fails as a whole.
type BatchConversionResult struct {
	ToCurrencyID   string             `json:"toCurrencyID"`
	Items          []ConversionResult `json:"items"`
	Total          decimal.Decimal    `json:"total"`
	ConvertedCount int                `json:"convertedCount"`
	FailedCount    int                `json:"failedCount"`
	HasGaps        bool               `json:"hasGaps"`
}
