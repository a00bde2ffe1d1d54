package dto

import (
	"time"

	"github.com/SscSPs/mma_rates/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateExchangeRateRequest defines the structure for creating a user-entered exchange rate.
// Currencies may be given as currency IDs or codes.
type CreateExchangeRateRequest struct {
	FromCurrency  string          `json:"fromCurrency" binding:"required"`
	ToCurrency    string          `json:"toCurrency" binding:"required"`
	Rate          decimal.Decimal `json:"rate" binding:"required"`
	EffectiveDate time.Time       `json:"effectiveDate" binding:"required"`
	Notes         string          `json:"notes" binding:"max=500"`
}

// UpdateExchangeRateRequest defines the fields that may change on a user-entered rate.
type UpdateExchangeRateRequest struct {
	Rate          *decimal.Decimal `json:"rate"`
	EffectiveDate *time.Time       `json:"effectiveDate"`
	Notes         *string          `json:"notes" binding:"omitempty,max=500"`
}

// ListExchangeRatesQuery filters the exchange rate listing.
type ListExchangeRatesQuery struct {
	Provenance string `form:"provenance" binding:"omitempty,oneof=USER API AUTO"`
}

// RegenerateRatesRequest asks for an explicit regeneration of derived rates.
type RegenerateRatesRequest struct {
	EffectiveDate *time.Time `json:"effectiveDate"`
}

// ExchangeRateResponse defines the structure for API responses containing exchange rate details.
type ExchangeRateResponse struct {
	ExchangeRateID string          `json:"exchangeRateID"`
	FromCurrencyID string          `json:"fromCurrencyID"`
	ToCurrencyID   string          `json:"toCurrencyID"`
	Rate           decimal.Decimal `json:"rate"`
	EffectiveDate  time.Time       `json:"effectiveDate"`
	Provenance     string          `json:"provenance"`
	Notes          string          `json:"notes"`
	CreatedAt      time.Time       `json:"createdAt"`
	CreatedBy      string          `json:"createdBy"`
	LastUpdatedAt  time.Time       `json:"lastUpdatedAt"`
	LastUpdatedBy  string          `json:"lastUpdatedBy"`
}

// ToExchangeRateResponse converts a domain.ExchangeRate to ExchangeRateResponse DTO
func ToExchangeRateResponse(rate *domain.ExchangeRate) ExchangeRateResponse {
	return ExchangeRateResponse{
		ExchangeRateID: rate.ExchangeRateID,
		FromCurrencyID: rate.FromCurrencyID,
		ToCurrencyID:   rate.ToCurrencyID,
		Rate:           rate.Rate,
		EffectiveDate:  rate.EffectiveDate,
		Provenance:     string(rate.Provenance),
		Notes:          rate.Notes,
		CreatedAt:      rate.CreatedAt,
		CreatedBy:      rate.CreatedBy,
		LastUpdatedAt:  rate.LastUpdatedAt,
		LastUpdatedBy:  rate.LastUpdatedBy,
	}
}

// ToListExchangeRateResponse converts a slice of domain.ExchangeRate to a slice of ExchangeRateResponse DTOs.
func ToListExchangeRateResponse(rates []domain.ExchangeRate) []ExchangeRateResponse {
	responses := make([]ExchangeRateResponse, len(rates))
	for i := range rates {
		responses[i] = ToExchangeRateResponse(&rates[i])
	}
	return responses
}

// RegenerateRatesResponse reports how many derived rates were produced.
type RegenerateRatesResponse struct {
	EffectiveDate time.Time `json:"effectiveDate"`
	Derived       int       `json:"derived"`
}
