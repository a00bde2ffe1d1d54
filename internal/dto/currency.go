package dto

import (
	"time"

	"github.com/SscSPs/mma_rates/internal/core/domain"
)

// CreateCurrencyRequest defines the data needed to create a user-owned currency.
type CreateCurrencyRequest struct {
	Code          string `json:"code" binding:"required,currency_code"`
	Symbol        string `json:"symbol" binding:"required"`
	Name          string `json:"name" binding:"required"`
	DecimalPlaces *int   `json:"decimalPlaces" binding:"omitempty,min=0,max=18"`
}

// CurrencyResponse defines the data returned for a currency.
type CurrencyResponse struct {
	CurrencyID    string    `json:"currencyID"`
	Code          string    `json:"code"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	DecimalPlaces int       `json:"decimalPlaces"`
	Scope         string    `json:"scope"`
	IsCustom      bool      `json:"isCustom"`
	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     string    `json:"createdBy"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	LastUpdatedBy string    `json:"lastUpdatedBy"`
}

// ToCurrencyResponse converts a domain.Currency to CurrencyResponse DTO
func ToCurrencyResponse(curr *domain.Currency) CurrencyResponse {
	return CurrencyResponse{
		CurrencyID:    curr.CurrencyID,
		Code:          curr.Code,
		Symbol:        curr.Symbol,
		Name:          curr.Name,
		DecimalPlaces: curr.DecimalPlaces,
		Scope:         curr.Scope.String(),
		IsCustom:      !curr.Scope.IsGlobal(),
		CreatedAt:     curr.CreatedAt,
		CreatedBy:     curr.CreatedBy,
		LastUpdatedAt: curr.LastUpdatedAt,
		LastUpdatedBy: curr.LastUpdatedBy,
	}
}

// ToListCurrencyResponse converts a slice of domain.Currency to a slice of CurrencyResponse DTOs
func ToListCurrencyResponse(currencies []domain.Currency) []CurrencyResponse {
	res := make([]CurrencyResponse, len(currencies))
	for i := range currencies {
		res[i] = ToCurrencyResponse(&currencies[i])
	}
	return res
}

// CurrencyRefRequest carries a currency reference, either a currency ID or a code.
type CurrencyRefRequest struct {
	Currency string `json:"currency" binding:"required"`
}

// ResolveCurrencyResponse is returned by the identity resolution endpoint.
type ResolveCurrencyResponse struct {
	Reference string           `json:"reference"`
	Currency  CurrencyResponse `json:"currency"`
}

// BaseCurrencyResponse describes the user's base currency.
type BaseCurrencyResponse struct {
	Currency CurrencyResponse `json:"currency"`
}
