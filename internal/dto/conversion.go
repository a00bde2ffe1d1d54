package dto

import (
	"time"

	"github.com/SscSPs/mma_rates/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ConvertQuery holds the query parameters of a single conversion.
type ConvertQuery struct {
	Amount string `form:"amount" binding:"required"`
	From   string `form:"from" binding:"required"`
	To     string `form:"to"`                                           // defaults to the base currency
	Date   string `form:"date" binding:"omitempty,datetime=2006-01-02"` // defaults to today
}

// BatchConversionItem is one line of a batch conversion request.
type BatchConversionItem struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" binding:"required"`
}

// BatchConversionRequest converts many amounts into one target currency.
type BatchConversionRequest struct {
	Items      []BatchConversionItem `json:"items" binding:"required,min=1,dive"`
	ToCurrency string                `json:"toCurrency"`
	Date       *time.Time            `json:"date"`
}

// ConversionResponse is the API view of a domain.ConversionResult.
type ConversionResponse struct {
	Currency        string          `json:"currency,omitempty"` // batch items echo the requested reference
	Amount          decimal.Decimal `json:"amount"`
	FromCurrencyID  string          `json:"fromCurrencyID"`
	ToCurrencyID    string          `json:"toCurrencyID"`
	ConvertedAmount decimal.Decimal `json:"convertedAmount"`
	DisplayAmount   string          `json:"displayAmount"`
	Rate            decimal.Decimal `json:"rate"`
	RateDate        *time.Time      `json:"rateDate,omitempty"`
	Provenance      string          `json:"provenance,omitempty"`
	Success         bool            `json:"success"`
	Error           string          `json:"error,omitempty"`
}

// ToConversionResponse converts a result; displayAmount is pre-formatted by the caller.
func ToConversionResponse(res domain.ConversionResult, displayAmount string) ConversionResponse {
	return ConversionResponse{
		Amount:          res.Amount,
		FromCurrencyID:  res.FromCurrencyID,
		ToCurrencyID:    res.ToCurrencyID,
		ConvertedAmount: res.ConvertedAmount,
		DisplayAmount:   displayAmount,
		Rate:            res.Rate,
		RateDate:        res.RateDate,
		Provenance:      string(res.Provenance),
		Success:         res.Success,
		Error:           res.Error,
	}
}

// BatchConversionResponse is the API view of a domain.BatchConversionResult.
type BatchConversionResponse struct {
	ToCurrencyID   string               `json:"toCurrencyID"`
	Items          []ConversionResponse `json:"items"`
	Total          decimal.Decimal      `json:"total"`
	DisplayTotal   string               `json:"displayTotal"`
	ConvertedCount int                  `json:"convertedCount"`
	FailedCount    int                  `json:"failedCount"`
	HasGaps        bool                 `json:"hasGaps"`
}
