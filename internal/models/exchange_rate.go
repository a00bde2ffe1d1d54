package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is a row of the exchange_rates table: one directed, dated rate edge.
type ExchangeRate struct {
	ExchangeRateID string          `db:"exchange_rate_id"`
	UserID         string          `db:"user_id"`
	FromCurrencyID string          `db:"from_currency_id"`
	ToCurrencyID   string          `db:"to_currency_id"`
	Rate           decimal.Decimal `db:"rate"`
	EffectiveDate  time.Time       `db:"effective_date"`
	Provenance     string          `db:"provenance"`
	Notes          string          `db:"notes"`
	AuditFields
}
