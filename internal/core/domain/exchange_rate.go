package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provenance records where a rate edge came from.
type Provenance string

const (
	ProvenanceUser Provenance = "USER"
	ProvenanceAPI  Provenance = "API"
	ProvenanceAuto Provenance = "AUTO"
)

// Priority orders provenances for tie-breaks: USER > API > AUTO.
func (p Provenance) Priority() int {
	switch p {
	case ProvenanceUser:
		return 3
	case ProvenanceAPI:
		return 2
	case ProvenanceAuto:
		return 1
	default:
		return 0
	}
}

// IsAuthoritative reports whether edges of this provenance are facts rather than derivations.
func (p Provenance) IsAuthoritative() bool {
	return p == ProvenanceUser || p == ProvenanceAPI
}

// Valid reports whether p is a known provenance.
func (p Provenance) Valid() bool {
	return p.Priority() > 0
}

// ExchangeRate is a directed, dated rate edge: 1 unit of FromCurrency = Rate units of ToCurrency.
type ExchangeRate struct {
	ExchangeRateID string          `json:"exchangeRateID"`
	UserID         string          `json:"userID"`
	FromCurrencyID string          `json:"fromCurrencyID"`
	ToCurrencyID   string          `json:"toCurrencyID"`
	Rate           decimal.Decimal `json:"rate"`
	EffectiveDate  time.Time       `json:"effectiveDate"`
	Provenance     Provenance      `json:"provenance"`
	Notes          string          `json:"notes"`
	AuditFields
}

// PairKey identifies an ordered currency pair.
type PairKey struct {
	From string
	To   string
}

// Pair returns the ordered pair of the edge.
func (r ExchangeRate) Pair() PairKey {
	return PairKey{From: r.FromCurrencyID, To: r.ToCurrencyID}
}

// Outranks reports whether r should be preferred over other for the same pair when
// looking up the latest rate: later effective date, then provenance priority, then latest write.
func (r ExchangeRate) Outranks(other ExchangeRate) bool {
	if !r.EffectiveDate.Equal(other.EffectiveDate) {
		return r.EffectiveDate.After(other.EffectiveDate)
	}
	if r.Provenance.Priority() != other.Provenance.Priority() {
		return r.Provenance.Priority() > other.Provenance.Priority()
	}
	return r.LastUpdatedAt.After(other.LastUpdatedAt)
}

// MarketRateSnapshot is what an external market-rate provider returns:
// 1 unit of Base = Rates[code] units of code, as of Date.
type MarketRateSnapshot struct {
	Base  string
	Date  time.Time
	Rates map[string]decimal.Decimal
}

// MarketRefreshSummary reports the outcome of writing a snapshot as API edges.
type MarketRefreshSummary struct {
	Base    string    `json:"base"`
	Date    time.Time `json:"date"`
	Written int       `json:"written"`
	Skipped []string  `json:"skipped"`
	Derived int       `json:"derived"`
}
