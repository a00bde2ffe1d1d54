// Package derivation computes the AUTO edges of a user's rate graph from the USER and API
// edges over the user's enabled currencies.
//
// The computation is a pure function of its input: the same currencies and authoritative
// edges always yield the same derived edges, in the same order, with the same IDs.
package derivation

import (
	"fmt"
	"sort"
	"time"

	"github.com/SscSPs/mma_rates/internal/core/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RateSignificantDigits is the number of significant digits kept on derived rates.
// A positive rate never rounds to zero, however small.
const RateSignificantDigits = 20

// autoEdgeNamespace seeds the name-based UUIDs of derived edges.
var autoEdgeNamespace = uuid.MustParse("6f1c2e0a-4b7d-5c3e-9a8f-2d4b6c8e0f13")

var one = decimal.NewFromInt(1)

// Input is everything a derivation pass reads.
type Input struct {
	UserID string
	// Currencies is the user's enabled currency universe. Order does not matter.
	Currencies []domain.Currency
	// Edges may contain edges of any provenance; AUTO edges are ignored.
	Edges []domain.ExchangeRate
	// EffectiveDate stamps every derived edge.
	EffectiveDate time.Time
}

// Result holds the derived edges. Audit fields are left for the caller to stamp.
type Result struct {
	Edges    []domain.ExchangeRate
	Reversed int
	Composed int
}

// Derive runs one full derivation pass:
//  1. pick the most authoritative USER/API edge per ordered pair (USER over API, then the
//     latest effective date, then the latest write);
//  2. add B→A = 1/r for every such A→B without an authoritative B→A;
//  3. for every still-missing pair X→Y, in code order, compose X→Z→Y through the first
//     intermediate Z in code order whose two legs exist in the working graph. Legs may be
//     authoritative, reversed, or composed earlier in the same pass.
//
// Pairs with no path are simply absent from the result.
func Derive(in Input) Result {
	universe := sortedUniverse(in.Currencies)
	index := make(map[string]domain.Currency, len(universe))
	for _, c := range universe {
		index[c.CurrencyID] = c
	}
	effectiveDate := domain.NormalizeDate(in.EffectiveDate)

	authoritative := pickAuthoritative(in.Edges, index)

	graph := make(map[domain.PairKey]decimal.Decimal, len(universe)*len(universe))
	for key, edge := range authoritative {
		graph[key] = edge.Rate
	}

	var res Result

	for _, a := range universe {
		for _, b := range universe {
			edge, ok := authoritative[domain.PairKey{From: a.CurrencyID, To: b.CurrencyID}]
			if !ok {
				continue
			}
			reverse := domain.PairKey{From: b.CurrencyID, To: a.CurrencyID}
			if _, exists := authoritative[reverse]; exists {
				continue
			}
			rate := reciprocal(edge.Rate)
			if !rate.IsPositive() {
				continue
			}
			graph[reverse] = rate
			res.Edges = append(res.Edges, newAutoEdge(in.UserID, b, a, rate, effectiveDate,
				fmt.Sprintf("Auto: reverse of %s->%s", a.Code, b.Code)))
			res.Reversed++
		}
	}

	for _, x := range universe {
		for _, y := range universe {
			if x.CurrencyID == y.CurrencyID {
				continue
			}
			key := domain.PairKey{From: x.CurrencyID, To: y.CurrencyID}
			if _, exists := graph[key]; exists {
				continue
			}
			for _, z := range universe {
				if z.CurrencyID == x.CurrencyID || z.CurrencyID == y.CurrencyID {
					continue
				}
				first, ok := graph[domain.PairKey{From: x.CurrencyID, To: z.CurrencyID}]
				if !ok {
					continue
				}
				second, ok := graph[domain.PairKey{From: z.CurrencyID, To: y.CurrencyID}]
				if !ok {
					continue
				}
				rate := roundSignificant(first.Mul(second))
				if !rate.IsPositive() {
					continue
				}
				graph[key] = rate
				res.Edges = append(res.Edges, newAutoEdge(in.UserID, x, y, rate, effectiveDate,
					fmt.Sprintf("Auto: %s->%s via %s", x.Code, y.Code, z.Code)))
				res.Composed++
				break
			}
		}
	}

	return res
}

// magnitude is the power of ten just above the leading digit of d: 1 for 1.5, -6 for 0.0000001.
func magnitude(d decimal.Decimal) int32 {
	return int32(d.NumDigits()) + d.Exponent()
}

func roundSignificant(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return d
	}
	return d.Round(RateSignificantDigits - magnitude(d))
}

func reciprocal(r decimal.Decimal) decimal.Decimal {
	places := RateSignificantDigits + magnitude(r) + 1
	if places < 0 {
		places = 0
	}
	return roundSignificant(one.DivRound(r, places))
}

// AutoEdgeID returns the deterministic ID of the derived edge for a pair and date.
func AutoEdgeID(userID, fromCurrencyID, toCurrencyID string, effectiveDate time.Time) string {
	name := userID + "|" + fromCurrencyID + "|" + toCurrencyID + "|" + domain.NormalizeDate(effectiveDate).Format("2006-01-02")
	return uuid.NewSHA1(autoEdgeNamespace, []byte(name)).String()
}

func sortedUniverse(currencies []domain.Currency) []domain.Currency {
	seen := make(map[string]bool, len(currencies))
	universe := make([]domain.Currency, 0, len(currencies))
	for _, c := range currencies {
		if seen[c.CurrencyID] {
			continue
		}
		seen[c.CurrencyID] = true
		universe = append(universe, c)
	}
	sort.Slice(universe, func(i, j int) bool {
		if universe[i].Code != universe[j].Code {
			return universe[i].Code < universe[j].Code
		}
		return universe[i].CurrencyID < universe[j].CurrencyID
	})
	return universe
}

func pickAuthoritative(edges []domain.ExchangeRate, index map[string]domain.Currency) map[domain.PairKey]domain.ExchangeRate {
	picked := make(map[domain.PairKey]domain.ExchangeRate)
	for _, e := range edges {
		if !e.Provenance.IsAuthoritative() || e.FromCurrencyID == e.ToCurrencyID || !e.Rate.IsPositive() {
			continue
		}
		if _, ok := index[e.FromCurrencyID]; !ok {
			continue
		}
		if _, ok := index[e.ToCurrencyID]; !ok {
			continue
		}
		key := e.Pair()
		if current, ok := picked[key]; !ok || moreAuthoritative(e, current) {
			picked[key] = e
		}
	}
	return picked
}

// moreAuthoritative orders candidate facts for one pair: provenance first, then date.
func moreAuthoritative(a, b domain.ExchangeRate) bool {
	if a.Provenance.Priority() != b.Provenance.Priority() {
		return a.Provenance.Priority() > b.Provenance.Priority()
	}
	if !a.EffectiveDate.Equal(b.EffectiveDate) {
		return a.EffectiveDate.After(b.EffectiveDate)
	}
	if !a.LastUpdatedAt.Equal(b.LastUpdatedAt) {
		return a.LastUpdatedAt.After(b.LastUpdatedAt)
	}
	return a.ExchangeRateID > b.ExchangeRateID
}

func newAutoEdge(userID string, from, to domain.Currency, rate decimal.Decimal, effectiveDate time.Time, notes string) domain.ExchangeRate {
	return domain.ExchangeRate{
		ExchangeRateID: AutoEdgeID(userID, from.CurrencyID, to.CurrencyID, effectiveDate),
		UserID:         userID,
		FromCurrencyID: from.CurrencyID,
		ToCurrencyID:   to.CurrencyID,
		Rate:           rate,
		EffectiveDate:  effectiveDate,
		Provenance:     domain.ProvenanceAuto,
		Notes:          notes,
	}
}
