package mapping

import (
	"github.com/SscSPs/mma_rates/internal/core/domain"
	"github.com/SscSPs/mma_rates/internal/models"
)

// ToModelExchangeRate converts a domain ExchangeRate to a model ExchangeRate
func ToModelExchangeRate(d domain.ExchangeRate) models.ExchangeRate {
	return models.ExchangeRate{
		ExchangeRateID: d.ExchangeRateID,
		UserID:         d.UserID,
		FromCurrencyID: d.FromCurrencyID,
		ToCurrencyID:   d.ToCurrencyID,
		Rate:           d.Rate,
		EffectiveDate:  domain.NormalizeDate(d.EffectiveDate),
		Provenance:     string(d.Provenance),
		Notes:          d.Notes,
		AuditFields:    ToModelAuditFields(d.AuditFields),
	}
}

// ToDomainExchangeRate converts a model ExchangeRate to a domain ExchangeRate
func ToDomainExchangeRate(m models.ExchangeRate) domain.ExchangeRate {
	return domain.ExchangeRate{
		ExchangeRateID: m.ExchangeRateID,
		UserID:         m.UserID,
		FromCurrencyID: m.FromCurrencyID,
		ToCurrencyID:   m.ToCurrencyID,
		Rate:           m.Rate,
		EffectiveDate:  domain.NormalizeDate(m.EffectiveDate),
		Provenance:     domain.Provenance(m.Provenance),
		Notes:          m.Notes,
		AuditFields:    ToDomainAuditFields(m.AuditFields),
	}
}

// ToDomainExchangeRateSlice converts model rows to domain edges.
func ToDomainExchangeRateSlice(ms []models.ExchangeRate) []domain.ExchangeRate {
	ds := make([]domain.ExchangeRate, len(ms))
	for i, m := range ms {
		ds[i] = ToDomainExchangeRate(m)
	}
	return ds
}
