package mapping

import (
	"database/sql"

	"github.com/SscSPs/mma_rates/internal/core/domain"
	"github.com/SscSPs/mma_rates/internal/models"
)

// ToModelCurrency converts a domain Currency to a model Currency
func ToModelCurrency(d domain.Currency) models.Currency {
	m := models.Currency{
		CurrencyID:    d.CurrencyID,
		Code:          d.Code,
		Symbol:        d.Symbol,
		Name:          d.Name,
		DecimalPlaces: d.DecimalPlaces,
		AuditFields:   ToModelAuditFields(d.AuditFields),
	}
	if owner, ok := d.Scope.OwnerID(); ok {
		m.OwnerUserID = sql.NullString{String: owner, Valid: true}
	}
	return m
}

// ToDomainCurrency converts a model Currency to a domain Currency
func ToDomainCurrency(m models.Currency) domain.Currency {
	scope := domain.GlobalScope()
	if m.OwnerUserID.Valid && m.OwnerUserID.String != "" {
		scope = domain.OwnedBy(m.OwnerUserID.String)
	}
	return domain.Currency{
		CurrencyID:    m.CurrencyID,
		Code:          m.Code,
		Symbol:        m.Symbol,
		Name:          m.Name,
		DecimalPlaces: m.DecimalPlaces,
		Scope:         scope,
		AuditFields:   ToDomainAuditFields(m.AuditFields),
	}
}

// ToDomainCurrencySlice converts a slice of model Currencies to a slice of domain Currencies
func ToDomainCurrencySlice(ms []models.Currency) []domain.Currency {
	ds := make([]domain.Currency, len(ms))
	for i, m := range ms {
		ds[i] = ToDomainCurrency(m)
	}
	return ds
}

func ToModelEnabledCurrency(d domain.EnabledCurrency) models.EnabledCurrency {
	return models.EnabledCurrency{
		UserID:     d.UserID,
		CurrencyID: d.CurrencyID,
		Active:     d.Active,
		SortOrder:  d.Order,
	}
}

func ToDomainEnabledCurrency(m models.EnabledCurrency) domain.EnabledCurrency {
	return domain.EnabledCurrency{
		UserID:     m.UserID,
		CurrencyID: m.CurrencyID,
		Active:     m.Active,
		Order:      m.SortOrder,
	}
}

func ToDomainUserSettings(m models.UserSettings) domain.UserSettings {
	return domain.UserSettings{UserID: m.UserID, BaseCurrencyID: m.BaseCurrencyID.String}
}

func ToModelUserSettings(d domain.UserSettings) models.UserSettings {
	return models.UserSettings{
		UserID:         d.UserID,
		BaseCurrencyID: sql.NullString{String: d.BaseCurrencyID, Valid: d.BaseCurrencyID != ""},
	}
}
