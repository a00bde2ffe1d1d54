package pgsql

import (
	portsrepo "github.com/SscSPs/mma_rates/internal/core/ports/repositories"
)

func NewRepositoryProvider(dbPool DBPool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		CurrencyRepo:        newPgxCurrencyRepository(dbPool),
		EnabledCurrencyRepo: newPgxEnabledCurrencyRepository(dbPool),
		ExchangeRateRepo:    newPgxExchangeRateRepository(dbPool),
		UserSettingsRepo:    newPgxUserSettingsRepository(dbPool),
		UnitOfWork:          newPgxUnitOfWork(dbPool),
	}
}
