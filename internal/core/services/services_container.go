package services

import (
	"github.com/SscSPs/mma_rates/internal/core/ports"
	portsrepo "github.com/SscSPs/mma_rates/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/mma_rates/internal/core/ports/services"
)

// ContainerOption configures optional collaborators of the service container.
type ContainerOption func(*containerDeps)

type containerDeps struct {
	provider   ports.MarketRateProvider
	usageGuard ports.CurrencyUsageGuard
}

// WithMarketRateProvider wires the external market-rate source.
func WithMarketRateProvider(provider ports.MarketRateProvider) ContainerOption {
	return func(d *containerDeps) {
		d.provider = provider
	}
}

// WithUsageGuard wires the check for currencies referenced by transactions.
func WithUsageGuard(guard ports.CurrencyUsageGuard) ContainerOption {
	return func(d *containerDeps) {
		d.usageGuard = guard
	}
}

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(repos portsrepo.RepositoryProvider, options ...ContainerOption) *portssvc.ServiceContainer {
	deps := &containerDeps{}
	for _, option := range options {
		option(deps)
	}

	container := &portssvc.ServiceContainer{}

	// The resolver comes first since every other service depends on it
	container.Currency = NewCurrencyService(
		repos.CurrencyRepo,
		WithCurrencyUsageRepositories(repos.EnabledCurrencyRepo, repos.UserSettingsRepo, repos.ExchangeRateRepo),
	)

	enabledOpts := []EnabledCurrencyServiceOption{}
	if deps.usageGuard != nil {
		enabledOpts = append(enabledOpts, WithCurrencyUsageGuard(deps.usageGuard))
	}
	container.EnabledCurrency = NewEnabledCurrencyService(
		container.Currency,
		repos.EnabledCurrencyRepo,
		repos.UserSettingsRepo,
		repos.ExchangeRateRepo,
		enabledOpts...,
	)

	container.ExchangeRate = NewExchangeRateService(repos.ExchangeRateRepo, repos.UnitOfWork, container.Currency)
	container.Conversion = NewConversionService(repos.ExchangeRateRepo, repos.CurrencyRepo, repos.UserSettingsRepo)
	container.MarketRate = NewMarketRateService(deps.provider, repos.CurrencyRepo, repos.UserSettingsRepo, repos.UnitOfWork)

	return container
}
