package services_test

import (
	"context"
	"time"

	"github.com/SscSPs/mma_rates/internal/core/domain"
	portssvc "github.com/SscSPs/mma_rates/internal/core/ports/services"
	"github.com/SscSPs/mma_rates/internal/core/services"
	"github.com/SscSPs/mma_rates/internal/repositories/memory"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const (
	testUserID  = "0d7f3a8e-1b2c-4d5e-8f90-a1b2c3d4e5f6"
	otherUserID = "9a8b7c6d-5e4f-4a3b-9c2d-1e0f9a8b7c6d"
)

var (
	testNow  = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	rateDate = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
)

// --- Mock MarketRateProvider ---
type MockMarketRateProvider struct {
	mock.Mock
}

func (m *MockMarketRateProvider) FetchLatest(ctx context.Context, baseCode string) (*domain.MarketRateSnapshot, error) {
	args := m.Called(ctx, baseCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MarketRateSnapshot), args.Error(1)
}

// --- Mock CurrencyUsageGuard ---
type MockCurrencyUsageGuard struct {
	mock.Mock
}

func (m *MockCurrencyUsageGuard) IsCurrencyInUse(ctx context.Context, userID, currencyID string) (bool, error) {
	args := m.Called(ctx, userID, currencyID)
	return args.Bool(0), args.Error(1)
}

// serviceSuite wires every service over a fresh in-memory store seeded with global currencies.
type serviceSuite struct {
	suite.Suite
	ctx       context.Context
	store     *memory.Store
	svcs      *portssvc.ServiceContainer
	provider  *MockMarketRateProvider
	guard     *MockCurrencyUsageGuard
	clockedFn func() time.Time
}

func (s *serviceSuite) SetupTest() {
	s.ctx = context.Background()
	s.clockedFn = func() time.Time { return testNow }
	s.store = memory.NewStore(memory.WithClock(s.clockedFn))
	s.Require().NoError(memory.SeedGlobalCurrencies(s.ctx, memory.NewCurrencyRepository(s.store)))

	s.provider = new(MockMarketRateProvider)
	s.guard = new(MockCurrencyUsageGuard)
	repos := s.store.Repositories()
	s.svcs = services.NewServiceContainer(repos,
		services.WithMarketRateProvider(s.provider),
		services.WithUsageGuard(s.guard),
	)
	// Services under test use a fixed clock.
	s.svcs.ExchangeRate = services.NewExchangeRateService(repos.ExchangeRateRepo, repos.UnitOfWork, s.svcs.Currency,
		services.WithExchangeRateClock(s.clockedFn))
	s.svcs.Conversion = services.NewConversionService(repos.ExchangeRateRepo, repos.CurrencyRepo, repos.UserSettingsRepo,
		services.WithConversionClock(s.clockedFn))
	s.svcs.MarketRate = services.NewMarketRateService(s.provider, repos.CurrencyRepo, repos.UserSettingsRepo, repos.UnitOfWork,
		services.WithMarketRateClock(s.clockedFn))
}

func (s *serviceSuite) TearDownTest() {
	s.provider.AssertExpectations(s.T())
	s.guard.AssertExpectations(s.T())
}

func (s *serviceSuite) enable(codes ...string) {
	for _, code := range codes {
		_, err := s.svcs.EnabledCurrency.EnableCurrency(s.ctx, testUserID, code)
		s.Require().NoError(err)
	}
}

func (s *serviceSuite) listByProvenance(p domain.Provenance) []domain.ExchangeRate {
	edges, err := s.svcs.ExchangeRate.ListExchangeRates(s.ctx, testUserID, p)
	s.Require().NoError(err)
	return edges
}

func gid(code string) string {
	return memory.GlobalCurrencyID(code)
}

func findEdge(edges []domain.ExchangeRate, from, to string) *domain.ExchangeRate {
	for i := range edges {
		if edges[i].FromCurrencyID == from && edges[i].ToCurrencyID == to {
			return &edges[i]
		}
	}
	return nil
}

