package services_test

import (
	"errors"
	"testing"

	"github.com/SscSPs/mma_rates/internal/apperrors"
	"github.com/SscSPs/mma_rates/internal/core/domain"
	"github.com/SscSPs/mma_rates/internal/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type MarketRateServiceTestSuite struct {
	serviceSuite
}

func TestMarketRateServiceTestSuite(t *testing.T) {
	suite.Run(t, new(MarketRateServiceTestSuite))
}

func (suite *MarketRateServiceTestSuite) snapshot() *domain.MarketRateSnapshot {
	return &domain.MarketRateSnapshot{
		Base: "USD",
		Date: rateDate,
		Rates: map[string]decimal.Decimal{
			"EUR": decimal.RequireFromString("0.9"),
			"GBP": decimal.RequireFromString("0.8"),
			"JPY": decimal.RequireFromString("150"),
			"CHF": decimal.RequireFromString("0.88"), // not enabled
		},
	}
}

func (suite *MarketRateServiceTestSuite) TestRefreshMarketRates_WritesApiEdgesAndDerives() {
	_, err := suite.svcs.EnabledCurrency.SetBaseCurrency(suite.ctx, testUserID, "USD")
	suite.Require().NoError(err)
	suite.enable("EUR", "GBP", "JPY")
	_, err = suite.svcs.ExchangeRate.CreateExchangeRate(suite.ctx, dto.CreateExchangeRateRequest{
		FromCurrency: "USD", ToCurrency: "GBP", Rate: decimal.RequireFromString("0.79"), EffectiveDate: rateDate,
	}, testUserID)
	suite.Require().NoError(err)

	suite.provider.On("FetchLatest", mock.Anything, "USD").Return(suite.snapshot(), nil).Once()

	summary, err := suite.svcs.MarketRate.RefreshMarketRates(suite.ctx, testUserID)
	suite.Require().NoError(err)
	suite.Equal("USD", summary.Base)
	suite.Equal(rateDate, summary.Date)
	suite.Equal(2, summary.Written)
	suite.Equal([]string{"GBP"}, summary.Skipped, "the USER rate for GBP wins")

	api := suite.listByProvenance(domain.ProvenanceAPI)
	suite.Len(api, 2)
	user := suite.listByProvenance(domain.ProvenanceUser)
	suite.Require().Len(user, 1)
	suite.True(user[0].Rate.Equal(decimal.RequireFromString("0.79")))

	auto := suite.listByProvenance(domain.ProvenanceAuto)
	suite.Equal(summary.Derived, len(auto))
	// 4 currencies, 3 authoritative edges: 3 reversed and the 6 pairs among EUR, GBP, JPY.
	suite.Equal(9, summary.Derived)
	for _, e := range auto {
		suite.Equal(domain.NormalizeDate(testNow), e.EffectiveDate)
	}

	// Refreshing again refreshes the same API rows in place.
	suite.provider.On("FetchLatest", mock.Anything, "USD").Return(suite.snapshot(), nil).Once()
	_, err = suite.svcs.MarketRate.RefreshMarketRates(suite.ctx, testUserID)
	suite.Require().NoError(err)
	again := suite.listByProvenance(domain.ProvenanceAPI)
	suite.Equal(api[0].ExchangeRateID, again[0].ExchangeRateID)
	suite.Len(again, 2)
}

func (suite *MarketRateServiceTestSuite) TestRefreshMarketRates_ProviderFailureKeepsEdges() {
	_, err := suite.svcs.EnabledCurrency.SetBaseCurrency(suite.ctx, testUserID, "USD")
	suite.Require().NoError(err)
	suite.enable("EUR")
	_, err = suite.svcs.ExchangeRate.CreateExchangeRate(suite.ctx, dto.CreateExchangeRateRequest{
		FromCurrency: "USD", ToCurrency: "EUR", Rate: decimal.RequireFromString("0.91"), EffectiveDate: rateDate,
	}, testUserID)
	suite.Require().NoError(err)
	before := suite.listByProvenance("")

	suite.provider.On("FetchLatest", mock.Anything, "USD").Return(nil, errors.New("timeout")).Once()
	_, err = suite.svcs.MarketRate.RefreshMarketRates(suite.ctx, testUserID)
	suite.ErrorIs(err, apperrors.ErrUpstream)
	suite.Equal(before, suite.listByProvenance(""))
}

func (suite *MarketRateServiceTestSuite) TestRefreshMarketRates_StorageFailureRollsBack() {
	_, err := suite.svcs.EnabledCurrency.SetBaseCurrency(suite.ctx, testUserID, "USD")
	suite.Require().NoError(err)
	suite.enable("EUR")

	suite.provider.On("FetchLatest", mock.Anything, "USD").Return(suite.snapshot(), nil).Once()
	suite.store.FailNextReplace(0, errors.New("disk full"))
	_, err = suite.svcs.MarketRate.RefreshMarketRates(suite.ctx, testUserID)
	suite.ErrorIs(err, apperrors.ErrDerivationStorage)
	suite.Empty(suite.listByProvenance(domain.ProvenanceAPI))
}

func (suite *MarketRateServiceTestSuite) TestRefreshMarketRates_RequiresBaseCurrency() {
	_, err := suite.svcs.MarketRate.RefreshMarketRates(suite.ctx, testUserID)
	suite.ErrorIs(err, apperrors.ErrValidation)
}
