package services_test

import (
	"errors"
	"testing"
	"time"

	"github.com/SscSPs/mma_rates/internal/apperrors"
	"github.com/SscSPs/mma_rates/internal/core/domain"
	"github.com/SscSPs/mma_rates/internal/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type ExchangeRateServiceTestSuite struct {
	serviceSuite
}

func TestExchangeRateServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ExchangeRateServiceTestSuite))
}

func (suite *ExchangeRateServiceTestSuite) create(from, to, rate string, date time.Time) *domain.ExchangeRate {
	saved, err := suite.svcs.ExchangeRate.CreateExchangeRate(suite.ctx, dto.CreateExchangeRateRequest{
		FromCurrency:  from,
		ToCurrency:    to,
		Rate:          decimal.RequireFromString(rate),
		EffectiveDate: date,
	}, testUserID)
	suite.Require().NoError(err)
	return saved
}

func (suite *ExchangeRateServiceTestSuite) TestCreateExchangeRate_DerivesReverseOnly() {
	suite.enable("CNY", "USD", "EUR")
	saved := suite.create("cny", "USD", "0.14", rateDate.Add(9*time.Hour))

	suite.Equal(domain.ProvenanceUser, saved.Provenance)
	suite.Equal(rateDate, saved.EffectiveDate)
	suite.Equal(testUserID, saved.CreatedBy)

	auto := suite.listByProvenance(domain.ProvenanceAuto)
	suite.Require().Len(auto, 1)
	reverse := findEdge(auto, gid("USD"), gid("CNY"))
	suite.Require().NotNil(reverse)
	suite.True(reverse.Rate.Equal(decimal.RequireFromString("7.1428571428571428571")), reverse.Rate.String())
	suite.Equal(rateDate, reverse.EffectiveDate)

	res := suite.svcs.Conversion.Convert(suite.ctx, testUserID, decimal.NewFromInt(100), gid("EUR"), gid("USD"), time.Time{})
	suite.False(res.Success)
	suite.Equal(domain.ConversionGapMessage, res.Error)
}

func (suite *ExchangeRateServiceTestSuite) TestCreateExchangeRate_ComposesThroughSharedCurrency() {
	suite.enable("USD", "EUR", "GBP")
	suite.create("USD", "EUR", "0.9", rateDate)
	suite.create("USD", "GBP", "0.8", rateDate)

	auto := suite.listByProvenance(domain.ProvenanceAuto)
	// EUR->USD and GBP->USD by reversal, EUR<->GBP through USD.
	suite.Len(auto, 4)
	suite.NotNil(findEdge(auto, gid("EUR"), gid("GBP")))
	suite.NotNil(findEdge(auto, gid("GBP"), gid("EUR")))
	gbpUSD := findEdge(auto, gid("GBP"), gid("USD"))
	suite.Require().NotNil(gbpUSD)
	suite.True(gbpUSD.Rate.Equal(decimal.RequireFromString("1.25")))
}

func (suite *ExchangeRateServiceTestSuite) TestCreateExchangeRate_TinyComposedRateStaysConvertible() {
	suite.enable("JPY", "USD", "EUR")
	suite.create("JPY", "USD", "0.0000001", rateDate)
	suite.create("EUR", "USD", "10000000", rateDate)

	for _, e := range suite.listByProvenance(domain.ProvenanceAuto) {
		suite.Truef(e.Rate.IsPositive(), "%s->%s = %s", e.FromCurrencyID, e.ToCurrencyID, e.Rate)
	}

	res := suite.svcs.Conversion.Convert(suite.ctx, testUserID, decimal.NewFromInt(1000000), gid("JPY"), gid("EUR"), time.Time{})
	suite.Require().True(res.Success, res.Error)
	suite.True(decimal.RequireFromString("0.00000000000001").Equal(res.Rate), res.Rate.String())
	suite.True(decimal.RequireFromString("0.00000001").Equal(res.ConvertedAmount), res.ConvertedAmount.String())
}

func (suite *ExchangeRateServiceTestSuite) TestCreateExchangeRate_Validation() {
	suite.enable("USD")

	_, err := suite.svcs.ExchangeRate.CreateExchangeRate(suite.ctx, dto.CreateExchangeRateRequest{
		FromCurrency: "USD", ToCurrency: "EUR", Rate: decimal.RequireFromString("0.9"), EffectiveDate: rateDate,
	}, testUserID)
	suite.ErrorIs(err, apperrors.ErrValidation, "EUR is not enabled")

	_, err = suite.svcs.ExchangeRate.CreateExchangeRate(suite.ctx, dto.CreateExchangeRateRequest{
		FromCurrency: "USD", ToCurrency: "usd", Rate: decimal.RequireFromString("1"), EffectiveDate: rateDate,
	}, testUserID)
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = suite.svcs.ExchangeRate.CreateExchangeRate(suite.ctx, dto.CreateExchangeRateRequest{
		FromCurrency: "USD", ToCurrency: "EUR", Rate: decimal.Zero, EffectiveDate: rateDate,
	}, testUserID)
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = suite.svcs.ExchangeRate.CreateExchangeRate(suite.ctx, dto.CreateExchangeRateRequest{
		FromCurrency: "USD", ToCurrency: "NOPE", Rate: decimal.RequireFromString("2"), EffectiveDate: rateDate,
	}, testUserID)
	suite.ErrorIs(err, apperrors.ErrIdentityNotFound)

	suite.Empty(suite.listByProvenance(""))
}

func (suite *ExchangeRateServiceTestSuite) TestCreateExchangeRate_DuplicateKey() {
	suite.enable("USD", "EUR")
	suite.create("USD", "EUR", "0.9", rateDate)

	_, err := suite.svcs.ExchangeRate.CreateExchangeRate(suite.ctx, dto.CreateExchangeRateRequest{
		FromCurrency: "USD", ToCurrency: "EUR", Rate: decimal.RequireFromString("0.91"), EffectiveDate: rateDate,
	}, testUserID)
	suite.ErrorIs(err, apperrors.ErrDuplicate)
}

func (suite *ExchangeRateServiceTestSuite) TestCreateExchangeRate_StorageFailureRollsBackEdge() {
	suite.enable("USD", "EUR")
	suite.store.FailNextReplace(0, errors.New("disk full"))

	_, err := suite.svcs.ExchangeRate.CreateExchangeRate(suite.ctx, dto.CreateExchangeRateRequest{
		FromCurrency: "USD", ToCurrency: "EUR", Rate: decimal.RequireFromString("0.9"), EffectiveDate: rateDate,
	}, testUserID)
	suite.ErrorIs(err, apperrors.ErrDerivationStorage)
	suite.Empty(suite.listByProvenance(""), "the user edge must not survive a failed derivation")
}

func (suite *ExchangeRateServiceTestSuite) TestUpdateExchangeRate_RegeneratesReverse() {
	suite.enable("USD", "EUR")
	saved := suite.create("EUR", "USD", "1.1", rateDate)

	newRate := decimal.RequireFromString("1.25")
	newDate := rateDate.AddDate(0, 0, 1)
	notes := "corrected"
	updated, err := suite.svcs.ExchangeRate.UpdateExchangeRate(suite.ctx, saved.ExchangeRateID, dto.UpdateExchangeRateRequest{
		Rate: &newRate, EffectiveDate: &newDate, Notes: &notes,
	}, testUserID)
	suite.Require().NoError(err)
	suite.Equal(saved.ExchangeRateID, updated.ExchangeRateID)
	suite.Equal("corrected", updated.Notes)

	auto := suite.listByProvenance(domain.ProvenanceAuto)
	suite.Require().Len(auto, 1)
	suite.True(auto[0].Rate.Equal(decimal.RequireFromString("0.8")))
	suite.Equal(newDate, auto[0].EffectiveDate)
}

func (suite *ExchangeRateServiceTestSuite) TestUpdateExchangeRate_RejectsDerivedRate() {
	suite.enable("USD", "EUR")
	suite.create("EUR", "USD", "1.1", rateDate)
	auto := suite.listByProvenance(domain.ProvenanceAuto)
	suite.Require().Len(auto, 1)

	newRate := decimal.RequireFromString("2")
	_, err := suite.svcs.ExchangeRate.UpdateExchangeRate(suite.ctx, auto[0].ExchangeRateID, dto.UpdateExchangeRateRequest{Rate: &newRate}, testUserID)
	suite.ErrorIs(err, apperrors.ErrValidation)

	err = suite.svcs.ExchangeRate.DeleteExchangeRate(suite.ctx, auto[0].ExchangeRateID, testUserID)
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = suite.svcs.ExchangeRate.UpdateExchangeRate(suite.ctx, "missing", dto.UpdateExchangeRateRequest{Rate: &newRate}, testUserID)
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *ExchangeRateServiceTestSuite) TestDeleteExchangeRate_DropsDerivedRates() {
	suite.enable("USD", "EUR")
	saved := suite.create("EUR", "USD", "1.1", rateDate)

	suite.Require().NoError(suite.svcs.ExchangeRate.DeleteExchangeRate(suite.ctx, saved.ExchangeRateID, testUserID))
	suite.Empty(suite.listByProvenance(""))

	err := suite.svcs.ExchangeRate.DeleteExchangeRate(suite.ctx, saved.ExchangeRateID, otherUserID)
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *ExchangeRateServiceTestSuite) TestRegenerateAutoRates_IsIdempotent() {
	suite.enable("USD", "EUR", "GBP", "JPY")
	suite.create("USD", "EUR", "0.9", rateDate)
	suite.create("GBP", "USD", "1.27", rateDate)
	suite.create("JPY", "GBP", "0.0053", rateDate)

	first, err := suite.svcs.ExchangeRate.RegenerateAutoRates(suite.ctx, testUserID, rateDate)
	suite.Require().NoError(err)
	before := suite.listByProvenance(domain.ProvenanceAuto)

	second, err := suite.svcs.ExchangeRate.RegenerateAutoRates(suite.ctx, testUserID, rateDate)
	suite.Require().NoError(err)
	after := suite.listByProvenance(domain.ProvenanceAuto)

	suite.Equal(first, second)
	suite.Equal(len(before), first)
	suite.Equal(before, after)
}

func (suite *ExchangeRateServiceTestSuite) TestListAndGetExchangeRate() {
	suite.enable("USD", "EUR")
	suite.create("USD", "EUR", "0.9", rateDate)
	suite.create("USD", "EUR", "0.92", rateDate.AddDate(0, 0, 2))

	got, err := suite.svcs.ExchangeRate.GetExchangeRate(suite.ctx, testUserID, "USD", "EUR", rateDate.AddDate(0, 0, 1))
	suite.Require().NoError(err)
	suite.True(got.Rate.Equal(decimal.RequireFromString("0.9")))

	latest, err := suite.svcs.ExchangeRate.GetExchangeRate(suite.ctx, testUserID, "USD", "EUR", time.Time{})
	suite.Require().NoError(err)
	suite.True(latest.Rate.Equal(decimal.RequireFromString("0.92")))

	_, err = suite.svcs.ExchangeRate.GetExchangeRate(suite.ctx, testUserID, "USD", "EUR", rateDate.AddDate(0, 0, -1))
	suite.ErrorIs(err, apperrors.ErrNotFound)

	suite.Len(suite.listByProvenance(domain.ProvenanceUser), 2)
	_, err = suite.svcs.ExchangeRate.ListExchangeRates(suite.ctx, testUserID, domain.Provenance("MANUAL"))
	suite.ErrorIs(err, apperrors.ErrValidation)
}
