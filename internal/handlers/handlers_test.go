package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/mma_rates/internal/core/domain"
	portssvc "github.com/SscSPs/mma_rates/internal/core/ports/services"
	"github.com/SscSPs/mma_rates/internal/core/services"
	"github.com/SscSPs/mma_rates/internal/dto"
	"github.com/SscSPs/mma_rates/internal/handlers"
	"github.com/SscSPs/mma_rates/internal/middleware"
	"github.com/SscSPs/mma_rates/internal/platform/config"
	"github.com/SscSPs/mma_rates/internal/repositories/memory"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const testUserID = "5b0c1e2d-3f4a-4b5c-8d6e-7f8091a2b3c4"

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

// --- Test Suite ---
type HandlersTestSuite struct {
	suite.Suite
	router    *gin.Engine
	provider  *MockMarketRateProvider
	services  *portssvc.ServiceContainer
	jwtSecret string
}

// generateTestToken creates a signed JWT for the given user.
func (suite *HandlersTestSuite) generateTestToken(userID string) string {
	claims := jwt.RegisteredClaims{
		Issuer:    "mma-test",
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(suite.jwtSecret))
	suite.Require().NoError(err)
	return signed
}

func (suite *HandlersTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.jwtSecret = "test-secret-key-that-is-long-enough"

	store := memory.NewStore()
	suite.Require().NoError(memory.SeedGlobalCurrencies(context.Background(), memory.NewCurrencyRepository(store)))

	suite.provider = new(MockMarketRateProvider)
	suite.services = services.NewServiceContainer(store.Repositories(), services.WithMarketRateProvider(suite.provider))

	cfg := &config.Config{JWTSecret: suite.jwtSecret, IsProduction: true}
	suite.router = gin.New()
	suite.router.Use(middleware.StructuredLoggingMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil))))
	handlers.RegisterRoutes(suite.router, cfg, suite.services)
}

func (suite *HandlersTestSuite) TearDownTest() {
	suite.provider.AssertExpectations(suite.T())
}

func (suite *HandlersTestSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+suite.generateTestToken(testUserID))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlersTestSuite) decode(w *httptest.ResponseRecorder, v any) {
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// seedRates enables USD, EUR and CNY, sets USD as base and records USD→EUR = 0.9.
func (suite *HandlersTestSuite) seedRates() dto.ExchangeRateResponse {
	for _, code := range []string{"USD", "EUR", "CNY"} {
		w := suite.do(http.MethodPost, "/api/v1/enabled-currencies", dto.CurrencyRefRequest{Currency: code})
		suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	}
	w := suite.do(http.MethodPut, "/api/v1/settings/base-currency", dto.CurrencyRefRequest{Currency: "USD"})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = suite.do(http.MethodPost, "/api/v1/exchange-rates", dto.CreateExchangeRateRequest{
		FromCurrency:  "USD",
		ToCurrency:    "EUR",
		Rate:          decimal.RequireFromString("0.9"),
		EffectiveDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var created dto.ExchangeRateResponse
	suite.decode(w, &created)
	return created
}

// --- Test Cases ---

func (suite *HandlersTestSuite) TestHealth() {
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *HandlersTestSuite) TestRequiresAuthentication() {
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/currencies", nil))
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestCurrencies_CreateShadowsGlobalAndResolves() {
	w := suite.do(http.MethodPost, "/api/v1/currencies", dto.CreateCurrencyRequest{Code: "USD", Symbol: "$", Name: "My Dollar"})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var created dto.CurrencyResponse
	suite.decode(w, &created)
	suite.True(created.IsCustom)
	suite.Equal(2, created.DecimalPlaces)

	w = suite.do(http.MethodGet, "/api/v1/currencies/resolve/USD", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var resolved dto.ResolveCurrencyResponse
	suite.decode(w, &resolved)
	suite.Equal(created.CurrencyID, resolved.Currency.CurrencyID)

	w = suite.do(http.MethodPost, "/api/v1/currencies", dto.CreateCurrencyRequest{Code: "USD", Symbol: "$", Name: "Again"})
	suite.Equal(http.StatusConflict, w.Code)

	w = suite.do(http.MethodDelete, "/api/v1/currencies/"+created.CurrencyID, nil)
	suite.Equal(http.StatusNoContent, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/currencies/resolve/USD", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.decode(w, &resolved)
	suite.Equal(memory.GlobalCurrencyID("USD"), resolved.Currency.CurrencyID)
}

func (suite *HandlersTestSuite) TestCurrencies_InvalidCode() {
	w := suite.do(http.MethodPost, "/api/v1/currencies", dto.CreateCurrencyRequest{Code: "u$", Symbol: "$", Name: "Bad"})
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/currencies/resolve/NOPE", nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestBaseCurrency_NotSet() {
	w := suite.do(http.MethodGet, "/api/v1/settings/base-currency", nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestEnabledCurrencies_DisableBaseRefused() {
	suite.seedRates()

	w := suite.do(http.MethodGet, "/api/v1/enabled-currencies", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var enabled []dto.CurrencyResponse
	suite.decode(w, &enabled)
	suite.Require().Len(enabled, 3)
	suite.Equal("USD", enabled[0].Code)

	w = suite.do(http.MethodDelete, "/api/v1/enabled-currencies/USD", nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodDelete, "/api/v1/enabled-currencies/CNY", nil)
	suite.Equal(http.StatusNoContent, w.Code)
}

func (suite *HandlersTestSuite) TestExchangeRates_CreateDerivesReverse() {
	suite.seedRates()

	w := suite.do(http.MethodGet, "/api/v1/exchange-rates/EUR/USD?date=2024-03-15", nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var rate dto.ExchangeRateResponse
	suite.decode(w, &rate)
	suite.Equal(string(domain.ProvenanceAuto), rate.Provenance)
	suite.True(decimal.RequireFromString("1.1111111111111111111").Equal(rate.Rate), rate.Rate.String())

	w = suite.do(http.MethodGet, "/api/v1/exchange-rates?provenance=AUTO", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var autos []dto.ExchangeRateResponse
	suite.decode(w, &autos)
	suite.Require().Len(autos, 1)

	w = suite.do(http.MethodDelete, "/api/v1/exchange-rates/"+autos[0].ExchangeRateID, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlersTestSuite) TestExchangeRates_Validation() {
	suite.seedRates()

	w := suite.do(http.MethodPost, "/api/v1/exchange-rates", dto.CreateExchangeRateRequest{
		FromCurrency: "USD", ToCurrency: "EUR", Rate: decimal.RequireFromString("0.95"),
		EffectiveDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	suite.Equal(http.StatusConflict, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/exchange-rates", dto.CreateExchangeRateRequest{
		FromCurrency: "USD", ToCurrency: "USD", Rate: decimal.NewFromInt(1),
		EffectiveDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/exchange-rates?provenance=GUESS", nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/exchange-rates/USD/EUR?date=10-03-2024", nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/exchange-rates/USD/CNY", nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestExchangeRates_UpdateAndDelete() {
	created := suite.seedRates()

	newRate := decimal.RequireFromString("0.8")
	w := suite.do(http.MethodPut, "/api/v1/exchange-rates/"+created.ExchangeRateID, dto.UpdateExchangeRateRequest{Rate: &newRate})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = suite.do(http.MethodGet, "/api/v1/exchange-rates/EUR/USD?date=2024-03-15", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var rate dto.ExchangeRateResponse
	suite.decode(w, &rate)
	suite.True(decimal.RequireFromString("1.25").Equal(rate.Rate), rate.Rate.String())

	w = suite.do(http.MethodDelete, "/api/v1/exchange-rates/"+created.ExchangeRateID, nil)
	suite.Equal(http.StatusNoContent, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/exchange-rates/EUR/USD?date=2024-03-15", nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestExchangeRates_Regenerate() {
	suite.seedRates()

	w := suite.do(http.MethodPost, "/api/v1/exchange-rates/regenerate", dto.RegenerateRatesRequest{})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var resp dto.RegenerateRatesResponse
	suite.decode(w, &resp)
	suite.Equal(1, resp.Derived)
}

func (suite *HandlersTestSuite) TestExchangeRates_RefreshProviderFailure() {
	suite.seedRates()
	suite.provider.On("FetchLatest", mock.Anything, "USD").Return(nil, errors.New("connection refused")).Once()

	w := suite.do(http.MethodPost, "/api/v1/exchange-rates/refresh", nil)
	suite.Equal(http.StatusBadGateway, w.Code)
}

func (suite *HandlersTestSuite) TestExchangeRates_Refresh() {
	suite.seedRates()
	suite.provider.On("FetchLatest", mock.Anything, "USD").Return(&domain.MarketRateSnapshot{
		Base:  "USD",
		Date:  time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		Rates: map[string]decimal.Decimal{"EUR": decimal.RequireFromString("0.91"), "CNY": decimal.RequireFromString("7.2")},
	}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/exchange-rates/refresh", nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var summary domain.MarketRefreshSummary
	suite.decode(w, &summary)
	suite.Equal("USD", summary.Base)
	suite.Equal(2, summary.Written)
	suite.Empty(summary.Skipped)
}

func (suite *HandlersTestSuite) TestConversions_SingleAndGap() {
	suite.seedRates()

	w := suite.do(http.MethodGet, "/api/v1/conversions?amount=100&from=EUR&to=USD&date=2024-03-15", nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var res dto.ConversionResponse
	suite.decode(w, &res)
	suite.True(res.Success)
	suite.Equal("111.11", res.DisplayAmount)
	suite.Equal(string(domain.ProvenanceAuto), res.Provenance)

	w = suite.do(http.MethodGet, "/api/v1/conversions?amount=50&from=CNY&date=2024-03-15", nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.decode(w, &res)
	suite.False(res.Success)
	suite.Equal(domain.ConversionGapMessage, res.Error)
	suite.True(decimal.NewFromInt(50).Equal(res.ConvertedAmount))
	suite.Equal("50.00", res.DisplayAmount)

	w = suite.do(http.MethodGet, "/api/v1/conversions?amount=ten&from=EUR", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlersTestSuite) TestConversions_Batch() {
	suite.seedRates()
	asOf := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	w := suite.do(http.MethodPost, "/api/v1/conversions/batch", dto.BatchConversionRequest{
		Items: []dto.BatchConversionItem{
			{Amount: decimal.NewFromInt(100), Currency: "EUR"},
			{Amount: decimal.NewFromInt(50), Currency: "CNY"},
			{Amount: decimal.NewFromInt(10), Currency: "USD"},
			{Amount: decimal.NewFromInt(5), Currency: "NOPE"},
		},
		Date: &asOf,
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var batch dto.BatchConversionResponse
	suite.decode(w, &batch)

	suite.Equal(memory.GlobalCurrencyID("USD"), batch.ToCurrencyID)
	suite.Require().Len(batch.Items, 4)
	suite.Equal(2, batch.ConvertedCount)
	suite.Equal(2, batch.FailedCount)
	suite.True(batch.HasGaps)
	suite.True(decimal.RequireFromString("176.11111111111111111").Equal(batch.Total), batch.Total.String())
	suite.Equal("176.11", batch.DisplayTotal)

	unknown := batch.Items[3]
	suite.Equal("NOPE", unknown.Currency)
	suite.False(unknown.Success)
	suite.Equal(domain.ConversionUnknownCurrencyMessage, unknown.Error)
	suite.True(decimal.NewFromInt(5).Equal(unknown.ConvertedAmount))
}

// --- Run Test Suite ---
func TestHandlers(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
