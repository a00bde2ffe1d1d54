package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/SscSPs/mma_rates/internal/core/domain"
	portssvc "github.com/SscSPs/mma_rates/internal/core/ports/services"
	"github.com/SscSPs/mma_rates/internal/dto"
	"github.com/SscSPs/mma_rates/internal/middleware"
	"github.com/gin-gonic/gin"
)

const dateParamLayout = "2006-01-02"

// exchangeRateHandler handles HTTP requests related to exchange rates.
type exchangeRateHandler struct {
	exchangeRateService portssvc.ExchangeRateSvcFacade
	marketRateService   portssvc.MarketRateSvcFacade
}

// newExchangeRateHandler creates a new exchangeRateHandler.
func newExchangeRateHandler(ers portssvc.ExchangeRateSvcFacade, mrs portssvc.MarketRateSvcFacade) *exchangeRateHandler {
	return &exchangeRateHandler{
		exchangeRateService: ers,
		marketRateService:   mrs,
	}
}

// registerExchangeRateRoutes registers routes related to exchange rates.
func registerExchangeRateRoutes(rg *gin.RouterGroup, ers portssvc.ExchangeRateSvcFacade, mrs portssvc.MarketRateSvcFacade) {
	h := newExchangeRateHandler(ers, mrs)

	exchangeRates := rg.Group("/exchange-rates")
	{
		exchangeRates.GET("", h.listExchangeRates)
		exchangeRates.POST("", h.createExchangeRate)
		exchangeRates.POST("/regenerate", h.regenerateRates)
		exchangeRates.POST("/refresh", h.refreshMarketRates)
		exchangeRates.PUT("/:rateID", h.updateExchangeRate)
		exchangeRates.DELETE("/:rateID", h.deleteExchangeRate)
		exchangeRates.GET("/:from/:to", h.getExchangeRate)
	}
}

// parseDateQuery reads an optional YYYY-MM-DD query parameter. Missing means zero time.
func parseDateQuery(c *gin.Context, key string) (time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(dateParamLayout, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + key + ", expected YYYY-MM-DD"})
		return time.Time{}, false
	}
	return t, true
}

// createExchangeRate godoc
// @Summary Create a user exchange rate
// @Description Records a USER rate between two enabled currencies and regenerates derived rates
// @Tags exchange rates
// @Accept  json
// @Produce  json
// @Param   rate body dto.CreateExchangeRateRequest true "Exchange Rate details"
// @Success 201 {object} dto.ExchangeRateResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 404 {object} map[string]string "Currency not found"
// @Failure 409 {object} map[string]string "A user rate already exists for this pair and date"
// @Failure 500 {object} map[string]string "Failed to create exchange rate"
// @Security BearerAuth
// @Router /exchange-rates [post]
func (h *exchangeRateHandler) createExchangeRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateExchangeRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateExchangeRate", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	logger.Info("Received request to create exchange rate",
		slog.String("from", req.FromCurrency),
		slog.String("to", req.ToCurrency),
		slog.String("rate", req.Rate.String()),
	)

	created, err := h.exchangeRateService.CreateExchangeRate(c.Request.Context(), req, userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to create exchange rate")
		return
	}
	c.JSON(http.StatusCreated, dto.ToExchangeRateResponse(created))
}

// listExchangeRates godoc
// @Summary List exchange rates
// @Description Lists the user's rate edges, optionally filtered by provenance
// @Tags exchange rates
// @Produce  json
// @Param   provenance query string false "USER, API or AUTO"
// @Success 200 {array} dto.ExchangeRateResponse
// @Failure 400 {object} map[string]string "Invalid provenance"
// @Security BearerAuth
// @Router /exchange-rates [get]
func (h *exchangeRateHandler) listExchangeRates(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var q dto.ListExchangeRatesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query: " + err.Error()})
		return
	}
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	rates, err := h.exchangeRateService.ListExchangeRates(c.Request.Context(), userID, domain.Provenance(q.Provenance))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to list exchange rates")
		return
	}
	c.JSON(http.StatusOK, dto.ToListExchangeRateResponse(rates))
}

// updateExchangeRate godoc
// @Summary Update a user exchange rate
// @Description Changes a USER rate and regenerates derived rates. API and AUTO rates cannot be edited.
// @Tags exchange rates
// @Accept  json
// @Produce  json
// @Param   rateID path string true "Exchange rate ID"
// @Param   rate body dto.UpdateExchangeRateRequest true "Fields to change"
// @Success 200 {object} dto.ExchangeRateResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Exchange rate not found"
// @Failure 409 {object} map[string]string "A user rate already exists for this pair and date"
// @Security BearerAuth
// @Router /exchange-rates/{rateID} [put]
func (h *exchangeRateHandler) updateExchangeRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.UpdateExchangeRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}
	rateID := c.Param("rateID")

	updated, err := h.exchangeRateService.UpdateExchangeRate(c.Request.Context(), rateID, req, userID)
	if err != nil {
		respondServiceError(c, logger.With(slog.String("rate_id", rateID)), err, "Failed to update exchange rate")
		return
	}
	c.JSON(http.StatusOK, dto.ToExchangeRateResponse(updated))
}

// deleteExchangeRate godoc
// @Summary Delete an exchange rate
// @Description Deletes a USER or API rate and regenerates derived rates. AUTO rates cannot be deleted directly.
// @Tags exchange rates
// @Param   rateID path string true "Exchange rate ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string "Derived rates cannot be deleted"
// @Failure 404 {object} map[string]string "Exchange rate not found"
// @Security BearerAuth
// @Router /exchange-rates/{rateID} [delete]
func (h *exchangeRateHandler) deleteExchangeRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}
	rateID := c.Param("rateID")

	if err := h.exchangeRateService.DeleteExchangeRate(c.Request.Context(), rateID, userID); err != nil {
		respondServiceError(c, logger.With(slog.String("rate_id", rateID)), err, "Failed to delete exchange rate")
		return
	}
	c.Status(http.StatusNoContent)
}

// getExchangeRate godoc
// @Summary Get an exchange rate
// @Description Retrieves the latest rate for a currency pair on or before a date
// @Tags exchange rates
// @Produce  json
// @Param   from path string true "From currency ID or code"
// @Param   to   path string true "To currency ID or code"
// @Param   date query string false "As-of date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} dto.ExchangeRateResponse
// @Failure 400 {object} map[string]string "Invalid date"
// @Failure 404 {object} map[string]string "Exchange rate not found"
// @Failure 500 {object} map[string]string "Failed to retrieve exchange rate"
// @Security BearerAuth
// @Router /exchange-rates/{from}/{to} [get]
func (h *exchangeRateHandler) getExchangeRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}
	asOf, ok := parseDateQuery(c, "date")
	if !ok {
		return
	}
	fromRef, toRef := c.Param("from"), c.Param("to")

	rate, err := h.exchangeRateService.GetExchangeRate(c.Request.Context(), userID, fromRef, toRef, asOf)
	if err != nil {
		respondServiceError(c, logger.With(slog.String("from", fromRef), slog.String("to", toRef)), err, "Failed to retrieve exchange rate")
		return
	}
	c.JSON(http.StatusOK, dto.ToExchangeRateResponse(rate))
}

// regenerateRates godoc
// @Summary Regenerate derived rates
// @Description Rebuilds all AUTO rates from the user's USER and API rates
// @Tags exchange rates
// @Accept  json
// @Produce  json
// @Param   request body dto.RegenerateRatesRequest false "Effective date of the derived rates, defaults to today"
// @Success 200 {object} dto.RegenerateRatesResponse
// @Failure 500 {object} map[string]string "Failed to regenerate derived rates"
// @Security BearerAuth
// @Router /exchange-rates/regenerate [post]
func (h *exchangeRateHandler) regenerateRates(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.RegenerateRatesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
			return
		}
	}
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	var effectiveDate time.Time
	if req.EffectiveDate != nil {
		effectiveDate = *req.EffectiveDate
	}
	derived, err := h.exchangeRateService.RegenerateAutoRates(c.Request.Context(), userID, effectiveDate)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to regenerate derived rates")
		return
	}

	resp := dto.RegenerateRatesResponse{Derived: derived}
	if !effectiveDate.IsZero() {
		resp.EffectiveDate = domain.NormalizeDate(effectiveDate)
	} else {
		resp.EffectiveDate = domain.NormalizeDate(time.Now())
	}
	logger.Info("Derived rates regenerated", slog.Int("derived", derived))
	c.JSON(http.StatusOK, resp)
}

// refreshMarketRates godoc
// @Summary Refresh market rates
// @Description Pulls market rates for the user's base currency, stores them as API rates and regenerates derived rates
// @Tags exchange rates
// @Produce  json
// @Success 200 {object} domain.MarketRefreshSummary
// @Failure 400 {object} map[string]string "No provider or base currency configured"
// @Failure 502 {object} map[string]string "Market rate provider unavailable"
// @Security BearerAuth
// @Router /exchange-rates/refresh [post]
func (h *exchangeRateHandler) refreshMarketRates(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	summary, err := h.marketRateService.RefreshMarketRates(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to refresh market rates")
		return
	}
	c.JSON(http.StatusOK, summary)
}
