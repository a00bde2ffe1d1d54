package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/mma_rates/internal/core/ports/services"
	"github.com/SscSPs/mma_rates/internal/dto"
	"github.com/SscSPs/mma_rates/internal/middleware"
	"github.com/gin-gonic/gin"
)

// currencyHandler handles HTTP requests related to currencies.
type currencyHandler struct {
	currencyService portssvc.CurrencySvcFacade
}

// newCurrencyHandler creates a new currencyHandler.
func newCurrencyHandler(cs portssvc.CurrencySvcFacade) *currencyHandler {
	return &currencyHandler{
		currencyService: cs,
	}
}

// registerCurrencyRoutes registers routes related to currencies.
func registerCurrencyRoutes(rg *gin.RouterGroup, currencyService portssvc.CurrencySvcFacade) {
	h := newCurrencyHandler(currencyService)

	currencies := rg.Group("/currencies")
	{
		currencies.POST("", h.createCurrency)
		currencies.GET("", h.listCurrencies)
		currencies.GET("/resolve/:ref", h.resolveCurrency)
		currencies.DELETE("/:currencyID", h.deleteCurrency)
	}
}

// createCurrency godoc
// @Summary Create a custom currency
// @Description Adds a currency owned by the calling user. Its code may shadow a global currency.
// @Tags currencies
// @Accept  json
// @Produce  json
// @Param   currency body dto.CreateCurrencyRequest true "Currency details"
// @Success 201 {object} dto.CurrencyResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 409 {object} map[string]string "Currency code already exists for this user"
// @Failure 500 {object} map[string]string "Failed to create currency"
// @Security BearerAuth
// @Router /currencies [post]
func (h *currencyHandler) createCurrency(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateCurrency", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	created, err := h.currencyService.CreateCustomCurrency(c.Request.Context(), req, userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to create currency")
		return
	}

	logger.Info("Currency created", slog.String("currency_id", created.CurrencyID), slog.String("code", created.Code))
	c.JSON(http.StatusCreated, dto.ToCurrencyResponse(created))
}

// listCurrencies godoc
// @Summary List visible currencies
// @Description Lists global currencies and the calling user's own currencies
// @Tags currencies
// @Produce  json
// @Success 200 {array} dto.CurrencyResponse
// @Failure 500 {object} map[string]string "Failed to list currencies"
// @Security BearerAuth
// @Router /currencies [get]
func (h *currencyHandler) listCurrencies(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	currencies, err := h.currencyService.ListVisibleCurrencies(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to list currencies")
		return
	}
	c.JSON(http.StatusOK, dto.ToListCurrencyResponse(currencies))
}

// resolveCurrency godoc
// @Summary Resolve a currency reference
// @Description Resolves a currency ID or code to the currency the user means. An owned currency wins over a global one with the same code.
// @Tags currencies
// @Produce  json
// @Param   ref path string true "Currency ID or code"
// @Success 200 {object} dto.ResolveCurrencyResponse
// @Failure 404 {object} map[string]string "Currency not found"
// @Security BearerAuth
// @Router /currencies/resolve/{ref} [get]
func (h *currencyHandler) resolveCurrency(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}
	ref := c.Param("ref")

	currency, err := h.currencyService.ResolveCurrency(c.Request.Context(), ref, userID)
	if err != nil {
		respondServiceError(c, logger.With(slog.String("ref", ref)), err, "Failed to resolve currency")
		return
	}
	c.JSON(http.StatusOK, dto.ResolveCurrencyResponse{
		Reference: ref,
		Currency:  dto.ToCurrencyResponse(currency),
	})
}

// deleteCurrency godoc
// @Summary Delete a custom currency
// @Description Removes a currency owned by the calling user. Refused while it is enabled, the base currency, or referenced by rates.
// @Tags currencies
// @Param   currencyID path string true "Currency ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string "Currency is still in use or not owned"
// @Failure 404 {object} map[string]string "Currency not found"
// @Security BearerAuth
// @Router /currencies/{currencyID} [delete]
func (h *currencyHandler) deleteCurrency(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}
	currencyID := c.Param("currencyID")

	if err := h.currencyService.DeleteCustomCurrency(c.Request.Context(), currencyID, userID); err != nil {
		respondServiceError(c, logger.With(slog.String("currency_id", currencyID)), err, "Failed to delete currency")
		return
	}
	logger.Info("Currency deleted", slog.String("currency_id", currencyID))
	c.Status(http.StatusNoContent)
}
