package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/mma_rates/internal/core/ports/services"
	"github.com/SscSPs/mma_rates/internal/dto"
	"github.com/SscSPs/mma_rates/internal/middleware"
	"github.com/gin-gonic/gin"
)

type enabledCurrencyHandler struct {
	enabledService portssvc.EnabledCurrencySvcFacade
}

func newEnabledCurrencyHandler(es portssvc.EnabledCurrencySvcFacade) *enabledCurrencyHandler {
	return &enabledCurrencyHandler{enabledService: es}
}

// registerEnabledCurrencyRoutes registers the user's currency universe and base currency settings.
func registerEnabledCurrencyRoutes(rg *gin.RouterGroup, enabledService portssvc.EnabledCurrencySvcFacade) {
	h := newEnabledCurrencyHandler(enabledService)

	enabled := rg.Group("/enabled-currencies")
	{
		enabled.GET("", h.listEnabled)
		enabled.POST("", h.enable)
		enabled.DELETE("/:ref", h.disable)
	}

	settings := rg.Group("/settings")
	{
		settings.GET("/base-currency", h.getBase)
		settings.PUT("/base-currency", h.setBase)
	}
}

// listEnabled godoc
// @Summary List enabled currencies
// @Description Lists the calling user's active currencies in display order
// @Tags enabled currencies
// @Produce  json
// @Success 200 {array} dto.CurrencyResponse
// @Security BearerAuth
// @Router /enabled-currencies [get]
func (h *enabledCurrencyHandler) listEnabled(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}
	currencies, err := h.enabledService.ListEnabledCurrencies(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to list enabled currencies")
		return
	}
	c.JSON(http.StatusOK, dto.ToListCurrencyResponse(currencies))
}

// enable godoc
// @Summary Enable a currency
// @Description Adds a currency to the user's universe. Enabling an active currency is a no-op.
// @Tags enabled currencies
// @Accept  json
// @Produce  json
// @Param   currency body dto.CurrencyRefRequest true "Currency ID or code"
// @Success 200 {object} dto.CurrencyResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 404 {object} map[string]string "Currency not found"
// @Security BearerAuth
// @Router /enabled-currencies [post]
func (h *enabledCurrencyHandler) enable(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CurrencyRefRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	currency, err := h.enabledService.EnableCurrency(c.Request.Context(), userID, req.Currency)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to enable currency")
		return
	}
	logger.Info("Currency enabled", slog.String("currency_id", currency.CurrencyID))
	c.JSON(http.StatusOK, dto.ToCurrencyResponse(currency))
}

// disable godoc
// @Summary Disable a currency
// @Description Removes a currency from the user's universe. Refused for the base currency and for currencies that still have rates.
// @Tags enabled currencies
// @Param   ref path string true "Currency ID or code"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string "Currency is in use"
// @Failure 404 {object} map[string]string "Currency not enabled"
// @Security BearerAuth
// @Router /enabled-currencies/{ref} [delete]
func (h *enabledCurrencyHandler) disable(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}
	ref := c.Param("ref")
	if err := h.enabledService.DisableCurrency(c.Request.Context(), userID, ref); err != nil {
		respondServiceError(c, logger.With(slog.String("ref", ref)), err, "Failed to disable currency")
		return
	}
	c.Status(http.StatusNoContent)
}

// getBase godoc
// @Summary Get the base currency
// @Tags settings
// @Produce  json
// @Success 200 {object} dto.BaseCurrencyResponse
// @Failure 404 {object} map[string]string "Base currency not set"
// @Security BearerAuth
// @Router /settings/base-currency [get]
func (h *enabledCurrencyHandler) getBase(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}
	currency, err := h.enabledService.GetBaseCurrency(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to get base currency")
		return
	}
	c.JSON(http.StatusOK, dto.BaseCurrencyResponse{Currency: dto.ToCurrencyResponse(currency)})
}

// setBase godoc
// @Summary Set the base currency
// @Description Sets the user's base currency, enabling it if needed
// @Tags settings
// @Accept  json
// @Produce  json
// @Param   currency body dto.CurrencyRefRequest true "Currency ID or code"
// @Success 200 {object} dto.BaseCurrencyResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 404 {object} map[string]string "Currency not found"
// @Security BearerAuth
// @Router /settings/base-currency [put]
func (h *enabledCurrencyHandler) setBase(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CurrencyRefRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}
	currency, err := h.enabledService.SetBaseCurrency(c.Request.Context(), userID, req.Currency)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to set base currency")
		return
	}
	logger.Info("Base currency set", slog.String("currency_id", currency.CurrencyID))
	c.JSON(http.StatusOK, dto.BaseCurrencyResponse{Currency: dto.ToCurrencyResponse(currency)})
}
