package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/SscSPs/mma_rates/internal/apperrors"
	"github.com/SscSPs/mma_rates/internal/core/domain"
	portssvc "github.com/SscSPs/mma_rates/internal/core/ports/services"
	"github.com/SscSPs/mma_rates/internal/dto"
	"github.com/SscSPs/mma_rates/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type conversionHandler struct {
	conversionService portssvc.ConversionSvcFacade
	currencyService   portssvc.CurrencyResolverSvc
	enabledService    portssvc.EnabledCurrencySvcFacade
}

func registerConversionRoutes(rg *gin.RouterGroup, services *portssvc.ServiceContainer) {
	h := &conversionHandler{
		conversionService: services.Conversion,
		currencyService:   services.Currency,
		enabledService:    services.EnabledCurrency,
	}

	conversions := rg.Group("/conversions")
	{
		conversions.GET("", h.convert)
		conversions.POST("/batch", h.convertBatch)
	}
}

// targetCurrencyID resolves the target reference, falling back to the base currency.
func (h *conversionHandler) targetCurrencyID(ctx context.Context, userID, ref string) (string, error) {
	if ref != "" {
		return h.currencyService.Resolve(ctx, ref, userID)
	}
	base, err := h.enabledService.GetBaseCurrency(ctx, userID)
	if err != nil {
		return "", err
	}
	return base.CurrencyID, nil
}

// convert godoc
// @Summary Convert an amount
// @Description Converts an amount using the latest rate on or before the date. A missing rate is reported on the result, not as an error.
// @Tags conversions
// @Produce  json
// @Param   amount query string true "Amount to convert"
// @Param   from query string true "Source currency ID or code"
// @Param   to query string false "Target currency ID or code, defaults to the base currency"
// @Param   date query string false "As-of date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} dto.ConversionResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 404 {object} map[string]string "Currency not found or base currency not set"
// @Security BearerAuth
// @Router /conversions [get]
func (h *conversionHandler) convert(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var q dto.ConvertQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query: " + err.Error()})
		return
	}
	amount, err := decimal.NewFromString(q.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
		return
	}
	asOf, ok := parseDateQuery(c, "date")
	if !ok {
		return
	}
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	fromID, err := h.currencyService.Resolve(ctx, q.From, userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to resolve source currency")
		return
	}
	toID, err := h.targetCurrencyID(ctx, userID, q.To)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to resolve target currency")
		return
	}

	res := h.conversionService.Convert(ctx, userID, amount, fromID, toID, asOf)
	displayCurrency := toID
	if !res.Success {
		displayCurrency = fromID
	}
	c.JSON(http.StatusOK, dto.ToConversionResponse(res, h.conversionService.FormatAmount(ctx, res.ConvertedAmount, displayCurrency)))
}

// convertBatch godoc
// @Summary Convert many amounts
// @Description Converts every item into one target currency and totals them. Items without a rate or with an unknown currency pass through unconverted and are counted as failures.
// @Tags conversions
// @Accept  json
// @Produce  json
// @Param   request body dto.BatchConversionRequest true "Items to convert"
// @Success 200 {object} dto.BatchConversionResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 404 {object} map[string]string "Target currency not found or base currency not set"
// @Security BearerAuth
// @Router /conversions/batch [post]
func (h *conversionHandler) convertBatch(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.BatchConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	toID, err := h.targetCurrencyID(ctx, userID, req.ToCurrency)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to resolve target currency")
		return
	}

	items := make([]domain.ConversionItem, 0, len(req.Items))
	for _, item := range req.Items {
		currencyID, err := h.currencyService.Resolve(ctx, item.Currency, userID)
		if err != nil {
			if !errors.Is(err, apperrors.ErrNotFound) {
				respondServiceError(c, logger.With(slog.String("currency", item.Currency)), err, "Failed to resolve currency")
				return
			}
			logger.Info("Batch item currency not found", slog.String("currency", item.Currency))
			currencyID = ""
		}
		items = append(items, domain.ConversionItem{Amount: item.Amount, CurrencyID: currencyID})
	}

	var asOf time.Time
	if req.Date != nil {
		asOf = *req.Date
	}
	batch := h.conversionService.ConvertBatch(ctx, userID, items, toID, asOf)
	if batch.HasGaps {
		logger.Info("Batch conversion has gaps", slog.Int("failed", batch.FailedCount))
	}

	resp := dto.BatchConversionResponse{
		ToCurrencyID:   batch.ToCurrencyID,
		Items:          make([]dto.ConversionResponse, len(batch.Items)),
		Total:          batch.Total,
		DisplayTotal:   h.conversionService.FormatAmount(ctx, batch.Total, toID),
		ConvertedCount: batch.ConvertedCount,
		FailedCount:    batch.FailedCount,
		HasGaps:        batch.HasGaps,
	}
	for i, res := range batch.Items {
		display := res.ToCurrencyID
		if !res.Success {
			display = res.FromCurrencyID
		}
		resp.Items[i] = dto.ToConversionResponse(res, h.conversionService.FormatAmount(ctx, res.ConvertedAmount, display))
		resp.Items[i].Currency = req.Items[i].Currency
	}
	c.JSON(http.StatusOK, resp)
}
