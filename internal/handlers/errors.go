package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/SscSPs/mma_rates/internal/apperrors"
	"github.com/SscSPs/mma_rates/internal/middleware"
	"github.com/gin-gonic/gin"
)

// respondServiceError maps service errors onto HTTP statuses. Storage failures are
// checked first because they may also wrap a domain sentinel.
func respondServiceError(c *gin.Context, logger *slog.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, apperrors.ErrDerivationStorage):
		logger.Error("Derived rate storage failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to regenerate derived rates"})
	case errors.Is(err, apperrors.ErrValidation):
		logger.Warn("Validation error", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		logger.Warn("Resource not found", slog.String("error", err.Error()))
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrDuplicate):
		logger.Warn("Duplicate resource", slog.String("error", err.Error()))
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUpstream):
		logger.Warn("Upstream provider failed", slog.String("error", err.Error()))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Market rate provider unavailable"})
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("Request timed out", slog.String("error", err.Error()))
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Request timed out"})
	default:
		logger.Error(fallback, slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// requireUserID reads the authenticated user or writes a 401.
func requireUserID(c *gin.Context, logger *slog.Logger) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	return userID, true
}
