package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/SscSPs/mma_rates/cmd/docs"
	"github.com/SscSPs/mma_rates/internal/core/domain"
	portssvc "github.com/SscSPs/mma_rates/internal/core/ports/services"
	"github.com/SscSPs/mma_rates/internal/middleware"
	"github.com/SscSPs/mma_rates/internal/platform/config"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RegisterValidators adds the custom binding tags used by request DTOs.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("currency_code", func(fl validator.FieldLevel) bool {
		return domain.IsValidCurrencyCode(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
	})
}

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
) {
	if err := RegisterValidators(); err != nil {
		slog.Error("Failed to register request validators", slog.String("error", err.Error()))
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	setupAPIV1Routes(r, cfg, services)
	setupSwaggerRoutes(r, cfg)
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific entity route registrations
func setupAPIV1Routes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
) {
	v1 := r.Group("/api/v1", middleware.AuthMiddleware(cfg.JWTSecret))

	registerCurrencyRoutes(v1, services.Currency)
	registerEnabledCurrencyRoutes(v1, services.EnabledCurrency)
	registerExchangeRateRoutes(v1, services.ExchangeRate, services.MarketRate)
	registerConversionRoutes(v1, services)
}

// setupSwaggerRoutes configures the swagger documentation routes
func setupSwaggerRoutes(r *gin.Engine, cfg *config.Config) {
	if cfg.IsProduction {
		//no swagger in prod
		return
	}
	docs.SwaggerInfo.BasePath = "/api/v1"
	swagger := r.Group("/swagger")
	swagger.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
