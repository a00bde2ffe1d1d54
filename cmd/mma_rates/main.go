package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SscSPs/mma_rates/internal/adapters/marketrates"
	portsrepo "github.com/SscSPs/mma_rates/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/mma_rates/internal/core/ports/services"
	"github.com/SscSPs/mma_rates/internal/core/services"
	"github.com/SscSPs/mma_rates/internal/handlers"
	"github.com/SscSPs/mma_rates/internal/middleware"
	"github.com/SscSPs/mma_rates/internal/platform/config"
	"github.com/SscSPs/mma_rates/internal/repositories/database/pgsql"
	"github.com/SscSPs/mma_rates/internal/repositories/memory"
	"github.com/SscSPs/mma_rates/pkg/database"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// @title MMA Rates API
// @version 1.0
// @description Multi-currency exchange-rate service: user, market and derived rates with best-effort conversion.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @security BearerAuth
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, cleanup, err := setupRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.String("driver", cfg.StorageDriver), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	containerOpts := []services.ContainerOption{}
	if cfg.MarketRates.Enabled() {
		provider, err := marketrates.NewProvider(marketrates.Config{
			BaseURL:           cfg.MarketRates.APIURL,
			APIKey:            cfg.MarketRates.APIKey,
			Timeout:           cfg.MarketRates.Timeout,
			CacheTTL:          cfg.MarketRates.CacheTTL,
			RequestsPerMinute: cfg.MarketRates.RequestsPerMinute,
		}, logger)
		if err != nil {
			logger.Error("Failed to configure market rate provider", slog.String("error", err.Error()))
			os.Exit(1)
		}
		containerOpts = append(containerOpts, services.WithMarketRateProvider(provider))
	} else {
		logger.Warn("MARKET_RATES_API_URL not set, market rate refresh is disabled")
	}
	serviceContainer := services.NewServiceContainer(repos, containerOpts...)

	router, err := setupRouter(cfg, logger, serviceContainer)
	if err != nil {
		logger.Error("Failed to set up router", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port), slog.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to run", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", slog.String("error", err.Error()))
	}
}

func setupRouter(cfg *config.Config, logger *slog.Logger, svc *portssvc.ServiceContainer) (*gin.Engine, error) {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	if cfg.RateLimit != "" {
		lim, err := middleware.NewInMemoryLimiter(cfg.RateLimit)
		if err != nil {
			return nil, err
		}
		r.Use(middleware.RateLimit(lim))
	}

	if err := r.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	handlers.RegisterRoutes(r, cfg, svc)
	return r, nil
}

// setupRepositories builds the storage selected by STORAGE_DRIVER. The returned cleanup
// releases the connection pool, if any.
func setupRepositories(ctx context.Context, cfg *config.Config, logger *slog.Logger) (portsrepo.RepositoryProvider, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		store := memory.NewStore()
		if err := memory.SeedGlobalCurrencies(ctx, memory.NewCurrencyRepository(store)); err != nil {
			return portsrepo.RepositoryProvider{}, nil, err
		}
		logger.Warn("Using in-memory storage, data is lost on restart")
		return store.Repositories(), func() {}, nil
	}

	if err := runMigrations(cfg, logger); err != nil {
		return portsrepo.RepositoryProvider{}, nil, err
	}

	dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, cfg.EnableDBCheck)
	if err != nil {
		return portsrepo.RepositoryProvider{}, nil, err
	}
	logger.Info("Database connection pool established")
	return pgsql.NewRepositoryProvider(dbPool), func() { database.ClosePgxPool(dbPool) }, nil
}

func runMigrations(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("Running database migrations", slog.String("path", cfg.MigrationsPath))

	// golang-migrate needs a database/sql handle; the pgx stdlib driver keeps it on the same driver as the pool.
	migrationDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationsPath, "postgres", driver)
	if err != nil {
		return err
	}

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return upErr
	}
	if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
		return errors.Join(sourceErr, dbErr)
	}

	if errors.Is(upErr, migrate.ErrNoChange) {
		logger.Info("No new migrations to apply")
	} else {
		logger.Info("Database migrations applied successfully")
	}
	return nil
}
