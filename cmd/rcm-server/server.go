package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/rcm/rcm/internal/config"
	"github.com/rcm/rcm/internal/domain/audit"
	"github.com/rcm/rcm/internal/domain/claim"
	"github.com/rcm/rcm/internal/domain/encounter"
	"github.com/rcm/rcm/internal/domain/tenant"
	"github.com/rcm/rcm/internal/platform/advisory"
	"github.com/rcm/rcm/internal/platform/auth"
	"github.com/rcm/rcm/internal/platform/db"
	"github.com/rcm/rcm/internal/platform/memstore"
	"github.com/rcm/rcm/internal/platform/metrics"
	"github.com/rcm/rcm/internal/platform/middleware"
)

const version = "0.1.0"

type txRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// stores is one backend's set of repositories plus the transaction runner
// they share.
type stores struct {
	audit      audit.Repository
	tenants    tenant.Repository
	encounters encounter.Repository
	claims     claim.Repository
	tx         txRunner
	pool       *pgxpool.Pool
}

func postgresStores(pool *pgxpool.Pool) stores {
	return stores{
		audit:      audit.NewRepoPG(pool),
		tenants:    tenant.NewRepoPG(pool),
		encounters: encounter.NewRepoPG(pool),
		claims:     claim.NewRepoPG(pool),
		tx:         db.NewTxRunner(pool),
		pool:       pool,
	}
}

func memoryStores(store *memstore.Store) stores {
	return stores{
		audit:      audit.NewRepoMem(store),
		tenants:    tenant.NewRepoMem(store),
		encounters: encounter.NewRepoMem(store),
		claims:     claim.NewRepoMem(store),
		tx:         store,
	}
}

// seedDemo creates the tenant 1 billing profile so a fresh memory backend can
// build claims straight away.
func seedDemo(ctx context.Context, svc *tenant.Service) error {
	return svc.Create(ctx, &tenant.Profile{
		Name:         "demo",
		PracticeName: "Demo Family Practice",
		NPI:          "1234567893",
		TaxID:        "12-3456789",
		Address:      "100 Main St, Springfield",
	})
}

// newServer wires every domain onto a fresh echo instance.
func newServer(cfg *config.Config, st stores, logger zerolog.Logger) (*echo.Echo, error) {
	metrics.Init()

	rec := audit.NewRecorder(st.audit, logger)
	tenantSvc := tenant.NewService(st.tenants, rec)
	encounterSvc := encounter.NewService(st.encounters, st.tx, rec)
	claimSvc := claim.NewService(st.claims, st.encounters, st.tenants, st.tx, rec).WithLogger(logger)
	if cfg.AdvisoryEnabled() {
		client := advisory.NewClient(advisory.Config{
			APIKey:  cfg.AdvisoryAPIKey,
			BaseURL: cfg.AdvisoryBaseURL,
			Model:   cfg.AdvisoryModel,
			Timeout: cfg.AdvisoryTimeout,
		})
		claimSvc = claimSvc.WithAdvisor(claim.NewModelAdvisor(client))
		logger.Info().Str("model", cfg.AdvisoryModel).Msg("advisory review enabled")
	}

	if cfg.SeedDemo && st.pool == nil {
		if err := seedDemo(context.Background(), tenantSvc); err != nil {
			return nil, err
		}
		logger.Info().Msg("seeded demo tenant")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.Metrics())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("1M"))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"backend": cfg.StoreBackend,
		})
	})
	if st.pool != nil {
		e.GET("/health/db", db.HealthHandler(st.pool))
	}
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	// The advisory call dominates request time; leave it headroom.
	apiV1.Use(middleware.RequestTimeout(cfg.AdvisoryTimeout + 15*time.Second))

	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware(jwtConfig(cfg)))
	} else {
		apiV1.Use(auth.JWTMiddleware(jwtConfig(cfg)))
	}

	claim.NewHandler(claimSvc).RegisterRoutes(apiV1)
	encounter.NewHandler(encounterSvc).RegisterRoutes(apiV1)
	audit.NewHandler(audit.NewService(st.audit)).RegisterRoutes(apiV1)
	tenant.NewHandler(tenantSvc).RegisterRoutes(apiV1)

	return e, nil
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	var st stores
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := db.NewPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")
		st = postgresStores(pool)
	case config.BackendMemory:
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		st = memoryStores(memstore.New())
	}

	e, err := newServer(cfg, st, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("backend", cfg.StoreBackend).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
