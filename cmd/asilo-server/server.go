package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/asilo/asilo/internal/config"
	"github.com/asilo/asilo/internal/domain/documents"
	"github.com/asilo/asilo/internal/domain/patient"
	"github.com/asilo/asilo/internal/domain/staff"
	"github.com/asilo/asilo/internal/platform/auth"
	"github.com/asilo/asilo/internal/platform/blobstore"
	"github.com/asilo/asilo/internal/platform/db"
	"github.com/asilo/asilo/internal/platform/middleware"
	"github.com/asilo/asilo/internal/platform/telemetry"
	"github.com/asilo/asilo/internal/platform/validation"
)

const jsonBodyLimit = 1 << 20

// deps is everything the HTTP server needs that touches the outside world.
type deps struct {
	cfg       *config.Config
	logger    zerolog.Logger
	tokens    *auth.TokenService
	store     blobstore.Store
	tx        db.TxRunner
	staff     staff.Repository
	patients  patient.Repository
	documents documents.Repository
	dbHealth  db.Pinger
	poolStats func() *db.PoolStats
	registry  *prometheus.Registry
}

// newServer builds the echo instance. The returned func releases background
// resources and must be called after shutdown.
func newServer(d deps) (*echo.Echo, func()) {
	metrics := telemetry.NewCollector(d.registry)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(d.logger)
	e.Validator = validation.Echo{}
	e.IPExtractor = clientIPExtractor(d.cfg)

	// Global middleware
	e.Use(middleware.Recovery(d.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.logger))
	e.Use(metrics.Middleware(middleware.StatusOf))
	e.Use(middleware.SecurityHeaders(d.cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  d.cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "X-Total-Count", "Link"},
	}))
	e.Use(middleware.BodyLimit(jsonBodyLimit, d.cfg.MaxUploadBytes()))

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(d.dbHealth, d.poolStats))
	e.GET("/metrics", telemetry.Handler(d.registry))

	// Stored documents, public like the original static mount
	e.GET("/"+blobstore.PublicPrefix+"/*", blobstore.ServeHandler(d.store))

	// Services
	resolver := blobstore.NewResolver(d.store)
	staffSvc := staff.NewService(d.staff, d.tokens, metrics)
	patientSvc := patient.NewService(d.patients, d.tx, resolver, metrics, patient.WithLogger(d.logger))
	docSvc := documents.NewService(d.documents, patientSvc, d.store, resolver, metrics, d.logger)

	// API
	public := e.Group("/api")
	api := public.Group("", auth.RequireAuth(d.tokens), middleware.Audit(d.logger))

	loginLimiter := middleware.NewRateLimiter(middleware.LoginRateLimitConfig(d.cfg.LoginRatePerMin, d.cfg.LoginRateBurst))
	staff.NewHandler(staffSvc).RegisterRoutes(public, api, loginLimiter.Middleware())
	patient.NewHandler(patientSvc, docSvc).RegisterRoutes(api)
	documents.NewHandler(docSvc).RegisterRoutes(api)

	return e, loginLimiter.Stop
}

// clientIPExtractor decides which address the login limiter and the logs
// see. Forwarding headers count only when they arrive from a configured
// proxy range.
func clientIPExtractor(cfg *config.Config) echo.IPExtractor {
	nets, err := cfg.TrustedProxyNets()
	if err != nil || len(nets) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range nets {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

// openStore returns the blob backend selected by STORAGE_DRIVER and a
// function closing it.
func openStore(ctx context.Context, cfg *config.Config) (blobstore.Store, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	switch cfg.StorageDriver {
	case config.StorageS3:
		s, err := blobstore.NewS3Store(blobstore.S3Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
		return s, noop, err
	case config.StorageGridFS:
		s, err := blobstore.NewGridFSStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case config.StorageLocal, "":
		s, err := blobstore.NewLocalStore(cfg.UploadsDir)
		return s, noop, err
	default:
		return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func runServer(migrate bool) error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.IsDev())
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	tokens, err := auth.NewTokenService([]byte(cfg.JWTSecret))
	if err != nil {
		return err
	}

	if migrate {
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Error().Err(err).Msg("migrations failed")
			return err
		}
		logger.Info().Msg("migrations applied")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Blob storage
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to open document store")
		return err
	}
	logger.Info().Str("driver", cfg.StorageDriver).Msg("document store ready")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e, release := newServer(deps{
		cfg:       cfg,
		logger:    logger,
		tokens:    tokens,
		store:     store,
		tx:        db.NewTxRunner(pool),
		staff:     staff.NewRepoPG(pool),
		patients:  patient.NewRepoPG(pool),
		documents: documents.NewRepoPG(pool),
		dbHealth:  pool,
		poolStats: func() *db.PoolStats { return db.GetPoolStats(pool) },
		registry:  registry,
	})
	defer release()

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := closeStore(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("closing document store failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
