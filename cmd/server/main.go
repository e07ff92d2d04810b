package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cuadrofirma-backend/auth"
	"cuadrofirma-backend/config"
	"cuadrofirma-backend/handlers"
	"cuadrofirma-backend/logger"
	"cuadrofirma-backend/metrics"
	"cuadrofirma-backend/notify"
	"cuadrofirma-backend/render"
	"cuadrofirma-backend/repository"
	"cuadrofirma-backend/service"
	"cuadrofirma-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	// Load .env file from project root (relative to cmd/server/)
	foundEnv := config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Fatalw("invalid configuration", "error", err)
	}

	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()
	if !foundEnv {
		log.Warn("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := initPostgres(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize Postgres", "error", err)
	}
	defer db.Close()
	log.Infow("postgres connection established", "max_conns", cfg.DBMaxConns)

	// Initialize storage
	fileStorage, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		log.Fatalw("failed to initialize storage", "error", err)
	}
	log.Infow("storage initialized", "type", cfg.Storage.Type)

	renderer, err := render.NewHTTPRenderer(cfg.RendererURL, cfg.RendererTimeout)
	if err != nil {
		log.Fatalw("failed to initialize signature renderer", "error", err)
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		log.Fatalw("failed to initialize token verifier", "error", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	hub := notify.NewHub(32, log)

	store := repository.NewPGStore(db, repository.WithRetryPolicy(repository.RetryPolicy{
		Attempts: cfg.TxRetryAttempts,
		Backoff:  cfg.TxRetryBackoff,
	}))

	workflow := service.NewWorkflowService(
		service.WithStore(store),
		service.WithStorage(fileStorage),
		service.WithRenderer(renderer),
		service.WithNotifier(hub),
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithPresignTTL(cfg.PresignTTL),
	)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.RouterConfig{
		Workflow:    workflow,
		Verifier:    verifier,
		Hub:         hub,
		Metrics:     m,
		Gatherer:    prometheus.DefaultGatherer,
		RateLimiter: handlers.NewIPRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		Log:         log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	shutdown(srv, log)
}

func initPostgres(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = cfg.DBMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func shutdown(srv *http.Server, log *zap.SugaredLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	log.Info("shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("graceful shutdown failed", "error", err)
	}
}
