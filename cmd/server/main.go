package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tameer/internal/api"
	"tameer/internal/config"
	"tameer/internal/dashboard"
	"tameer/internal/events"
	"tameer/internal/google"
	"tameer/internal/intake"
	"tameer/internal/logging"
	"tameer/internal/metrics"
	"tameer/internal/models"
	"tameer/internal/notify"
	"tameer/internal/session"
	"tameer/internal/store"
	"tameer/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	services, err := loadServiceCatalog(cfg, &logger)
	if err != nil {
		return err
	}

	bus := events.NewChangeBus()

	requestStore, err := store.New(cfg.Database.Path, bus, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init store")
		return err
	}
	defer requestStore.Close()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	gate := buildGate(cfg, redisClient, &logger)

	intakeSvc := intake.NewService(requestStore, services, &logger)
	dash := dashboard.New(requestStore, gate, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go dash.Run(ctx)

	startExportWorker(ctx, cfg, requestStore, bus, &logger)
	attachSheetsMirror(ctx, cfg, requestStore, bus, &logger)
	attachTelegram(cfg, bus, &logger)
	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.Server, cfg.RateLimit, intakeSvc, dash, gate, requestStore, &logger)
	return serve(ctx, httpServer, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "server-main").Logger()

	return cfg, logger, closer, nil
}

// loadServiceCatalog merges optional extra service types from a yaml
// file into the built-in catalog. A missing catalog path means the
// defaults alone.
func loadServiceCatalog(cfg *config.Config, logger *zerolog.Logger) ([]models.ServiceType, error) {
	services := append([]models.ServiceType(nil), models.DefaultServiceTypes...)
	if cfg.Catalog.Path == "" {
		return services, nil
	}

	data, err := os.ReadFile(cfg.Catalog.Path)
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", cfg.Catalog.Path).Msg("read service catalog")
		return nil, err
	}

	var extra struct {
		Services []models.ServiceType `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &extra); err != nil {
		logger.Error().Err(err).Str("catalog_path", cfg.Catalog.Path).Msg("parse service catalog")
		return nil, err
	}

	services = append(services, extra.Services...)
	if err := models.ValidateCatalog(services); err != nil {
		return nil, fmt.Errorf("service catalog: %w", err)
	}

	logger.Info().Int("extra", len(extra.Services)).Msg("service catalog extended")
	return services, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	if err := session.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, sessions stay in memory")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// buildGate wires the admin session gate. With Redis available the
// session records live there behind a memory failover; without it they
// are process-local.
func buildGate(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) session.Gate {
	var repo session.Repository = session.NewMemoryRepository()
	if redisClient != nil {
		repo = session.NewFailoverRepository(session.NewRedisRepository(redisClient), session.NewMemoryRepository(), logger)
	}
	return session.NewStaticGate(cfg.Admin.Username, cfg.Admin.Password, repo, logger)
}

func startExportWorker(ctx context.Context, cfg *config.Config, requestStore *store.Store, bus *events.ChangeBus, logger *zerolog.Logger) {
	exportWorker := worker.NewExportWorker(requestStore, cfg.Exports.Path, worker.DefaultRetryPolicy(), logger)
	go exportWorker.Start(ctx)

	// Every table change queues a fresh snapshot; the worker coalesces
	// bursts through its bounded queue.
	bus.SubscribeAll(func(event *events.Event) error {
		exportWorker.Enqueue(event.Type)
		return nil
	})
}

func attachSheetsMirror(ctx context.Context, cfg *config.Config, requestStore *store.Store, bus *events.ChangeBus, logger *zerolog.Logger) {
	if cfg.Google.CredentialsFile == "" || cfg.Google.RequestsSpreadsheetID == "" {
		return
	}

	mirror, err := google.NewSheetsMirror(ctx, cfg.Google.CredentialsFile, cfg.Google.RequestsSpreadsheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without mirror")
		return
	}
	if err := mirror.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without mirror")
		return
	}

	bus.SubscribeAll(func(event *events.Event) error {
		mirrorCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		requests, err := requestStore.ListAll(mirrorCtx)
		if err != nil {
			logger.Warn().Err(err).Msg("sheets mirror skipped, list failed")
			return err
		}
		if err := mirror.ReplaceRequestsSheet(mirrorCtx, requests); err != nil {
			logger.Warn().Err(err).Msg("sheets mirror update failed")
			return err
		}
		return nil
	})

	logger.Info().Msg("google sheets mirror attached")
}

func attachTelegram(cfg *config.Config, bus *events.ChangeBus, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.ManagerChats) == 0 {
		return
	}

	notifier, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ManagerChats, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}
	notifier.AttachTo(bus)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
