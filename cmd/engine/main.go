package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"khata/internal/api"
	"khata/internal/config"
	"khata/internal/lock"
	"khata/internal/processor"
	"khata/internal/repository"
	"khata/internal/repository/memory"
	"khata/internal/repository/redisstore"
	"khata/internal/service"
	"khata/pkg/crypto"
	"khata/pkg/metrics"
)

type stores struct {
	ledger    repository.LedgerRepository
	inventory repository.InventoryRepository
	sales     repository.SalesRepository
	locker    lock.Locker
	publisher service.Publisher
	client    *redis.Client
}

func main() {
	configPath := flag.String("config", os.Getenv("KHATA_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.App.LogLevel)
	slog.SetDefault(logger)
	logger.Info("Starting application",
		slog.String("name", cfg.App.Name),
		slog.String("storage", cfg.Storage.Driver))

	st, err := setupStores(cfg, logger)
	if err != nil {
		logger.Error("Failed to set up storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	clock := processor.SystemClock{}
	metricsCollector := metrics.NewMetricsCollector(logger)

	udhaar := service.NewUdhaarService(st.ledger, st.locker, clock, metricsCollector, service.UdhaarOptions{
		DefaultDueDays: cfg.Ledger.DefaultDueDays,
		MaxRetries:     cfg.Ledger.MaxRetries,
	}, logger)
	alerts := service.NewAlertService(st.inventory, st.ledger, clock, metricsCollector, logger)
	forecasts := service.NewForecastService(st.sales, processor.NewDemandForecaster(clock, nil), service.DefaultLookbackDays, metricsCollector, logger)
	advisor := service.NewAdvisorService(st.inventory, st.ledger)

	apiHandler := api.NewAPIHandler(api.Services{
		Udhaar:    udhaar,
		Alerts:    alerts,
		Forecasts: forecasts,
		Advisor:   advisor,
		Inventory: st.inventory,
		Sales:     st.sales,
	}, logger)

	var signer *crypto.Signer
	if cfg.Notifier.SigningKey != "" {
		signer = crypto.NewSigner(cfg.Notifier.SigningKey, logger)
	}
	notifier := service.NewAlertNotifier(st.publisher, signer, cfg.Scanner.Channel, cfg.Notifier.Workers, metricsCollector, logger)

	var scanner *service.AlertScanner
	if cfg.Scanner.Schedule != "" {
		scanner, err = service.NewAlertScanner(cfg.Scanner.Schedule, cfg.Scanner.Shops, alerts, notifier, logger)
		if err != nil {
			logger.Error("Failed to set up alert scanner", slog.String("error", err.Error()))
			os.Exit(1)
		}
		scanner.Start()
	}

	metricsServer := metricsCollector.StartMetricsServer(cfg.Metrics.Addr)
	httpServer := startHTTPServer(cfg, apiHandler, logger)
	waitForShutdown(logger, httpServer, metricsServer, scanner, notifier, st.client)
	logger.Info("Application shutdown complete")
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: lvl,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

func setupStores(cfg *config.Config, logger *slog.Logger) (*stores, error) {
	if cfg.Storage.Driver == "memory" {
		return &stores{
			ledger:    memory.NewLedgerRepository(),
			inventory: memory.NewInventoryRepository(),
			sales:     memory.NewSalesRepository(),
			locker:    lock.NewLocalLocker(),
			publisher: service.NewLogPublisher(logger),
		}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Connected to redis", slog.String("addr", cfg.Redis.Addr))

	return &stores{
		ledger:    redisstore.NewLedgerRepository(client, logger),
		inventory: redisstore.NewInventoryRepository(client),
		sales:     redisstore.NewSalesRepository(client),
		locker:    lock.NewRedisLocker(client, cfg.Lock.TTL),
		publisher: service.NewRedisPublisher(client),
		client:    client,
	}, nil
}

func startHTTPServer(cfg *config.Config, apiHandler *api.APIHandler, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	apiHandler.RegisterRoutes(mux)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"name": "%s", "status": "ok"}`, cfg.App.Name)
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	return server
}

func waitForShutdown(
	logger *slog.Logger,
	httpServer *http.Server,
	metricsServer *http.Server,
	scanner *service.AlertScanner,
	notifier *service.AlertNotifier,
	client *redis.Client,
) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}

	if scanner != nil {
		if err := scanner.Stop(ctx); err != nil {
			logger.Error("Alert scanner shutdown failed", slog.String("error", err.Error()))
		}
	}

	if err := notifier.Shutdown(ctx); err != nil {
		logger.Error("Alert notifier shutdown failed", slog.String("error", err.Error()))
	}

	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
	}

	if client != nil {
		if err := client.Close(); err != nil {
			logger.Error("Redis client close failed", slog.String("error", err.Error()))
		}
	}
}
