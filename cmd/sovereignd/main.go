package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/efreitasn/sovereignty/internal/catalog"
	"github.com/efreitasn/sovereignty/internal/config"
	"github.com/efreitasn/sovereignty/internal/engine"
	"github.com/efreitasn/sovereignty/internal/handler"
	"github.com/efreitasn/sovereignty/internal/pricing"
	"github.com/efreitasn/sovereignty/internal/service"
	"github.com/efreitasn/sovereignty/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Document store: SQLite when a path is configured, memory otherwise.
	var docs store.Store
	if cfg.DatabasePath != "" {
		sqlite, err := store.OpenSQLite(cfg.DatabasePath)
		if err != nil {
			logger.Error("failed to open database",
				slog.String("path", cfg.DatabasePath),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
		defer sqlite.Close()
		docs = sqlite
	} else {
		logger.Warn("DATABASE_PATH not set, state will not survive a restart")
		docs = store.NewMemoryStore()
	}
	webhookStore := store.NewWebhookStore()

	// Territories.
	cat, err := catalog.Load(cfg.TerritoryCatalog)
	if err != nil {
		logger.Error("failed to load territory catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}
	seeded, err := catalog.Seed(ctx, docs, cat, time.Now().UTC())
	if err != nil {
		logger.Error("failed to seed territories", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("territories seeded",
		slog.Int("total", len(cat.Territories)),
		slog.Int("created", seeded.Created),
		slog.Int("updated", seeded.Updated),
	)

	// Pricing.
	pricingCfg := pricing.DefaultConfig()
	pricingCfg.AuctionRatio = cfg.AuctionRatio
	pricingCfg.MinBid = cfg.MinBid
	if len(cat.CountryMultipliers) > 0 {
		pricingCfg.CountryMultipliers = cat.CountryMultipliers
	}
	oracle := pricing.NewOracle(pricingCfg)

	// Event sinks (webhook first, then log).
	webhookSvc := service.NewWebhookService(webhookStore, cfg.WebhookTimeout, logger)
	sinks := engine.MultiSink{webhookSvc, service.NewLogSink(logger)}

	// Engine.
	var increment engine.IncrementPolicy = engine.FlatIncrement{Units: cfg.MinIncrement}
	if cfg.IncrementPolicy == config.IncrementPercent {
		increment = engine.PercentIncrement{Rate: cfg.IncrementRate}
	}
	eng := engine.New(docs, oracle, engine.SystemClock{}, sinks, logger, engine.Options{
		ShortAuctionDuration: cfg.ShortAuctionDuration,
		OwnedAuctionDuration: cfg.OwnedAuctionDuration,
		ProtectionPeriod:     cfg.ProtectionPeriod,
		SweepInterval:        cfg.SweepInterval,
		Increment:            increment,
		Bonus: engine.BonusConfig{
			AdjacentRate:     cfg.AdjacentBonusRate,
			CountryRate:      cfg.CountryBonusRate,
			CountryThreshold: cfg.CountryThreshold,
		},
	})
	if err := eng.Load(ctx); err != nil {
		logger.Error("failed to load engine state", slog.String("error", err.Error()))
		os.Exit(1)
	}

	auctionSvc := service.NewAuctionService(eng, logger)
	territorySvc := service.NewTerritoryService(eng, oracle)

	// Router.
	router := handler.NewRouter(auctionSvc, territorySvc, webhookSvc, logger)

	// Start the expiry sweeper.
	eng.StartSweeper(ctx)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, stop the sweeper, drain webhook deliveries.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	eng.StopSweeper()
	cancel()
	webhookSvc.Wait()

	logger.Info("server stopped")
}
