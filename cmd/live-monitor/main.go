package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	appbuild "github.com/ducminhle1904/forex-phase-bot/internal/config"
	"github.com/ducminhle1904/forex-phase-bot/internal/live"
	"github.com/ducminhle1904/forex-phase-bot/internal/monitoring"
	"github.com/ducminhle1904/forex-phase-bot/internal/tradelog"
	"github.com/ducminhle1904/forex-phase-bot/pkg/config"
)

func main() {
	var (
		configFile = flag.String("config", "config.json", "Path to configuration file")
		envFile    = flag.String("env", ".env", "Environment file path")
	)
	flag.Parse()

	// Load .env file if it exists
	if _, err := os.Stat(*envFile); err == nil {
		if err := godotenv.Load(*envFile); err != nil {
			log.Printf("⚠️ Failed to load %s: %v", *envFile, err)
		}
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if cfg.Live.FeedURL == "" {
		log.Fatalf("❌ live.feed_url (or FEED_URL) is required")
	}
	if len(cfg.Instances) == 0 {
		log.Fatalf("❌ no instances configured")
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	events, closeEvents, err := openTradeLog(cfg.TradeLogFile)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer closeEvents()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := monitoring.NewHealthChecker()

	feed, err := live.NewFeed(live.FeedConfig{
		URL:     cfg.Live.FeedURL,
		Symbols: symbols(cfg),
		Health:  health,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if err := feed.Start(ctx); err != nil {
		log.Fatalf("❌ Feed: %v", err)
	}
	defer feed.Close()

	// The feed delivers each symbol's bars to exactly one consumer, so
	// one live instance per symbol.
	used := make(map[string]bool)

	runners := make([]*live.Runner, 0, len(cfg.Instances))
	for _, inst := range cfg.Instances {
		if used[inst.Instrument.Symbol] {
			log.Fatalf("❌ %s: only one live instance per symbol", inst.Instrument.Symbol)
		}
		used[inst.Instrument.Symbol] = true

		variant, err := appbuild.BuildVariant(inst)
		if err != nil {
			log.Fatalf("❌ %s: %v", inst.Instrument.Symbol, err)
		}

		runner, err := live.NewRunner(live.RunnerConfig{
			Instrument:     inst.Instrument,
			Variant:        variant,
			Indicators:     appbuild.BuildIndicators(inst),
			InitialBalance: cfg.InitialBalance,
			RiskFraction:   inst.RiskFraction,
			Feed:           feed,
			Health:         health,
			TradeLog:       events,
			Logger:         logger,
		})
		if err != nil {
			log.Fatalf("❌ %s: %v", inst.Instrument.Symbol, err)
		}
		runners = append(runners, runner)
	}

	startServer(cfg.Live.PrometheusPort, "/metrics", monitoring.NewMetricsHandler(), logger)
	startServer(cfg.Live.HealthPort, "/health", health, logger)

	logger.Info().
		Int("instances", len(runners)).
		Str("feed", cfg.Live.FeedURL).
		Msg("📊 Live monitoring started")

	if err := live.NewSupervisor(runners, logger).Run(ctx); err != nil {
		logger.Error().Err(err).Msg("❌ Monitoring stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("✅ Shutdown complete")
}

func symbols(cfg *config.Config) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(cfg.Instances))
	for _, inst := range cfg.Instances {
		sym := inst.Instrument.Symbol
		if !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	return out
}

func startServer(port int, path string, handler http.Handler, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Int("port", port).Msg("❌ HTTP server failed")
		}
	}()
}

func openTradeLog(path string) (*tradelog.Logger, func(), error) {
	if path == "" {
		return tradelog.NewConsole(os.Stdout), func() {}, nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create trade log directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open trade log: %w", err)
	}
	return tradelog.New(file), func() { file.Close() }, nil
}
