package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sjsage522/pricebot/config"
	"sjsage522/pricebot/logger"
	"sjsage522/pricebot/metrics"
)

func main() {
	reset := flag.Bool("reset", false, "drop and recreate the products table, then exit")
	once := flag.Bool("once", false, "run a single scrape and exit")
	flag.Parse()

	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("store", cfg.StoreDriver).
		Strs("regions", cfg.Regions).
		Dur("crawl_interval", cfg.CrawlInterval).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}

	if *reset || *once {
		code := 0
		if err := runCommand(ctx, app, cfg, *reset); err != nil {
			log.Error().Err(err).Bool("reset", *reset).Msg("Command failed")
			code = 1
		}
		app.Cleanup()
		cancel()
		os.Exit(code)
	}
	defer app.Cleanup()

	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	// Set up signal handling; SIGUSR1 asks for an admin scrape
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)

	workerDone := make(chan struct{})
	go func() {
		log.Info().Msg("Starting scrape worker")
		app.Worker.Start(ctx)
		close(workerDone)
	}()

	for running := true; running; {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGUSR1 {
				go func() {
					if _, err := app.Worker.Trigger(ctx, cfg.AdminID); err != nil {
						log.Warn().Err(err).Msg("Admin scrape not run")
					}
				}()
				continue
			}
			log.Info().
				Str("signal", sig.String()).
				Msg("Received shutdown signal")
			running = false
		case <-workerDone:
			log.Info().Msg("Worker exited")
			running = false
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Metrics server shutdown")
	}

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Worker did not stop in time")
	}
}

// runCommand handles the one-shot flags: reset drops and recreates the
// products table, otherwise a single admin scrape runs.
func runCommand(ctx context.Context, app *App, cfg *config.Config, reset bool) error {
	if reset {
		if err := app.Store.Reset(ctx); err != nil {
			return fmt.Errorf("reset store: %w", err)
		}
		return nil
	}
	if _, err := app.Worker.Trigger(ctx, cfg.AdminID); err != nil {
		return fmt.Errorf("scrape: %w", err)
	}
	return nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
