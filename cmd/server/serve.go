package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/extrahours/api"
	"github.com/warp/extrahours/auth"
)

var (
	servePort      string
	recalcInterval time.Duration
	staticDir      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the HTTP API and the periodic recalculation job.

On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the database`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "HTTP server port (overrides PORT)")
	serveCmd.Flags().DurationVar(&recalcInterval, "recalc-interval", 0, "recalculation interval, 0 disables (overrides RECALC_INTERVAL)")
	serveCmd.Flags().StringVar(&staticDir, "static", "./web/dist", "built frontend to serve, ignored if missing")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}
	if cmd.Flags().Changed("recalc-interval") {
		cfg.RecalcInterval = recalcInterval
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		return err
	}

	logger := cfg.NewLogger(os.Stderr)

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	store, svc, err := openService(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	handler := api.NewHandler(svc, logger)
	handler.CronSecret = cfg.CronSecret
	handler.DB = store

	var limiter *api.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		defer limiter.Stop()
	}

	router := api.NewRouter(handler, api.Options{
		Verifier:    verifier,
		Limiter:     limiter,
		CORSOrigins: cfg.CORSOrigins,
		StaticDir:   staticDir,
	})

	scheduler := api.NewRecalculationScheduler(svc, logger, cfg.RecalcInterval)
	scheduler.Start()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "db", cfg.DBPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		scheduler.Stop()
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
