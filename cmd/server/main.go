// Command server runs the DebtEase HTTP API.
//
// It loads configuration from the environment (and an optional .env file),
// opens the SQLite database, wires tracing, and serves the REST API until
// SIGINT/SIGTERM, then drains in-flight requests.
//
// @title        DebtEase API
// @version      1.0
// @description  Debt management backend: debts, payments, repayment plans, verifiable credentials, and AI-generated insights.
// @BasePath     /api
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/debtease/go-debtease-backend/internal/config"
	httpapi "github.com/debtease/go-debtease-backend/internal/http"
	"github.com/debtease/go-debtease-backend/internal/observability"
	"github.com/debtease/go-debtease-backend/internal/queue"
	"github.com/debtease/go-debtease-backend/internal/repo"
	"github.com/debtease/go-debtease-backend/internal/services"
	"github.com/debtease/go-debtease-backend/internal/sysutil"
)

const appVersion = "1.0.0"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	var out = os.Stderr
	log := zerolog.New(out).With().Timestamp().Str("service", "debtease-api").Logger()
	if cfg.LogPretty {
		log = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(c)
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Warn().Err(err).Msg("db tracing disabled")
		}
	}

	var notifier services.TaskNotifier = queue.NopNotifier{}
	if cfg.Queue.AMQPURL != "" {
		n, err := queue.NewAMQPNotifier(cfg.Queue.AMQPURL, cfg.Queue.AMQPQueue, log)
		if err != nil {
			log.Warn().Err(err).Msg("amqp unavailable, workers rely on polling")
		} else {
			notifier = n
			defer n.Close()
		}
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg, notifier)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
