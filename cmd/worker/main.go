// Command worker runs the background insight pipeline.
//
// It claims queued analysis tasks, generates debt insights, writes them to
// the versioned cache, and settles the task rows. Multiple worker processes
// may run against the same database; the claim step is what serializes them.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/debtease/go-debtease-backend/internal/config"
	"github.com/debtease/go-debtease-backend/internal/insights"
	"github.com/debtease/go-debtease-backend/internal/observability"
	"github.com/debtease/go-debtease-backend/internal/queue"
	"github.com/debtease/go-debtease-backend/internal/repo"
	"github.com/debtease/go-debtease-backend/internal/services"
	"github.com/debtease/go-debtease-backend/internal/sysutil"
	"github.com/debtease/go-debtease-backend/internal/worker"
)

const appVersion = "1.0.0"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	var out = os.Stderr
	log := zerolog.New(out).With().Timestamp().Str("service", "debtease-worker").Logger()
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

	debtSvc := services.NewDebtService(db)
	queueSvc := services.NewQueueService(db, cfg.Queue.MaxAttempts)
	insightSvc := services.NewInsightService(db, debtSvc, queueSvc, cfg.CacheTTL)
	notifSvc := services.NewNotificationService(db)

	// Broker wake-ups are optional; without them the worker just polls.
	var wake <-chan struct{}
	if cfg.Queue.AMQPURL != "" {
		n, err := queue.NewAMQPNotifier(cfg.Queue.AMQPURL, cfg.Queue.AMQPQueue, log)
		if err != nil {
			log.Warn().Err(err).Msg("amqp unavailable, falling back to polling")
		} else {
			defer n.Close()
			if ch, err := n.Wake(ctx); err != nil {
				log.Warn().Err(err).Msg("amqp consume failed, falling back to polling")
			} else {
				wake = ch
			}
		}
	}

	w := &worker.Worker{
		Queue:         queueSvc,
		Insights:      insightSvc,
		Debts:         debtSvc,
		Notifications: notifSvc,
		Gen:           &insights.Generator{},
		Log:           log,
		PollInterval:  cfg.Queue.PollInterval,
		StaleAfter:    cfg.Queue.StaleAfter,
		Concurrency:   cfg.Queue.Concurrency,
		Wake:          wake,
	}

	log.Info().
		Int("concurrency", cfg.Queue.Concurrency).
		Dur("poll_interval", cfg.Queue.PollInterval).
		Bool("amqp", wake != nil).
		Msg("worker starting")

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("worker failed")
	}
	log.Info().Msg("worker stopped")
}
