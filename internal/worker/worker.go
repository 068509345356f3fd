// Package worker runs the background insight pipeline: it claims tasks from
// the ai_processing_queue table, generates the analysis, writes the result
// into the insight cache, and settles the task.
//
// Claiming is the compare-and-swap in the repo layer, so any number of worker
// processes can run concurrently; a task is only ever handed to one of them.
// Work is triggered by a poll ticker and, when a broker is configured, by
// AMQP wake-up nudges in between ticks. A maintenance loop reclaims tasks
// orphaned by dead workers and purges expired cache rows.
package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/datatypes"

	"github.com/debtease/go-debtease-backend/internal/domain"
	"github.com/debtease/go-debtease-backend/internal/insights"
	"github.com/debtease/go-debtease-backend/internal/services"
)

// maintenanceInterval paces stale-task reclaim and cache purges.
const maintenanceInterval = time.Minute

var (
	// tasksSettled counts settled tasks by outcome (completed, retried, failed).
	tasksSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_tasks_settled_total",
			Help: "Total number of insight tasks settled by the worker.",
		},
		[]string{"outcome"},
	)

	// taskDuration records per-task processing time in seconds.
	taskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insight_task_duration_seconds",
			Help:    "Duration of insight task processing in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// queueDepth gauges the number of claimable tasks, sampled each poll.
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "insight_queue_depth",
			Help: "Number of currently claimable insight tasks.",
		},
	)
)

func init() {
	prometheus.MustRegister(tasksSettled, taskDuration, queueDepth)
}

// taskResult is the JSON written into the queue row's result column on
// completion; clients polling task status use it to locate the cache entry.
type taskResult struct {
	CacheKey     string `json:"cache_key"`
	CacheVersion int    `json:"cache_version"`
	GeneratedAt  string `json:"generated_at"`
}

// Worker drives the insight pipeline.
type Worker struct {
	// Queue claims and settles tasks.
	Queue *services.QueueService
	// Insights stores generated results in the cache.
	Insights *services.InsightService
	// Debts loads the portfolio a task analyzes.
	Debts *services.DebtService
	// Notifications delivers terminal-failure messages to the user's inbox.
	Notifications *services.NotificationService
	// Gen produces the analysis.
	Gen *insights.Generator
	// Log is the worker's structured logger.
	Log zerolog.Logger

	// PollInterval paces the claim loop; defaults to 2s.
	PollInterval time.Duration
	// StaleAfter is how long a processing task may sit before reclaim;
	// defaults to 1h.
	StaleAfter time.Duration
	// Concurrency is the number of claim goroutines; defaults to 2.
	Concurrency int
	// Wake, when non-nil, delivers broker nudges between poll ticks.
	Wake <-chan struct{}
	// Now overrides the clock in tests; nil means time.Now().UTC.
	Now func() time.Time
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now().UTC()
}

// Run processes tasks until ctx is cancelled. It always returns ctx.Err().
func (w *Worker) Run(ctx context.Context) error {
	poll := w.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	stale := w.StaleAfter
	if stale <= 0 {
		stale = time.Hour
	}
	concurrency := w.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	w.Log.Info().
		Dur("poll_interval", poll).
		Dur("stale_after", stale).
		Int("concurrency", concurrency).
		Msg("worker started")

	// Each signal on work makes one goroutine drain the queue.
	work := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(id int) {
			defer wg.Done()
			log := w.Log.With().Int("worker", id).Logger()
			for range work {
				w.drain(ctx, log)
			}
		}(i)
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	maintenance := time.NewTicker(maintenanceInterval)
	defer maintenance.Stop()

	nudge := func() {
		select {
		case work <- struct{}{}:
		default:
		}
	}
	nudge() // immediate first pass

	for {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			w.Log.Info().Msg("worker stopped")
			return ctx.Err()
		case <-ticker.C:
			if depth, err := w.Queue.Depth(ctx); err == nil {
				queueDepth.Set(float64(depth))
			}
			nudge()
		case _, ok := <-w.Wake:
			if ok {
				nudge()
			} else {
				w.Wake = nil
			}
		case <-maintenance.C:
			w.maintain(ctx, stale)
		}
	}
}

// drain claims and processes tasks until the queue is empty or ctx ends.
func (w *Worker) drain(ctx context.Context, log zerolog.Logger) {
	for ctx.Err() == nil {
		task, err := w.Queue.ClaimNext(ctx)
		if err != nil {
			log.Error().Err(err).Msg("claim failed")
			return
		}
		if task == nil {
			return
		}
		w.process(ctx, log, task)
	}
}

// process runs one claimed task end to end and settles it.
func (w *Worker) process(ctx context.Context, log zerolog.Logger, task *domain.QueueTask) {
	start := w.now()
	log = log.With().Str("task_id", task.ID).Str("user_id", task.UserID).Int("attempt", task.Attempts).Logger()

	entry, err := w.generate(ctx, task)
	elapsed := time.Since(start)
	taskDuration.Observe(elapsed.Seconds())

	if err != nil {
		terminal, failErr := w.Queue.Fail(ctx, task.ID, err.Error())
		if failErr != nil {
			log.Error().Err(failErr).Msg("failed to settle task as failed")
			return
		}
		if terminal {
			tasksSettled.WithLabelValues("failed").Inc()
			log.Error().Err(err).Dur("elapsed", elapsed).Msg("task failed terminally")
			w.notifyFailure(ctx, task.UserID)
		} else {
			tasksSettled.WithLabelValues("retried").Inc()
			log.Warn().Err(err).Dur("elapsed", elapsed).Msg("task failed, will retry")
		}
		return
	}

	result, err := json.Marshal(taskResult{
		CacheKey:     entry.CacheKey,
		CacheVersion: entry.Version,
		GeneratedAt:  entry.GeneratedAt.Format(time.RFC3339),
	})
	if err == nil {
		err = w.Queue.Complete(ctx, task.ID, datatypes.JSON(result))
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to settle task as completed")
		return
	}
	tasksSettled.WithLabelValues("completed").Inc()
	log.Info().Dur("elapsed", elapsed).Int("cache_version", entry.Version).Msg("task completed")
}

// generate produces the analysis for a task and writes it to the cache. The
// portfolio is re-read at execution time, so the entry is stored under the
// current cache key even if debts changed since the task was enqueued.
func (w *Worker) generate(ctx context.Context, task *domain.QueueTask) (*domain.InsightCache, error) {
	var payload insights.TaskPayload
	if len(task.Payload) > 0 {
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return nil, err
		}
	}

	debts, err := w.Debts.List(ctx, task.UserID)
	if err != nil {
		return nil, err
	}
	key := domain.CacheKeyForDebts(task.UserID, debts)

	start := w.now()
	res := w.Gen.Generate(debts, payload.IncludeDTI, payload.MonthlyIncome)
	processing := time.Since(start).Seconds()

	return w.Insights.Put(ctx, task.UserID, key, res, processing)
}

// notifyFailure drops an inbox message after the retry budget is spent. Best
// effort: the terminal task status is already visible to pollers.
func (w *Worker) notifyFailure(ctx context.Context, userID string) {
	if w.Notifications == nil {
		return
	}
	p := message.NewPrinter(language.English)
	_, _ = w.Notifications.Push(ctx, userID, "insights_failed",
		"Insights generation failed",
		p.Sprintf("We could not generate debt insights for your portfolio. Please try again later."))
}

// maintain reclaims stale processing tasks and purges expired cache rows.
func (w *Worker) maintain(ctx context.Context, staleAfter time.Duration) {
	if n, err := w.Queue.ReclaimStale(ctx, staleAfter); err != nil {
		w.Log.Error().Err(err).Msg("stale task reclaim failed")
	} else if n > 0 {
		w.Log.Warn().Int64("tasks", n).Msg("reclaimed stale processing tasks")
	}

	if n, err := w.Insights.PurgeExpired(ctx); err != nil {
		w.Log.Error().Err(err).Msg("cache purge failed")
	} else if n > 0 {
		w.Log.Debug().Int64("rows", n).Msg("purged expired cache rows")
	}
}
