package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/debtease/go-debtease-backend/internal/domain"
	"github.com/debtease/go-debtease-backend/internal/insights"
)

func newInsightEnv(t *testing.T) (*gorm.DB, *InsightService) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Debt{}, &domain.InsightCache{}, &domain.QueueTask{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	u := &domain.User{ID: "u1", Email: "u1@example.com", PasswordHash: "x", Name: "Test"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	debts := NewDebtService(db)
	queue := NewQueueService(db, 3)
	return db, NewInsightService(db, debts, queue, time.Hour)
}

func seedInsightDebt(t *testing.T, svc *InsightService) *domain.Debt {
	t.Helper()
	d, err := svc.Debts.Create(context.Background(), "u1", DebtInput{
		Name:            "Car loan",
		DebtType:        domain.DebtVehicleLoan,
		PrincipalAmount: 20000,
		CurrentBalance:  15000,
		InterestRate:    9.5,
		MinimumPayment:  400,
		Lender:          "Auto Credit",
	})
	if err != nil {
		t.Fatalf("seed debt: %v", err)
	}
	return d
}

func sampleResult() *insights.Result {
	return &insights.Result{
		DebtSummary: insights.DebtSummary{
			TotalDebt:           15000,
			TotalMinimumPayment: 400,
			AverageInterestRate: 9.5,
			HighestInterestRate: 9.5,
			DebtCount:           1,
		},
		Metadata: insights.Metadata{GeneratedAt: time.Now().UTC().Format(time.RFC3339)},
	}
}

func TestInsightGet_MissThenRequestThenHit(t *testing.T) {
	_, svc := newInsightEnv(t)
	seedInsightDebt(t, svc)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "u1"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss on cold cache, got %v", err)
	}

	task, err := svc.Request(ctx, "u1", false, 0, false)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if task.Status != domain.TaskQueued || task.TaskType != domain.TaskTypeInsights {
		t.Fatalf("unexpected task: %+v", task)
	}

	// The worker finishes: Put writes the cache under the task's key.
	var payload insights.TaskPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if _, err := svc.Put(ctx, "u1", payload.CacheKey, sampleResult(), 0.42); err != nil {
		t.Fatalf("put: %v", err)
	}

	resp, err := svc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get after put: %v", err)
	}
	if resp.Metadata["cached"] != true {
		t.Fatalf("metadata missing cache marker: %+v", resp.Metadata)
	}
	if resp.Metadata["cache_version"] != float64(1) && resp.Metadata["cache_version"] != 1 {
		t.Fatalf("unexpected cache version: %v", resp.Metadata["cache_version"])
	}
	var summary insights.DebtSummary
	if err := json.Unmarshal(resp.DebtSummary, &summary); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalDebt != 15000 {
		t.Fatalf("summary round-trip lost data: %+v", summary)
	}
}

func TestInsightRequest_ReusesPendingTask(t *testing.T) {
	_, svc := newInsightEnv(t)
	seedInsightDebt(t, svc)
	ctx := context.Background()

	first, err := svc.Request(ctx, "u1", false, 0, false)
	if err != nil {
		t.Fatalf("request 1: %v", err)
	}
	second, err := svc.Request(ctx, "u1", false, 0, false)
	if err != nil {
		t.Fatalf("request 2: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the pending task to be reused, got %s vs %s", first.ID, second.ID)
	}
}

func TestInsightRequest_NewTaskWhenPortfolioChanged(t *testing.T) {
	_, svc := newInsightEnv(t)
	d := seedInsightDebt(t, svc)
	ctx := context.Background()

	first, err := svc.Request(ctx, "u1", false, 0, false)
	if err != nil {
		t.Fatalf("request 1: %v", err)
	}

	// The portfolio changes; the pending task now targets a stale key and must
	// not be reused.
	if _, err := svc.Debts.Update(ctx, "u1", d.ID, map[string]any{"current_balance": 100.0}); err != nil {
		t.Fatalf("update debt: %v", err)
	}
	second, err := svc.Request(ctx, "u1", false, 0, false)
	if err != nil {
		t.Fatalf("request 2: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("stale pending task must not be reused after a portfolio change")
	}
}

func TestInsightRequest_ForceInvalidatesAndEnqueues(t *testing.T) {
	_, svc := newInsightEnv(t)
	seedInsightDebt(t, svc)
	ctx := context.Background()

	key, err := svc.Debts.CacheKey(ctx, "u1")
	if err != nil {
		t.Fatalf("cache key: %v", err)
	}
	if _, err := svc.Put(ctx, "u1", key, sampleResult(), 0.1); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := svc.Get(ctx, "u1"); err != nil {
		t.Fatalf("warm get: %v", err)
	}

	first, err := svc.Request(ctx, "u1", true, 5000, true)
	if err != nil {
		t.Fatalf("force request: %v", err)
	}
	// The live entry is gone and a fresh task exists even though one could
	// have been reused.
	if _, err := svc.Get(ctx, "u1"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after force, got %v", err)
	}
	second, err := svc.Request(ctx, "u1", true, 5000, true)
	if err != nil {
		t.Fatalf("second force request: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("force must always enqueue a new task")
	}

	var payload insights.TaskPayload
	if err := json.Unmarshal(second.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if !payload.IncludeDTI || payload.MonthlyIncome != 5000 {
		t.Fatalf("payload lost request options: %+v", payload)
	}
}

type recordingNotifier struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingNotifier) Notify(_ context.Context, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, taskID)
	return nil
}

func TestInsightRequest_PingsNotifier(t *testing.T) {
	_, svc := newInsightEnv(t)
	seedInsightDebt(t, svc)

	rec := &recordingNotifier{}
	svc.Queue.Notifier = rec

	task, err := svc.Request(context.Background(), "u1", false, 0, false)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.ids) != 1 || rec.ids[0] != task.ID {
		t.Fatalf("notifier not pinged with the task id: %+v", rec.ids)
	}
}

func TestInsightStatus(t *testing.T) {
	_, svc := newInsightEnv(t)
	seedInsightDebt(t, svc)
	ctx := context.Background()

	if _, err := svc.Status(ctx, "u1"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not-found on empty history, got %v", err)
	}

	task, err := svc.Request(ctx, "u1", false, 0, false)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	got, err := svc.Status(ctx, "u1")
	if err != nil || got.ID != task.ID {
		t.Fatalf("status: (%+v, %v)", got, err)
	}
}
