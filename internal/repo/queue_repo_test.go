package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/debtease/go-debtease-backend/internal/domain"
)

func newQueueDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.QueueTask{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	u := &domain.User{ID: "u1", Email: "u1@example.com", PasswordHash: "x", Name: "Test"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return db
}

func TestEnqueueTask_DefaultsAndClamping(t *testing.T) {
	db := newQueueDB(t)

	task, err := EnqueueTask(context.Background(), db, "u1", "", nil, 0, 0)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if task.TaskType != domain.TaskTypeInsights {
		t.Fatalf("expected default task type, got %q", task.TaskType)
	}
	if task.Priority != domain.PriorityHighest {
		t.Fatalf("expected priority clamped to %d, got %d", domain.PriorityHighest, task.Priority)
	}
	if task.MaxAttempts != 3 {
		t.Fatalf("expected default max attempts 3, got %d", task.MaxAttempts)
	}
	if task.Status != domain.TaskQueued || task.Attempts != 0 {
		t.Fatalf("unexpected initial state: %+v", task)
	}

	low, err := EnqueueTask(context.Background(), db, "u1", "", nil, 99, 5)
	if err != nil {
		t.Fatalf("enqueue low: %v", err)
	}
	if low.Priority != domain.PriorityLowest {
		t.Fatalf("expected priority clamped to %d, got %d", domain.PriorityLowest, low.Priority)
	}
}

func TestClaimNextTask_OrdersByPriorityThenAge(t *testing.T) {
	db := newQueueDB(t)
	now := time.Now().UTC()

	seed := func(id string, priority int, createdAt time.Time) {
		t.Helper()
		row := &domain.QueueTask{
			ID: id, UserID: "u1", TaskType: domain.TaskTypeInsights,
			Status: domain.TaskQueued, Priority: priority, MaxAttempts: 3,
			CreatedAt: createdAt,
		}
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	seed("later-urgent", 1, now.Add(-time.Minute))
	seed("older-urgent", 1, now.Add(-2*time.Minute))
	seed("oldest-lazy", 9, now.Add(-time.Hour))

	first, err := ClaimNextTask(context.Background(), db, now)
	if err != nil {
		t.Fatalf("claim 1: %v", err)
	}
	if first == nil || first.ID != "older-urgent" {
		t.Fatalf("expected older-urgent first, got %+v", first)
	}
	if first.Status != domain.TaskProcessing || first.Attempts != 1 || first.StartedAt == nil {
		t.Fatalf("claim did not transition row: %+v", first)
	}

	second, err := ClaimNextTask(context.Background(), db, now)
	if err != nil {
		t.Fatalf("claim 2: %v", err)
	}
	if second == nil || second.ID != "later-urgent" {
		t.Fatalf("expected later-urgent second, got %+v", second)
	}

	third, err := ClaimNextTask(context.Background(), db, now)
	if err != nil {
		t.Fatalf("claim 3: %v", err)
	}
	if third == nil || third.ID != "oldest-lazy" {
		t.Fatalf("expected oldest-lazy third, got %+v", third)
	}

	empty, err := ClaimNextTask(context.Background(), db, now)
	if err != nil || empty != nil {
		t.Fatalf("expected empty queue, got (%+v, %v)", empty, err)
	}
}

func TestClaimNextTask_SkipsProcessingAndTerminalRows(t *testing.T) {
	db := newQueueDB(t)
	now := time.Now().UTC()

	rows := []*domain.QueueTask{
		{ID: "busy", UserID: "u1", TaskType: domain.TaskTypeInsights, Status: domain.TaskProcessing, Priority: 1, Attempts: 1, MaxAttempts: 3, CreatedAt: now},
		{ID: "spent", UserID: "u1", TaskType: domain.TaskTypeInsights, Status: domain.TaskFailed, Priority: 1, Attempts: 3, MaxAttempts: 3, CreatedAt: now},
		{ID: "done", UserID: "u1", TaskType: domain.TaskTypeInsights, Status: domain.TaskCompleted, Priority: 1, Attempts: 1, MaxAttempts: 3, CreatedAt: now},
		{ID: "retry", UserID: "u1", TaskType: domain.TaskTypeInsights, Status: domain.TaskFailed, Priority: 5, Attempts: 1, MaxAttempts: 3, CreatedAt: now},
	}
	for _, r := range rows {
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("seed %s: %v", r.ID, err)
		}
	}

	got, err := ClaimNextTask(context.Background(), db, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got == nil || got.ID != "retry" {
		t.Fatalf("expected the retryable failed row, got %+v", got)
	}
	if got.Attempts != 2 {
		t.Fatalf("expected attempts bumped to 2, got %d", got.Attempts)
	}
}

func TestClaimNextTask_ConcurrentWorkers_NoDoubleClaim(t *testing.T) {
	db := newQueueDB(t)
	now := time.Now().UTC()

	const tasks = 10
	const workers = 8

	for i := 0; i < tasks; i++ {
		row := &domain.QueueTask{
			ID: fmt.Sprintf("task-%02d", i), UserID: "u1", TaskType: domain.TaskTypeInsights,
			Status: domain.TaskQueued, Priority: domain.DefaultPriority, MaxAttempts: 3,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed %s: %v", row.ID, err)
		}
	}

	// Every worker drains the queue as fast as it can; the CAS guard must
	// hand each row to exactly one of them.
	claimed := make(chan string, tasks*workers)
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, err := ClaimNextTask(context.Background(), db, now)
				if err != nil {
					errs <- err
					return
				}
				if task == nil {
					return
				}
				claimed <- task.ID
			}
		}()
	}
	wg.Wait()
	close(claimed)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent claim: %v", err)
	}

	seen := make(map[string]int, tasks)
	for id := range claimed {
		seen[id]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Fatalf("task %s was claimed %d times", id, n)
		}
	}
	if len(seen) != tasks {
		t.Fatalf("expected %d distinct claims, got %d", tasks, len(seen))
	}

	// Everything is processing now; nothing is left to claim.
	if n, err := CountClaimable(context.Background(), db); err != nil || n != 0 {
		t.Fatalf("expected empty queue after drain, got %d err=%v", n, err)
	}
}

func TestCompleteTask_Transitions(t *testing.T) {
	db := newQueueDB(t)
	now := time.Now().UTC()

	task, err := EnqueueTask(context.Background(), db, "u1", "", nil, domain.DefaultPriority, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Completing a queued row is an invalid transition.
	if err := CompleteTask(context.Background(), db, task.ID, nil, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for queued row, got %v", err)
	}
	// Missing rows are distinguished from bad-state rows.
	if err := CompleteTask(context.Background(), db, "nope", nil, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing row, got %v", err)
	}

	claimed, err := ClaimNextTask(context.Background(), db, now)
	if err != nil || claimed == nil {
		t.Fatalf("claim: (%+v, %v)", claimed, err)
	}
	if err := CompleteTask(context.Background(), db, claimed.ID, datatypes.JSON(`{"ok":true}`), now); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := GetTask(context.Background(), db, claimed.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.TaskCompleted || got.CompletedAt == nil {
		t.Fatalf("row not terminal: %+v", got)
	}
	if !got.Terminal() {
		t.Fatalf("Terminal() should be true: %+v", got)
	}
}

func TestFailTask_RetryThenTerminal(t *testing.T) {
	db := newQueueDB(t)
	now := time.Now().UTC()

	task, err := EnqueueTask(context.Background(), db, "u1", "", nil, domain.DefaultPriority, 2)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Attempt 1: fail with budget left; row stays claimable.
	claimed, err := ClaimNextTask(context.Background(), db, now)
	if err != nil || claimed == nil || claimed.ID != task.ID {
		t.Fatalf("claim 1: (%+v, %v)", claimed, err)
	}
	if err := FailTask(context.Background(), db, task.ID, "analyzer crashed", now); err != nil {
		t.Fatalf("fail 1: %v", err)
	}
	after1, _ := GetTask(context.Background(), db, task.ID)
	if after1.Status != domain.TaskFailed || after1.CompletedAt != nil {
		t.Fatalf("first failure should be retryable: %+v", after1)
	}
	if !after1.Claimable() {
		t.Fatalf("Claimable() should be true after first failure")
	}

	// Attempt 2: budget exhausted; failure is terminal.
	claimed, err = ClaimNextTask(context.Background(), db, now)
	if err != nil || claimed == nil || claimed.ID != task.ID {
		t.Fatalf("claim 2: (%+v, %v)", claimed, err)
	}
	if err := FailTask(context.Background(), db, task.ID, "analyzer crashed again", now); err != nil {
		t.Fatalf("fail 2: %v", err)
	}
	after2, _ := GetTask(context.Background(), db, task.ID)
	if after2.Status != domain.TaskFailed || after2.CompletedAt == nil {
		t.Fatalf("second failure should be terminal: %+v", after2)
	}
	if after2.Claimable() || !after2.Terminal() {
		t.Fatalf("terminal row misreported: claimable=%v terminal=%v", after2.Claimable(), after2.Terminal())
	}
	if after2.ErrorLog == nil || *after2.ErrorLog != "analyzer crashed again" {
		t.Fatalf("error log not recorded: %+v", after2.ErrorLog)
	}

	// Failing a non-processing row is rejected.
	if err := FailTask(context.Background(), db, task.ID, "late", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestReclaimStaleTasks_SplitsRequeueAndTerminal(t *testing.T) {
	db := newQueueDB(t)
	now := time.Now().UTC()
	staleStart := now.Add(-2 * time.Hour)
	freshStart := now.Add(-time.Minute)

	rows := []*domain.QueueTask{
		{ID: "stale-retry", UserID: "u1", TaskType: domain.TaskTypeInsights, Status: domain.TaskProcessing, Priority: 5, Attempts: 1, MaxAttempts: 3, StartedAt: &staleStart, CreatedAt: staleStart},
		{ID: "stale-spent", UserID: "u1", TaskType: domain.TaskTypeInsights, Status: domain.TaskProcessing, Priority: 5, Attempts: 3, MaxAttempts: 3, StartedAt: &staleStart, CreatedAt: staleStart},
		{ID: "fresh", UserID: "u1", TaskType: domain.TaskTypeInsights, Status: domain.TaskProcessing, Priority: 5, Attempts: 1, MaxAttempts: 3, StartedAt: &freshStart, CreatedAt: freshStart},
	}
	for _, r := range rows {
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("seed %s: %v", r.ID, err)
		}
	}

	n, err := ReclaimStaleTasks(context.Background(), db, now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 reclaimed rows, got %d", n)
	}

	retry, _ := GetTask(context.Background(), db, "stale-retry")
	if retry.Status != domain.TaskQueued {
		t.Fatalf("stale-retry should be requeued, got %s", retry.Status)
	}
	spent, _ := GetTask(context.Background(), db, "stale-spent")
	if spent.Status != domain.TaskFailed || spent.CompletedAt == nil {
		t.Fatalf("stale-spent should be a terminal failure: %+v", spent)
	}
	if spent.ErrorLog == nil || *spent.ErrorLog != "worker timed out" {
		t.Fatalf("missing timeout error log: %+v", spent.ErrorLog)
	}
	fresh, _ := GetTask(context.Background(), db, "fresh")
	if fresh.Status != domain.TaskProcessing {
		t.Fatalf("fresh row must be untouched, got %s", fresh.Status)
	}
}

func TestCountClaimable(t *testing.T) {
	db := newQueueDB(t)
	now := time.Now().UTC()

	if _, err := EnqueueTask(context.Background(), db, "u1", "", nil, domain.DefaultPriority, 3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	failedRetry := &domain.QueueTask{ID: "fr", UserID: "u1", TaskType: domain.TaskTypeInsights, Status: domain.TaskFailed, Priority: 5, Attempts: 1, MaxAttempts: 3, CreatedAt: now}
	failedSpent := &domain.QueueTask{ID: "fs", UserID: "u1", TaskType: domain.TaskTypeInsights, Status: domain.TaskFailed, Priority: 5, Attempts: 3, MaxAttempts: 3, CreatedAt: now}
	for _, r := range []*domain.QueueTask{failedRetry, failedSpent} {
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	n, err := CountClaimable(context.Background(), db)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 claimable rows, got %d", n)
	}
}

func TestLatestTaskForUser(t *testing.T) {
	db := newQueueDB(t)
	now := time.Now().UTC()

	old := &domain.QueueTask{ID: "old", UserID: "u1", TaskType: domain.TaskTypeInsights, Status: domain.TaskCompleted, Priority: 5, MaxAttempts: 3, CreatedAt: now.Add(-time.Hour)}
	recent := &domain.QueueTask{ID: "recent", UserID: "u1", TaskType: domain.TaskTypeInsights, Status: domain.TaskQueued, Priority: 5, MaxAttempts: 3, CreatedAt: now}
	for _, r := range []*domain.QueueTask{old, recent} {
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := LatestTaskForUser(context.Background(), db, "u1", domain.TaskTypeInsights)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.ID != "recent" {
		t.Fatalf("expected recent task, got %s", got.ID)
	}

	if _, err := LatestTaskForUser(context.Background(), db, "nobody", domain.TaskTypeInsights); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
