// Package services – QueueService
//
// This file implements the processing-queue state machine over the
// ai_processing_queue table: enqueue, claim, complete, fail, and stale-row
// reclaim. The claim is a compare-and-swap in the repo layer, so any number
// of workers can poll ClaimNext concurrently and a row is only ever handed to
// one of them.
//
// Priority runs from 1 (most urgent) to 10 (least); ties are broken by
// created_at, oldest first.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/debtease/go-debtease-backend/internal/domain"
	"github.com/debtease/go-debtease-backend/internal/repo"
)

// TaskNotifier nudges workers when new work is enqueued. Implementations must
// be safe for concurrent use; failures are treated as non-fatal because
// workers also poll.
type TaskNotifier interface {
	// Notify announces that the task with the given id became claimable.
	Notify(ctx context.Context, taskID string) error
}

// QueueService provides the queue operations used by the API (enqueue,
// status) and the worker (claim, complete, fail, reclaim).
type QueueService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Notifier, when set, is pinged after each enqueue. Optional.
	Notifier TaskNotifier
	// MaxAttempts is the retry budget stamped on new tasks.
	MaxAttempts int
	// Now overrides the clock in tests; nil means time.Now().UTC.
	Now func() time.Time
}

// NewQueueService constructs a QueueService with the given retry budget.
func NewQueueService(db *gorm.DB, maxAttempts int) *QueueService {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &QueueService{DB: db, MaxAttempts: maxAttempts}
}

func (s *QueueService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Enqueue inserts a queued task for userID and nudges the notifier. A missing
// user surfaces as ErrReference.
func (s *QueueService) Enqueue(ctx context.Context, userID, taskType string, payload datatypes.JSON, priority int) (*domain.QueueTask, error) {
	t, err := repo.EnqueueTask(ctx, s.DB, userID, taskType, payload, priority, s.MaxAttempts)
	if errors.Is(err, repo.ErrReference) {
		return nil, ErrReference
	}
	if err != nil {
		return nil, err
	}
	if s.Notifier != nil {
		// Best effort: workers poll anyway.
		_ = s.Notifier.Notify(ctx, t.ID)
	}
	return t, nil
}

// ClaimNext atomically claims the most urgent claimable task, transitioning
// it to processing with attempts incremented. Returns (nil, nil) when the
// queue has nothing claimable.
func (s *QueueService) ClaimNext(ctx context.Context) (*domain.QueueTask, error) {
	return repo.ClaimNextTask(ctx, s.DB, s.now())
}

// Complete transitions a processing task to completed with the given result.
// Completing a task in any other state yields ErrInvalidState.
func (s *QueueService) Complete(ctx context.Context, id string, result datatypes.JSON) error {
	err := repo.CompleteTask(ctx, s.DB, id, result, s.now())
	if errors.Is(err, repo.ErrInvalidTransition) {
		return ErrInvalidState
	}
	return err
}

// Fail transitions a processing task to failed with the given error text and
// reports whether the failure is terminal (retry budget spent). Failing a
// task in any other state yields ErrInvalidState.
func (s *QueueService) Fail(ctx context.Context, id, errMsg string) (terminal bool, err error) {
	if err := repo.FailTask(ctx, s.DB, id, errMsg, s.now()); err != nil {
		if errors.Is(err, repo.ErrInvalidTransition) {
			return false, ErrInvalidState
		}
		return false, err
	}
	t, err := repo.GetTask(ctx, s.DB, id)
	if err != nil {
		return false, err
	}
	return t.Terminal(), nil
}

// Get fetches a task by id, or ErrNotFound.
func (s *QueueService) Get(ctx context.Context, id string) (*domain.QueueTask, error) {
	return repo.GetTask(ctx, s.DB, id)
}

// LatestForUser returns the most recent task of the given type for a user.
func (s *QueueService) LatestForUser(ctx context.Context, userID, taskType string) (*domain.QueueTask, error) {
	return repo.LatestTaskForUser(ctx, s.DB, userID, taskType)
}

// ReclaimStale requeues (or terminally fails) processing tasks older than
// staleAfter, covering workers that died mid-task.
func (s *QueueService) ReclaimStale(ctx context.Context, staleAfter time.Duration) (int64, error) {
	now := s.now()
	return repo.ReclaimStaleTasks(ctx, s.DB, now.Add(-staleAfter), now)
}

// Depth returns the number of currently claimable tasks.
func (s *QueueService) Depth(ctx context.Context) (int64, error) {
	return repo.CountClaimable(ctx, s.DB)
}
