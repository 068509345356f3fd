// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ai_processing_queue table: the persisted task queue the background workers
// contend over.
//
// State machine: queued → processing → {completed | failed}. A failed row is
// re-claimable while attempts < max_attempts; it becomes terminal once the
// budget is spent. Priority 1 is the most urgent, 10 the least; claims order
// by priority ascending, then created_at ascending.
//
// Claim exclusivity: ClaimNextTask performs a compare-and-swap UPDATE guarded
// on the status it read. Two workers racing for the same row will both issue
// the UPDATE, but only one matches the guard (RowsAffected == 1); the loser
// retries against the next candidate. No row is ever handed to two workers.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/debtease/go-debtease-backend/internal/domain"
)

// ErrInvalidTransition is returned when a terminal-state update targets a row
// that is not currently processing.
var ErrInvalidTransition = errors.New("task is not in a state that allows this transition")

// claimRetries bounds how many CAS rounds a single ClaimNextTask call makes
// before reporting an empty queue. Under heavy contention a caller simply
// polls again.
const claimRetries = 5

// EnqueueTask inserts a queued row for userID with the given task type,
// payload, and priority, attempts = 0. A missing user surfaces as ErrReference.
func EnqueueTask(ctx context.Context, db *gorm.DB, userID, taskType string,
	payload datatypes.JSON, priority, maxAttempts int) (*domain.QueueTask, error) {

	if taskType == "" {
		taskType = domain.TaskTypeInsights
	}
	if priority < domain.PriorityHighest {
		priority = domain.PriorityHighest
	}
	if priority > domain.PriorityLowest {
		priority = domain.PriorityLowest
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	t := &domain.QueueTask{
		ID:          uuid.NewString(),
		UserID:      userID,
		TaskType:    taskType,
		Status:      domain.TaskQueued,
		Priority:    priority,
		Attempts:    0,
		MaxAttempts: maxAttempts,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrReference
		}
		return nil, err
	}
	return t, nil
}

// GetTask fetches a queue row by id, or ErrNotFound.
func GetTask(ctx context.Context, db *gorm.DB, id string) (*domain.QueueTask, error) {
	var t domain.QueueTask
	if err := db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// LatestTaskForUser returns the most recently created row for (userID,
// taskType), or ErrNotFound. Used by the status endpoint.
func LatestTaskForUser(ctx context.Context, db *gorm.DB, userID, taskType string) (*domain.QueueTask, error) {
	var t domain.QueueTask
	err := db.WithContext(ctx).
		Where("user_id = ? AND task_type = ?", userID, taskType).
		Order("created_at DESC").
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ClaimNextTask atomically claims the most urgent claimable row: queued rows
// and retry-eligible failed rows, ordered by priority ASC then created_at
// ASC. On success the row is transitioned to processing with started_at = now
// and attempts incremented.
//
// Returns (nil, nil) when nothing is claimable.
func ClaimNextTask(ctx context.Context, db *gorm.DB, now time.Time) (*domain.QueueTask, error) {
	for i := 0; i < claimRetries; i++ {
		var t domain.QueueTask
		err := db.WithContext(ctx).
			Where("status = ? OR (status = ? AND attempts < max_attempts)",
				domain.TaskQueued, domain.TaskFailed).
			Order("priority ASC, created_at ASC").
			First(&t).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		// CAS: only wins if the row still looks exactly like what we read.
		res := db.WithContext(ctx).
			Model(&domain.QueueTask{}).
			Where("id = ? AND status = ? AND attempts = ?", t.ID, t.Status, t.Attempts).
			Updates(map[string]any{
				"status":     domain.TaskProcessing,
				"started_at": now,
				"attempts":   t.Attempts + 1,
				"updated_at": now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			t.Status = domain.TaskProcessing
			t.StartedAt = &now
			t.Attempts++
			t.UpdatedAt = now
			return &t, nil
		}
		// Lost the race; another worker moved the row. Try the next candidate.
	}
	return nil, nil
}

// CompleteTask transitions a processing row to completed, recording the result
// and completed_at. A row in any other state yields ErrInvalidTransition;
// a missing row yields ErrNotFound.
func CompleteTask(ctx context.Context, db *gorm.DB, id string, result datatypes.JSON, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.QueueTask{}).
		Where("id = ? AND status = ?", id, domain.TaskProcessing).
		Updates(map[string]any{
			"status":       domain.TaskCompleted,
			"result":       result,
			"completed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return transitionFailure(ctx, db, id)
	}
	return nil
}

// FailTask transitions a processing row to failed, recording the error text.
// When the attempt budget is exhausted the failure is terminal and
// completed_at is stamped; otherwise the row stays claimable for a retry.
// A row in any other state yields ErrInvalidTransition.
func FailTask(ctx context.Context, db *gorm.DB, id, errMsg string, now time.Time) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t domain.QueueTask
		if err := tx.First(&t, "id = ?", id).Error; err != nil {
			return err
		}
		if t.Status != domain.TaskProcessing {
			return ErrInvalidTransition
		}

		patch := map[string]any{
			"status":     domain.TaskFailed,
			"error_log":  errMsg,
			"updated_at": now,
		}
		if t.Attempts >= t.MaxAttempts {
			patch["completed_at"] = now
		}

		res := tx.Model(&domain.QueueTask{}).
			Where("id = ? AND status = ?", id, domain.TaskProcessing).
			Updates(patch)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		return nil
	})
}

// ReclaimStaleTasks handles processing rows whose started_at is older than
// the cutoff (a crashed or wedged worker). Rows with retry budget left go
// back to queued; rows that already spent their last attempt become terminal
// failures. The attempt spent by the dead worker stays counted. Returns the
// number of rows touched.
func ReclaimStaleTasks(ctx context.Context, db *gorm.DB, cutoff, now time.Time) (int64, error) {
	stale := "status = ? AND started_at IS NOT NULL AND started_at < ?"

	requeued := db.WithContext(ctx).
		Model(&domain.QueueTask{}).
		Where(stale, domain.TaskProcessing, cutoff).
		Where("attempts < max_attempts").
		Updates(map[string]any{
			"status":     domain.TaskQueued,
			"updated_at": now,
		})
	if requeued.Error != nil {
		return 0, requeued.Error
	}

	exhausted := db.WithContext(ctx).
		Model(&domain.QueueTask{}).
		Where(stale, domain.TaskProcessing, cutoff).
		Where("attempts >= max_attempts").
		Updates(map[string]any{
			"status":       domain.TaskFailed,
			"error_log":    "worker timed out",
			"completed_at": now,
			"updated_at":   now,
		})
	if exhausted.Error != nil {
		return requeued.RowsAffected, exhausted.Error
	}
	return requeued.RowsAffected + exhausted.RowsAffected, nil
}

// CountClaimable returns how many rows a worker could claim right now.
// Exported for the queue depth gauge.
func CountClaimable(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.QueueTask{}).
		Where("status = ? OR (status = ? AND attempts < max_attempts)",
			domain.TaskQueued, domain.TaskFailed).
		Count(&n).Error
	return n, err
}

// transitionFailure distinguishes "row does not exist" from "row exists but is
// not processing" after a guarded update matched nothing.
func transitionFailure(ctx context.Context, db *gorm.DB, id string) error {
	var n int64
	if err := db.WithContext(ctx).
		Model(&domain.QueueTask{}).
		Where("id = ?", id).
		Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrInvalidTransition
}
