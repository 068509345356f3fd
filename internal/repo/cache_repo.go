// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ai_insights_cache table.
//
// The cache is append-only by policy: PutInsightCache always inserts a fresh
// row with a bumped version, and GetInsightCache picks the newest completed,
// unexpired row for the (user, key) pair. InvalidateInsightCache expires live
// rows in place instead of deleting them, preserving the audit trail.
//
// Callers pass `now` explicitly so expiry behavior is deterministic in tests.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/debtease/go-debtease-backend/internal/domain"
)

// GetInsightCache returns the freshest live cache entry for (userID, cacheKey):
// status completed and expires_at strictly after now. A stale or absent entry
// is ErrNotFound; the caller decides whether that means "recompute".
func GetInsightCache(ctx context.Context, db *gorm.DB, userID, cacheKey string, now time.Time) (*domain.InsightCache, error) {
	var c domain.InsightCache
	err := db.WithContext(ctx).
		Where("user_id = ? AND cache_key = ? AND status = ? AND expires_at > ?",
			userID, cacheKey, domain.CacheCompleted, now).
		Order("generated_at DESC, version DESC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// PutInsightCache inserts a completed cache entry for (userID, cacheKey) with
// expires_at = now + ttl. The version is one higher than any existing row for
// the same pair, so regenerations form a history instead of clobbering each
// other.
//
// Returns ErrReference when the user does not exist and gorm.ErrInvalidData
// when ttl is not positive (the schema invariant requires expiry strictly
// after generation).
func PutInsightCache(ctx context.Context, db *gorm.DB, userID, cacheKey string,
	debtAnalysis, recommendations, metadata datatypes.JSON,
	ttl time.Duration, processingTime *float64, modelUsed *string, now time.Time) (*domain.InsightCache, error) {

	if ttl <= 0 {
		return nil, gorm.ErrInvalidData
	}

	var entry *domain.InsightCache
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxVersion int
		if err := tx.Model(&domain.InsightCache{}).
			Where("user_id = ? AND cache_key = ?", userID, cacheKey).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error; err != nil {
			return err
		}

		entry = &domain.InsightCache{
			ID:              uuid.NewString(),
			UserID:          userID,
			DebtAnalysis:    debtAnalysis,
			Recommendations: recommendations,
			Metadata:        metadata,
			CacheKey:        cacheKey,
			GeneratedAt:     now,
			ExpiresAt:       now.Add(ttl),
			Version:         maxVersion + 1,
			Status:          domain.CacheCompleted,
			ProcessingTime:  processingTime,
			AIModelUsed:     modelUsed,
		}
		if err := tx.Create(entry).Error; err != nil {
			if isForeignKeyViolation(err) {
				return ErrReference
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// InvalidateInsightCache expires all live entries for (userID, cacheKey) by
// setting expires_at to now. When cacheKey is empty every live entry of the
// user is expired (used after debt mutations, where the old key is unknown).
// Returns the number of rows touched.
func InvalidateInsightCache(ctx context.Context, db *gorm.DB, userID, cacheKey string, now time.Time) (int64, error) {
	q := db.WithContext(ctx).
		Model(&domain.InsightCache{}).
		Where("user_id = ? AND expires_at > ?", userID, now)
	if cacheKey != "" {
		q = q.Where("cache_key = ?", cacheKey)
	}
	res := q.Update("expires_at", now)
	return res.RowsAffected, res.Error
}

// PurgeExpiredInsightCache hard-deletes entries that expired before the cutoff.
// Meant for a periodic reaper, not request paths.
func PurgeExpiredInsightCache(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", cutoff).
		Delete(&domain.InsightCache{})
	return res.RowsAffected, res.Error
}
