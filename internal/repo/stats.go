// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/debtease/go-debtease-backend/internal/domain"
)

// DebtsStats returns aggregate metadata for a user's debts: the total number
// of rows and the maximum UpdatedAt timestamp among them. When the user has
// no debts, count is 0 and maxUpdatedAt is nil.
func DebtsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Debt{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Latest updated_at via ORDER BY (avoid MAX() -> TEXT in SQLite).
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// NotificationsStats returns the total and unread notification counts for a
// user, used for the inbox badge and list ETags.
func NotificationsStats(ctx context.Context, db *gorm.DB, userID string) (total, unread int64, err error) {
	base := db.WithContext(ctx).Model(&domain.Notification{}).Where("user_id = ?", userID)
	if err = base.Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err = base.Where("read = ?", false).Count(&unread).Error; err != nil {
		return 0, 0, err
	}
	return total, unread, nil
}
