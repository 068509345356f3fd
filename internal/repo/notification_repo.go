// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Notification model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/debtease/go-debtease-backend/internal/domain"
)

// CreateNotification inserts a notification row for userID. A missing owner
// surfaces as ErrReference.
func CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(n).Error; err != nil {
		if isForeignKeyViolation(err) {
			return ErrReference
		}
		return err
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first. When
// unreadOnly is set, read notifications are filtered out.
func ListNotifications(ctx context.Context, db *gorm.DB, userID string, unreadOnly bool) ([]domain.Notification, error) {
	q := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	var out []domain.Notification
	err := q.Find(&out).Error
	return out, err
}

// MarkNotificationRead flips the read flag and stamps read_at for a
// notification owned by userID. Returns ErrNotFound when nothing matched.
func MarkNotificationRead(ctx context.Context, db *gorm.DB, id, userID string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"read": true, "read_at": now, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
