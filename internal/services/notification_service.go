// Package services – NotificationService
//
// Inbox notifications: list, unread count, and mark-as-read. Rows are created
// by other services (payments, the insight worker) rather than by clients.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/debtease/go-debtease-backend/internal/domain"
	"github.com/debtease/go-debtease-backend/internal/repo"
)

// NotificationService reads and updates a user's inbox.
type NotificationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Now overrides the clock in tests; nil means time.Now().UTC.
	Now func() time.Time
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

func (s *NotificationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Push inserts a notification into the user's inbox. Used by other services
// and by operational tooling.
func (s *NotificationService) Push(ctx context.Context, userID, kind, title, msg string) (*domain.Notification, error) {
	ve := &ValidationError{}
	if strings.TrimSpace(title) == "" {
		ve.add("title", "must not be blank")
	}
	if strings.TrimSpace(msg) == "" {
		ve.add("message", "must not be blank")
	}
	if err := ve.orNil(); err != nil {
		return nil, err
	}
	if kind == "" {
		kind = "general"
	}

	n := &domain.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   strings.TrimSpace(title),
		Message: strings.TrimSpace(msg),
	}
	if err := repo.CreateNotification(ctx, s.DB, n); err != nil {
		if errors.Is(err, repo.ErrReference) {
			return nil, ErrReference
		}
		return nil, err
	}
	return n, nil
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	return repo.ListNotifications(ctx, s.DB, userID, unreadOnly)
}

// UnreadCount returns the number of unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	_, unread, err := repo.NotificationsStats(ctx, s.DB, userID)
	return unread, err
}

// MarkRead flips a notification to read. A missing or foreign notification
// surfaces as ErrNotificationNotFound; marking an already read notification is
// idempotent.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	err := repo.MarkNotificationRead(ctx, s.DB, id, userID, s.now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotificationNotFound
	}
	return err
}
