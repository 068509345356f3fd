package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/debtease/go-debtease-backend/internal/domain"
)

func newNotificationEnv(t *testing.T) *NotificationService {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Notification{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	u := &domain.User{ID: "u1", Email: "u1@example.com", PasswordHash: "x", Name: "Test"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return NewNotificationService(db)
}

func TestNotificationPush_ValidationAndDefaults(t *testing.T) {
	svc := newNotificationEnv(t)
	ctx := context.Background()

	_, err := svc.Push(ctx, "u1", "", "  ", "")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Fields) != 2 {
		t.Fatalf("expected 2 field errors, got %+v", ve.Fields)
	}

	n, err := svc.Push(ctx, "u1", "", "Heads up", "Something happened")
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if n.Type != "general" {
		t.Fatalf("expected default type general, got %q", n.Type)
	}
	if n.Read {
		t.Fatalf("new notifications must start unread")
	}
}

func TestNotificationListUnreadAndMarkRead(t *testing.T) {
	svc := newNotificationEnv(t)
	ctx := context.Background()

	a, err := svc.Push(ctx, "u1", "payment_recorded", "One", "first")
	if err != nil {
		t.Fatalf("push a: %v", err)
	}
	if _, err := svc.Push(ctx, "u1", "insights_failed", "Two", "second"); err != nil {
		t.Fatalf("push b: %v", err)
	}

	unread, err := svc.UnreadCount(ctx, "u1")
	if err != nil || unread != 2 {
		t.Fatalf("unread count: (%d, %v)", unread, err)
	}

	if err := svc.MarkRead(ctx, "u1", a.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	unread, _ = svc.UnreadCount(ctx, "u1")
	if unread != 1 {
		t.Fatalf("expected 1 unread after mark, got %d", unread)
	}

	onlyUnread, err := svc.List(ctx, "u1", true)
	if err != nil || len(onlyUnread) != 1 || onlyUnread[0].Title != "Two" {
		t.Fatalf("unread filter: (%+v, %v)", onlyUnread, err)
	}
	all, err := svc.List(ctx, "u1", false)
	if err != nil || len(all) != 2 {
		t.Fatalf("full list: (%d, %v)", len(all), err)
	}

	// Marking again is idempotent; foreign users see not-found.
	if err := svc.MarkRead(ctx, "u1", a.ID); err != nil {
		t.Fatalf("second mark read: %v", err)
	}
	if err := svc.MarkRead(ctx, "intruder", a.ID); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound for foreign user, got %v", err)
	}
}
