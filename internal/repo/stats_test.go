package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/debtease/go-debtease-backend/internal/domain"
)

func newStatsDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestDebtsStats_CountError_NoTable(t *testing.T) {
	db := newStatsDB(t /* no migrations */)
	_, _, err := DebtsStats(context.Background(), db, "u1")
	if err == nil {
		t.Fatalf("expected error due to missing debts table")
	}
}

func TestDebtsStats_ZeroRows(t *testing.T) {
	db := newStatsDB(t, &domain.User{}, &domain.Debt{})
	count, maxAt, err := DebtsStats(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("DebtsStats error: %v", err)
	}
	if count != 0 || maxAt != nil {
		t.Fatalf("expected (0, nil), got (%d, %v)", count, maxAt)
	}
}

func TestDebtsStats_Success_FilterAndMax(t *testing.T) {
	db := newStatsDB(t, &domain.User{}, &domain.Debt{})

	// Seed debts for two users; ensure UpdatedAt is exactly what we set.
	t1 := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC) // max for u1
	t3 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)   // for other user

	d1 := &domain.Debt{ID: "d1", UserID: "u1", Name: "Visa", DebtType: domain.DebtCreditCard, CurrentBalance: 100, MinimumPayment: 10, Lender: "x", PaymentFrequency: domain.FreqMonthly, Source: "manual", CreatedAt: t1, UpdatedAt: t1}
	d2 := &domain.Debt{ID: "d2", UserID: "u1", Name: "Car", DebtType: domain.DebtVehicleLoan, CurrentBalance: 200, MinimumPayment: 20, Lender: "y", PaymentFrequency: domain.FreqMonthly, Source: "manual", CreatedAt: t2, UpdatedAt: t2}
	d3 := &domain.Debt{ID: "d3", UserID: "u2", Name: "Home", DebtType: domain.DebtHomeLoan, CurrentBalance: 300, MinimumPayment: 30, Lender: "z", PaymentFrequency: domain.FreqMonthly, Source: "manual", CreatedAt: t3, UpdatedAt: t3}

	for _, d := range []*domain.Debt{d1, d2, d3} {
		if err := db.Create(d).Error; err != nil {
			t.Fatalf("seed %s: %v", d.ID, err)
		}
	}

	count, maxAt, err := DebtsStats(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("DebtsStats error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
	if maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("expected maxUpdatedAt %v, got %v", t2, maxAt)
	}
}

// Force the second query (SELECT updated_at ...) to fail by renaming the column.
func TestDebtsStats_SelectLatest_ErrorPath(t *testing.T) {
	db := newStatsDB(t, &domain.User{}, &domain.Debt{})

	// Seed at least one row so count > 0
	now := time.Now().UTC()
	if err := db.Create(&domain.Debt{
		ID:               "dx",
		UserID:           "uerr",
		Name:             "x",
		DebtType:         domain.DebtOther,
		Lender:           "x",
		PaymentFrequency: domain.FreqMonthly,
		Source:           "manual",
		CreatedAt:        now,
		UpdatedAt:        now,
	}).Error; err != nil {
		t.Fatalf("seed debt: %v", err)
	}

	// Break the follow-up select by removing/renaming updated_at.
	if err := db.Exec(`ALTER TABLE debts RENAME COLUMN updated_at TO updated_at_old`).Error; err != nil {
		t.Fatalf("rename column: %v", err)
	}

	_, _, err := DebtsStats(context.Background(), db, "uerr")
	if err == nil {
		t.Fatalf("expected error from latest-updated select after column rename")
	}
}

func TestNotificationsStats_CountError_NoTable(t *testing.T) {
	db := newStatsDB(t /* no migrations */)
	_, _, err := NotificationsStats(context.Background(), db, "u1")
	if err == nil {
		t.Fatalf("expected error due to missing notifications table")
	}
}

func TestNotificationsStats_ZeroRows(t *testing.T) {
	db := newStatsDB(t, &domain.User{}, &domain.Notification{})
	total, unread, err := NotificationsStats(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("NotificationsStats error: %v", err)
	}
	if total != 0 || unread != 0 {
		t.Fatalf("expected (0, 0), got (%d, %d)", total, unread)
	}
}

func TestNotificationsStats_TotalAndUnread(t *testing.T) {
	db := newStatsDB(t, &domain.User{}, &domain.Notification{})

	now := time.Now().UTC()
	readAt := now.Add(-time.Minute)
	rows := []*domain.Notification{
		{ID: "n1", UserID: "u1", Type: "payment_reminder", Title: "a", Message: "m", Read: false, CreatedAt: now, UpdatedAt: now},
		{ID: "n2", UserID: "u1", Type: "insights_ready", Title: "b", Message: "m", Read: true, ReadAt: &readAt, CreatedAt: now, UpdatedAt: now},
		{ID: "n3", UserID: "u1", Type: "insights_failed", Title: "c", Message: "m", Read: false, CreatedAt: now, UpdatedAt: now},
		{ID: "n4", UserID: "u2", Type: "payment_reminder", Title: "d", Message: "m", Read: false, CreatedAt: now, UpdatedAt: now},
	}
	for _, n := range rows {
		if err := db.Create(n).Error; err != nil {
			t.Fatalf("seed %s: %v", n.ID, err)
		}
	}

	total, unread, err := NotificationsStats(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("NotificationsStats error: %v", err)
	}
	if total != 3 || unread != 2 {
		t.Fatalf("expected (3, 2), got (%d, %d)", total, unread)
	}
}
