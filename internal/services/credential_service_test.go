package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/debtease/go-debtease-backend/internal/domain"
)

func newCredentialEnv(t *testing.T, ttl time.Duration) *CredentialService {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.VerifiableCredential{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	u := &domain.User{ID: "u1", Email: "u1@example.com", PasswordHash: "x", Name: "Test"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return NewCredentialService(db, "test-secret", ttl)
}

func TestCredentialIssueAndVerify(t *testing.T) {
	svc := newCredentialEnv(t, 0)
	ctx := context.Background()

	if _, err := svc.Issue(ctx, "u1", "   ", nil); err == nil {
		t.Fatalf("expected validation error for blank type")
	}

	debtID := "d-123"
	cred, err := svc.Issue(ctx, "u1", "debt_paid_off", &debtID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if cred.VCJWT == nil || *cred.VCJWT == "" {
		t.Fatalf("issued credential carries no token")
	}
	if cred.Status != domain.CredentialIssued {
		t.Fatalf("unexpected status: %s", cred.Status)
	}

	claims, err := svc.Verify(ctx, *cred.VCJWT)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.CredentialType != "debt_paid_off" || claims.Subject != "u1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.DebtID == nil || *claims.DebtID != debtID {
		t.Fatalf("debt scope lost: %+v", claims.DebtID)
	}
}

func TestCredentialVerify_RejectsGarbageAndForgedTokens(t *testing.T) {
	svc := newCredentialEnv(t, 0)
	ctx := context.Background()

	if _, err := svc.Verify(ctx, "not-a-jwt"); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected rejection of garbage, got %v", err)
	}

	// A token signed by a different key must not verify even if well formed.
	other := &CredentialService{DB: svc.DB, Secret: []byte("other-secret")}
	cred, err := other.Issue(ctx, "u1", "debt_paid_off", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Verify(ctx, *cred.VCJWT); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected rejection of forged token, got %v", err)
	}
}

func TestCredentialVerify_RespectsRevocation(t *testing.T) {
	svc := newCredentialEnv(t, 0)
	ctx := context.Background()

	cred, err := svc.Issue(ctx, "u1", "debt_paid_off", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	revoked, err := svc.Revoke(ctx, "u1", cred.ID)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked.Status != domain.CredentialRevoked || revoked.RevokedAt == nil {
		t.Fatalf("revocation not recorded: %+v", revoked)
	}

	// The signature still checks out, but the store says revoked.
	if _, err := svc.Verify(ctx, *cred.VCJWT); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected revoked token to fail verification, got %v", err)
	}

	// Revoking twice is reported as not found.
	if _, err := svc.Revoke(ctx, "u1", cred.ID); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound on double revoke, got %v", err)
	}
}

func TestCredentialVerify_ExpiryWithInjectedClock(t *testing.T) {
	svc := newCredentialEnv(t, time.Hour)
	ctx := context.Background()

	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return clock }

	cred, err := svc.Issue(ctx, "u1", "debt_paid_off", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Verify(ctx, *cred.VCJWT); err != nil {
		t.Fatalf("verify before expiry: %v", err)
	}

	clock = clock.Add(2 * time.Hour)
	if _, err := svc.Verify(ctx, *cred.VCJWT); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestCredentialListAndOwnership(t *testing.T) {
	svc := newCredentialEnv(t, 0)
	ctx := context.Background()

	cred, err := svc.Issue(ctx, "u1", "good_standing", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	items, err := svc.List(ctx, "u1")
	if err != nil || len(items) != 1 {
		t.Fatalf("list: (%d, %v)", len(items), err)
	}
	if _, err := svc.Get(ctx, "intruder", cred.ID); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound for foreign user, got %v", err)
	}
	if _, err := svc.Revoke(ctx, "intruder", cred.ID); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound on foreign revoke, got %v", err)
	}
}
