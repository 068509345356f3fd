// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// VerifiableCredential model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/debtease/go-debtease-backend/internal/domain"
)

// CreateCredential inserts an issued credential row. A missing owner surfaces
// as ErrReference.
func CreateCredential(ctx context.Context, db *gorm.DB, c *domain.VerifiableCredential) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = domain.CredentialIssued
	}
	if c.IssuedAt.IsZero() {
		c.IssuedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isForeignKeyViolation(err) {
			return ErrReference
		}
		return err
	}
	return nil
}

// GetCredential fetches a credential by id and owner, or ErrNotFound.
func GetCredential(ctx context.Context, db *gorm.DB, id, userID string) (*domain.VerifiableCredential, error) {
	var c domain.VerifiableCredential
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCredentials returns a user's credentials, newest first.
func ListCredentials(ctx context.Context, db *gorm.DB, userID string) ([]domain.VerifiableCredential, error) {
	var out []domain.VerifiableCredential
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("issued_at DESC").
		Find(&out).Error
	return out, err
}

// RevokeCredential marks an issued credential revoked and stamps revoked_at.
// Revoking an already revoked credential is a no-op reported as ErrNotFound.
func RevokeCredential(ctx context.Context, db *gorm.DB, id, userID string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.VerifiableCredential{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, domain.CredentialIssued).
		Updates(map[string]any{"status": domain.CredentialRevoked, "revoked_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
