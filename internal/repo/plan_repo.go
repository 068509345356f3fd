// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// RepaymentPlan model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/debtease/go-debtease-backend/internal/domain"
)

// CreatePlan inserts a repayment plan row. A missing owner surfaces as
// ErrReference.
func CreatePlan(ctx context.Context, db *gorm.DB, p *domain.RepaymentPlan) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isForeignKeyViolation(err) {
			return ErrReference
		}
		return err
	}
	return nil
}

// GetPlan fetches a plan by id and owner, or ErrNotFound.
func GetPlan(ctx context.Context, db *gorm.DB, id, userID string) (*domain.RepaymentPlan, error) {
	var p domain.RepaymentPlan
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPlans returns a user's repayment plans, newest first.
func ListPlans(ctx context.Context, db *gorm.DB, userID string) ([]domain.RepaymentPlan, error) {
	var out []domain.RepaymentPlan
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// UpdatePlan applies a partial column patch to a plan owned by userID.
// Columns absent from the patch are left untouched. Returns ErrNotFound when
// nothing matched.
func UpdatePlan(ctx context.Context, db *gorm.DB, id, userID string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	res := db.WithContext(ctx).
		Model(&domain.RepaymentPlan{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(patch)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeactivateOtherPlans clears is_active on every plan of the user except
// keepID. Used when a new plan becomes the active one.
func DeactivateOtherPlans(ctx context.Context, db *gorm.DB, userID, keepID string) error {
	return db.WithContext(ctx).
		Model(&domain.RepaymentPlan{}).
		Where("user_id = ? AND id <> ? AND is_active = ?", userID, keepID, true).
		Update("is_active", false).Error
}
