// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Payment
// model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/debtease/go-debtease-backend/internal/domain"
)

// CreatePayment inserts a payment row. The id is assigned here when empty and
// the status defaults to confirmed when unset. A missing user or debt
// surfaces as ErrReference.
func CreatePayment(ctx context.Context, db *gorm.DB, p *domain.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = domain.PaymentConfirmed
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

// GetPayment fetches a payment by id and owner, or ErrNotFound.
func GetPayment(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Payment, error) {
	var p domain.Payment
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPayments returns a user's payments, newest first. When debtID is
// non-empty the list is restricted to that debt.
func ListPayments(ctx context.Context, db *gorm.DB, userID, debtID string) ([]domain.Payment, error) {
	q := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("payment_date DESC, created_at DESC")
	if debtID != "" {
		q = q.Where("debt_id = ?", debtID)
	}
	var out []domain.Payment
	err := q.Find(&out).Error
	return out, err
}

// UpdatePayment applies a partial column patch to a payment owned by userID.
// Returns ErrNotFound when nothing matched.
func UpdatePayment(ctx context.Context, db *gorm.DB, id, userID string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	res := db.WithContext(ctx).
		Model(&domain.Payment{}).
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
