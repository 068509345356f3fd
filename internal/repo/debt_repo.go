// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Debt model.
//
// Functions:
//
//   - CreateDebt(ctx, db, d) -> error
//     Inserts a new Debt row; the caller supplies a fully populated model.
//
//   - ListDebts(ctx, db, userID) -> []domain.Debt, error
//     Returns all debts for a user, ordered by creation time descending.
//
//   - CountDebts / ListDebtsPage
//     Pagination pair for large portfolios.
//
//   - GetDebt(ctx, db, id, userID) -> *domain.Debt, error
//     Fetches a single debt by ID/userID, or ErrNotFound if missing.
//
//   - UpdateDebt(ctx, db, id, userID, patch) -> error
//     Applies a partial column patch, enforcing user ownership.
//
//   - DeleteDebt(ctx, db, id, userID) -> error
//     Soft-deletes a debt, enforcing user ownership.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/debtease/go-debtease-backend/internal/domain"
)

// CreateDebt inserts a new Debt row. The debt ID is assigned here when empty
// and CreatedAt is set to UTC. A missing owner surfaces as ErrReference.
func CreateDebt(ctx context.Context, db *gorm.DB, d *domain.Debt) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		if isForeignKeyViolation(err) {
			return ErrReference
		}
		return err
	}
	return nil
}

// ListDebts returns all debts belonging to userID, ordered by creation time
// descending (most recent first). It returns an empty slice if the user has
// no debts.
func ListDebts(ctx context.Context, db *gorm.DB, userID string) ([]domain.Debt, error) {
	var out []domain.Debt
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// CountDebts returns the total number of debts owned by userID.
func CountDebts(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Debt{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListDebtsPage returns a paginated slice of debts for userID, ordered by
// creation time descending. Use CountDebts to obtain the total for pagination
// metadata.
func ListDebtsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Debt, error) {
	var out []domain.Debt
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetDebt fetches a single debt by its ID and owner (userID). If the record
// does not exist, it returns ErrNotFound.
func GetDebt(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Debt, error) {
	var d domain.Debt
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateDebt applies a partial column patch to a debt identified by id and
// owned by userID. If no rows are affected (debt missing or not owned by
// userID), it returns ErrNotFound.
func UpdateDebt(ctx context.Context, db *gorm.DB, id, userID string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	res := db.WithContext(ctx).
		Model(&domain.Debt{}).
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

// DeleteDebt soft-deletes a debt owned by userID. Returns ErrNotFound when
// the debt does not exist or belongs to someone else.
func DeleteDebt(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Debt{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
