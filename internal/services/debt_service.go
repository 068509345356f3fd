// Package services – DebtService
//
// This file implements the debt portfolio use-cases: create, list (with
// pagination), fetch, patch, and delete, all scoped to the owning user. Every
// mutation expires the user's live insight cache entries, because the cache
// key is derived from the portfolio and any change makes prior analysis
// stale.
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

// DebtInput carries the caller-supplied fields for creating a debt.
type DebtInput struct {
	Name                string
	DebtType            domain.DebtType
	PrincipalAmount     float64
	CurrentBalance      float64
	InterestRate        float64
	IsVariableRate      bool
	MinimumPayment      float64
	DueDate             *string
	Lender              string
	RemainingTermMonths *int
	IsTaxDeductible     bool
	PaymentFrequency    domain.PaymentFrequency
	IsHighPriority      bool
	Notes               *string
	Details             []byte
}

// DebtService provides debt CRUD with ownership checks and insight cache
// invalidation.
type DebtService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Now overrides the clock in tests; nil means time.Now().UTC.
	Now func() time.Time
}

// NewDebtService constructs a DebtService.
func NewDebtService(db *gorm.DB) *DebtService {
	return &DebtService{DB: db}
}

func (s *DebtService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// validate checks a DebtInput and returns a *ValidationError listing every
// offending field, or nil.
func (s *DebtService) validate(in DebtInput) error {
	ve := &ValidationError{}
	if strings.TrimSpace(in.Name) == "" {
		ve.add("name", "must not be blank")
	}
	if !domain.ValidDebtType(in.DebtType) {
		ve.add("debt_type", "unknown debt type")
	}
	if in.PrincipalAmount <= 0 {
		ve.add("principal_amount", "must be greater than zero")
	}
	if in.CurrentBalance < 0 {
		ve.add("current_balance", "must not be negative")
	}
	if in.InterestRate < 0 || in.InterestRate > 100 {
		ve.add("interest_rate", "must be between 0 and 100")
	}
	if in.MinimumPayment <= 0 {
		ve.add("minimum_payment", "must be greater than zero")
	}
	if in.DueDate != nil && !validDateString(*in.DueDate) {
		ve.add("due_date", "must be a date in YYYY-MM-DD format")
	}
	if strings.TrimSpace(in.Lender) == "" {
		ve.add("lender", "must not be blank")
	}
	if in.RemainingTermMonths != nil && *in.RemainingTermMonths <= 0 {
		ve.add("remaining_term_months", "must be greater than zero")
	}
	return ve.orNil()
}

// Create validates the input, inserts the debt, and expires the user's live
// insight cache entries.
func (s *DebtService) Create(ctx context.Context, userID string, in DebtInput) (*domain.Debt, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}
	freq := in.PaymentFrequency
	if freq == "" {
		freq = domain.FreqMonthly
	}

	d := &domain.Debt{
		UserID:              userID,
		Name:                strings.TrimSpace(in.Name),
		DebtType:            in.DebtType,
		PrincipalAmount:     in.PrincipalAmount,
		CurrentBalance:      in.CurrentBalance,
		InterestRate:        in.InterestRate,
		IsVariableRate:      in.IsVariableRate,
		MinimumPayment:      in.MinimumPayment,
		DueDate:             in.DueDate,
		Lender:              strings.TrimSpace(in.Lender),
		RemainingTermMonths: in.RemainingTermMonths,
		IsTaxDeductible:     in.IsTaxDeductible,
		PaymentFrequency:    freq,
		IsHighPriority:      in.IsHighPriority,
		Notes:               in.Notes,
		Source:              "manual",
		Details:             in.Details,
	}
	if err := repo.CreateDebt(ctx, s.DB, d); err != nil {
		if errors.Is(err, repo.ErrReference) {
			return nil, ErrReference
		}
		return nil, err
	}
	s.invalidateInsights(ctx, userID)
	return d, nil
}

// List returns all debts for a user (non-paginated).
func (s *DebtService) List(ctx context.Context, userID string) ([]domain.Debt, error) {
	return repo.ListDebts(ctx, s.DB, userID)
}

// ListPage returns a page of debts for a user and the total count.
// It applies defaults for invalid page/pageSize.
func (s *DebtService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Debt, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountDebts(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Debt{}, 0, nil
	}

	items, err := repo.ListDebtsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Get fetches a single debt owned by userID, or ErrDebtNotFound.
func (s *DebtService) Get(ctx context.Context, userID, debtID string) (*domain.Debt, error) {
	d, err := repo.GetDebt(ctx, s.DB, debtID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDebtNotFound
	}
	return d, err
}

// Update applies a partial column patch to a debt owned by userID and expires
// the user's live insight cache entries. The handler builds the patch from
// the fields actually present in the request body.
func (s *DebtService) Update(ctx context.Context, userID, debtID string, patch map[string]any) (*domain.Debt, error) {
	if err := repo.UpdateDebt(ctx, s.DB, debtID, userID, patch); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDebtNotFound
		}
		return nil, err
	}
	s.invalidateInsights(ctx, userID)
	return repo.GetDebt(ctx, s.DB, debtID, userID)
}

// Delete removes a debt owned by userID and expires the user's live insight
// cache entries.
func (s *DebtService) Delete(ctx context.Context, userID, debtID string) error {
	if err := repo.DeleteDebt(ctx, s.DB, debtID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDebtNotFound
		}
		return err
	}
	s.invalidateInsights(ctx, userID)
	return nil
}

// CacheKey derives the insight cache key for the user's current portfolio.
func (s *DebtService) CacheKey(ctx context.Context, userID string) (string, error) {
	debts, err := repo.ListDebts(ctx, s.DB, userID)
	if err != nil {
		return "", err
	}
	return domain.CacheKeyForDebts(userID, debts), nil
}

// invalidateInsights expires every live cache entry of the user. Best effort:
// a failed invalidation only means a slightly stale insight until expiry, so
// the error is swallowed after the write already succeeded.
func (s *DebtService) invalidateInsights(ctx context.Context, userID string) {
	_, _ = repo.InvalidateInsightCache(ctx, s.DB, userID, "", s.now())
}
