// Package services – PlanService
//
// This file implements repayment plan management. A user keeps at most one
// active plan: creating or activating a plan deactivates the rest.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/debtease/go-debtease-backend/internal/domain"
	"github.com/debtease/go-debtease-backend/internal/repo"
)

// PlanInput carries the caller-supplied fields for creating a repayment plan.
type PlanInput struct {
	Strategy               domain.StrategyType
	MonthlyPaymentAmount   *float64
	DebtOrder              datatypes.JSON
	PaymentSchedule        datatypes.JSON
	TotalInterestSaved     *float64
	ExpectedCompletionDate *string
	BlockchainID           *string
}

// PlanUpdate carries the optional fields of a plan patch. Nil means "leave
// unchanged"; the handler populates only fields present in the request body.
type PlanUpdate struct {
	Strategy               *domain.StrategyType
	MonthlyPaymentAmount   *float64
	DebtOrder              datatypes.JSON
	PaymentSchedule        datatypes.JSON
	TotalInterestSaved     *float64
	ExpectedCompletionDate *string
	IsActive               *bool
	BlockchainID           *string
}

// PlanService manages repayment plans.
type PlanService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Now overrides the clock in tests; nil means time.Now().UTC.
	Now func() time.Time
}

// NewPlanService constructs a PlanService.
func NewPlanService(db *gorm.DB) *PlanService {
	return &PlanService{DB: db}
}

func (s *PlanService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *PlanService) validate(in PlanInput) error {
	ve := &ValidationError{}
	if !domain.ValidStrategy(in.Strategy) {
		ve.add("strategy", "unknown strategy")
	}
	if in.MonthlyPaymentAmount != nil && *in.MonthlyPaymentAmount <= 0 {
		ve.add("monthly_payment_amount", "must be greater than zero")
	}
	if in.ExpectedCompletionDate != nil && !validDateString(*in.ExpectedCompletionDate) {
		ve.add("expected_completion_date", "must be a date in YYYY-MM-DD format")
	}
	return ve.orNil()
}

// Create validates and stores a plan. The new plan becomes the active one and
// every other plan of the user is deactivated.
func (s *PlanService) Create(ctx context.Context, userID string, in PlanInput) (*domain.RepaymentPlan, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	p := &domain.RepaymentPlan{
		UserID:                 userID,
		Strategy:               in.Strategy,
		MonthlyPaymentAmount:   in.MonthlyPaymentAmount,
		DebtOrder:              in.DebtOrder,
		PaymentSchedule:        in.PaymentSchedule,
		TotalInterestSaved:     in.TotalInterestSaved,
		ExpectedCompletionDate: in.ExpectedCompletionDate,
		IsActive:               true,
		BlockchainID:           in.BlockchainID,
	}
	if err := repo.CreatePlan(ctx, s.DB, p); err != nil {
		if errors.Is(err, repo.ErrReference) {
			return nil, ErrReference
		}
		return nil, err
	}
	if err := repo.DeactivateOtherPlans(ctx, s.DB, userID, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// Get fetches a plan owned by userID, or ErrPlanNotFound.
func (s *PlanService) Get(ctx context.Context, userID, planID string) (*domain.RepaymentPlan, error) {
	p, err := repo.GetPlan(ctx, s.DB, planID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	return p, err
}

// List returns the user's plans, newest first.
func (s *PlanService) List(ctx context.Context, userID string) ([]domain.RepaymentPlan, error) {
	return repo.ListPlans(ctx, s.DB, userID)
}

// Update applies a partial patch to a plan owned by userID. Activating a plan
// through the patch deactivates the user's other plans.
func (s *PlanService) Update(ctx context.Context, userID, planID string, in PlanUpdate) (*domain.RepaymentPlan, error) {
	ve := &ValidationError{}
	patch := map[string]any{}
	if in.Strategy != nil {
		if !domain.ValidStrategy(*in.Strategy) {
			ve.add("strategy", "unknown strategy")
		}
		patch["strategy"] = *in.Strategy
	}
	if in.MonthlyPaymentAmount != nil {
		if *in.MonthlyPaymentAmount <= 0 {
			ve.add("monthly_payment_amount", "must be greater than zero")
		}
		patch["monthly_payment_amount"] = *in.MonthlyPaymentAmount
	}
	if in.DebtOrder != nil {
		patch["debt_order"] = in.DebtOrder
	}
	if in.PaymentSchedule != nil {
		patch["payment_schedule"] = in.PaymentSchedule
	}
	if in.TotalInterestSaved != nil {
		patch["total_interest_saved"] = *in.TotalInterestSaved
	}
	if in.ExpectedCompletionDate != nil {
		if !validDateString(*in.ExpectedCompletionDate) {
			ve.add("expected_completion_date", "must be a date in YYYY-MM-DD format")
		}
		patch["expected_completion_date"] = *in.ExpectedCompletionDate
	}
	if in.IsActive != nil {
		patch["is_active"] = *in.IsActive
	}
	if in.BlockchainID != nil {
		patch["blockchain_id"] = *in.BlockchainID
	}
	if err := ve.orNil(); err != nil {
		return nil, err
	}
	if len(patch) > 0 {
		patch["updated_at"] = s.now()
	}

	if err := repo.UpdatePlan(ctx, s.DB, planID, userID, patch); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if in.IsActive != nil && *in.IsActive {
		if err := repo.DeactivateOtherPlans(ctx, s.DB, userID, planID); err != nil {
			return nil, err
		}
	}
	return repo.GetPlan(ctx, s.DB, planID, userID)
}
