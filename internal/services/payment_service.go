// Package services – PaymentService
//
// This file implements payment recording against debts. A confirmed payment
// reduces the debt balance, drops a notification into the user's inbox, and
// expires the live insight cache (the portfolio changed).
package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/debtease/go-debtease-backend/internal/domain"
	"github.com/debtease/go-debtease-backend/internal/repo"
)

// PaymentInput carries the caller-supplied fields for recording a payment.
type PaymentInput struct {
	DebtID           string
	Amount           float64
	PaymentDate      string
	PrincipalPortion *float64
	InterestPortion  *float64
	Status           domain.PaymentStatus
	Notes            *string
	ExtraDetails     datatypes.JSON
	BlockchainID     *string
}

// PaymentService records and lists payments.
type PaymentService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Debts verifies ownership and adjusts balances.
	Debts *DebtService
	// Now overrides the clock in tests; nil means time.Now().UTC.
	Now func() time.Time
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(db *gorm.DB, debts *DebtService) *PaymentService {
	return &PaymentService{DB: db, Debts: debts}
}

func (s *PaymentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *PaymentService) validate(in PaymentInput) error {
	ve := &ValidationError{}
	if in.DebtID == "" {
		ve.add("debt_id", "must not be blank")
	}
	if in.Amount <= 0 {
		ve.add("amount", "must be greater than zero")
	}
	if !validDateString(in.PaymentDate) {
		ve.add("payment_date", "must be a date in YYYY-MM-DD format")
	}
	if in.Status != "" && !domain.ValidPaymentStatus(in.Status) {
		ve.add("status", "unknown payment status")
	}
	if in.PrincipalPortion != nil && *in.PrincipalPortion < 0 {
		ve.add("principal_portion", "must not be negative")
	}
	if in.InterestPortion != nil && *in.InterestPortion < 0 {
		ve.add("interest_portion", "must not be negative")
	}
	return ve.orNil()
}

// Record validates and stores a payment for a debt owned by userID. A
// confirmed payment reduces the debt's current balance (floored at zero),
// notifies the user, and expires the live insight cache.
func (s *PaymentService) Record(ctx context.Context, userID string, in PaymentInput) (*domain.Payment, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	debt, err := s.Debts.Get(ctx, userID, in.DebtID)
	if err != nil {
		return nil, err
	}

	p := &domain.Payment{
		DebtID:           in.DebtID,
		UserID:           userID,
		Amount:           in.Amount,
		PaymentDate:      in.PaymentDate,
		PrincipalPortion: in.PrincipalPortion,
		InterestPortion:  in.InterestPortion,
		Status:           in.Status,
		Notes:            in.Notes,
		ExtraDetails:     in.ExtraDetails,
		BlockchainID:     in.BlockchainID,
	}
	if err := repo.CreatePayment(ctx, s.DB, p); err != nil {
		if errors.Is(err, repo.ErrReference) {
			return nil, ErrReference
		}
		return nil, err
	}

	if p.Status == domain.PaymentConfirmed {
		s.applyConfirmed(ctx, userID, debt, p)
	}
	return p, nil
}

// applyConfirmed folds a confirmed payment into the debt balance and drops the
// inbox notification. Both are best effort after the payment row is durable.
func (s *PaymentService) applyConfirmed(ctx context.Context, userID string, debt *domain.Debt, p *domain.Payment) {
	balance := debt.CurrentBalance - p.Amount
	if balance < 0 {
		balance = 0
	}
	_, _ = s.Debts.Update(ctx, userID, debt.ID, map[string]any{"current_balance": balance})

	pr := message.NewPrinter(language.English)
	n := &domain.Notification{
		UserID:  userID,
		Type:    "payment_recorded",
		Title:   "Payment recorded",
		Message: pr.Sprintf("A payment of $%.2f was recorded against %s.", p.Amount, debt.Name),
	}
	if balance == 0 {
		n.Type = "debt_paid_off"
		n.Title = "Debt paid off"
		n.Message = pr.Sprintf("Congratulations, %s is fully paid off.", debt.Name)
	}
	_ = repo.CreateNotification(ctx, s.DB, n)
}

// Get fetches a payment owned by userID, or ErrPaymentNotFound.
func (s *PaymentService) Get(ctx context.Context, userID, paymentID string) (*domain.Payment, error) {
	p, err := repo.GetPayment(ctx, s.DB, paymentID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

// List returns the user's payments, optionally restricted to one debt.
func (s *PaymentService) List(ctx context.Context, userID, debtID string) ([]domain.Payment, error) {
	return repo.ListPayments(ctx, s.DB, userID, debtID)
}

// UpdateStatus moves a payment to a new settlement status. Illegal statuses
// are rejected with a ValidationError; a missing payment surfaces as
// ErrPaymentNotFound.
func (s *PaymentService) UpdateStatus(ctx context.Context, userID, paymentID string, status domain.PaymentStatus) (*domain.Payment, error) {
	if !domain.ValidPaymentStatus(status) {
		ve := &ValidationError{}
		ve.add("status", "unknown payment status")
		return nil, ve
	}
	patch := map[string]any{"status": status, "updated_at": s.now()}
	if err := repo.UpdatePayment(ctx, s.DB, paymentID, userID, patch); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return repo.GetPayment(ctx, s.DB, paymentID, userID)
}
