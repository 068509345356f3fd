// Package domain defines the persistence models for users, debts, payments,
// repayment plans, notifications, verifiable credentials, and the AI insight
// cache/queue tables. These types are mapped with GORM and form the core data
// layer of the DebtEase application.
package domain

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User represents a registered account. Every other aggregate in the schema
// hangs off a user and is cascade-deleted with it.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Email: unique login identifier.
//   - PasswordHash: bcrypt hash; never serialized.
//   - Name: display name.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID           string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Email        string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string    `json:"-"          gorm:"type:varchar(128);not null"`
	Name         string    `json:"name"       gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Session is a server-side login session. The token is a ULID handed to the
// client as the session_token cookie.
type Session struct {
	Token     string    `json:"-" gorm:"type:char(26);primaryKey"`
	UserID    string    `json:"-" gorm:"type:char(36);not null;index"`
	CreatedAt time.Time `json:"-"`
	ExpiresAt time.Time `json:"-" gorm:"not null;index"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// DebtType tags the kind of liability a Debt row represents.
type DebtType string

// Debt type values. The set mirrors what the web client offers.
const (
	DebtCreditCard    DebtType = "credit_card"
	DebtPersonalLoan  DebtType = "personal_loan"
	DebtHomeLoan      DebtType = "home_loan"
	DebtVehicleLoan   DebtType = "vehicle_loan"
	DebtEducationLoan DebtType = "education_loan"
	DebtBusinessLoan  DebtType = "business_loan"
	DebtGoldLoan      DebtType = "gold_loan"
	DebtOverdraft     DebtType = "overdraft"
	DebtEMI           DebtType = "emi"
	DebtOther         DebtType = "other"
)

// ValidDebtType reports whether t is a recognized debt type.
func ValidDebtType(t DebtType) bool {
	switch t {
	case DebtCreditCard, DebtPersonalLoan, DebtHomeLoan, DebtVehicleLoan,
		DebtEducationLoan, DebtBusinessLoan, DebtGoldLoan, DebtOverdraft,
		DebtEMI, DebtOther:
		return true
	}
	return false
}

// PaymentFrequency describes how often a debt expects a payment.
type PaymentFrequency string

// Payment frequency values.
const (
	FreqWeekly    PaymentFrequency = "weekly"
	FreqBiweekly  PaymentFrequency = "biweekly"
	FreqMonthly   PaymentFrequency = "monthly"
	FreqQuarterly PaymentFrequency = "quarterly"
)

// Debt represents a single liability in a user's portfolio. Balances and rates
// feed both the payoff planners and the insight generator; any mutation
// invalidates cached insights for the owner.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: owning user; rows are cascade-deleted with the user.
//   - CurrentBalance / InterestRate / MinimumPayment: the numbers the
//     analyzers care about.
//   - DueDate: optional YYYY-MM-DD string, matching the client contract.
//   - Details: free-form JSON blob for lender-specific extras.
type Debt struct {
	ID                  string           `json:"id"                    gorm:"type:char(36);primaryKey"`
	UserID              string           `json:"user_id"               gorm:"type:char(36);not null;index:idx_user_debts"`
	Name                string           `json:"name"                  gorm:"type:varchar(255);not null"`
	DebtType            DebtType         `json:"debt_type"             gorm:"type:varchar(32);not null"`
	PrincipalAmount     float64          `json:"principal_amount"      gorm:"not null"`
	CurrentBalance      float64          `json:"current_balance"       gorm:"not null"`
	InterestRate        float64          `json:"interest_rate"         gorm:"not null"`
	IsVariableRate      bool             `json:"is_variable_rate"      gorm:"not null;default:false"`
	MinimumPayment      float64          `json:"minimum_payment"       gorm:"not null"`
	DueDate             *string          `json:"due_date,omitempty"    gorm:"type:varchar(10)"`
	Lender              string           `json:"lender"                gorm:"type:varchar(255);not null"`
	RemainingTermMonths *int             `json:"remaining_term_months,omitempty"`
	IsTaxDeductible     bool             `json:"is_tax_deductible"     gorm:"not null;default:false"`
	PaymentFrequency    PaymentFrequency `json:"payment_frequency"     gorm:"type:varchar(16);not null;default:'monthly'"`
	IsHighPriority      bool             `json:"is_high_priority"      gorm:"not null;default:false"`
	Notes               *string          `json:"notes,omitempty"       gorm:"type:text"`
	Source              string           `json:"source"                gorm:"type:varchar(16);not null;default:'manual'"`
	Details             datatypes.JSON   `json:"details,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
	DeletedAt           gorm.DeletedAt   `json:"-" gorm:"index"`

	// User is the owning account. Debts are cascade-deleted with it.
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Debt.
func (Debt) TableName() string { return "debts" }
