// Transfer-object backed models: notifications, verifiable credentials,
// payments, and repayment plans. Each crosses the API boundary as a
// Create/Update request pair (see internal/http/handlers) and is persisted in
// the shape below.
package domain

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification is a message surfaced to a user in the app inbox.
type Notification struct {
	ID        string         `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id" gorm:"type:char(36);not null;index:idx_user_notifications"`
	Type      string         `json:"type"    gorm:"type:varchar(64);not null"`
	Title     string         `json:"title"   gorm:"type:varchar(255);not null"`
	Message   string         `json:"message" gorm:"type:text;not null"`
	Read      bool           `json:"read"    gorm:"not null;default:false"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// CredentialStatus is the lifecycle state of a verifiable credential.
type CredentialStatus string

// Credential states.
const (
	CredentialIssued  CredentialStatus = "issued"
	CredentialRevoked CredentialStatus = "revoked"
)

// VerifiableCredential records an issued credential attesting to a user's debt
// standing (e.g., a paid-off loan). The signed token is a JWT produced at
// issue time; revocation keeps the row and stamps revoked_at.
type VerifiableCredential struct {
	ID        string           `json:"id"       gorm:"type:char(36);primaryKey"`
	UserID    string           `json:"user_id"  gorm:"type:char(36);not null;index"`
	DebtID    *string          `json:"debt_id,omitempty" gorm:"type:char(36);index"`
	Type      string           `json:"type"     gorm:"type:varchar(64);not null"`
	VCJWT     *string          `json:"vc_jwt,omitempty" gorm:"type:text"`
	Status    CredentialStatus `json:"status"   gorm:"type:varchar(20);not null;default:'issued'"`
	IssuedAt  time.Time        `json:"issued_at"`
	RevokedAt *time.Time       `json:"revoked_at,omitempty"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for VerifiableCredential.
func (VerifiableCredential) TableName() string { return "verifiable_credentials" }

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

// Payment states. Manually recorded payments default to confirmed.
const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// ValidPaymentStatus reports whether s is a recognized payment status.
func ValidPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentPending, PaymentConfirmed, PaymentFailed, PaymentCancelled:
		return true
	}
	return false
}

// Payment is a recorded repayment against a debt.
//
// Fields:
//   - PaymentDate: YYYY-MM-DD string, matching the client contract.
//   - PrincipalPortion / InterestPortion: optional split of the amount.
//   - ExtraDetails: free-form JSON map.
//   - BlockchainID: optional reference to an on-chain transaction.
type Payment struct {
	ID               string         `json:"id"           gorm:"type:char(36);primaryKey"`
	DebtID           string         `json:"debt_id"      gorm:"type:char(36);not null;index"`
	UserID           string         `json:"user_id"      gorm:"type:char(36);not null;index"`
	Amount           float64        `json:"amount"       gorm:"not null"`
	PaymentDate      string         `json:"payment_date" gorm:"type:varchar(10);not null"`
	PrincipalPortion *float64       `json:"principal_portion,omitempty"`
	InterestPortion  *float64       `json:"interest_portion,omitempty"`
	Status           PaymentStatus  `json:"status"       gorm:"type:varchar(20);not null;default:'confirmed'"`
	Notes            *string        `json:"notes,omitempty" gorm:"type:varchar(1000)"`
	ExtraDetails     datatypes.JSON `json:"extra_details,omitempty"`
	BlockchainID     *string        `json:"blockchain_id,omitempty" gorm:"type:varchar(128)"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Debt Debt `json:"-" gorm:"foreignKey:DebtID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Payment.
func (Payment) TableName() string { return "payments" }

// StrategyType selects the payoff ordering algorithm of a repayment plan.
type StrategyType string

// Repayment strategies. Avalanche orders by interest rate, snowball by
// balance, custom keeps the user-supplied order.
const (
	StrategyAvalanche StrategyType = "avalanche"
	StrategySnowball  StrategyType = "snowball"
	StrategyCustom    StrategyType = "custom"
)

// ValidStrategy reports whether s is a recognized strategy.
func ValidStrategy(s StrategyType) bool {
	switch s {
	case StrategyAvalanche, StrategySnowball, StrategyCustom:
		return true
	}
	return false
}

// RepaymentPlan captures a payoff strategy for a user's portfolio.
//
// DebtOrder is a JSON array of debt UUIDs defining payoff order;
// PaymentSchedule is a JSON array of per-period schedule entries. Both are
// opaque documents produced by the planner.
type RepaymentPlan struct {
	ID                     string         `json:"id"       gorm:"type:char(36);primaryKey"`
	UserID                 string         `json:"user_id"  gorm:"type:char(36);not null;index"`
	Strategy               StrategyType   `json:"strategy" gorm:"type:varchar(16);not null"`
	MonthlyPaymentAmount   *float64       `json:"monthly_payment_amount,omitempty"`
	DebtOrder              datatypes.JSON `json:"debt_order,omitempty"`
	PaymentSchedule        datatypes.JSON `json:"payment_schedule,omitempty"`
	TotalInterestSaved     *float64       `json:"total_interest_saved,omitempty"`
	ExpectedCompletionDate *string        `json:"expected_completion_date,omitempty" gorm:"type:varchar(10)"`
	IsActive               bool           `json:"is_active" gorm:"not null;default:true"`
	BlockchainID           *string        `json:"blockchain_id,omitempty" gorm:"type:varchar(128)"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for RepaymentPlan.
func (RepaymentPlan) TableName() string { return "repayment_plans" }
