package domain

import "time"

// Idempotency records the outcome of a previously processed payment request,
// keyed by (user_id, debt_id, key). It lets clients retry POST /payments
// safely: a replay returns the originally created payment instead of
// recording the money twice.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_debt_key,priority:1"`
	DebtID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_debt_key,priority:2"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_debt_key,priority:3"`
	PaymentID string    `gorm:"type:TEXT NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
