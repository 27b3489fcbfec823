package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/toolyard/toolyard-backend/pkg/enums"
)

// Payout is a single withdrawal attempt. It is created pending and moves
// exactly once to completed or failed; failed rows keep the balance intact
// and are never retried automatically.
type Payout struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	AmountCents      int64              `gorm:"column:amount_cents;not null"`
	Currency         string             `gorm:"column:currency;not null;default:'usd'"`
	Status           enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'pending'"`
	StripeAccountID  string             `gorm:"column:stripe_account_id;not null"`
	StripeTransferID *string            `gorm:"column:stripe_transfer_id"`
	FailureReason    *string            `gorm:"column:failure_reason"`
	CompletedAt      *time.Time         `gorm:"column:completed_at"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
