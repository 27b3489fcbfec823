package models

import (
	"time"

	"github.com/google/uuid"
)

// CreatorEarnings is the per-seller running balance. TotalEarningsCents only
// ever grows; PendingEarningsCents is the withdrawable portion and never
// exceeds it. Payout issuance locks this row to serialize concurrent debits
// for the same creator.
type CreatorEarnings struct {
	ID                   uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_creator_earnings_user_id"`
	TotalEarningsCents   int64      `gorm:"column:total_earnings_cents;not null;default:0"`
	PendingEarningsCents int64      `gorm:"column:pending_earnings_cents;not null;default:0"`
	LifetimeSales        int64      `gorm:"column:lifetime_sales;not null;default:0"`
	StripeAccountID      *string    `gorm:"column:stripe_account_id"`
	PayoutsEnabled       bool       `gorm:"column:payouts_enabled;not null;default:false"`
	LastPayoutAt         *time.Time `gorm:"column:last_payout_at"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
