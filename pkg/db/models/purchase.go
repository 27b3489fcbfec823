package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/toolyard/toolyard-backend/pkg/enums"
)

// Purchase records a buyer acquiring a paid tool. Rows are keyed by the
// gateway charge id so a redelivered payment event upserts into a no-op,
// and the partial unique index on (buyer_id, tool_id) blocks a second
// active license from a concurrent duplicate checkout.
type Purchase struct {
	ID                   uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID              uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;uniqueIndex:ux_purchases_buyer_tool_active,where:expires_at IS NULL"`
	SellerID             uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	ToolID               uuid.UUID         `gorm:"column:tool_id;type:uuid;not null;uniqueIndex:ux_purchases_buyer_tool_active,where:expires_at IS NULL"`
	StripeChargeID       string            `gorm:"column:stripe_charge_id;not null;uniqueIndex:ux_purchases_stripe_charge_id"`
	AmountCents          int64             `gorm:"column:amount_cents;not null"`
	PlatformFeeCents     int64             `gorm:"column:platform_fee_cents;not null"`
	CreatorEarningsCents int64             `gorm:"column:creator_earnings_cents;not null"`
	Currency             string            `gorm:"column:currency;not null;default:'usd'"`
	LicenseType          enums.LicenseType `gorm:"column:license_type;type:license_type;not null;default:'lifetime'"`
	ExpiresAt            *time.Time        `gorm:"column:expires_at"`
	CreatedAt            time.Time         `gorm:"column:created_at;autoCreateTime"`
}
