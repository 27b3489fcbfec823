package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/toolyard/toolyard-backend/pkg/enums"
)

// BillingHistory is a user-facing receipt line derived from ledger writes:
// tool purchases, subscription invoices, and payouts. Read-only after
// creation.
type BillingHistory struct {
	ID             uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;index"`
	Type           enums.BillingHistoryType   `gorm:"column:type;type:billing_history_type;not null"`
	Status         enums.BillingHistoryStatus `gorm:"column:status;type:billing_history_status;not null;default:'paid'"`
	AmountCents    int64                      `gorm:"column:amount_cents;not null"`
	Currency       string                     `gorm:"column:currency;not null;default:'usd'"`
	Description    string                     `gorm:"column:description;not null"`
	StripeObjectID string                     `gorm:"column:stripe_object_id;not null;index"`
	Metadata       json.RawMessage            `gorm:"column:metadata;type:jsonb"`
	CreatedAt      time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
