package payloads

import (
	"time"

	"github.com/google/uuid"
)

// ToolPurchasedEvent is emitted once per settled charge, after the ledger
// row exists and the creator has been credited.
type ToolPurchasedEvent struct {
	PurchaseID           uuid.UUID `json:"purchase_id"`
	ToolID               uuid.UUID `json:"tool_id"`
	BuyerID              uuid.UUID `json:"buyer_id"`
	CreatorID            uuid.UUID `json:"creator_id"`
	AmountCents          int64     `json:"amount_cents"`
	PlatformFeeCents     int64     `json:"platform_fee_cents"`
	CreatorEarningsCents int64     `json:"creator_earnings_cents"`
	Currency             string    `json:"currency"`
	ChargeID             string    `json:"charge_id"`
}

// PurchaseExpiredEvent reports a timed license that lapsed.
type PurchaseExpiredEvent struct {
	PurchaseID uuid.UUID `json:"purchase_id"`
	ToolID     uuid.UUID `json:"tool_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	ExpiredAt  time.Time `json:"expired_at"`
}

// PaymentFailedEvent surfaces a declined charge so the buyer can be alerted.
type PaymentFailedEvent struct {
	BuyerID     uuid.UUID `json:"buyer_id"`
	ChargeID    string    `json:"charge_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Reason      string    `json:"reason,omitempty"`
}

// PayoutCompletedEvent is emitted after the gateway transfer settles and the
// pending balance has been debited.
type PayoutCompletedEvent struct {
	PayoutID    uuid.UUID `json:"payout_id"`
	UserID      uuid.UUID `json:"user_id"`
	AmountCents int64     `json:"amount_cents"`
	TransferID  string    `json:"transfer_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// PayoutFailedEvent reports a transfer the gateway rejected; the creator's
// balance is untouched.
type PayoutFailedEvent struct {
	PayoutID    uuid.UUID `json:"payout_id"`
	UserID      uuid.UUID `json:"user_id"`
	AmountCents int64     `json:"amount_cents"`
	Reason      string    `json:"reason,omitempty"`
}

// SubscriptionRenewedEvent is emitted when an invoice for a billing period
// is paid.
type SubscriptionRenewedEvent struct {
	SubscriptionID uuid.UUID  `json:"subscription_id"`
	UserID         uuid.UUID  `json:"user_id"`
	InvoiceID      string     `json:"invoice_id"`
	AmountCents    int64      `json:"amount_cents"`
	PeriodEnd      *time.Time `json:"period_end,omitempty"`
}

// SubscriptionCanceledEvent is emitted when the gateway reports a
// subscription deletion.
type SubscriptionCanceledEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	CanceledAt     time.Time `json:"canceled_at"`
}

// TrialEndingEvent warns a subscriber a few days before the trial converts.
type TrialEndingEvent struct {
	SubscriptionID uuid.UUID  `json:"subscription_id"`
	UserID         uuid.UUID  `json:"user_id"`
	TrialEnd       *time.Time `json:"trial_end,omitempty"`
}

// PayoutAccountLinkedEvent records that a creator finished gateway
// onboarding and can now receive transfers.
type PayoutAccountLinkedEvent struct {
	UserID           uuid.UUID `json:"user_id"`
	GatewayAccountID string    `json:"gateway_account_id"`
	PayoutsEnabled   bool      `json:"payouts_enabled"`
}
