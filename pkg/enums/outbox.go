package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregatePurchase     OutboxAggregateType = "purchase"
	AggregatePayout       OutboxAggregateType = "payout"
	AggregateSubscription OutboxAggregateType = "subscription"
	AggregateUser         OutboxAggregateType = "user"
	AggregateTool         OutboxAggregateType = "tool"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePurchase,
	AggregatePayout,
	AggregateSubscription,
	AggregateUser,
	AggregateTool,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventToolPurchased        OutboxEventType = "tool_purchased"
	EventPurchaseExpired      OutboxEventType = "purchase_expired"
	EventPaymentFailed        OutboxEventType = "payment_failed"
	EventPayoutCompleted      OutboxEventType = "payout_completed"
	EventPayoutFailed         OutboxEventType = "payout_failed"
	EventSubscriptionRenewed  OutboxEventType = "subscription_renewed"
	EventSubscriptionCanceled OutboxEventType = "subscription_canceled"
	EventTrialEnding          OutboxEventType = "trial_ending"
	EventPayoutAccountLinked  OutboxEventType = "payout_account_linked"
)

var validOutboxEventTypes = []OutboxEventType{
	EventToolPurchased,
	EventPurchaseExpired,
	EventPaymentFailed,
	EventPayoutCompleted,
	EventPayoutFailed,
	EventSubscriptionRenewed,
	EventSubscriptionCanceled,
	EventTrialEnding,
	EventPayoutAccountLinked,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
