package subscriptions

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
)

// metadataUserKey is the Stripe metadata key carrying the owning user's id.
// It is set on create and read back by the webhook reconciler.
const metadataUserKey = "user_id"

// BuildSubscriptionFromStripe maps a Stripe subscription onto a fresh local row.
func BuildSubscriptionFromStripe(stripeSub *stripe.Subscription, userID uuid.UUID) (*models.Subscription, error) {
	if stripeSub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe subscription required")
	}
	if strings.TrimSpace(stripeSub.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe subscription id missing")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	periodStart, periodEnd := periodFromSubscription(stripeSub)
	if periodEnd.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe subscription period missing")
	}

	metadata, err := mergeMetadata(nil, stripeSub.Metadata)
	if err != nil {
		return nil, err
	}

	sub := &models.Subscription{
		UserID:               userID,
		StripeSubscriptionID: stripeSub.ID,
		Status:               mapStripeStatus(stripeSub.Status),
		PriceID:              PriceIDFromSubscription(stripeSub),
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
		CancelAtPeriodEnd:    stripeSub.CancelAtPeriodEnd,
		CanceledAt:           toTimePtr(stripeSub.CanceledAt),
		Metadata:             metadata,
	}
	return sub, nil
}

// UpdateSubscriptionFromStripe folds the latest Stripe state into an existing row.
func UpdateSubscriptionFromStripe(target *models.Subscription, stripeSub *stripe.Subscription) error {
	if target == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription required")
	}
	if stripeSub == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe subscription required")
	}

	target.Status = mapStripeStatus(stripeSub.Status)
	if priceID := PriceIDFromSubscription(stripeSub); priceID != nil {
		target.PriceID = priceID
	}
	periodStart, periodEnd := periodFromSubscription(stripeSub)
	if periodStart != nil {
		target.CurrentPeriodStart = periodStart
	}
	if !periodEnd.IsZero() {
		target.CurrentPeriodEnd = periodEnd
	}
	target.CancelAtPeriodEnd = stripeSub.CancelAtPeriodEnd
	if canceledAt := toTimePtr(stripeSub.CanceledAt); canceledAt != nil {
		target.CanceledAt = canceledAt
	}

	metadata, err := mergeMetadata(target.Metadata, stripeSub.Metadata)
	if err != nil {
		return err
	}
	target.Metadata = metadata
	return nil
}

// UserIDFromMetadata recovers the owning user from subscription metadata.
func UserIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	raw, ok := metadata[metadataUserKey]
	if !ok || strings.TrimSpace(raw) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription metadata missing user_id")
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse user_id metadata")
	}
	return id, nil
}

// IsActiveStatus reports whether the status still grants product access.
func IsActiveStatus(status enums.SubscriptionStatus) bool {
	return status.GrantsAccess()
}

// PriceIDFromSubscription extracts the price from the first subscription item.
func PriceIDFromSubscription(stripeSub *stripe.Subscription) *string {
	if stripeSub == nil || stripeSub.Items == nil || len(stripeSub.Items.Data) == 0 {
		return nil
	}
	item := stripeSub.Items.Data[0]
	if item == nil || item.Price == nil || strings.TrimSpace(item.Price.ID) == "" {
		return nil
	}
	priceID := item.Price.ID
	return &priceID
}

func mapStripeStatus(status stripe.SubscriptionStatus) enums.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusTrialing:
		return enums.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusActive:
		return enums.SubscriptionStatusActive
	case stripe.SubscriptionStatusPastDue:
		return enums.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled:
		return enums.SubscriptionStatusCanceled
	case stripe.SubscriptionStatusIncomplete:
		return enums.SubscriptionStatusIncomplete
	case stripe.SubscriptionStatusIncompleteExpired:
		return enums.SubscriptionStatusIncompleteExpired
	case stripe.SubscriptionStatusUnpaid:
		return enums.SubscriptionStatusUnpaid
	case stripe.SubscriptionStatusPaused:
		// Collection stopped without a cancellation; treat like unpaid.
		return enums.SubscriptionStatusUnpaid
	default:
		return enums.SubscriptionStatusActive
	}
}

// periodFromSubscription reads the billing period off the first item, where
// Stripe reports it since the period moved off the subscription envelope.
func periodFromSubscription(stripeSub *stripe.Subscription) (*time.Time, time.Time) {
	if stripeSub == nil || stripeSub.Items == nil || len(stripeSub.Items.Data) == 0 {
		return nil, time.Time{}
	}
	item := stripeSub.Items.Data[0]
	if item == nil {
		return nil, time.Time{}
	}
	return toTimePtr(item.CurrentPeriodStart), toTime(item.CurrentPeriodEnd)
}

func mergeMetadata(existing json.RawMessage, updates map[string]string) (json.RawMessage, error) {
	merged := map[string]string{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &merged); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode subscription metadata")
		}
	}
	for key, value := range updates {
		merged[key] = value
	}
	if len(merged) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(merged)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode subscription metadata")
	}
	return encoded, nil
}

func toTime(unix int64) time.Time {
	if unix <= 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}

func toTimePtr(unix int64) *time.Time {
	if unix <= 0 {
		return nil
	}
	ts := time.Unix(unix, 0).UTC()
	return &ts
}
