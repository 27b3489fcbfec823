package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypePurchaseReceipt      NotificationType = "purchase_receipt"
	NotificationTypeToolSold             NotificationType = "tool_sold"
	NotificationTypePayoutCompleted      NotificationType = "payout_completed"
	NotificationTypePayoutFailed         NotificationType = "payout_failed"
	NotificationTypeTrialEnding          NotificationType = "trial_ending"
	NotificationTypeSubscriptionCanceled NotificationType = "subscription_canceled"
	NotificationTypeSystemAnnouncement   NotificationType = "system_announcement"
)

var validNotificationTypes = []NotificationType{
	NotificationTypePurchaseReceipt,
	NotificationTypeToolSold,
	NotificationTypePayoutCompleted,
	NotificationTypePayoutFailed,
	NotificationTypeTrialEnding,
	NotificationTypeSubscriptionCanceled,
	NotificationTypeSystemAnnouncement,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
