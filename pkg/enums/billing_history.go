package enums

import "fmt"

// BillingHistoryType classifies a billing history line.
type BillingHistoryType string

const (
	BillingHistoryTypePurchase            BillingHistoryType = "purchase"
	BillingHistoryTypeSubscriptionInvoice BillingHistoryType = "subscription_invoice"
	BillingHistoryTypePayout              BillingHistoryType = "payout"
)

var validBillingHistoryTypes = []BillingHistoryType{
	BillingHistoryTypePurchase,
	BillingHistoryTypeSubscriptionInvoice,
	BillingHistoryTypePayout,
}

// String implements fmt.Stringer.
func (b BillingHistoryType) String() string {
	return string(b)
}

// IsValid reports whether the value is known.
func (b BillingHistoryType) IsValid() bool {
	for _, candidate := range validBillingHistoryTypes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBillingHistoryType converts raw input into a BillingHistoryType.
func ParseBillingHistoryType(value string) (BillingHistoryType, error) {
	for _, candidate := range validBillingHistoryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing history type %q", value)
}

// BillingHistoryStatus reflects the settlement state shown on a receipt line.
type BillingHistoryStatus string

const (
	BillingHistoryStatusPaid     BillingHistoryStatus = "paid"
	BillingHistoryStatusFailed   BillingHistoryStatus = "failed"
	BillingHistoryStatusRefunded BillingHistoryStatus = "refunded"
)

var validBillingHistoryStatuses = []BillingHistoryStatus{
	BillingHistoryStatusPaid,
	BillingHistoryStatusFailed,
	BillingHistoryStatusRefunded,
}

// String implements fmt.Stringer.
func (b BillingHistoryStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is known.
func (b BillingHistoryStatus) IsValid() bool {
	for _, candidate := range validBillingHistoryStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBillingHistoryStatus converts raw input into a BillingHistoryStatus.
func ParseBillingHistoryStatus(value string) (BillingHistoryStatus, error) {
	for _, candidate := range validBillingHistoryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing history status %q", value)
}
