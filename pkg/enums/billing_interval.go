package enums

import "fmt"

// BillingInterval maps to the billing_interval enum in Postgres. The values
// are Stripe's recurring-interval strings, so a plan row can be checked
// against its Stripe price without a mapping layer.
type BillingInterval string

const (
	BillingIntervalMonthly BillingInterval = "month"
	BillingIntervalYearly  BillingInterval = "year"
)

var validBillingIntervals = []BillingInterval{
	BillingIntervalMonthly,
	BillingIntervalYearly,
}

// String implements fmt.Stringer.
func (b BillingInterval) String() string {
	return string(b)
}

// IsValid reports whether the value is known.
func (b BillingInterval) IsValid() bool {
	for _, candidate := range validBillingIntervals {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBillingInterval converts raw input into a BillingInterval.
func ParseBillingInterval(value string) (BillingInterval, error) {
	for _, candidate := range validBillingIntervals {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing interval %q", value)
}
