package enums

import "fmt"

// PricingType maps to the pricing_type enum in Postgres.
type PricingType string

const (
	PricingTypeFree         PricingType = "free"
	PricingTypeOneTime      PricingType = "one_time"
	PricingTypeSubscription PricingType = "subscription"
)

var validPricingTypes = []PricingType{
	PricingTypeFree,
	PricingTypeOneTime,
	PricingTypeSubscription,
}

// String implements fmt.Stringer.
func (p PricingType) String() string {
	return string(p)
}

// IsValid reports whether the value matches the canonical pricing_type enum.
func (p PricingType) IsValid() bool {
	for _, candidate := range validPricingTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePricingType converts raw input into a PricingType.
func ParsePricingType(value string) (PricingType, error) {
	for _, candidate := range validPricingTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pricing type %q", value)
}
