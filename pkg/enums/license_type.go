package enums

import "fmt"

// LicenseType maps to the license_type enum in Postgres.
type LicenseType string

const (
	LicenseTypeLifetime     LicenseType = "lifetime"
	LicenseTypeSubscription LicenseType = "subscription"
	LicenseTypeTrial        LicenseType = "trial"
)

var validLicenseTypes = []LicenseType{
	LicenseTypeLifetime,
	LicenseTypeSubscription,
	LicenseTypeTrial,
}

// String implements fmt.Stringer.
func (l LicenseType) String() string {
	return string(l)
}

// IsValid reports whether the value matches the canonical license_type enum.
func (l LicenseType) IsValid() bool {
	for _, candidate := range validLicenseTypes {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLicenseType converts raw input into a LicenseType.
func ParseLicenseType(value string) (LicenseType, error) {
	for _, candidate := range validLicenseTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid license type %q", value)
}
