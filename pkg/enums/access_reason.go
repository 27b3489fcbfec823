package enums

// AccessReason explains an access-gate decision for a tool.
type AccessReason string

const (
	AccessReasonFree             AccessReason = "free"
	AccessReasonOwner            AccessReason = "owner"
	AccessReasonPurchased        AccessReason = "purchased"
	AccessReasonNotPurchased     AccessReason = "not_purchased"
	AccessReasonNotAuthenticated AccessReason = "not_authenticated"
)

var validAccessReasons = []AccessReason{
	AccessReasonFree,
	AccessReasonOwner,
	AccessReasonPurchased,
	AccessReasonNotPurchased,
	AccessReasonNotAuthenticated,
}

// String implements fmt.Stringer.
func (a AccessReason) String() string {
	return string(a)
}

// Grants reports whether the reason corresponds to granted access.
func (a AccessReason) Grants() bool {
	switch a {
	case AccessReasonFree, AccessReasonOwner, AccessReasonPurchased:
		return true
	default:
		return false
	}
}

// IsValid reports whether the value is known.
func (a AccessReason) IsValid() bool {
	for _, candidate := range validAccessReasons {
		if candidate == a {
			return true
		}
	}
	return false
}
