package ledger

// PlatformFeePercent is the platform's cut of every tool sale, in whole
// percent of the gross charge.
const PlatformFeePercent int64 = 30

// SplitAmount divides a gross charge between the platform and the creator.
// The platform fee is floored to whole cents and the creator receives the
// remainder, so the two parts always sum to amountCents. Non-positive
// amounts split to zero.
func SplitAmount(amountCents int64) (platformFeeCents, creatorEarningsCents int64) {
	if amountCents <= 0 {
		return 0, 0
	}
	platformFeeCents = amountCents * PlatformFeePercent / 100
	creatorEarningsCents = amountCents - platformFeeCents
	return platformFeeCents, creatorEarningsCents
}
