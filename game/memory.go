package game

import (
	"math/rand"

	"playcoupon-api/model"
)

// Move-count boundaries for the memory game. Fewer moves means a better
// (rarer) tier.
const (
	MemoryBestMoves = 14
	MemoryMidMoves  = 20
)

func MemoryTier(moves int) int {
	switch {
	case moves <= MemoryBestMoves:
		return 3
	case moves <= MemoryMidMoves:
		return 2
	default:
		return 1
	}
}

// ResolveMemory computes the tier from the move count at completion and picks
// a coupon at that tier, falling back to lower tiers and finally to any
// remaining coupon. A nil result is still a win, just with no reward.
func ResolveMemory(coupons []model.Coupon, moves int, rng *rand.Rand) *model.Coupon {
	return SelectCouponByLevel(coupons, MemoryTier(moves), rng)
}
