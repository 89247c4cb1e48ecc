package game

import (
	"math/rand"

	"playcoupon-api/model"
)

// Win thresholds for the reflex-style games. Reaching the threshold yields
// exactly one win evaluation per game session; the session guard lives at the
// play endpoint.
const (
	SnakeWinScore = 50
	AimWinHits    = 3
)

// ResolveSnake reports whether the score wins and, if so, picks uniformly
// among all in-stock coupons.
func ResolveSnake(coupons []model.Coupon, score int, rng *rand.Rand) (*model.Coupon, bool) {
	if score < SnakeWinScore {
		return nil, false
	}
	return UniformCoupon(coupons, rng), true
}

// ResolveAim reports whether the hit count wins and, if so, runs the weighted
// selector over the whole pool.
func ResolveAim(coupons []model.Coupon, hits int, rng *rand.Rand) (*model.Coupon, bool) {
	if hits < AimWinHits {
		return nil, false
	}
	return SelectCoupon(coupons, rng), true
}
