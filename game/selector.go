package game

import (
	"math/rand"

	"playcoupon-api/model"
)

// Game codes accepted by the widget.
const (
	GameWheel  = "wheel"
	GameMemory = "memory"
	GameSnake  = "snake"
	GameAim    = "aim"
)

// WeightForLevel biases the draw toward common tiers. Unknown levels are
// treated as rarest-but-defined.
func WeightForLevel(level int) float64 {
	switch level {
	case 1:
		return 60
	case 2:
		return 30
	case 3:
		return 10
	default:
		return 10
	}
}

// SelectCoupon picks one coupon from the pool with tier-biased probability.
// Out-of-stock coupons never qualify. Returns nil when nothing qualifies.
// Pure aside from consuming one RNG draw; pass a seeded rng in tests, nil for
// the shared source.
func SelectCoupon(coupons []model.Coupon, rng *rand.Rand) *model.Coupon {
	candidates := inStock(coupons)
	if len(candidates) == 0 {
		return nil
	}
	var total float64
	for _, c := range candidates {
		total += WeightForLevel(c.Level)
	}
	draw := randFloat(rng) * total
	var acc float64
	for i := range candidates {
		acc += WeightForLevel(candidates[i].Level)
		if acc > draw {
			return &candidates[i]
		}
	}
	// float accumulation can land exactly on total; never return nothing here
	return &candidates[0]
}

// SelectCouponByLevel restricts the draw to one tier, falling back through
// lower tiers and finally to any remaining coupon.
func SelectCouponByLevel(coupons []model.Coupon, level int, rng *rand.Rand) *model.Coupon {
	for l := level; l >= 1; l-- {
		pool := atLevel(coupons, l)
		if winner := SelectCoupon(pool, rng); winner != nil {
			return winner
		}
	}
	return SelectCoupon(coupons, rng)
}

// UniformCoupon picks uniformly among in-stock coupons, ignoring tier weights.
func UniformCoupon(coupons []model.Coupon, rng *rand.Rand) *model.Coupon {
	candidates := inStock(coupons)
	if len(candidates) == 0 {
		return nil
	}
	return &candidates[randIntn(rng, len(candidates))]
}

func inStock(coupons []model.Coupon) []model.Coupon {
	out := make([]model.Coupon, 0, len(coupons))
	for _, c := range coupons {
		if c.InStock() {
			out = append(out, c)
		}
	}
	return out
}

func atLevel(coupons []model.Coupon, level int) []model.Coupon {
	out := make([]model.Coupon, 0, len(coupons))
	for _, c := range coupons {
		if c.Level == level {
			out = append(out, c)
		}
	}
	return out
}

func randFloat(rng *rand.Rand) float64 {
	if rng != nil {
		return rng.Float64()
	}
	return rand.Float64()
}

func randIntn(rng *rand.Rand, n int) int {
	if rng != nil {
		return rng.Intn(n)
	}
	return rand.Intn(n)
}
