package game

import (
	"math"
	"math/rand"

	"playcoupon-api/model"
)

const WheelSegmentCount = 8
const SegmentAngle = 360.0 / float64(WheelSegmentCount)

// WheelSegment is one visual slice of the wheel. Coupon is nil when the pool
// had nothing to offer for that slice.
type WheelSegment struct {
	Index  int           `json:"index"`
	Coupon *model.Coupon `json:"coupon"`
}

// BuildWheel pre-bakes the reward layout: one weighted draw per segment, so
// common tiers naturally occupy more slices. The spin later resolves against
// this snapshot only; no tier computation happens at resolution time.
func BuildWheel(coupons []model.Coupon, rng *rand.Rand) []WheelSegment {
	segments := make([]WheelSegment, WheelSegmentCount)
	for i := range segments {
		segments[i] = WheelSegment{Index: i, Coupon: SelectCoupon(coupons, rng)}
	}
	return segments
}

// ResolveWheel maps the final rotation angle to the landing segment's coupon.
func ResolveWheel(segments []WheelSegment, finalAngle float64) *model.Coupon {
	if len(segments) == 0 {
		return nil
	}
	angle := math.Mod(finalAngle, 360)
	if angle < 0 {
		angle += 360
	}
	idx := int(angle / SegmentAngle)
	if idx >= len(segments) {
		idx = len(segments) - 1
	}
	return segments[idx].Coupon
}
