package game

import (
	"math/rand"
	"testing"

	"playcoupon-api/model"

	"github.com/stretchr/testify/assert"
)

func TestBuildWheel(t *testing.T) {
	a := assert.New(t)
	rng := rand.New(rand.NewSource(21))
	pool := []model.Coupon{
		testCoupon(1, 1, 10, 0),
		testCoupon(2, 2, 5, 0),
		testCoupon(3, 3, 1, 1), // exhausted, must never land on the wheel
	}
	segments := BuildWheel(pool, rng)
	a.Len(segments, WheelSegmentCount)
	for i, seg := range segments {
		a.Equal(i, seg.Index)
		if a.NotNil(seg.Coupon) {
			a.NotEqual(3, seg.Coupon.Id)
		}
	}
}

func TestBuildWheelEmptyPool(t *testing.T) {
	a := assert.New(t)
	segments := BuildWheel(nil, rand.New(rand.NewSource(1)))
	a.Len(segments, WheelSegmentCount)
	for _, seg := range segments {
		a.Nil(seg.Coupon)
	}
}

func TestResolveWheel(t *testing.T) {
	a := assert.New(t)
	segments := make([]WheelSegment, WheelSegmentCount)
	for i := range segments {
		c := testCoupon(i+100, 1, 5, 0)
		segments[i] = WheelSegment{Index: i, Coupon: &c}
	}
	tests := []struct {
		angle      float64
		expectedId int
	}{
		{0, 100},
		{44.9, 100},
		{45, 101},
		{90, 102},
		{350, 107},
		{360, 100},
		{719, 107},  // wraps to 359
		{-45, 107},  // negative rotation normalizes to 315
		{810.5, 102}, // wraps to 90.5
	}
	for _, test := range tests {
		winner := ResolveWheel(segments, test.angle)
		if a.NotNil(winner, "angle %v", test.angle) {
			a.Equal(test.expectedId, winner.Id, "angle %v", test.angle)
		}
	}

	a.Nil(ResolveWheel(nil, 90))
	a.Nil(ResolveWheel(BuildWheel(nil, nil), 90))
}
