package game

import (
	"math/rand"
	"testing"

	"playcoupon-api/model"

	"github.com/stretchr/testify/assert"
)

func testCoupon(id, level, quantity, used int) model.Coupon {
	return model.Coupon{
		Id:            id,
		Level:         level,
		Quantity:      quantity,
		UsedCount:     used,
		Description:   "test coupon",
		DiscountKind:  "percentage",
		DiscountValue: 10,
	}
}

func TestWeightForLevel(t *testing.T) {
	a := assert.New(t)
	tests := []struct {
		level  int
		weight float64
	}{
		{1, 60},
		{2, 30},
		{3, 10},
		{0, 10},
		{4, 10},
		{99, 10},
	}
	for _, test := range tests {
		a.Equal(test.weight, WeightForLevel(test.level), "level %d", test.level)
	}
}

func TestSelectCouponSkipsExhaustedStock(t *testing.T) {
	a := assert.New(t)
	rng := rand.New(rand.NewSource(7))
	pool := []model.Coupon{
		testCoupon(1, 1, 5, 5),
		testCoupon(2, 1, 10, 3),
		testCoupon(3, 2, 1, 1),
		testCoupon(4, 3, 2, 0),
	}
	for i := 0; i < 1000; i++ {
		winner := SelectCoupon(pool, rng)
		if a.NotNil(winner) {
			a.Greater(winner.Remaining(), 0)
			a.NotEqual(1, winner.Id)
			a.NotEqual(3, winner.Id)
		}
	}
}

func TestSelectCouponEmptyPool(t *testing.T) {
	a := assert.New(t)
	rng := rand.New(rand.NewSource(7))

	a.Nil(SelectCoupon(nil, rng))
	a.Nil(SelectCoupon([]model.Coupon{}, rng))
	// single exhausted coupon
	a.Nil(SelectCoupon([]model.Coupon{testCoupon(1, 2, 1, 1)}, rng))
	// every coupon out of stock
	a.Nil(SelectCoupon([]model.Coupon{
		testCoupon(1, 1, 3, 3),
		testCoupon(2, 3, 1, 1),
	}, rng))
}

func TestSelectCouponWeightBias(t *testing.T) {
	a := assert.New(t)
	rng := rand.New(rand.NewSource(42))
	pool := []model.Coupon{
		testCoupon(1, 1, 10, 0),
		testCoupon(2, 3, 1, 0),
	}
	const draws = 10000
	common := 0
	for i := 0; i < draws; i++ {
		winner := SelectCoupon(pool, rng)
		if a.NotNil(winner) && winner.Id == 1 {
			common++
		}
	}
	// theoretical share 60/(60+10) = 85.7%
	share := float64(common) / draws
	a.InDelta(0.857, share, 0.03)
}

func TestSelectCouponByLevelFallback(t *testing.T) {
	a := assert.New(t)
	rng := rand.New(rand.NewSource(11))

	// requested tier available
	pool := []model.Coupon{testCoupon(1, 3, 1, 0), testCoupon(2, 1, 5, 0)}
	winner := SelectCouponByLevel(pool, 3, rng)
	if a.NotNil(winner) {
		a.Equal(1, winner.Id)
	}

	// no tier-3 coupon, tier-2 exists: falls back one level down
	pool = []model.Coupon{testCoupon(5, 2, 2, 0)}
	winner = SelectCouponByLevel(pool, 3, rng)
	if a.NotNil(winner) {
		a.Equal(5, winner.Id)
	}

	// nothing at or below the requested tier: any remaining coupon wins
	pool = []model.Coupon{testCoupon(7, 3, 2, 0)}
	winner = SelectCouponByLevel(pool, 2, rng)
	if a.NotNil(winner) {
		a.Equal(7, winner.Id)
	}

	// nothing at all
	a.Nil(SelectCouponByLevel(nil, 3, rng))
	a.Nil(SelectCouponByLevel([]model.Coupon{testCoupon(9, 1, 1, 1)}, 1, rng))
}

func TestUniformCoupon(t *testing.T) {
	a := assert.New(t)
	rng := rand.New(rand.NewSource(3))
	pool := []model.Coupon{
		testCoupon(1, 1, 1, 1),
		testCoupon(2, 2, 4, 0),
		testCoupon(3, 3, 4, 0),
	}
	seen := map[int]int{}
	for i := 0; i < 500; i++ {
		winner := UniformCoupon(pool, rng)
		if a.NotNil(winner) {
			seen[winner.Id]++
		}
	}
	a.Zero(seen[1], "exhausted coupon must never be picked")
	a.Positive(seen[2])
	a.Positive(seen[3])

	a.Nil(UniformCoupon(nil, rng))
}
