package game

import (
	"math/rand"
	"testing"

	"playcoupon-api/model"

	"github.com/stretchr/testify/assert"
)

func TestMemoryTierBoundaries(t *testing.T) {
	a := assert.New(t)
	tests := []struct {
		moves int
		tier  int
	}{
		{8, 3},
		{12, 3},
		{14, 3},
		{15, 2},
		{20, 2},
		{21, 1},
		{40, 1},
	}
	for _, test := range tests {
		a.Equal(test.tier, MemoryTier(test.moves), "moves=%d", test.moves)
	}
}

func TestResolveMemoryFallback(t *testing.T) {
	a := assert.New(t)
	rng := rand.New(rand.NewSource(5))

	// 12 moves computes tier 3; only a tier-2 coupon exists, fallback takes it
	pool := []model.Coupon{testCoupon(4, 2, 3, 0)}
	winner := ResolveMemory(pool, 12, rng)
	if a.NotNil(winner) {
		a.Equal(4, winner.Id)
	}

	// win with nothing to give is still a win, reward is just absent
	a.Nil(ResolveMemory(nil, 12, rng))
	a.Nil(ResolveMemory([]model.Coupon{testCoupon(1, 3, 1, 1)}, 12, rng))
}
