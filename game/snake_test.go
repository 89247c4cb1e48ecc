package game

import (
	"math/rand"
	"testing"

	"playcoupon-api/model"

	"github.com/stretchr/testify/assert"
)

func TestResolveSnake(t *testing.T) {
	a := assert.New(t)
	rng := rand.New(rand.NewSource(13))
	pool := []model.Coupon{testCoupon(1, 1, 5, 0), testCoupon(2, 3, 2, 0)}

	winner, won := ResolveSnake(pool, 49, rng)
	a.False(won)
	a.Nil(winner)

	winner, won = ResolveSnake(pool, SnakeWinScore, rng)
	a.True(won)
	a.NotNil(winner)

	// threshold reached with an empty pool: the win stands, the reward doesn't
	winner, won = ResolveSnake(nil, 80, rng)
	a.True(won)
	a.Nil(winner)
}

func TestResolveAim(t *testing.T) {
	a := assert.New(t)
	rng := rand.New(rand.NewSource(13))
	pool := []model.Coupon{testCoupon(1, 1, 5, 0)}

	winner, won := ResolveAim(pool, 2, rng)
	a.False(won)
	a.Nil(winner)

	winner, won = ResolveAim(pool, AimWinHits, rng)
	a.True(won)
	if a.NotNil(winner) {
		a.Equal(1, winner.Id)
	}
}
