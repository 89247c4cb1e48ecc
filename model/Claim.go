package model

import "time"

type Claim struct {
	Id            int       `json:"id"`
	CouponId      int       `json:"coupon_id"`
	MerchantId    int       `json:"merchant_id"`
	Email         string    `json:"email"`
	Code          string    `json:"code"`
	GameType      string    `json:"game_type"`
	DiscountKind  string    `json:"discount_kind"`
	DiscountValue float64   `json:"discount_value"`
	Status        string    `json:"status"`
	SendId        *string   `json:"send_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	ClaimStatusPending = "pending"
	ClaimStatusSent    = "sent"
)
