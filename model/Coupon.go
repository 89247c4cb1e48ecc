package model

import "time"

type Coupon struct {
	Id            int       `json:"id"`
	MerchantId    int       `json:"merchant_id"`
	Code          string    `json:"code,omitempty"`
	Description   string    `json:"description"`
	DiscountKind  string    `json:"discount_kind"`
	DiscountValue float64   `json:"discount_value"`
	Level         int       `json:"level"`
	Quantity      int       `json:"quantity"`
	UsedCount     int       `json:"used_count"`
	Status        string    `json:"status,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"-"`
}

// Remaining is the stock still claimable. used_count is only ever moved by
// the claim procedure, so this is authoritative at read time.
func (c Coupon) Remaining() int {
	return c.Quantity - c.UsedCount
}

func (c Coupon) InStock() bool {
	return c.Remaining() > 0
}
