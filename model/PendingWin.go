package model

import "time"

// PendingWin is the coupon a visitor won but has not claimed yet. It lives in
// redis between "win detected" and "claim submitted or abandoned". ClaimId and
// Code are filled once the stock decrement succeeded, so a retry of the email
// step never touches stock again.
type PendingWin struct {
	Token      string    `json:"token"`
	MerchantId int       `json:"merchant_id"`
	VisitorId  string    `json:"visitor_id"`
	GameType   string    `json:"game_type"`
	Coupon     Coupon    `json:"coupon"`
	ClaimId    int       `json:"claim_id"`
	Code       string    `json:"code"`
	CreatedAt  time.Time `json:"created_at"`
}

func (w PendingWin) Finalized() bool {
	return w.ClaimId > 0
}
