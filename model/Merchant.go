package model

import "time"

type Merchant struct {
	Id        int       `json:"id"`
	Names     string    `json:"names"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}
