// Package claim converts a pending win plus a visitor email into a durable,
// stock-safe redemption. The sequence is strict: atomic stock decrement,
// reward email, then (and only then) the visitor's cooldown state. A win is
// never silently dropped: every failure leaves the pending win claimable
// again.
package claim

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"playcoupon-api/model"
	"playcoupon-api/utils"
	"playcoupon-api/visitor"
)

var (
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrExhausted is the claim procedure's explicit out-of-stock refusal.
	ErrExhausted = errors.New("coupon exhausted")
)

// EmailSendError marks a send failure that happened after the stock decrement
// succeeded. The caller keeps the (now finalized) pending win so the player
// can retry the email step without touching stock again.
type EmailSendError struct {
	Err error
}

func (e *EmailSendError) Error() string {
	return fmt.Sprintf("unable to send reward email: %v", e.Err)
}

func (e *EmailSendError) Unwrap() error {
	return e.Err
}

// Receipt is what the claim procedure hands back: the durable claim row and
// the authoritative coupon code (may differ from any placeholder shown in the
// widget).
type Receipt struct {
	ClaimId int
	Code    string
}

// Store is the sole authority for stock decrement. Finalize must be atomic:
// concurrent claims against the last unit produce exactly one success and
// ErrExhausted for the rest.
type Store interface {
	Finalize(ctx context.Context, win model.PendingWin, email string) (Receipt, error)
	MarkSent(ctx context.Context, claimId int, sendId string) error
}

type Mailer interface {
	SendCouponEmail(ctx context.Context, to string, code string, description string, gameType string) (string, error)
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[A-Za-z]{2,}$`)

type Finalizer struct {
	Store    Store
	Mailer   Mailer
	Visitors *visitor.Store
}

func NewFinalizer(store Store, mailer Mailer, visitors *visitor.Store) *Finalizer {
	return &Finalizer{Store: store, Mailer: mailer, Visitors: visitors}
}

// Claim runs the full finalization sequence and returns the win with
// ClaimId/Code filled in once the decrement went through. Callers persist the
// returned win back when the error is an EmailSendError, clear it on success
// and on ErrExhausted, and keep it untouched otherwise.
func (f *Finalizer) Claim(ctx context.Context, win model.PendingWin, email string, cooldown time.Duration) (model.PendingWin, error) {
	if !emailPattern.MatchString(email) {
		return win, ErrInvalidEmail
	}
	if !win.Finalized() {
		receipt, err := f.Store.Finalize(ctx, win, email)
		if err != nil {
			return win, err
		}
		win.ClaimId = receipt.ClaimId
		win.Code = receipt.Code
	}
	sendId, err := f.Mailer.SendCouponEmail(ctx, email, win.Code, win.Coupon.Description, win.GameType)
	if err != nil {
		return win, &EmailSendError{Err: err}
	}
	if err := f.Store.MarkSent(ctx, win.ClaimId, sendId); err != nil {
		// claim and email are both durable; the retry sweeper will settle the
		// status, worst case the player gets the email twice
		utils.LogMessage("warning", fmt.Sprintf("Claim: unable to mark claim %d as sent: %v", win.ClaimId, err), "playcoupon-api")
	}
	// local gating state is written only after the claim chain succeeded;
	// a failed claim must never cost the player a cooldown window
	snapshot := win.Coupon
	snapshot.Code = win.Code
	if err := f.Visitors.SetLastPlayed(ctx, win.VisitorId, time.Now(), cooldown); err != nil {
		utils.LogMessage("warning", fmt.Sprintf("Claim: unable to save cooldown for visitor %s: %v", win.VisitorId, err), "playcoupon-api")
	}
	if err := f.Visitors.SetWonCoupon(ctx, win.VisitorId, snapshot, cooldown); err != nil {
		utils.LogMessage("warning", fmt.Sprintf("Claim: unable to cache won coupon for visitor %s: %v", win.VisitorId, err), "playcoupon-api")
	}
	return win, nil
}
