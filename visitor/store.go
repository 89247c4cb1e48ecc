// Package visitor keeps the per-visitor gating state the widget needs between
// plays: last-played timestamp, the latest won coupon snapshot, and the visit
// window of time-boxed campaigns. Keys are scoped per visitor id; a missing or
// malformed value is always treated as absent and regenerated, never as an
// error the player can see.
package visitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"playcoupon-api/model"
)

type Store struct {
	kv KV
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

func lastPlayedKey(visitorId string) string {
	return fmt.Sprintf("VISITOR_%s_LAST_PLAYED", visitorId)
}
func wonCouponKey(visitorId string) string {
	return fmt.Sprintf("VISITOR_%s_WON_COUPON", visitorId)
}
func visitStartKey(visitorId string) string {
	return fmt.Sprintf("VISITOR_%s_VISIT_START", visitorId)
}
func visitExpiryKey(visitorId string) string {
	return fmt.Sprintf("VISITOR_%s_VISIT_EXPIRY", visitorId)
}

func (s *Store) LastPlayed(ctx context.Context, visitorId string) (time.Time, bool) {
	raw, ok, err := s.kv.Get(ctx, lastPlayedKey(visitorId))
	if err != nil || !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetLastPlayed records the cooldown anchor. The key carries the cooldown as
// TTL so stale visitors clean themselves up.
func (s *Store) SetLastPlayed(ctx context.Context, visitorId string, playedAt time.Time, cooldown time.Duration) error {
	return s.kv.Set(ctx, lastPlayedKey(visitorId), playedAt.Format(time.RFC3339), cooldown)
}

// InCooldown reports whether the visitor played within the cooldown window.
func (s *Store) InCooldown(ctx context.Context, visitorId string, cooldown time.Duration) (bool, time.Time) {
	playedAt, ok := s.LastPlayed(ctx, visitorId)
	if !ok {
		return false, time.Time{}
	}
	until := playedAt.Add(cooldown)
	if time.Now().Before(until) {
		return true, until
	}
	return false, time.Time{}
}

func (s *Store) WonCoupon(ctx context.Context, visitorId string) (*model.Coupon, bool) {
	raw, ok, err := s.kv.Get(ctx, wonCouponKey(visitorId))
	if err != nil || !ok {
		return nil, false
	}
	coupon := new(model.Coupon)
	if err := json.Unmarshal([]byte(raw), coupon); err != nil {
		// malformed snapshot, drop it
		s.kv.Del(ctx, wonCouponKey(visitorId))
		return nil, false
	}
	return coupon, true
}

func (s *Store) SetWonCoupon(ctx context.Context, visitorId string, coupon model.Coupon, ttl time.Duration) error {
	raw, err := json.Marshal(coupon)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, wonCouponKey(visitorId), string(raw), ttl)
}

func (s *Store) ClearWonCoupon(ctx context.Context, visitorId string) error {
	return s.kv.Del(ctx, wonCouponKey(visitorId))
}

// VisitWindow returns the time-boxed campaign window for this visitor, if one
// was started.
func (s *Store) VisitWindow(ctx context.Context, visitorId string) (start time.Time, expiry time.Time, ok bool) {
	rawStart, okStart, err := s.kv.Get(ctx, visitStartKey(visitorId))
	if err != nil || !okStart {
		return time.Time{}, time.Time{}, false
	}
	rawExpiry, okExpiry, err := s.kv.Get(ctx, visitExpiryKey(visitorId))
	if err != nil || !okExpiry {
		return time.Time{}, time.Time{}, false
	}
	start, errStart := time.Parse(time.RFC3339, rawStart)
	expiry, errExpiry := time.Parse(time.RFC3339, rawExpiry)
	if errStart != nil || errExpiry != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, expiry, true
}

// EnsureVisitWindow starts the visit window on first sight of the visitor and
// returns the (possibly pre-existing) expiry.
func (s *Store) EnsureVisitWindow(ctx context.Context, visitorId string, limit time.Duration) (time.Time, error) {
	if _, expiry, ok := s.VisitWindow(ctx, visitorId); ok {
		return expiry, nil
	}
	now := time.Now()
	expiry := now.Add(limit)
	if err := s.kv.Set(ctx, visitStartKey(visitorId), now.Format(time.RFC3339), 0); err != nil {
		return time.Time{}, err
	}
	if err := s.kv.Set(ctx, visitExpiryKey(visitorId), expiry.Format(time.RFC3339), 0); err != nil {
		return time.Time{}, err
	}
	return expiry, nil
}
