package claim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"playcoupon-api/model"
	"playcoupon-api/visitor"

	"github.com/stretchr/testify/assert"
)

type fakeStore struct {
	mu          sync.Mutex
	remaining   int
	nextClaimId int
	finalizeErr error
	finalized   int
	sent        map[int]string
}

func newFakeStore(remaining int) *fakeStore {
	return &fakeStore{remaining: remaining, sent: map[int]string{}}
}

func (s *fakeStore) Finalize(ctx context.Context, win model.PendingWin, email string) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalizeErr != nil {
		return Receipt{}, s.finalizeErr
	}
	if s.remaining <= 0 {
		return Receipt{}, ErrExhausted
	}
	s.remaining--
	s.finalized++
	s.nextClaimId++
	return Receipt{ClaimId: s.nextClaimId, Code: "WIN-TEST1234"}, nil
}

func (s *fakeStore) MarkSent(ctx context.Context, claimId int, sendId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[claimId] = sendId
	return nil
}

type fakeMailer struct {
	err  error
	sent []string
}

func (m *fakeMailer) SendCouponEmail(ctx context.Context, to string, code string, description string, gameType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, to)
	return "email_1", nil
}

func pendingWin() model.PendingWin {
	return model.PendingWin{
		Token:      "tok1",
		MerchantId: 1,
		VisitorId:  "visitor-1",
		GameType:   "memory",
		Coupon: model.Coupon{
			Id: 7, Description: "10% off", DiscountKind: "percentage",
			DiscountValue: 10, Level: 2, Quantity: 5, UsedCount: 0,
		},
		CreatedAt: time.Now(),
	}
}

func TestClaimSuccess(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()
	store := newFakeStore(5)
	mail := &fakeMailer{}
	visitors := visitor.NewStore(visitor.NewMemoryKV())
	f := NewFinalizer(store, mail, visitors)

	win, err := f.Claim(ctx, pendingWin(), "player@example.com", time.Hour)
	a.NoError(err)
	a.True(win.Finalized())
	a.Equal("WIN-TEST1234", win.Code)
	a.Equal([]string{"player@example.com"}, mail.sent)
	a.Equal("email_1", store.sent[win.ClaimId])

	// cooldown state written after the full chain succeeded
	_, ok := visitors.LastPlayed(ctx, "visitor-1")
	a.True(ok)
	snapshot, ok := visitors.WonCoupon(ctx, "visitor-1")
	a.True(ok)
	a.Equal("WIN-TEST1234", snapshot.Code)
}

func TestClaimFailureWritesNoLocalState(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()
	store := newFakeStore(5)
	store.finalizeErr = errors.New("connection refused")
	visitors := visitor.NewStore(visitor.NewMemoryKV())
	f := NewFinalizer(store, &fakeMailer{}, visitors)

	win, err := f.Claim(ctx, pendingWin(), "player@example.com", time.Hour)
	a.Error(err)
	a.False(win.Finalized())

	_, ok := visitors.LastPlayed(ctx, "visitor-1")
	a.False(ok, "last played must not be written on a failed claim")
	_, ok = visitors.WonCoupon(ctx, "visitor-1")
	a.False(ok)
}

func TestClaimExhaustedStock(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()
	store := newFakeStore(0)
	visitors := visitor.NewStore(visitor.NewMemoryKV())
	f := NewFinalizer(store, &fakeMailer{}, visitors)

	win, err := f.Claim(ctx, pendingWin(), "player@example.com", time.Hour)
	a.ErrorIs(err, ErrExhausted)
	a.False(win.Finalized())

	_, ok := visitors.LastPlayed(ctx, "visitor-1")
	a.False(ok)
}

func TestClaimInvalidEmailNeverReachesStore(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()
	store := newFakeStore(5)
	f := NewFinalizer(store, &fakeMailer{}, visitor.NewStore(visitor.NewMemoryKV()))

	for _, email := range []string{"", "plain", "no@tld", "two@@at.com", "white space@x.io"} {
		_, err := f.Claim(ctx, pendingWin(), email, time.Hour)
		a.ErrorIs(err, ErrInvalidEmail, "email %q", email)
	}
	a.Zero(store.finalized)
}

func TestEmailFailureKeepsWinAndStockForRetry(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()
	store := newFakeStore(1)
	mail := &fakeMailer{err: errors.New("provider down")}
	visitors := visitor.NewStore(visitor.NewMemoryKV())
	f := NewFinalizer(store, mail, visitors)

	win, err := f.Claim(ctx, pendingWin(), "player@example.com", time.Hour)
	var sendErr *EmailSendError
	a.ErrorAs(err, &sendErr)
	// stock was decremented, the win now carries the durable claim
	a.True(win.Finalized())
	a.Equal(1, store.finalized)
	_, ok := visitors.LastPlayed(ctx, "visitor-1")
	a.False(ok)

	// retry with the provider back: email only, no second decrement
	mail.err = nil
	win, err = f.Claim(ctx, win, "player@example.com", time.Hour)
	a.NoError(err)
	a.Equal(1, store.finalized, "retry must not touch stock again")
	_, ok = visitors.LastPlayed(ctx, "visitor-1")
	a.True(ok)
}

func TestConcurrentClaimsLastUnit(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()
	store := newFakeStore(1)
	visitors := visitor.NewStore(visitor.NewMemoryKV())
	f := NewFinalizer(store, &fakeMailer{}, visitors)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			win := pendingWin()
			win.Token = string(rune('a' + n))
			win.VisitorId = win.Token
			_, err := f.Claim(ctx, win, "player@example.com", time.Hour)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	successes, exhausted := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrExhausted):
			exhausted++
		default:
			a.Fail("unexpected error", err.Error())
		}
	}
	a.Equal(1, successes, "exactly one claimant may win the last unit")
	a.Equal(1, exhausted)
}
