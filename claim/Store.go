package claim

import (
	"context"
	"errors"

	"playcoupon-api/model"
	"playcoupon-api/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the claim procedure against the coupons/claims
// tables. The decrement is a single conditional update, so concurrent
// claimants race safely at the database: the row qualifies for exactly as
// many decrements as it has stock.
type PostgresStore struct {
	DB *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{DB: db}
}

func (s *PostgresStore) Finalize(ctx context.Context, win model.PendingWin, email string) (Receipt, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Receipt{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(context.Background())
		}
	}()
	var code string
	err = tx.QueryRow(ctx,
		`update coupons set used_count = used_count + 1, updated_at = now()
		where id = $1 and status = 'OKAY' and used_count < quantity returning code`, win.Coupon.Id).
		Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, ErrExhausted
		}
		return Receipt{}, err
	}
	if code == "" {
		code = utils.GenerateCouponCode(8)
	}
	var claimId int
	err = tx.QueryRow(ctx,
		`insert into claims (coupon_id, merchant_id, email, code, game_type, discount_kind, discount_value, status)
		values ($1,$2,$3,$4,$5,$6,$7,$8) returning id`,
		win.Coupon.Id, win.MerchantId, email, code, win.GameType,
		win.Coupon.DiscountKind, win.Coupon.DiscountValue, model.ClaimStatusPending).
		Scan(&claimId)
	if err != nil {
		return Receipt{}, err
	}
	if err = tx.Commit(context.Background()); err != nil {
		return Receipt{}, err
	}
	return Receipt{ClaimId: claimId, Code: code}, nil
}

func (s *PostgresStore) MarkSent(ctx context.Context, claimId int, sendId string) error {
	_, err := s.DB.Exec(ctx,
		`update claims set status = $1, send_id = $2 where id = $3`, model.ClaimStatusSent, sendId, claimId)
	return err
}
