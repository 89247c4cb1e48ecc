// Package workers hosts the background maintenance loops. They are started
// from main and run for the lifetime of the process.
package workers

import (
	"context"
	"fmt"
	"time"

	"playcoupon-api/claim"
	"playcoupon-api/config"
	"playcoupon-api/model"
	"playcoupon-api/utils"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
)

// EmailRetryWorker sweeps claims whose reward email never went out and
// retries the send. A claim sits in 'pending' either because the provider
// failed mid-claim or because marking it as sent failed; both cases are
// settled here. Worst case the player receives the email twice, which beats
// a paid-for coupon that never arrives.
type EmailRetryWorker struct {
	DB        *pgxpool.Pool
	Mailer    claim.Mailer
	Interval  time.Duration
	MinAge    time.Duration
	BatchSize int
}

func NewEmailRetryWorker(db *pgxpool.Pool, mailer claim.Mailer) *EmailRetryWorker {
	interval := viper.GetInt("workers.email_retry_interval_minutes")
	if interval <= 0 {
		interval = 5
	}
	minAge := viper.GetInt("workers.email_retry_min_age_minutes")
	if minAge <= 0 {
		minAge = 2
	}
	return &EmailRetryWorker{
		DB:        db,
		Mailer:    mailer,
		Interval:  time.Duration(interval) * time.Minute,
		MinAge:    time.Duration(minAge) * time.Minute,
		BatchSize: 50,
	}
}

func (w *EmailRetryWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *EmailRetryWorker) run(ctx context.Context) {
	defer utils.PanicRecover()
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

type pendingClaim struct {
	Id          int
	Email       string
	Code        string
	GameType    string
	Description string
}

// Sweep retries one batch of stale pending claims. Claims younger than MinAge
// are skipped so the worker never races a claim that is still in flight.
func (w *EmailRetryWorker) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.MinAge)
	rows, err := w.DB.Query(ctx,
		`select cl.id, cl.email, cl.code, cl.game_type, cp.description
		from claims cl join coupons cp on cp.id = cl.coupon_id
		where cl.status = $1 and cl.created_at < $2 order by cl.created_at limit $3`,
		model.ClaimStatusPending, cutoff, w.BatchSize)
	if err != nil {
		utils.LogMessage("error", "EmailRetryWorker: unable to list pending claims, error: "+err.Error(), config.ServiceName)
		return
	}
	pending := []pendingClaim{}
	for rows.Next() {
		p := pendingClaim{}
		if err = rows.Scan(&p.Id, &p.Email, &p.Code, &p.GameType, &p.Description); err != nil {
			rows.Close()
			utils.LogMessage("error", "EmailRetryWorker: unable to scan pending claim, error: "+err.Error(), config.ServiceName)
			return
		}
		pending = append(pending, p)
	}
	rows.Close()
	for _, p := range pending {
		sendId, err := w.Mailer.SendCouponEmail(ctx, p.Email, p.Code, p.Description, p.GameType)
		if err != nil {
			utils.LogMessage("warning", fmt.Sprintf("EmailRetryWorker: resend failed for claim %d: %v", p.Id, err), config.ServiceName)
			continue
		}
		_, err = w.DB.Exec(ctx,
			`update claims set status = $1, send_id = $2 where id = $3`, model.ClaimStatusSent, sendId, p.Id)
		if err != nil {
			utils.LogMessage("warning", fmt.Sprintf("EmailRetryWorker: unable to mark claim %d as sent: %v", p.Id, err), config.ServiceName)
		}
	}
}
