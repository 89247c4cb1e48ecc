package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"playcoupon-api/claim"
	"playcoupon-api/config"
	"playcoupon-api/game"
	"playcoupon-api/mailer"
	"playcoupon-api/model"
	"playcoupon-api/utils"
	"playcoupon-api/visitor"

	"github.com/BurntSushi/toml"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

const pendingWinTTL = 15 * time.Minute

var bundle *i18n.Bundle
var mailerOnce sync.Once
var widgetMailer *mailer.Client

func init() {
	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	// english defaults live in code so the widget keeps answering when the
	// locale files are missing; TOML files add/override languages
	bundle.AddMessages(language.English,
		&i18n.Message{ID: "cooldown_active", Other: "You already played recently. Come back later!"},
		&i18n.Message{ID: "visit_expired", Other: "This offer is no longer available for your visit."},
		&i18n.Message{ID: "session_played", Other: "This game was already evaluated."},
		&i18n.Message{ID: "widget_disabled", Other: "The game is currently unavailable."},
		&i18n.Message{ID: "game_disabled", Other: "This game is not enabled."},
		&i18n.Message{ID: "no_reward", Other: "You won, but all rewards are gone for now."},
		&i18n.Message{ID: "win", Other: "Congratulations, you won! Enter your email to receive your coupon."},
		&i18n.Message{ID: "lost", Other: "No luck this time. Try again later!"},
		&i18n.Message{ID: "sold_out", Other: "Sorry, this reward just sold out. Try again later."},
		&i18n.Message{ID: "invalid_email", Other: "Please enter a valid email address."},
		&i18n.Message{ID: "claim_failed", Other: "We could not process your reward. Please try again."},
		&i18n.Message{ID: "email_failed", Other: "We could not send your email. Please check the address and try again."},
		&i18n.Message{ID: "win_expired", Other: "This win has expired. Play again to get a new one!"},
		&i18n.Message{ID: "claim_success", Other: "Your coupon is on its way to {{.Email}}!"},
	)
	localesDir := viper.GetString("locales_dir")
	if localesDir == "" {
		localesDir = "locales"
	}
	for _, lang := range []string{"en", "fr"} {
		if _, err := bundle.LoadMessageFile(fmt.Sprintf("%s/widget.%s.toml", localesDir, lang)); err != nil {
			fmt.Println("Error loading translations:", err)
		}
	}
}

func loadLocalizer(lang string) *i18n.Localizer {
	if lang == "" {
		lang = "en"
	}
	return i18n.NewLocalizer(bundle, lang)
}

func getMailer() *mailer.Client {
	mailerOnce.Do(func() {
		widgetMailer = mailer.NewClient()
	})
	return widgetMailer
}

func visitorStore() *visitor.Store {
	return visitor.NewStore(visitor.RedisKV{Client: config.Redis})
}

// fetchWidgetSettings is fail-open: a missing row or a database hiccup yields
// the permissive defaults so the widget never disappears because of us.
func fetchWidgetSettings(ctx context.Context, merchantId int) model.WidgetSettings {
	settings := model.WidgetSettings{MerchantId: merchantId}
	if config.DB == nil {
		return model.DefaultWidgetSettings(merchantId)
	}
	var visitLimit *int
	err := config.DB.QueryRow(ctx,
		`select enabled, cooldown_minutes, visit_limit_minutes, games from widget_settings where merchant_id = $1`, merchantId).
		Scan(&settings.Enabled, &settings.CooldownMinutes, &visitLimit, &settings.Games)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			utils.LogMessage("error", fmt.Sprintf("fetchWidgetSettings: merchant:%d, err:%v", merchantId, err), config.ServiceName)
		}
		return model.DefaultWidgetSettings(merchantId)
	}
	settings.VisitLimitMinutes = visitLimit
	if len(settings.Games) == 0 {
		settings.Games = model.DefaultWidgetSettings(merchantId).Games
	}
	return settings
}

// fetchAvailableCoupons returns the merchant's in-stock coupons ordered by
// tier. Codes are deliberately not selected; the authoritative code is only
// revealed by the claim procedure.
func fetchAvailableCoupons(ctx context.Context, merchantId int) ([]model.Coupon, error) {
	coupons := []model.Coupon{}
	rows, err := config.DB.Query(ctx,
		`select id, merchant_id, description, discount_kind, discount_value, level, quantity, used_count
		from coupons where merchant_id = $1 and status = 'OKAY' and used_count < quantity order by level`, merchantId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		coupon := model.Coupon{}
		err = rows.Scan(&coupon.Id, &coupon.MerchantId, &coupon.Description, &coupon.DiscountKind,
			&coupon.DiscountValue, &coupon.Level, &coupon.Quantity, &coupon.UsedCount)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, coupon)
	}
	return coupons, rows.Err()
}

func savePendingWin(ctx context.Context, win model.PendingWin) error {
	payload, err := json.Marshal(win)
	if err != nil {
		return err
	}
	return config.Redis.Set(ctx, "PENDING_WIN_"+win.Token, payload, pendingWinTTL).Err()
}

func loadPendingWin(ctx context.Context, token string) (*model.PendingWin, error) {
	payload, err := config.Redis.Get(ctx, "PENDING_WIN_"+token).Result()
	if err != nil {
		return nil, err
	}
	win := new(model.PendingWin)
	if err := json.Unmarshal([]byte(payload), win); err != nil {
		return nil, err
	}
	return win, nil
}

func deletePendingWin(ctx context.Context, token string) {
	config.Redis.Del(ctx, "PENDING_WIN_"+token)
}

var errWheelMerchantMismatch = errors.New("wheel token does not belong to this merchant")

// wheelSnapshot binds the pre-baked segments to the merchant they were baked
// for; a spin may only be resolved against a wheel from the same merchant.
type wheelSnapshot struct {
	MerchantId int                 `json:"merchant_id"`
	Segments   []game.WheelSegment `json:"segments"`
}

func decodeWheelSnapshot(payload []byte, merchantId int) ([]game.WheelSegment, error) {
	snapshot := wheelSnapshot{}
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, err
	}
	if snapshot.MerchantId != merchantId {
		return nil, errWheelMerchantMismatch
	}
	return snapshot.Segments, nil
}

/*
GetWidgetConfig is the eligibility/config check the widget runs at mount:
whether to render, the cooldown window, the optional visit time limit and the
enabled game codes. Internal failures answer with permissive defaults.
*/
func GetWidgetConfig(c *fiber.Ctx) error {
	merchantId, err := c.ParamsInt("merchantId")
	if err != nil || merchantId <= 0 {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Please provide a valid merchant id")
	}
	settings := fetchWidgetSettings(c.Context(), merchantId)

	visitorId := c.Query("visitor_id")
	if visitorId == "" {
		visitorId = uuid.NewString()
	}
	data := fiber.Map{
		"visitor_id":       visitorId,
		"enabled":          settings.Enabled,
		"cooldown_minutes": settings.CooldownMinutes,
		"games":            settings.Games,
	}
	visitors := visitorStore()
	if settings.VisitLimitMinutes != nil {
		expiry, err := visitors.EnsureVisitWindow(c.Context(), visitorId, time.Duration(*settings.VisitLimitMinutes)*time.Minute)
		if err == nil {
			data["visit_expires_at"] = expiry
		}
	}
	cooldown := time.Duration(settings.CooldownMinutes) * time.Minute
	if cooling, until := visitors.InCooldown(c.Context(), visitorId, cooldown); cooling {
		data["in_cooldown"] = true
		data["cooldown_until"] = until
		if coupon, ok := visitors.WonCoupon(c.Context(), visitorId); ok {
			data["last_won_coupon"] = coupon
		}
	} else {
		data["in_cooldown"] = false
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": data})
}

func GetWidgetCoupons(c *fiber.Ctx) error {
	merchantId, err := c.ParamsInt("merchantId")
	if err != nil || merchantId <= 0 {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Please provide a valid merchant id")
	}
	coupons, err := fetchAvailableCoupons(c.Context(), merchantId)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get coupons failed", utils.Logger{
			LogLevel:    utils.ERROR,
			Message:     fmt.Sprintf("GetWidgetCoupons: merchant:%d, err:%v", merchantId, err),
			ServiceName: config.ServiceName,
		})
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": coupons})
}

/*
GetWheel pre-bakes the wheel layout: one weighted draw per segment, stored
under a token the spin will resolve against. Randomness is embedded in the
visual layout on purpose; resolution later is pure angle math.
*/
func GetWheel(c *fiber.Ctx) error {
	merchantId, err := c.ParamsInt("merchantId")
	if err != nil || merchantId <= 0 {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Please provide a valid merchant id")
	}
	coupons, err := fetchAvailableCoupons(c.Context(), merchantId)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Build wheel failed", utils.Logger{
			LogLevel:    utils.ERROR,
			Message:     fmt.Sprintf("GetWheel: merchant:%d, err:%v", merchantId, err),
			ServiceName: config.ServiceName,
		})
	}
	segments := game.BuildWheel(coupons, nil)
	token := uuid.NewString()
	payload, err := json.Marshal(wheelSnapshot{MerchantId: merchantId, Segments: segments})
	if err == nil {
		err = config.Redis.Set(c.Context(), "WHEEL_"+token, payload, pendingWinTTL).Err()
	}
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Build wheel failed", utils.Logger{
			LogLevel:    utils.ERROR,
			Message:     fmt.Sprintf("GetWheel: unable to save wheel snapshot, merchant:%d, err:%v", merchantId, err),
			ServiceName: config.ServiceName,
		})
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success",
		"data": fiber.Map{"wheel_token": token, "segments": segments}})
}

/*
PlayGame evaluates one finished game round. Gating order: widget enabled →
cooldown → visit window → single evaluation per session. A win with an empty
pool is an explicit no-reward outcome, not an error.
*/
func PlayGame(c *fiber.Ctx) error {
	type PlayData struct {
		MerchantId int     `json:"merchant_id" binding:"required" validate:"required,number"`
		VisitorId  string  `json:"visitor_id" binding:"required" validate:"required"`
		SessionId  string  `json:"session_id" binding:"required" validate:"required"`
		Game       string  `json:"game" binding:"required" validate:"required,oneof=wheel memory snake aim"`
		Locale     string  `json:"locale"`
		WheelToken string  `json:"wheel_token"`
		Angle      float64 `json:"angle"`
		Moves      int     `json:"moves"`
		Score      int     `json:"score"`
		Hits       int     `json:"hits"`
	}
	playData := new(PlayData)
	if err := c.BodyParser(playData); err != nil || playData.Game == "" {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{"status": fiber.StatusBadRequest, "message": "Please provide all required data", "details": err})
	}
	if err := Validate.Struct(playData); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, "Provided data are not valid")
	}
	localizer := loadLocalizer(playData.Locale)
	settings := fetchWidgetSettings(c.Context(), playData.MerchantId)
	if !settings.Enabled {
		return utils.JsonErrorResponse(c, fiber.StatusForbidden, utils.Localize(localizer, "widget_disabled", nil))
	}
	gameEnabled := false
	for _, code := range settings.Games {
		if code == playData.Game {
			gameEnabled = true
			break
		}
	}
	if !gameEnabled {
		return utils.JsonErrorResponse(c, fiber.StatusForbidden, utils.Localize(localizer, "game_disabled", nil))
	}
	visitors := visitorStore()
	cooldown := time.Duration(settings.CooldownMinutes) * time.Minute
	if cooling, until := visitors.InCooldown(c.Context(), playData.VisitorId, cooldown); cooling {
		c.SendStatus(fiber.StatusForbidden)
		response := fiber.Map{"status": fiber.StatusForbidden, "message": utils.Localize(localizer, "cooldown_active", nil), "cooldown_until": until}
		if coupon, ok := visitors.WonCoupon(c.Context(), playData.VisitorId); ok {
			response["last_won_coupon"] = coupon
		}
		return c.JSON(response)
	}
	if settings.VisitLimitMinutes != nil {
		expiry, err := visitors.EnsureVisitWindow(c.Context(), playData.VisitorId, time.Duration(*settings.VisitLimitMinutes)*time.Minute)
		if err == nil && time.Now().After(expiry) {
			return utils.JsonErrorResponse(c, fiber.StatusForbidden, utils.Localize(localizer, "visit_expired", nil))
		}
	}
	// one win evaluation per game session, never zero and never more than one
	firstEvaluation, err := config.Redis.SetNX(c.Context(), "GAME_SESSION_"+playData.SessionId, time.Now().Format(time.RFC3339), pendingWinTTL).Result()
	if err != nil {
		utils.LogMessage("error", fmt.Sprintf("PlayGame: session guard failed, session:%s, err:%v", playData.SessionId, err), config.ServiceName)
	} else if !firstEvaluation {
		return utils.JsonErrorResponse(c, fiber.StatusConflict, utils.Localize(localizer, "session_played", nil))
	}
	coupons, err := fetchAvailableCoupons(c.Context(), playData.MerchantId)
	if err != nil {
		// the game still completes; the player just gets no reward
		utils.LogMessage("error", fmt.Sprintf("PlayGame: unable to load coupons, merchant:%d, err:%v", playData.MerchantId, err), config.ServiceName)
		coupons = []model.Coupon{}
	}
	var winner *model.Coupon
	won := false
	switch playData.Game {
	case game.GameWheel:
		if playData.WheelToken == "" {
			return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Please provide a wheel token")
		}
		payload, err := config.Redis.Get(c.Context(), "WHEEL_"+playData.WheelToken).Result()
		if err != nil {
			return utils.JsonErrorResponse(c, fiber.StatusGone, utils.Localize(localizer, "win_expired", nil))
		}
		segments, err := decodeWheelSnapshot([]byte(payload), playData.MerchantId)
		if err != nil {
			if errors.Is(err, errWheelMerchantMismatch) {
				return utils.JsonErrorResponse(c, fiber.StatusForbidden, "Wheel token is not valid for this game")
			}
			return utils.JsonErrorResponse(c, fiber.StatusGone, utils.Localize(localizer, "win_expired", nil))
		}
		config.Redis.Del(c.Context(), "WHEEL_"+playData.WheelToken)
		winner = game.ResolveWheel(segments, playData.Angle)
		won = true
	case game.GameMemory:
		if playData.Moves <= 0 {
			return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Please provide the move count")
		}
		winner = game.ResolveMemory(coupons, playData.Moves, nil)
		won = true
	case game.GameSnake:
		winner, won = game.ResolveSnake(coupons, playData.Score, nil)
	case game.GameAim:
		winner, won = game.ResolveAim(coupons, playData.Hits, nil)
	}
	if !won {
		return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": utils.Localize(localizer, "lost", nil),
			"data": fiber.Map{"won": false}})
	}
	if winner == nil {
		return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": utils.Localize(localizer, "no_reward", nil),
			"data": fiber.Map{"won": true, "coupon": nil}})
	}
	snapshot := *winner
	snapshot.Code = "" // the claim procedure reveals the authoritative code
	win := model.PendingWin{
		Token:      uuid.NewString(),
		MerchantId: playData.MerchantId,
		VisitorId:  playData.VisitorId,
		GameType:   playData.Game,
		Coupon:     snapshot,
		CreatedAt:  time.Now(),
	}
	if err := savePendingWin(c.Context(), win); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, utils.Localize(localizer, "claim_failed", nil), utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     fmt.Sprintf("PlayGame: unable to save pending win, visitor:%s, err:%v", playData.VisitorId, err),
			ServiceName: config.ServiceName,
		})
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": utils.Localize(localizer, "win", nil),
		"data": fiber.Map{"won": true, "coupon": snapshot, "win_token": win.Token}})
}

/*
ClaimReward finalizes a pending win: atomic stock decrement, reward email,
then the visitor's cooldown state. Failure semantics follow the finalizer:
sold out clears the win, an email failure keeps it claimable.
*/
func ClaimReward(c *fiber.Ctx) error {
	type ClaimData struct {
		WinToken string `json:"win_token" binding:"required" validate:"required"`
		Email    string `json:"email" binding:"required" validate:"required"`
		Locale   string `json:"locale"`
	}
	claimData := new(ClaimData)
	if err := c.BodyParser(claimData); err != nil || claimData.WinToken == "" {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{"status": fiber.StatusBadRequest, "message": "Please provide all required data", "details": err})
	}
	if err := Validate.Struct(claimData); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Please provide all required data")
	}
	localizer := loadLocalizer(claimData.Locale)
	win, err := loadPendingWin(c.Context(), claimData.WinToken)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusGone, utils.Localize(localizer, "win_expired", nil))
	}
	settings := fetchWidgetSettings(c.Context(), win.MerchantId)
	cooldown := time.Duration(settings.CooldownMinutes) * time.Minute

	finalizer := claim.NewFinalizer(claim.NewPostgresStore(config.DB), getMailer(), visitorStore())
	updated, err := finalizer.Claim(c.Context(), *win, claimData.Email, cooldown)
	if err != nil {
		var sendErr *claim.EmailSendError
		switch {
		case errors.Is(err, claim.ErrInvalidEmail):
			return utils.JsonErrorResponse(c, fiber.StatusBadRequest, utils.Localize(localizer, "invalid_email", nil))
		case errors.Is(err, claim.ErrExhausted):
			deletePendingWin(c.Context(), claimData.WinToken)
			return utils.JsonErrorResponse(c, fiber.StatusConflict, utils.Localize(localizer, "sold_out", nil))
		case errors.As(err, &sendErr):
			// stock already moved; keep the finalized win so the retry only
			// re-runs the email step
			if saveErr := savePendingWin(c.Context(), updated); saveErr != nil {
				utils.LogMessage("critical", fmt.Sprintf("ClaimReward: unable to keep finalized win %s: %v", updated.Token, saveErr), config.ServiceName)
			}
			return utils.JsonErrorResponse(c, fiber.StatusBadGateway, utils.Localize(localizer, "email_failed", nil), utils.Logger{
				LogLevel:    utils.ERROR,
				Message:     fmt.Sprintf("ClaimReward: email send failed for claim %d: %v", updated.ClaimId, err),
				ServiceName: config.ServiceName,
			})
		default:
			return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, utils.Localize(localizer, "claim_failed", nil), utils.Logger{
				LogLevel:    utils.CRITICAL,
				Message:     fmt.Sprintf("ClaimReward: claim failed for token %s: %v", claimData.WinToken, err),
				ServiceName: config.ServiceName,
			})
		}
	}
	deletePendingWin(c.Context(), claimData.WinToken)
	coupon := updated.Coupon
	coupon.Code = updated.Code
	return c.JSON(fiber.Map{"status": fiber.StatusOK,
		"message": utils.Localize(localizer, "claim_success", map[string]interface{}{"Email": claimData.Email}),
		"data":    fiber.Map{"code": updated.Code, "coupon": coupon}})
}

// GetWonCoupon serves the cached reward while the visitor sits in cooldown.
func GetWonCoupon(c *fiber.Ctx) error {
	visitorId := c.Params("visitorId")
	if visitorId == "" {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Please provide a visitor id")
	}
	coupon, ok := visitorStore().WonCoupon(c.Context(), visitorId)
	if !ok {
		return utils.JsonErrorResponse(c, fiber.StatusNotFound, "No reward found for this visitor")
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": coupon})
}
