package controller

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"playcoupon-api/config"
	"playcoupon-api/game"
	"playcoupon-api/model"
	"playcoupon-api/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/xuri/excelize/v2"
)

func CreateCoupon(c *fiber.Ctx) error {
	merchantPayload, err := utils.SecurePath(c, config.Redis)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusUnauthorized, err.Error())
	}
	type CouponData struct {
		Description   string  `json:"description" binding:"required" validate:"required"`
		DiscountKind  string  `json:"discount_kind" binding:"required" validate:"required,oneof=percentage fixed free_item"`
		DiscountValue float64 `json:"discount_value" validate:"gte=0"`
		Level         int     `json:"level" binding:"required" validate:"required,min=1,max=3"`
		Quantity      int     `json:"quantity" binding:"required" validate:"required,min=1"`
		Code          string  `json:"code"`
	}
	couponData := new(CouponData)
	if err := c.BodyParser(couponData); err != nil || couponData.Description == "" {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{"status": fiber.StatusBadRequest, "message": "Please provide all required data", "details": err})
	}
	if err := Validate.Struct(couponData); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, "Provided data are not valid")
	}
	invalidKeys := utils.ValidateStruct(couponData, []string{"%"}, []string{"Code"})
	errorMessage := utils.ValidateStructText(invalidKeys)
	if errorMessage != nil {
		return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, *errorMessage)
	}
	if couponData.Code == "" {
		couponData.Code = utils.GenerateCouponCode(8)
	}
	coupon := model.Coupon{}
	err = config.DB.QueryRow(ctx,
		`insert into coupons (merchant_id, code, description, discount_kind, discount_value, level, quantity, used_count, status)
		values ($1,$2,$3,$4,$5,$6,$7,0,'OKAY') returning id, created_at`,
		merchantPayload.Id, couponData.Code, couponData.Description, couponData.DiscountKind,
		couponData.DiscountValue, couponData.Level, couponData.Quantity).
		Scan(&coupon.Id, &coupon.CreatedAt)
	if err != nil {
		if isDuplicate, key := utils.IsErrDuplicate(err); isDuplicate {
			return utils.JsonErrorResponse(c, fiber.StatusConflict, fmt.Sprintf("%s already exists", key))
		}
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Create coupon failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     fmt.Sprintf("CreateCoupon: merchant:%d, err:%v", merchantPayload.Id, err),
			ServiceName: config.ServiceName,
		})
	}
	coupon.MerchantId = merchantPayload.Id
	coupon.Code = couponData.Code
	coupon.Description = couponData.Description
	coupon.DiscountKind = couponData.DiscountKind
	coupon.DiscountValue = couponData.DiscountValue
	coupon.Level = couponData.Level
	coupon.Quantity = couponData.Quantity
	coupon.Status = "OKAY"
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "Coupon created", "data": coupon})
}

func GetCoupons(c *fiber.Ctx) error {
	merchantPayload, err := utils.SecurePath(c, config.Redis)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusUnauthorized, err.Error())
	}
	coupons := []model.Coupon{}
	rows, err := config.DB.Query(ctx,
		`select id, merchant_id, code, description, discount_kind, discount_value, level, quantity, used_count, status, created_at
		from coupons where merchant_id = $1 order by level, id`, merchantPayload.Id)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get coupons failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     "GetCoupons: Unable to get coupons, error: " + err.Error(),
			ServiceName: config.ServiceName,
		})
	}
	defer rows.Close()
	for rows.Next() {
		coupon := model.Coupon{}
		err = rows.Scan(&coupon.Id, &coupon.MerchantId, &coupon.Code, &coupon.Description, &coupon.DiscountKind,
			&coupon.DiscountValue, &coupon.Level, &coupon.Quantity, &coupon.UsedCount, &coupon.Status, &coupon.CreatedAt)
		if err != nil {
			return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get coupons failed", utils.Logger{
				LogLevel:    utils.CRITICAL,
				Message:     "GetCoupons: Unable to scan coupon, error: " + err.Error(),
				ServiceName: config.ServiceName,
			})
		}
		coupons = append(coupons, coupon)
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": coupons})
}

func UpdateCoupon(c *fiber.Ctx) error {
	merchantPayload, err := utils.SecurePath(c, config.Redis)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusUnauthorized, err.Error())
	}
	couponId, err := c.ParamsInt("couponId")
	if err != nil || couponId <= 0 {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Please provide a valid coupon id")
	}
	type CouponData struct {
		Description   string  `json:"description" binding:"required" validate:"required"`
		DiscountKind  string  `json:"discount_kind" binding:"required" validate:"required,oneof=percentage fixed free_item"`
		DiscountValue float64 `json:"discount_value" validate:"gte=0"`
		Level         int     `json:"level" binding:"required" validate:"required,min=1,max=3"`
		Quantity      int     `json:"quantity" binding:"required" validate:"required,min=1"`
	}
	couponData := new(CouponData)
	if err := c.BodyParser(couponData); err != nil || couponData.Description == "" {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{"status": fiber.StatusBadRequest, "message": "Please provide all required data", "details": err})
	}
	if err := Validate.Struct(couponData); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, "Provided data are not valid")
	}
	// quantity may not drop below what is already redeemed
	tag, err := config.DB.Exec(ctx,
		`update coupons set description = $1, discount_kind = $2, discount_value = $3, level = $4, quantity = $5, updated_at = now()
		where id = $6 and merchant_id = $7 and quantity >= used_count`,
		couponData.Description, couponData.DiscountKind, couponData.DiscountValue, couponData.Level,
		couponData.Quantity, couponId, merchantPayload.Id)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Update coupon failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     fmt.Sprintf("UpdateCoupon: coupon:%d, err:%v", couponId, err),
			ServiceName: config.ServiceName,
		})
	}
	if tag.RowsAffected() == 0 {
		return utils.JsonErrorResponse(c, fiber.StatusNotFound, "Coupon not found or quantity is below redeemed count")
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "Coupon updated"})
}

func ChangeCouponStatus(c *fiber.Ctx) error {
	merchantPayload, err := utils.SecurePath(c, config.Redis)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusUnauthorized, err.Error())
	}
	couponId, err := c.ParamsInt("couponId")
	if err != nil || couponId <= 0 {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Please provide a valid coupon id")
	}
	type StatusData struct {
		Status string `json:"status" binding:"required" validate:"required,oneof=OKAY DISABLED"`
	}
	statusData := new(StatusData)
	if err := c.BodyParser(statusData); err != nil || statusData.Status == "" {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{"status": fiber.StatusBadRequest, "message": "Please provide all required data", "details": err})
	}
	if err := Validate.Struct(statusData); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, "Provided data are not valid")
	}
	tag, err := config.DB.Exec(ctx,
		`update coupons set status = $1, updated_at = now() where id = $2 and merchant_id = $3`,
		statusData.Status, couponId, merchantPayload.Id)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Change coupon status failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     fmt.Sprintf("ChangeCouponStatus: coupon:%d, err:%v", couponId, err),
			ServiceName: config.ServiceName,
		})
	}
	if tag.RowsAffected() == 0 {
		return utils.JsonErrorResponse(c, fiber.StatusNotFound, "Coupon not found")
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "Coupon status changed"})
}

/*
UploadCoupons imports coupons in bulk from an XLSX sheet. Expected columns:
description, discount_kind, discount_value, level, quantity, code (optional).
The first row is treated as a header. Rows that fail validation are reported
back with their row number; valid rows are still imported.
*/
func UploadCoupons(c *fiber.Ctx) error {
	merchantPayload, err := utils.SecurePath(c, config.Redis)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusUnauthorized, err.Error())
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Please provide an xlsx file")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Unable to read the provided file")
	}
	defer file.Close()
	workbook, err := excelize.OpenReader(file)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "The provided file is not a valid xlsx workbook")
	}
	defer workbook.Close()
	sheetRows, err := workbook.GetRows(workbook.GetSheetName(0))
	if err != nil || len(sheetRows) < 2 {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "The workbook has no coupon rows")
	}
	imported := 0
	rejected := []fiber.Map{}
	for i, row := range sheetRows[1:] {
		rowNumber := i + 2
		if len(row) < 5 {
			rejected = append(rejected, fiber.Map{"row": rowNumber, "reason": "missing columns"})
			continue
		}
		description := strings.TrimSpace(row[0])
		discountKind := strings.TrimSpace(strings.ToLower(row[1]))
		discountValue, valueErr := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		level, levelErr := strconv.Atoi(strings.TrimSpace(row[3]))
		quantity, quantityErr := strconv.Atoi(strings.TrimSpace(row[4]))
		code := ""
		if len(row) > 5 {
			code = strings.TrimSpace(row[5])
		}
		switch {
		case description == "":
			rejected = append(rejected, fiber.Map{"row": rowNumber, "reason": "description is required"})
			continue
		case discountKind != "percentage" && discountKind != "fixed" && discountKind != "free_item":
			rejected = append(rejected, fiber.Map{"row": rowNumber, "reason": "discount_kind must be percentage, fixed or free_item"})
			continue
		case valueErr != nil || discountValue < 0:
			rejected = append(rejected, fiber.Map{"row": rowNumber, "reason": "discount_value is not a valid number"})
			continue
		case levelErr != nil || level < 1 || level > 3:
			rejected = append(rejected, fiber.Map{"row": rowNumber, "reason": "level must be 1, 2 or 3"})
			continue
		case quantityErr != nil || quantity < 1:
			rejected = append(rejected, fiber.Map{"row": rowNumber, "reason": "quantity must be a positive number"})
			continue
		}
		if code == "" {
			code = utils.GenerateCouponCode(8)
		}
		_, err = config.DB.Exec(ctx,
			`insert into coupons (merchant_id, code, description, discount_kind, discount_value, level, quantity, used_count, status)
			values ($1,$2,$3,$4,$5,$6,$7,0,'OKAY')`,
			merchantPayload.Id, code, description, discountKind, discountValue, level, quantity)
		if err != nil {
			if isDuplicate, _ := utils.IsErrDuplicate(err); isDuplicate {
				rejected = append(rejected, fiber.Map{"row": rowNumber, "reason": "coupon code already exists"})
				continue
			}
			return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Upload coupons failed", utils.Logger{
				LogLevel:    utils.CRITICAL,
				Message:     fmt.Sprintf("UploadCoupons: merchant:%d, row:%d, err:%v", merchantPayload.Id, rowNumber, err),
				ServiceName: config.ServiceName,
			})
		}
		imported++
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": fmt.Sprintf("%d coupons imported", imported),
		"data": fiber.Map{"imported": imported, "rejected": rejected}})
}

func GetWidgetSettings(c *fiber.Ctx) error {
	merchantPayload, err := utils.SecurePath(c, config.Redis)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusUnauthorized, err.Error())
	}
	settings := fetchWidgetSettings(c.Context(), merchantPayload.Id)
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": settings})
}

func SaveWidgetSettings(c *fiber.Ctx) error {
	merchantPayload, err := utils.SecurePath(c, config.Redis)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusUnauthorized, err.Error())
	}
	type SettingsData struct {
		Enabled           bool     `json:"enabled"`
		CooldownMinutes   int      `json:"cooldown_minutes" validate:"min=0,max=10080"`
		VisitLimitMinutes *int     `json:"visit_limit_minutes"`
		Games             []string `json:"games" binding:"required" validate:"required,min=1,dive,oneof=wheel memory snake aim"`
	}
	settingsData := new(SettingsData)
	if err := c.BodyParser(settingsData); err != nil || len(settingsData.Games) == 0 {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{"status": fiber.StatusBadRequest, "message": "Please provide all required data", "details": err})
	}
	if err := Validate.Struct(settingsData); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, "Provided data are not valid")
	}
	if settingsData.VisitLimitMinutes != nil && *settingsData.VisitLimitMinutes <= 0 {
		return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, "visit_limit_minutes must be a positive number")
	}
	_, err = config.DB.Exec(ctx,
		`insert into widget_settings (merchant_id, enabled, cooldown_minutes, visit_limit_minutes, games, updated_at)
		values ($1,$2,$3,$4,$5,now())
		on conflict (merchant_id) do update set enabled = $2, cooldown_minutes = $3, visit_limit_minutes = $4, games = $5, updated_at = now()`,
		merchantPayload.Id, settingsData.Enabled, settingsData.CooldownMinutes, settingsData.VisitLimitMinutes, settingsData.Games)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Save widget settings failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     fmt.Sprintf("SaveWidgetSettings: merchant:%d, err:%v", merchantPayload.Id, err),
			ServiceName: config.ServiceName,
		})
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "Widget settings saved"})
}

func GetClaims(c *fiber.Ctx) error {
	merchantPayload, err := utils.SecurePath(c, config.Redis)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusUnauthorized, err.Error())
	}
	status := c.Query("status")
	limit, err := strconv.Atoi(c.Query("limit", "100"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 100
	}
	claims := []model.Claim{}
	var rows pgx.Rows
	if status == "" {
		rows, err = config.DB.Query(ctx,
			`select id, coupon_id, merchant_id, email, code, game_type, discount_kind, discount_value, status, send_id, created_at
			from claims where merchant_id = $1 order by created_at desc limit $2`, merchantPayload.Id, limit)
	} else {
		rows, err = config.DB.Query(ctx,
			`select id, coupon_id, merchant_id, email, code, game_type, discount_kind, discount_value, status, send_id, created_at
			from claims where merchant_id = $1 and status = $2 order by created_at desc limit $3`, merchantPayload.Id, status, limit)
	}
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get claims failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     "GetClaims: Unable to get claims, error: " + err.Error(),
			ServiceName: config.ServiceName,
		})
	}
	defer rows.Close()
	for rows.Next() {
		claimRow := model.Claim{}
		err = rows.Scan(&claimRow.Id, &claimRow.CouponId, &claimRow.MerchantId, &claimRow.Email, &claimRow.Code,
			&claimRow.GameType, &claimRow.DiscountKind, &claimRow.DiscountValue, &claimRow.Status, &claimRow.SendId, &claimRow.CreatedAt)
		if err != nil {
			return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get claims failed", utils.Logger{
				LogLevel:    utils.CRITICAL,
				Message:     "GetClaims: Unable to scan claim, error: " + err.Error(),
				ServiceName: config.ServiceName,
			})
		}
		claims = append(claims, claimRow)
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": claims})
}

// GetClaimOverview aggregates redemption counts per game and per coupon for
// the merchant dashboard charts.
func GetClaimOverview(c *fiber.Ctx) error {
	merchantPayload, err := utils.SecurePath(c, config.Redis)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusUnauthorized, err.Error())
	}
	var total, sent int
	err = config.DB.QueryRow(ctx,
		`select count(*), count(*) filter (where status = 'sent') from claims where merchant_id = $1`, merchantPayload.Id).
		Scan(&total, &sent)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get claim overview failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     "GetClaimOverview: Unable to get totals, error: " + err.Error(),
			ServiceName: config.ServiceName,
		})
	}
	perGame := fiber.Map{}
	for _, gameType := range []string{game.GameWheel, game.GameMemory, game.GameSnake, game.GameAim} {
		perGame[gameType] = 0
	}
	rows, err := config.DB.Query(ctx,
		`select game_type, count(*) from claims where merchant_id = $1 group by game_type`, merchantPayload.Id)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get claim overview failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     "GetClaimOverview: Unable to get per-game counts, error: " + err.Error(),
			ServiceName: config.ServiceName,
		})
	}
	for rows.Next() {
		var gameType string
		var count int
		if err = rows.Scan(&gameType, &count); err != nil {
			rows.Close()
			return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get claim overview failed", utils.Logger{
				LogLevel:    utils.CRITICAL,
				Message:     "GetClaimOverview: Unable to scan per-game count, error: " + err.Error(),
				ServiceName: config.ServiceName,
			})
		}
		perGame[gameType] = count
	}
	rows.Close()
	type CouponUsage struct {
		CouponId    int    `json:"coupon_id"`
		Description string `json:"description"`
		Quantity    int    `json:"quantity"`
		UsedCount   int    `json:"used_count"`
	}
	perCoupon := []CouponUsage{}
	rows, err = config.DB.Query(ctx,
		`select id, description, quantity, used_count from coupons where merchant_id = $1 order by used_count desc`, merchantPayload.Id)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get claim overview failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     "GetClaimOverview: Unable to get coupon usage, error: " + err.Error(),
			ServiceName: config.ServiceName,
		})
	}
	defer rows.Close()
	for rows.Next() {
		usage := CouponUsage{}
		if err = rows.Scan(&usage.CouponId, &usage.Description, &usage.Quantity, &usage.UsedCount); err != nil {
			return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get claim overview failed", utils.Logger{
				LogLevel:    utils.CRITICAL,
				Message:     "GetClaimOverview: Unable to scan coupon usage, error: " + err.Error(),
				ServiceName: config.ServiceName,
			})
		}
		perCoupon = append(perCoupon, usage)
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": fiber.Map{
		"total_claims": total, "emails_sent": sent, "per_game": perGame, "per_coupon": perCoupon}})
}

func GetLogs(c *fiber.Ctx) error {
	_, err := utils.SecurePath(c, config.Redis)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusUnauthorized, err.Error())
	}
	limit, err := strconv.Atoi(c.Query("limit", "200"))
	if err != nil || limit <= 0 || limit > 1000 {
		limit = 200
	}
	type LogEntry struct {
		Id        int       `json:"id"`
		LogLevel  string    `json:"log_level"`
		Message   string    `json:"message"`
		Service   string    `json:"service"`
		TraceId   string    `json:"trace_id"`
		CreatedAt time.Time `json:"created_at"`
	}
	logs := []LogEntry{}
	var rows pgx.Rows
	if level := c.Query("level"); level == "" {
		rows, err = config.DB.Query(ctx,
			`select id, log_level, message, service, trace_id, created_at from logs order by created_at desc limit $1`, limit)
	} else {
		rows, err = config.DB.Query(ctx,
			`select id, log_level, message, service, trace_id, created_at from logs where log_level = $1 order by created_at desc limit $2`, level, limit)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": logs})
		}
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get logs failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     "GetLogs: Unable to get logs, error: " + err.Error(),
			ServiceName: config.ServiceName,
		})
	}
	defer rows.Close()
	for rows.Next() {
		entry := LogEntry{}
		if err = rows.Scan(&entry.Id, &entry.LogLevel, &entry.Message, &entry.Service, &entry.TraceId, &entry.CreatedAt); err != nil {
			return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get logs failed", utils.Logger{
				LogLevel:    utils.CRITICAL,
				Message:     "GetLogs: Unable to scan log entry, error: " + err.Error(),
				ServiceName: config.ServiceName,
			})
		}
		logs = append(logs, entry)
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": logs})
}
