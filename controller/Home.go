package controller

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"playcoupon-api/config"
	"playcoupon-api/model"
	"playcoupon-api/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	gojson "github.com/goccy/go-json"
)

var Validate = validator.New()
var ctx = context.Background()

func init() {
	// Register the custom validation function
	err := Validate.RegisterValidation("regex", utils.RegexValidation)
	if err != nil {
		utils.LogMessage("critical", "Init: Error registering regex validation", config.ServiceName)
		panic("Init: Error registering regex validation")
	}
	err = Validate.RegisterValidation("strong_password", utils.IsStrongPassword)
	if err != nil {
		utils.LogMessage("critical", "Init: Error registering strong_password validation", config.ServiceName)
		panic("Init: Error registering strong_password validation")
	}
}

func Index(c *fiber.Ctx) error {
	c.Accepts("text/plain", "application/json")
	return c.JSON(fiber.Map{"status": 200,
		"message": "Welcome to the PlayCoupon gamified coupon API",
	})
}

func ServiceStatusCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": 200, "message": "This API service is running!"})
}

func LoginWithEmail(c *fiber.Ctx) error {
	type UserData struct {
		Email    string `json:"email" binding:"required" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	responseStatus := 200
	userData := new(UserData)
	if err := c.BodyParser(userData); err != nil || userData.Email == "" {
		responseStatus = 400
		c.SendStatus(responseStatus)
		return c.JSON(fiber.Map{"status": responseStatus, "message": "Please provide all required data", "details": err})
	}
	if err := Validate.Struct(userData); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Provided data are not valid")
	}
	invalidKeys := utils.ValidateStruct(userData, []string{}, []string{"Password"})
	errorMessage := utils.ValidateStructText(invalidKeys)
	if errorMessage != nil {
		return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, *errorMessage)
	}
	userData.Email = strings.ToLower(userData.Email)
	merchant := model.Merchant{}
	var passwordHash string
	err := config.DB.QueryRow(ctx,
		`select id, names, email, status, password, created_at from merchants where email = $1`, userData.Email).
		Scan(&merchant.Id, &merchant.Names, &merchant.Email, &merchant.Status, &passwordHash, &merchant.CreatedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			utils.LogMessage("critical", fmt.Sprintf("LoginWithEmail: Unable to get merchant data, Email:%s, err:%v", userData.Email, err), config.ServiceName)
		}
		responseStatus = 403
		c.SendStatus(responseStatus)
		return c.JSON(fiber.Map{"status": responseStatus, "message": "Invalid credentials"})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(userData.Password)); err != nil {
		responseStatus = 403
		c.SendStatus(responseStatus)
		return c.JSON(fiber.Map{"status": responseStatus, "message": "Invalid credentials"})
	} else if merchant.Status != "OKAY" {
		responseStatus = 403
		c.SendStatus(responseStatus)
		return c.JSON(fiber.Map{"status": responseStatus, "message": "Your account has been deactivated"})
	}
	//Generate and save access token
	token, err := generateAccesstoken(merchant)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Login failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     err.Error(),
			ServiceName: config.ServiceName,
		})
	}
	c.SendStatus(responseStatus)
	return c.JSON(fiber.Map{"status": responseStatus, "message": "Login completed", "data": merchant, "accessToken": token})
}

func generateAccesstoken(merchant model.Merchant) (string, error) {
	payloadData, err := gojson.Marshal(merchant)
	if err != nil {
		return "", fmt.Errorf("unable to marshal payload data for merchant %d , error: %s", merchant.Id, err.Error())
	}
	token := base64.RawStdEncoding.EncodeToString([]byte(fmt.Sprintf("token_%v_%v", merchant.Id, time.Now().UnixMilli())))
	if err := config.Redis.Set(ctx, token, payloadData, utils.SessionTTL()).Err(); err != nil {
		return "", fmt.Errorf("unable to save merchant access token for merchant %d , error: %s", merchant.Id, err.Error())
	}
	return token, nil
}

func GetMerchantProfile(c *fiber.Ctx) error {
	merchantPayload, err := utils.SecurePath(c, config.Redis)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusUnauthorized, err.Error())
	}
	merchant := model.Merchant{}
	err = config.DB.QueryRow(ctx,
		`select id, names, email, status, created_at from merchants where id = $1`, merchantPayload.Id).
		Scan(&merchant.Id, &merchant.Names, &merchant.Email, &merchant.Status, &merchant.CreatedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get merchant profile failed", utils.Logger{
				LogLevel:    utils.CRITICAL,
				Message:     "GetMerchantProfile: Unable to verify merchant info, error: " + err.Error(),
				ServiceName: config.ServiceName,
			})
		}
		return utils.JsonErrorResponse(c, fiber.StatusForbidden, "Merchant data is not valid")
	} else if merchant.Status != "OKAY" {
		return utils.JsonErrorResponse(c, fiber.StatusUnauthorized, "Your account is not active")
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": merchant})
}

func ChangePassword(c *fiber.Ctx) error {
	merchantPayload, err := utils.SecurePath(c, config.Redis)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusUnauthorized, err.Error())
	}
	type PasswordData struct {
		CurrentPassword string `json:"current_password" binding:"required" validate:"required"`
		NewPassword     string `json:"new_password" binding:"required" validate:"required,strong_password"`
	}
	passwordData := new(PasswordData)
	if err := c.BodyParser(passwordData); err != nil || passwordData.NewPassword == "" {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{"status": fiber.StatusBadRequest, "message": "Please provide all required data", "details": err})
	}
	if err := Validate.Struct(passwordData); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, "Password must be at least 8 characters with upper, lower, number and special character")
	}
	var passwordHash string
	err = config.DB.QueryRow(ctx,
		`select password from merchants where id = $1`, merchantPayload.Id).Scan(&passwordHash)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Change password failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     fmt.Sprintf("ChangePassword: Unable to get merchant %d, err:%v", merchantPayload.Id, err),
			ServiceName: config.ServiceName,
		})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(passwordData.CurrentPassword)); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusForbidden, "Current password is not correct")
	}
	newHash, err := utils.HashPassword(passwordData.NewPassword)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Change password failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     fmt.Sprintf("ChangePassword: Unable to hash password for merchant %d, err:%v", merchantPayload.Id, err),
			ServiceName: config.ServiceName,
		})
	}
	_, err = config.DB.Exec(ctx,
		`update merchants set password = $1, updated_at = now() where id = $2`, newHash, merchantPayload.Id)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Change password failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     fmt.Sprintf("ChangePassword: Unable to update password for merchant %d, err:%v", merchantPayload.Id, err),
			ServiceName: config.ServiceName,
		})
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "Password changed successfully"})
}

// DemoPage renders the embedded playground page for trying out the widget.
func DemoPage(c *fiber.Ctx) error {
	return c.Render("demo", fiber.Map{
		"Title":      "PlayCoupon widget demo",
		"MerchantId": c.Params("merchantId", "1"),
	})
}
