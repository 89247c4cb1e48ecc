package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"playcoupon-api/config"
	"playcoupon-api/game"
	"playcoupon-api/model"
	"playcoupon-api/utils"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestGetWidgetConfigRejectsBadMerchantId(t *testing.T) {
	app := fiber.New()
	app.Get("/widget/config/:merchantId", GetWidgetConfig)

	a := assert.New(t)
	for _, merchantId := range []string{"abc", "0", "-3"} {
		resp, _ := app.Test(httptest.NewRequest("GET", "/widget/config/"+merchantId, nil), -1)
		a.Equal(400, resp.StatusCode, merchantId)
	}
}

func TestGetWidgetConfigFailOpenWithoutBackends(t *testing.T) {
	// the eligibility check must answer with permissive defaults when no
	// database pool is up and redis is unreachable: the widget still renders
	config.DB = nil
	config.Redis = redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	app := fiber.New()
	app.Get("/widget/config/:merchantId", GetWidgetConfig)

	a := assert.New(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/widget/config/1?visitor_id=v-1", nil), -1)
	a.NoError(err)
	a.Equal(200, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var result map[string]interface{}
	a.NoError(json.Unmarshal(body, &result))
	data, ok := result["data"].(map[string]interface{})
	a.True(ok, "data should be a map")
	a.Equal(true, data["enabled"])
	a.Equal(float64(60), data["cooldown_minutes"])
	a.Len(data["games"], 4)
	a.Equal(false, data["in_cooldown"])
	a.Equal("v-1", data["visitor_id"])
}

func TestWheelSnapshotBoundToMerchant(t *testing.T) {
	a := assert.New(t)
	coupon := model.Coupon{Id: 7, MerchantId: 1, Description: "10% off", Level: 1, Quantity: 5}
	payload, err := json.Marshal(wheelSnapshot{MerchantId: 1, Segments: []game.WheelSegment{{Index: 0, Coupon: &coupon}}})
	a.NoError(err)

	segments, err := decodeWheelSnapshot(payload, 1)
	a.NoError(err)
	a.Len(segments, 1)
	a.Equal(7, segments[0].Coupon.Id)

	// a wheel baked for one merchant may not settle a play for another
	_, err = decodeWheelSnapshot(payload, 2)
	a.ErrorIs(err, errWheelMerchantMismatch)

	_, err = decodeWheelSnapshot([]byte("not json"), 1)
	a.Error(err)
}

func TestPlayGameValidation(t *testing.T) {
	app := fiber.New()
	app.Post("/widget/play", PlayGame)

	tests := []struct {
		description  string
		payload      map[string]interface{}
		expectedCode int
		expectedBody string
	}{
		{
			description:  "missing everything",
			payload:      map[string]interface{}{},
			expectedCode: 400,
			expectedBody: "Please provide all required data",
		},
		{
			description: "unknown game",
			payload: map[string]interface{}{
				"merchant_id": 1,
				"visitor_id":  "v-1",
				"session_id":  "s-1",
				"game":        "tennis",
			},
			expectedCode: 406,
			expectedBody: "Provided data are not valid",
		},
		{
			description: "missing session id",
			payload: map[string]interface{}{
				"merchant_id": 1,
				"visitor_id":  "v-1",
				"game":        "wheel",
			},
			expectedCode: 406,
			expectedBody: "Provided data are not valid",
		},
	}

	a := assert.New(t)
	for _, test := range tests {
		reqBody, _ := json.Marshal(test.payload)
		req := httptest.NewRequest("POST", "/widget/play", bytes.NewReader(reqBody))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := app.Test(req, -1)
		a.Equal(test.expectedCode, resp.StatusCode, test.description)
		body, _ := io.ReadAll(resp.Body)
		a.Contains(string(body), test.expectedBody, test.description)
	}
}

func TestClaimRewardValidation(t *testing.T) {
	app := fiber.New()
	app.Post("/widget/claim", ClaimReward)

	tests := []struct {
		description  string
		payload      map[string]string
		expectedCode int
	}{
		{
			description:  "missing token",
			payload:      map[string]string{"email": "player@example.com"},
			expectedCode: 400,
		},
		{
			description:  "missing email",
			payload:      map[string]string{"win_token": "tok-1"},
			expectedCode: 400,
		},
	}

	a := assert.New(t)
	for _, test := range tests {
		reqBody, _ := json.Marshal(test.payload)
		req := httptest.NewRequest("POST", "/widget/claim", bytes.NewReader(reqBody))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := app.Test(req, -1)
		a.Equal(test.expectedCode, resp.StatusCode, test.description)
	}
}

func TestLocalizedMessagesFallBackToEnglish(t *testing.T) {
	a := assert.New(t)
	// an unknown language must still produce the english defaults
	localizer := loadLocalizer("de")
	a.Equal("No luck this time. Try again later!", utils.Localize(localizer, "lost", nil))
	a.Equal("Your coupon is on its way to player@example.com!",
		utils.Localize(localizer, "claim_success", map[string]interface{}{"Email": "player@example.com"}))
	// an unknown message id falls back to the id itself instead of failing
	a.Equal("does_not_exist", utils.Localize(localizer, "does_not_exist", nil))
}
