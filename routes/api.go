package routes

import (
	"fmt"
	"time"

	"playcoupon-api/controller"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	html "github.com/gofiber/template/html/v2"
	"github.com/spf13/viper"
)

func InitRoutes() *fiber.App {
	templatesDir := viper.GetString("templates_dir")
	if templatesDir == "" {
		templatesDir = "./templates"
	}
	engine := html.New(templatesDir, ".html")
	app := fiber.New(fiber.Config{
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		Views:        engine,
		ReadTimeout:  time.Minute * 5,
		WriteTimeout: time.Minute * 5,
		BodyLimit:    20 * 1024 * 1024, // room for coupon workbooks
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowHeaders:     "Content-Type, Access-Control-Allow-Headers, Authorization, X-Requested-With",
		AllowMethods:     "*",
		AllowCredentials: false,
	}))

	v1 := app.Group("/api/v1/")
	v1.All("/service-status", func(c *fiber.Ctx) error {
		fmt.Println("Calling home endpoint")
		return c.JSON(fiber.Map{"status": 200, "message": "This API service is running!"})
	})
	v1.Get("/", controller.Index)
	v1.Get("/widget/demo/:merchantId?", controller.DemoPage)

	// merchant dashboard
	v1.Post("/login", controller.LoginWithEmail)
	v1.Get("/profile", controller.GetMerchantProfile)
	v1.Post("/change_password", controller.ChangePassword)
	v1.Post("/coupon", controller.CreateCoupon)
	v1.Get("/coupons", controller.GetCoupons)
	v1.Post("/coupon/:couponId", controller.UpdateCoupon)
	v1.Post("/coupon_status/:couponId", controller.ChangeCouponStatus)
	v1.Post("/upload_coupons", controller.UploadCoupons)
	v1.Get("/widget_settings", controller.GetWidgetSettings)
	v1.Post("/widget_settings", controller.SaveWidgetSettings)
	v1.Get("/claims", controller.GetClaims)
	v1.Get("/claim_overview", controller.GetClaimOverview)
	v1.Get("/logs", controller.GetLogs)

	// embeddable widget, no auth
	widget := v1.Group("/widget/")
	widget.Get("/config/:merchantId", controller.GetWidgetConfig)
	widget.Get("/coupons/:merchantId", controller.GetWidgetCoupons)
	widget.Get("/wheel/:merchantId", controller.GetWheel)
	widget.Post("/play", controller.PlayGame)
	widget.Post("/claim", controller.ClaimReward)
	widget.Get("/reward/:visitorId", controller.GetWonCoupon)
	return app
}
