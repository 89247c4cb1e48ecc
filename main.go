package main

import (
	"context"
	"fmt"

	"playcoupon-api/config"
	"playcoupon-api/mailer"
	"playcoupon-api/routes"
	"playcoupon-api/utils"
	"playcoupon-api/workers"
)

func main() {
	fmt.Println("Hello - playcoupon-api: 9000")
	utils.InitializeViper("config", "yml")
	config.InitializeConfig()
	config.ConnectDb()
	defer config.DB.Close()
	utils.LogPool = config.DB

	retryWorker := workers.NewEmailRetryWorker(config.DB, mailer.NewClient())
	retryWorker.Start(context.Background())

	server := routes.InitRoutes()
	server.Listen("0.0.0.0:9000")
}
