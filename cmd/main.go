package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ShubhamSingh-04/attendance-system-server/capture"
	"github.com/ShubhamSingh-04/attendance-system-server/config"
	"github.com/ShubhamSingh-04/attendance-system-server/database"
	"github.com/ShubhamSingh-04/attendance-system-server/routes"
	"github.com/ShubhamSingh-04/attendance-system-server/storage"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()
	database.Connect(cfg)

	store, err := storage.New(cfg.UploadDir)
	if err != nil {
		log.Fatalf("prepare upload directories: %v", err)
	}
	capture.RegisterMetrics()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORS())

	routes.Register(e, cfg, store)

	addr := ":" + cfg.AppPort
	log.Printf("server listening at %s", addr)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
