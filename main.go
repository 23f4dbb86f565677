package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"farm_scheduler/fleet"
	"farm_scheduler/schedule"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/rs/zerolog/log"
)

func main() {
	Execute()
}

func setupShutdownListener(appCancel context.CancelFunc) {
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		appCancel()
	}()
}

func mapRoutes(app *fiber.App, fms *FMS) {
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	api := app.Group("/api")

	schedule.RegisterScheduleRoutes(api, schedule.NewScheduleHandler(fms.engine))
	fleet.RegisterFleetRoutes(api, fleet.NewFleetHandler(fms.devices, fms.broker))
}
