package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vivalab/viva-go-api/internal/config"
	"github.com/vivalab/viva-go-api/internal/handler"
	"github.com/vivalab/viva-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ExamHandler   *handler.ExamHandler
	SpeechHandler *handler.SpeechHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	if deps.ExamHandler != nil {
		deps.ExamHandler.Register(api.Group("/exams"))
	}

	if deps.SpeechHandler != nil {
		deps.SpeechHandler.Register(api.Group("/speech"))
	}

	app.Get("/metrics", observability.MetricsHandler())
}
