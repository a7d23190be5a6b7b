package routes

import (
	"github.com/gofiber/fiber/v2"

	"insights-service/internal/controller"
)

// Register attaches all HTTP routes to the Fiber app.
func Register(app *fiber.App, eventController controller.EventController, insightController controller.InsightController) {
	app.Post("/events", eventController.CreateEvent)

	app.Get("/insights/trend", insightController.GetTrends)
	app.Get("/insights/path", insightController.GetPaths)
	app.Get("/insights/lifecycle/people", insightController.GetLifecyclePeople)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}
