package api

import (
	"finbot/internal/api/handlers"
	"finbot/pkg/auth"
	"finbot/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func SetupRouter(
	webhookHandler *handlers.WebhookHandler,
	txHandler *handlers.TransactionHandler,
	jwtManager *auth.JWTManager,
	appSecret string,
	appLogger *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// WhatsApp Cloud API webhook
	app.Get("/webhook", webhookHandler.Verify)
	app.Post("/webhook", middleware.WebhookSignature(appSecret, appLogger), webhookHandler.Receive)

	// Protected routes
	protected := app.Group("/api/v1", middleware.AuthMiddleware(jwtManager, appLogger))

	transactions := protected.Group("/transactions")
	transactions.Get("", txHandler.ListTransactions)
	transactions.Post("/:id/confirm", txHandler.ConfirmTransaction)

	protected.Get("/learning-samples", txHandler.ListLearningSamples)

	return app
}
