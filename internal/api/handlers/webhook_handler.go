package handlers

import (
	"context"
	"sync"
	"time"

	"finbot/internal/dto"
	"finbot/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// MessageHandler processes one inbound WhatsApp message.
type MessageHandler interface {
	Handle(ctx context.Context, msg dto.WhatsAppMessage)
}

type WebhookHandler struct {
	messages    MessageHandler
	verifyToken string
	timeout     time.Duration
	baseCtx     context.Context
	wg          sync.WaitGroup
	logger      *zap.Logger
}

// NewWebhookHandler runs every message under a child of ctx bounded by
// timeout. Cancelling ctx aborts in-flight messages.
func NewWebhookHandler(ctx context.Context, messages MessageHandler, verifyToken string, timeout time.Duration, logger *zap.Logger) *WebhookHandler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &WebhookHandler{
		messages:    messages,
		verifyToken: verifyToken,
		timeout:     timeout,
		baseCtx:     ctx,
		logger:      logger,
	}
}

// Verify answers the subscription handshake Meta performs when the webhook
// URL is registered.
func (h *WebhookHandler) Verify(c *fiber.Ctx) error {
	if c.Query("hub.mode") != "subscribe" || h.verifyToken == "" || c.Query("hub.verify_token") != h.verifyToken {
		h.logger.Warn("Webhook verification failed", zap.String("ip", c.IP()))
		return c.SendStatus(fiber.StatusForbidden)
	}
	return c.SendString(c.Query("hub.challenge"))
}

// Receive acknowledges the delivery right away and handles each message in
// its own goroutine.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	var payload dto.WebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, msg := range change.Value.Messages {
				h.dispatch(msg)
			}
		}
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *WebhookHandler) dispatch(msg dto.WhatsAppMessage) {
	h.logger.Info("Message received",
		logger.User(msg.From),
		zap.String("message_id", msg.ID),
		zap.String("type", msg.Type),
	)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(h.baseCtx, h.timeout)
		defer cancel()
		h.messages.Handle(ctx, msg)
	}()
}

// Wait blocks until every dispatched message has been handled.
func (h *WebhookHandler) Wait() {
	h.wg.Wait()
}
