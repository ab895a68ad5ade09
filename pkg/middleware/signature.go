package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const signatureHeader = "X-Hub-Signature-256"

// WebhookSignature rejects webhook deliveries whose X-Hub-Signature-256 does
// not match the HMAC-SHA256 of the raw body. An empty secret disables the
// check (local development).
func WebhookSignature(appSecret string, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if appSecret == "" {
			return c.Next()
		}

		got := strings.TrimPrefix(c.Get(signatureHeader), "sha256=")
		if got == "" || !ValidSignature(appSecret, c.Body(), got) {
			logger.Warn("Webhook signature mismatch", zap.String("ip", c.IP()))
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.Next()
	}
}

// ValidSignature compares hexSig against HMAC-SHA256(secret, body).
func ValidSignature(secret string, body []byte, hexSig string) bool {
	sig, err := hex.DecodeString(hexSig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}

// Sign returns the header value WhatsApp would send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
