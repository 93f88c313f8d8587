package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// PixWebhookAuth checks the shared secret a PIX provider sends as the
// password of a Basic Authorization header. An empty secret disables the
// webhook entirely.
func PixWebhookAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return fiber.NewError(fiber.StatusServiceUnavailable, "pix webhook not configured")
		}

		parts := strings.SplitN(c.Get("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Basic") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(parts[1]))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		_, password, ok := strings.Cut(string(decoded), ":")
		if !ok || subtle.ConstantTimeCompare([]byte(password), []byte(secret)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid webhook credentials")
		}

		return c.Next()
	}
}
