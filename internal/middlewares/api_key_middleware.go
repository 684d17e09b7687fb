package middlewares

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

const APIKeyHeader = "X-API-Key"

// APIKeyMiddleware rejects requests whose X-API-Key header does not match apiKey.
func APIKeyMiddleware(apiKey string) fiber.Handler {
	expected := []byte(apiKey)

	return func(c fiber.Ctx) error {
		provided := c.Get(APIKeyHeader)
		if provided == "" {
			log.Warn().Str("path", c.Path()).Msg("Request without API key")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing API key",
			})
		}

		if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			log.Warn().Str("path", c.Path()).Msg("Request with invalid API key")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}

		return c.Next()
	}
}
