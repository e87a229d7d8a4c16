package serverutils

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// ApiKeyMiddleware guards routes with a static bearer key. An empty
// configured key disables the check entirely, which is the local dev mode.
func ApiKeyMiddleware(apiKey string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if apiKey == "" {
			return ctx.Next()
		}

		authHeader := ctx.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Missing token"))
		}
		token := authHeader[7:]

		if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Invalid token"))
		}
		return ctx.Next()
	}
}
