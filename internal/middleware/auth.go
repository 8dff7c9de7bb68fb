package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"supportportal/internal/auth"
)

// AuthMiddleware accepts a bearer token minted by the login handler and
// stores its claims under the "claims" local.
func AuthMiddleware(c *fiber.Ctx) error {
	issuer := c.Locals("issuer").(*auth.Issuer)

	authHeader := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Unauthorized",
		})
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")

	claims, err := issuer.Verify(token)
	if err != nil {
		log.Debug().Err(err).Str("ip", c.IP()).Msg("Rejected bearer token")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Unauthorized",
		})
	}

	c.Locals("claims", claims)

	return c.Next()
}

// RequireAuthority must run after AuthMiddleware.
func RequireAuthority(authority string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("claims").(*auth.Claims)

		if !auth.HasAuthority(claims.Authorities, authority) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "You do not have enough permission",
			})
		}

		return c.Next()
	}
}
