package middleware

import (
	"strings"

	"bizops_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// ServiceAuth validates HS256 bearer tokens issued to the scheduler and
// ops tooling. Handlers are machine-invoked; there is no per-user identity,
// only a caller claim used for audit attribution.
func ServiceAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return apperr.Unauthorized("missing authorization header")
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return apperr.InvalidToken("authorization header must use Bearer scheme")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return apperr.InvalidToken("invalid or expired token")
		}

		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if caller, ok := claims["sub"].(string); ok {
				c.Locals("caller", caller)
			}
		}

		return c.Next()
	}
}
