package middlewares

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"contentops-backend/apperr"
	"contentops-backend/auth"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

// IsAuthenticatedHeader validates a Bearer token and stashes the request
// actor in c.Locals("actor"). Every failure is the same unauthorized
// response; the sub-reason never leaks.
func IsAuthenticatedHeader() fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get(authHeader)
		if h == "" || !strings.HasPrefix(strings.ToLower(h), strings.ToLower(bearerPrefix)) {
			return apperr.New(apperr.Unauthorized, "invalid or expired token")
		}
		raw := strings.TrimSpace(h[len(bearerPrefix):])
		if raw == "" {
			return apperr.New(apperr.Unauthorized, "invalid or expired token")
		}

		claims, err := auth.VerifyToken(raw)
		if err != nil {
			return err
		}

		actor := auth.FromClaims(claims)
		c.Locals("actor", actor)
		c.Locals("userID", actor.UserID)
		return c.Next()
	}
}

// RequireAdmin gates engine-facing routes on the cross-tenant role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := ActorFromCtx(c)
		if !actor.IsAdmin() {
			return apperr.New(apperr.Forbidden, "admin role required")
		}
		return c.Next()
	}
}

// ActorFromCtx returns the actor placed by IsAuthenticatedHeader.
func ActorFromCtx(c *fiber.Ctx) auth.Actor {
	if v := c.Locals("actor"); v != nil {
		if a, ok := v.(auth.Actor); ok {
			return a
		}
	}
	return auth.Actor{}
}
