package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/larinai/larinai/internal/pkg/apperr"
	icuser "github.com/larinai/larinai/internal/pkg/usercontext"
)

func deny(c *fiber.Ctx, kind apperr.Kind, message string) error {
	return c.Status(apperr.HTTPStatus(kind)).JSON(fiber.Map{
		"success": false,
		"error":   kind,
		"message": message,
	})
}

// RequireAPISessionAuth ensures an authenticated caller and returns JSON 401 otherwise.
func RequireAPISessionAuth(c *fiber.Ctx) error {
	if !icuser.IsLoggedIn(c) {
		return deny(c, apperr.NotAuthenticated, "login required")
	}
	return c.Next()
}

// RequireSuperadmin answers 401 for anonymous callers and 403 for every role
// other than superadmin.
func RequireSuperadmin(c *fiber.Ctx) error {
	u := icuser.GetUserContext(c)
	if !u.IsLoggedIn {
		return deny(c, apperr.NotAuthenticated, "login required")
	}
	if !u.IsSuperadmin() {
		return deny(c, apperr.InsufficientPermissions, "superadmin role required")
	}
	return c.Next()
}
